package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the pool configuration file: construction parameters, roles and
// the genesis listing. TOML and YAML encodings are selected by extension.
type Config struct {
	Timestamp uint64    `toml:"Timestamp" yaml:"timestamp"`
	Treasury  string    `toml:"Treasury" yaml:"treasury"`
	Params    Params    `toml:"Params" yaml:"params"`
	Roles     Roles     `toml:"Roles" yaml:"roles"`
	Pauses    Pauses    `toml:"Pauses" yaml:"pauses"`
	EModes    []EMode   `toml:"EModes" yaml:"emodes"`
	Reserves  []Reserve `toml:"Reserves" yaml:"reserves"`
	Balances  []Balance `toml:"Balances" yaml:"balances"`
}

// Load reads the configuration at path. A missing file is created with the
// defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	switch format(path) {
	case "yaml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
		}
	}
	cfg.normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.Treasury = strings.TrimSpace(cfg.Treasury)
	for i := range cfg.Reserves {
		cfg.Reserves[i].Asset = strings.TrimSpace(cfg.Reserves[i].Asset)
		cfg.Reserves[i].Price = strings.TrimSpace(cfg.Reserves[i].Price)
	}
	for i := range cfg.Balances {
		cfg.Balances[i].Asset = strings.TrimSpace(cfg.Balances[i].Asset)
		cfg.Balances[i].Account = strings.TrimSpace(cfg.Balances[i].Account)
		cfg.Balances[i].Amount = strings.TrimSpace(cfg.Balances[i].Amount)
	}
	cfg.Roles.normalize()
}

func (r *Roles) normalize() {
	for _, set := range []*[]string{
		&r.PoolAdmins,
		&r.RiskAdmins,
		&r.EmergencyAdmins,
		&r.FlashBorrowers,
		&r.Bridges,
		&r.IsolatedCollateralSuppliers,
	} {
		trimmed := make([]string, 0, len(*set))
		for _, addr := range *set {
			if addr = strings.TrimSpace(addr); addr != "" {
				trimmed = append(trimmed, addr)
			}
		}
		*set = trimmed
	}
}

// createDefault creates and saves an empty pool configuration.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Params: Params{
			BaseCurrencyUnit:               100_000_000,
			MinBaseMaxCloseFactorThreshold: 2_000 * 100_000_000,
			MinLeftoverBase:                1_000 * 100_000_000,
			FlashLoanPremiumTotal:          5,
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if format(path) == "yaml" {
		encoder := yaml.NewEncoder(f)
		defer encoder.Close()
		return encoder.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
