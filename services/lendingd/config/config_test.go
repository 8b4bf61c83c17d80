package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :6000 "
tls:
  allow_insecure: true
request_timeout: 3s
rate_limits:
  lending-write:
    rate_per_second: 2
    burst: 4
    tokens:
      "POST /v1/lending/liquidations": 4
quota:
  max_requests_per_epoch: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	dir := filepath.Dir(path)
	if cfg.ListenAddress != ":6000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.PoolConfig != filepath.Join(dir, "lending.toml") {
		t.Fatalf("unexpected pool config path: %q", cfg.PoolConfig)
	}
	if cfg.DatabasePath() != filepath.Join(dir, "data", "lendingd", "state") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.RequestTimeout != 3*time.Second || cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cfg.RequestTimeout, cfg.ReadTimeout)
	}
	if cfg.RateLimits["lending-write"].Tokens["POST /v1/lending/liquidations"] != 4 {
		t.Fatalf("expected route token cost to propagate: %+v", cfg.RateLimits)
	}
	if cfg.Quota.MaxRequestsPerEpoch != 10 {
		t.Fatalf("expected quota to propagate")
	}
	if cfg.Auth.SecretEnv != "LENDINGD_JWT_SECRET" {
		t.Fatalf("unexpected secret env: %q", cfg.Auth.SecretEnv)
	}
}

func TestLoadConfigReadsSecretFromEnv(t *testing.T) {
	t.Setenv("LENDING_TEST_SECRET", strings.Repeat("s", 32))
	path := writeConfig(t, `
tls:
  allow_insecure: true
auth:
  enabled: true
  secret_env: LENDING_TEST_SECRET
  issuer: lendingd
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.HMACSecret != strings.Repeat("s", 32) {
		t.Fatalf("expected secret from environment")
	}
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"short secret": `
tls:
  allow_insecure: true
auth:
  enabled: true
  hmac_secret: short
`,
		"missing key": `
tls:
  cert: "server.crt"
`,
		"no tls": `
listen: ":8480"
`,
		"token cost above burst": `
tls:
  allow_insecure: true
rate_limits:
  lending:
    burst: 1
    tokens:
      "GET /v1/lending/reserves": 2
`,
		"single use without auth": `
tls:
  allow_insecure: true
auth:
  single_use_tokens: true
`,
		"sample ratio": `
tls:
  allow_insecure: true
telemetry:
  sample_ratio: 2
`,
		"unknown key": `
tls:
  allow_insecure: true
listen_port: 80
`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, contents)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
