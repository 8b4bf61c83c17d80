package oracle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrPriceUnavailable is returned for assets without a quote.
var ErrPriceUnavailable = errors.New("oracle: price unavailable")

// Static serves operator-set prices in the pool's base currency.
type Static struct {
	mu     sync.RWMutex
	prices map[common.Address]uint256.Int
}

func NewStatic() *Static {
	return &Static{prices: make(map[common.Address]uint256.Int)}
}

// SetPrice quotes asset at price. A zero price removes the quote.
func (s *Static) SetPrice(asset common.Address, price *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if price == nil || price.IsZero() {
		delete(s.prices, asset)
		return
	}
	s.prices[asset] = *price
}

// AssetPrice returns the current quote of asset.
func (s *Static) AssetPrice(asset common.Address) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, asset.Hex())
	}
	return &price, nil
}

// Prices returns a copy of every quote.
func (s *Static) Prices() map[common.Address]*uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[common.Address]*uint256.Int, len(s.prices))
	for asset, price := range s.prices {
		p := price
		out[asset] = &p
	}
	return out
}
