package oracle

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestStaticPrices(t *testing.T) {
	o := NewStatic()
	asset := common.HexToAddress("0x01")
	if _, err := o.AssetPrice(asset); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
	o.SetPrice(asset, uint256.NewInt(100))
	price, err := o.AssetPrice(asset)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Uint64() != 100 {
		t.Fatalf("price = %s, want 100", price)
	}
	price.SetUint64(1)
	again, _ := o.AssetPrice(asset)
	if again.Uint64() != 100 {
		t.Fatalf("returned price aliases stored quote")
	}
	o.SetPrice(asset, uint256.NewInt(0))
	if _, err := o.AssetPrice(asset); err == nil {
		t.Fatalf("expected zero price to remove the quote")
	}
}
