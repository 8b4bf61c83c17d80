package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendingpool/native/lending"
)

// SupplyRequest deposits Amount of Asset for OnBehalfOf, defaulting to the
// caller.
type SupplyRequest struct {
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
	OnBehalfOf   string `json:"onBehalfOf,omitempty"`
	ReferralCode uint16 `json:"referralCode,omitempty"`
}

// WithdrawRequest redeems Amount ("max" for the whole balance) to To,
// defaulting to the caller.
type WithdrawRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	To     string `json:"to,omitempty"`
}

// BorrowRequest opens variable debt for OnBehalfOf, defaulting to the caller.
type BorrowRequest struct {
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
	OnBehalfOf   string `json:"onBehalfOf,omitempty"`
	ReferralCode uint16 `json:"referralCode,omitempty"`
}

// RepayRequest repays variable debt of OnBehalfOf. WithDepositTokens burns
// the caller's deposit tokens instead of pulling underlying.
type RepayRequest struct {
	Asset             string `json:"asset"`
	Amount            string `json:"amount"`
	OnBehalfOf        string `json:"onBehalfOf,omitempty"`
	WithDepositTokens bool   `json:"withDepositTokens,omitempty"`
}

// CollateralRequest toggles Asset as collateral of the caller.
type CollateralRequest struct {
	Asset   string `json:"asset"`
	Enabled bool   `json:"enabled"`
}

// EModeRequest selects the efficiency mode category of the caller.
type EModeRequest struct {
	Category uint8 `json:"category"`
}

// DelegationRequest sets the borrow allowance of Delegatee on the caller's
// credit in Asset.
type DelegationRequest struct {
	Asset     string `json:"asset"`
	Delegatee string `json:"delegatee"`
	Amount    string `json:"amount"`
}

// LiquidationRequest covers debt of an unhealthy User.
type LiquidationRequest struct {
	CollateralAsset   string `json:"collateralAsset"`
	DebtAsset         string `json:"debtAsset"`
	User              string `json:"user"`
	DebtToCover       string `json:"debtToCover"`
	ReceiveDepositTkn bool   `json:"receiveDepositToken,omitempty"`
}

// Receipt reports the amount an operation actually moved.
type Receipt struct {
	Amount string `json:"amount"`
}

// Liquidation reports the outcome of a liquidation call.
type Liquidation struct {
	DebtCovered      string `json:"debtCovered"`
	CollateralSeized string `json:"collateralSeized"`
	ProtocolFee      string `json:"protocolFee"`
}

func (e *Engine) Supply(ctx context.Context, caller string, req SupplyRequest) (Receipt, error) {
	sender, asset, amount, err := parseCall(caller, req.Asset, req.Amount)
	if err != nil {
		return Receipt{}, err
	}
	onBehalfOf, err := parseOptionalAddress(req.OnBehalfOf, sender)
	if err != nil {
		return Receipt{}, err
	}
	err = e.write(ctx, "supply", sender, asset, amount, func() error {
		return e.pool.Supply(sender, asset, amount, onBehalfOf, req.ReferralCode)
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Amount: formatAmount(amount)}, nil
}

func (e *Engine) Withdraw(ctx context.Context, caller string, req WithdrawRequest) (Receipt, error) {
	sender, asset, amount, err := parseCall(caller, req.Asset, req.Amount)
	if err != nil {
		return Receipt{}, err
	}
	to, err := parseOptionalAddress(req.To, sender)
	if err != nil {
		return Receipt{}, err
	}
	var withdrawn *uint256.Int
	err = e.write(ctx, "withdraw", sender, asset, amount, func() error {
		var opErr error
		withdrawn, opErr = e.pool.Withdraw(sender, asset, amount, to)
		return opErr
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Amount: formatAmount(withdrawn)}, nil
}

func (e *Engine) Borrow(ctx context.Context, caller string, req BorrowRequest) (Receipt, error) {
	sender, asset, amount, err := parseCall(caller, req.Asset, req.Amount)
	if err != nil {
		return Receipt{}, err
	}
	onBehalfOf, err := parseOptionalAddress(req.OnBehalfOf, sender)
	if err != nil {
		return Receipt{}, err
	}
	err = e.write(ctx, "borrow", sender, asset, amount, func() error {
		return e.pool.Borrow(sender, asset, amount, lending.VariableRate, req.ReferralCode, onBehalfOf)
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Amount: formatAmount(amount)}, nil
}

func (e *Engine) Repay(ctx context.Context, caller string, req RepayRequest) (Receipt, error) {
	sender, asset, amount, err := parseCall(caller, req.Asset, req.Amount)
	if err != nil {
		return Receipt{}, err
	}
	onBehalfOf, err := parseOptionalAddress(req.OnBehalfOf, sender)
	if err != nil {
		return Receipt{}, err
	}
	var repaid *uint256.Int
	err = e.write(ctx, "repay", sender, asset, amount, func() error {
		var opErr error
		if req.WithDepositTokens {
			repaid, opErr = e.pool.RepayWithATokens(sender, asset, amount, lending.VariableRate)
		} else {
			repaid, opErr = e.pool.Repay(sender, asset, amount, lending.VariableRate, onBehalfOf)
		}
		return opErr
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Amount: formatAmount(repaid)}, nil
}

func (e *Engine) SetCollateral(ctx context.Context, caller string, req CollateralRequest) error {
	sender, err := parseCaller(caller)
	if err != nil {
		return err
	}
	asset, err := ParseAddress(req.Asset)
	if err != nil {
		return err
	}
	return e.write(ctx, "set_collateral", sender, asset, nil, func() error {
		return e.pool.SetUserUseReserveAsCollateral(sender, asset, req.Enabled)
	})
}

func (e *Engine) SetEMode(ctx context.Context, caller string, req EModeRequest) error {
	sender, err := parseCaller(caller)
	if err != nil {
		return err
	}
	return e.write(ctx, "set_emode", sender, common.Address{}, nil, func() error {
		return e.pool.SetUserEMode(sender, req.Category)
	})
}

func (e *Engine) ApproveDelegation(ctx context.Context, caller string, req DelegationRequest) error {
	sender, err := parseCaller(caller)
	if err != nil {
		return err
	}
	asset, err := ParseAddress(req.Asset)
	if err != nil {
		return err
	}
	delegatee, err := ParseAddress(req.Delegatee)
	if err != nil {
		return err
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		return ErrInvalidAmount
	}
	return e.write(ctx, "approve_delegation", sender, asset, nil, func() error {
		return e.pool.ApproveDelegation(sender, asset, delegatee, amount)
	})
}

func (e *Engine) Liquidate(ctx context.Context, caller string, req LiquidationRequest) (Liquidation, error) {
	sender, debtAsset, amount, err := parseCall(caller, req.DebtAsset, req.DebtToCover)
	if err != nil {
		return Liquidation{}, err
	}
	collateralAsset, err := ParseAddress(req.CollateralAsset)
	if err != nil {
		return Liquidation{}, err
	}
	user, err := ParseAddress(req.User)
	if err != nil {
		return Liquidation{}, err
	}
	var result *lending.LiquidationResult
	err = e.write(ctx, "liquidation_call", sender, debtAsset, amount, func() error {
		var opErr error
		result, opErr = e.pool.LiquidationCall(sender, collateralAsset, debtAsset, user, amount, req.ReceiveDepositTkn)
		return opErr
	})
	if err != nil {
		return Liquidation{}, err
	}
	return Liquidation{
		DebtCovered:      formatAmount(result.DebtCovered),
		CollateralSeized: formatAmount(result.CollateralSeized),
		ProtocolFee:      formatAmount(result.ProtocolFee),
	}, nil
}

func parseCaller(caller string) (common.Address, error) {
	sender, err := ParseAddress(caller)
	if err != nil {
		return common.Address{}, ErrUnauthorized
	}
	return sender, nil
}

func parseCall(caller, asset, amount string) (common.Address, common.Address, *uint256.Int, error) {
	sender, err := parseCaller(caller)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	assetAddr, err := ParseAddress(asset)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	value, err := ParseAmount(amount)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	return sender, assetAddr, value, nil
}
