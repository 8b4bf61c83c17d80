package lending

import "fmt"

// ErrorKind groups pool errors by the class of condition that rejected the
// operation.
type ErrorKind uint8

const (
	KindInput ErrorKind = iota + 1
	KindState
	KindCapacity
	KindAuthorization
	KindSolvency
	KindConsistency
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindState:
		return "state"
	case KindCapacity:
		return "capacity"
	case KindAuthorization:
		return "authorization"
	case KindSolvency:
		return "solvency"
	case KindConsistency:
		return "consistency"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a rejected pool operation. Codes are stable and safe to expose to
// clients.
type Error struct {
	Code    uint16
	Kind    ErrorKind
	Message string
}

func newError(code uint16, kind ErrorKind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("lending: %s (code %d)", e.Message, e.Code)
}

var (
	ErrCallerNotPoolAdmin                  = newError(1, KindAuthorization, "caller not pool admin")
	ErrCallerNotEmergencyAdmin             = newError(2, KindAuthorization, "caller not emergency admin")
	ErrCallerNotPoolOrEmergencyAdmin       = newError(3, KindAuthorization, "caller not pool or emergency admin")
	ErrCallerNotRiskOrPoolAdmin            = newError(4, KindAuthorization, "caller not risk or pool admin")
	ErrCallerNotBridge                     = newError(6, KindAuthorization, "caller not bridge")
	ErrReserveAlreadyAdded                 = newError(14, KindConsistency, "reserve already added")
	ErrNoMoreReservesAllowed               = newError(15, KindCapacity, "no more reserves allowed")
	ErrEModeCategoryReserved               = newError(16, KindInput, "emode category reserved")
	ErrInvalidEModeCategoryAssignment      = newError(17, KindConsistency, "invalid emode category assignment")
	ErrReserveLiquidityNotZero             = newError(18, KindState, "reserve liquidity not zero")
	ErrFlashLoanPremiumInvalid             = newError(19, KindInput, "flash loan premium invalid")
	ErrInvalidReserveParams                = newError(20, KindInput, "invalid reserve params")
	ErrInvalidEModeCategoryParams          = newError(21, KindInput, "invalid emode category params")
	ErrBridgeProtocolFeeInvalid            = newError(22, KindInput, "bridge protocol fee invalid")
	ErrInvalidMintAmount                   = newError(24, KindInput, "invalid mint amount")
	ErrInvalidBurnAmount                   = newError(25, KindInput, "invalid burn amount")
	ErrInvalidAmount                       = newError(26, KindInput, "invalid amount")
	ErrReserveInactive                     = newError(27, KindState, "reserve inactive")
	ErrReserveFrozen                       = newError(28, KindState, "reserve frozen")
	ErrReservePaused                       = newError(29, KindState, "reserve paused")
	ErrBorrowingNotEnabled                 = newError(30, KindState, "borrowing not enabled")
	ErrNotEnoughAvailableUserBalance       = newError(32, KindSolvency, "not enough available user balance")
	ErrInvalidInterestRateMode             = newError(33, KindInput, "invalid interest rate mode selected")
	ErrCollateralBalanceIsZero             = newError(34, KindSolvency, "collateral balance is zero")
	ErrHealthFactorBelowThreshold          = newError(35, KindSolvency, "health factor lower than liquidation threshold")
	ErrCollateralCannotCoverNewBorrow      = newError(36, KindSolvency, "collateral cannot cover new borrow")
	ErrNoDebtOfSelectedType                = newError(39, KindState, "no debt of selected type")
	ErrNoExplicitAmountToRepayOnBehalf     = newError(40, KindInput, "no explicit amount to repay on behalf")
	ErrUnderlyingBalanceZero               = newError(43, KindState, "underlying balance zero")
	ErrHealthFactorNotBelowThreshold       = newError(45, KindSolvency, "health factor not below threshold")
	ErrCollateralCannotBeLiquidated        = newError(46, KindState, "collateral cannot be liquidated")
	ErrSpecifiedCurrencyNotBorrowedByUser  = newError(47, KindState, "specified currency not borrowed by user")
	ErrInconsistentFlashLoanParams         = newError(48, KindInput, "inconsistent flash loan params")
	ErrBorrowCapExceeded                   = newError(49, KindCapacity, "borrow cap exceeded")
	ErrSupplyCapExceeded                   = newError(50, KindCapacity, "supply cap exceeded")
	ErrUnbackedMintCapExceeded             = newError(51, KindCapacity, "unbacked mint cap exceeded")
	ErrDebtCeilingExceeded                 = newError(52, KindCapacity, "debt ceiling exceeded")
	ErrLTVValidationFailed                 = newError(56, KindSolvency, "ltv validation failed")
	ErrInconsistentEModeCategory           = newError(57, KindConsistency, "inconsistent emode category")
	ErrAssetNotBorrowableInIsolation       = newError(59, KindState, "asset not borrowable in isolation")
	ErrReserveAlreadyInitialized           = newError(60, KindConsistency, "reserve already initialized")
	ErrUserInIsolationModeOrLTVZero        = newError(62, KindState, "user in isolation mode or ltv zero")
	ErrInvalidEModeCategory                = newError(70, KindInput, "invalid emode category")
	ErrZeroAddressNotValid                 = newError(76, KindInput, "zero address not valid")
	ErrAssetNotListed                      = newError(81, KindInput, "asset not listed")
	ErrInvalidOptimalUsageRatio            = newError(82, KindInput, "invalid optimal usage ratio")
	ErrSiloedBorrowingViolation            = newError(89, KindConsistency, "siloed borrowing violation")
	ErrFlashLoanDisabled                   = newError(91, KindState, "flash loan disabled")
	ErrWithdrawToDepositToken              = newError(96, KindInput, "withdraw to deposit token")
	ErrSupplyToDepositToken                = newError(97, KindInput, "supply to deposit token")
	ErrLiquidationGraceSentinelCheckFailed = newError(101, KindState, "liquidation grace sentinel check failed")
	ErrInvalidGracePeriod                  = newError(102, KindInput, "invalid grace period")
	ErrMustNotLeaveDust                    = newError(103, KindSolvency, "must not leave dust")

	ErrNoDebtToLiquidate           = newError(1001, KindState, "borrower has no debt")
	ErrSignerAndOnBehalfOfNotSame  = newError(1002, KindAuthorization, "signer and on behalf of not same")
	ErrInsufficientBorrowAllowance = newError(1003, KindAuthorization, "insufficient borrow allowance")
	ErrInsufficientLiquidity       = newError(1004, KindCapacity, "insufficient available liquidity")
	ErrFlashLoanPayerNotReceiver   = newError(1005, KindAuthorization, "flash loan payer is not receiver")
	ErrFlashLoanReceiptInvalid     = newError(1006, KindConsistency, "flash loan receipt unknown or already settled")
	ErrFlashLoanNotSettled         = newError(1007, KindConsistency, "flash loan not settled")
	ErrInvalidPrice                = newError(1008, KindInternal, "invalid asset price")
	ErrMathOverflow                = newError(1009, KindInternal, "math overflow")
	ErrSnapshotOpenReceipts        = newError(1010, KindConsistency, "snapshot refused while flash loans are open")
	ErrInsufficientDepositBalance  = newError(1011, KindSolvency, "insufficient deposit token balance")
)
