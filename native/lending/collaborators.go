package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PriceOracle quotes assets in the base currency. Prices carry the base
// currency unit's decimals.
type PriceOracle interface {
	AssetPrice(asset common.Address) (*uint256.Int, error)
}

// AssetLedger moves underlying assets. The pool custodies a reserve's
// underlying under the reserve's deposit token address.
type AssetLedger interface {
	Transfer(asset, from, to common.Address, amount *uint256.Int) error
	BalanceOf(asset, account common.Address) *uint256.Int
}

// journaledLedger is implemented by asset ledgers that can roll back the
// transfers of a failed pool operation.
type journaledLedger interface {
	Snapshot() int
	RevertToSnapshot(id int)
	Commit()
}

// AccessControl answers role membership questions for privileged entry
// points.
type AccessControl interface {
	IsPoolAdmin(addr common.Address) bool
	IsRiskAdmin(addr common.Address) bool
	IsEmergencyAdmin(addr common.Address) bool
	IsFlashBorrower(addr common.Address) bool
	IsBridge(addr common.Address) bool
	IsIsolatedCollateralSupplier(addr common.Address) bool
}

// Roles is a static AccessControl backed by address sets.
type Roles struct {
	PoolAdmins                  map[common.Address]bool
	RiskAdmins                  map[common.Address]bool
	EmergencyAdmins             map[common.Address]bool
	FlashBorrowers              map[common.Address]bool
	Bridges                     map[common.Address]bool
	IsolatedCollateralSuppliers map[common.Address]bool
}

func (r *Roles) IsPoolAdmin(addr common.Address) bool { return r != nil && r.PoolAdmins[addr] }
func (r *Roles) IsRiskAdmin(addr common.Address) bool { return r != nil && r.RiskAdmins[addr] }
func (r *Roles) IsEmergencyAdmin(addr common.Address) bool { return r != nil && r.EmergencyAdmins[addr] }
func (r *Roles) IsFlashBorrower(addr common.Address) bool { return r != nil && r.FlashBorrowers[addr] }
func (r *Roles) IsBridge(addr common.Address) bool { return r != nil && r.Bridges[addr] }

func (r *Roles) IsIsolatedCollateralSupplier(addr common.Address) bool {
	return r != nil && r.IsolatedCollateralSuppliers[addr]
}

// Grant adds addr to the named role. Unknown roles are ignored and reported
// as false.
func (r *Roles) Grant(role string, addr common.Address) bool {
	var set *map[common.Address]bool
	switch role {
	case "pool_admin":
		set = &r.PoolAdmins
	case "risk_admin":
		set = &r.RiskAdmins
	case "emergency_admin":
		set = &r.EmergencyAdmins
	case "flash_borrower":
		set = &r.FlashBorrowers
	case "bridge":
		set = &r.Bridges
	case "isolated_collateral_supplier":
		set = &r.IsolatedCollateralSuppliers
	default:
		return false
	}
	if *set == nil {
		*set = make(map[common.Address]bool)
	}
	(*set)[addr] = true
	return true
}
