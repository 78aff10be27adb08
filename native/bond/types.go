package bond

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind distinguishes the two settlement variants.
type Kind uint8

const (
	// KindBullet pays a single final value per share once repaid.
	KindBullet Kind = iota + 1
	// KindCoupon accrues per-second interest and repays principal at the end.
	KindCoupon
)

// Valid reports whether the kind value is supported.
func (k Kind) Valid() bool {
	switch k {
	case KindBullet, KindCoupon:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindBullet:
		return "bullet"
	case KindCoupon:
		return "coupon"
	default:
		return "unknown"
	}
}

// Product is one issued bond series. Everything except URI, FinalValue and
// RepaidAt is fixed at creation.
type Product struct {
	ID    uint64
	Kind  Kind
	Token common.Address

	// Bullet terms.
	UnitValue *big.Int

	// Coupon terms, in token base units per share (per second for rates).
	PrincipalPerUnit     *big.Int
	CouponRatePerSecond  *big.Int
	OverdueRatePerSecond *big.Int

	URI       string
	StartTs   int64
	EndTs     int64
	CreatedAt int64

	// FinalValue is zero until the product is repaid, then positive forever.
	FinalValue *big.Int
	RepaidAt   int64
}

// Repaid reports whether the product has reached its terminal funded state.
func (p *Product) Repaid() bool {
	return p != nil && p.FinalValue != nil && p.FinalValue.Sign() > 0
}

// Clone returns a deep copy so callers can mutate the copy without touching
// the stored instance.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	clone.UnitValue = cloneBigInt(p.UnitValue)
	clone.PrincipalPerUnit = cloneBigInt(p.PrincipalPerUnit)
	clone.CouponRatePerSecond = cloneBigInt(p.CouponRatePerSecond)
	clone.OverdueRatePerSecond = cloneBigInt(p.OverdueRatePerSecond)
	clone.FinalValue = cloneBigInt(p.FinalValue)
	return &clone
}

// Terms carries the economic definition supplied at creation time.
type Terms struct {
	Kind                 Kind
	Token                common.Address
	UnitValue            *big.Int
	PrincipalPerUnit     *big.Int
	CouponRatePerSecond  *big.Int
	OverdueRatePerSecond *big.Int
	URI                  string
	StartTs              int64
	EndTs                int64
}

// Validate checks the terms before a product is allocated.
func (t Terms) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("bond: invalid product kind %d", t.Kind)
	}
	if t.Token == (common.Address{}) {
		return fmt.Errorf("%w: settlement token", ErrZeroAddress)
	}
	if t.EndTs < t.StartTs {
		return ErrInvalidWindow
	}
	for _, v := range []*big.Int{t.UnitValue, t.PrincipalPerUnit, t.CouponRatePerSecond, t.OverdueRatePerSecond} {
		if v != nil && v.Sign() < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// ClaimCursor records how far coupon interest has been settled for one
// holder. Pending holds interest checkpointed on balance changes but not yet
// paid out.
type ClaimCursor struct {
	LastSettledTs int64
	Pending       *big.Int
}

// Clone returns a deep copy of the cursor.
func (c *ClaimCursor) Clone() *ClaimCursor {
	if c == nil {
		return nil
	}
	return &ClaimCursor{LastSettledTs: c.LastSettledTs, Pending: cloneBigInt(c.Pending)}
}

// Holding is one row of a product's balance table.
type Holding struct {
	Holder  common.Address
	Balance *big.Int
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
