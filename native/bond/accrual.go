package bond

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// accrualHorizon caps t at the repayment instant once the product is repaid.
func accrualHorizon(p *Product, t int64) int64 {
	if p.Repaid() && p.RepaidAt < t {
		return p.RepaidAt
	}
	return t
}

// accruedPerUnit returns the cumulative interest owed on one share from
// StartTs up to t. The coupon rate applies until EndTs and the overdue rate
// afterwards.
func accruedPerUnit(p *Product, t int64) (*big.Int, error) {
	h := accrualHorizon(p, t)
	if h <= p.StartTs {
		return big.NewInt(0), nil
	}
	couponEnd := h
	if couponEnd > p.EndTs {
		couponEnd = p.EndTs
	}
	total, err := mulChecked(p.CouponRatePerSecond, big.NewInt(couponEnd-p.StartTs))
	if err != nil {
		return nil, err
	}
	if h > p.EndTs {
		overdue, err := mulChecked(p.OverdueRatePerSecond, big.NewInt(h-p.EndTs))
		if err != nil {
			return nil, err
		}
		if total, err = addChecked(total, overdue); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// checkpoint folds interest accrued by balance since the cursor's last
// settlement into Pending and advances the cursor to now. The stored cursor
// is not modified; callers persist the result.
func (e *Engine) checkpoint(p *Product, holder common.Address, balance *big.Int, now int64) (*ClaimCursor, error) {
	cursor, ok, err := e.state.BondCursorGet(p.ID, holder)
	if err != nil {
		return nil, err
	}
	if !ok || cursor == nil {
		baseline := now
		if !isZero(balance) {
			baseline = p.StartTs
		}
		cursor = &ClaimCursor{LastSettledTs: baseline, Pending: big.NewInt(0)}
	} else {
		cursor = cursor.Clone()
	}
	if now <= cursor.LastSettledTs {
		return cursor, nil
	}
	if !isZero(balance) {
		from, err := accruedPerUnit(p, cursor.LastSettledTs)
		if err != nil {
			return nil, err
		}
		to, err := accruedPerUnit(p, now)
		if err != nil {
			return nil, err
		}
		interest, err := mulChecked(balance, new(big.Int).Sub(to, from))
		if err != nil {
			return nil, err
		}
		if cursor.Pending, err = addChecked(cursor.Pending, interest); err != nil {
			return nil, err
		}
	}
	cursor.LastSettledTs = now
	return cursor, nil
}
