package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/native/bond"
)

type storedProduct struct {
	ID                   uint64
	Kind                 uint8
	Token                common.Address
	UnitValue            *big.Int
	PrincipalPerUnit     *big.Int
	CouponRatePerSecond  *big.Int
	OverdueRatePerSecond *big.Int
	URI                  string
	StartTs              uint64
	EndTs                uint64
	CreatedAt            uint64
	FinalValue           *big.Int
	RepaidAt             uint64
}

type storedCursor struct {
	LastSettledTs uint64
	Pending       *big.Int
}

func toUnix(field string, v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("state: %s must not be negative", field)
	}
	return uint64(v), nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func newStoredProduct(p *bond.Product) (*storedProduct, error) {
	start, err := toUnix("start", p.StartTs)
	if err != nil {
		return nil, err
	}
	end, err := toUnix("end", p.EndTs)
	if err != nil {
		return nil, err
	}
	created, err := toUnix("created", p.CreatedAt)
	if err != nil {
		return nil, err
	}
	repaid, err := toUnix("repaid", p.RepaidAt)
	if err != nil {
		return nil, err
	}
	return &storedProduct{
		ID:                   p.ID,
		Kind:                 uint8(p.Kind),
		Token:                p.Token,
		UnitValue:            nonNil(p.UnitValue),
		PrincipalPerUnit:     nonNil(p.PrincipalPerUnit),
		CouponRatePerSecond:  nonNil(p.CouponRatePerSecond),
		OverdueRatePerSecond: nonNil(p.OverdueRatePerSecond),
		URI:                  p.URI,
		StartTs:              start,
		EndTs:                end,
		CreatedAt:            created,
		FinalValue:           nonNil(p.FinalValue),
		RepaidAt:             repaid,
	}, nil
}

func (s *storedProduct) toProduct() *bond.Product {
	return &bond.Product{
		ID:                   s.ID,
		Kind:                 bond.Kind(s.Kind),
		Token:                s.Token,
		UnitValue:            nonNil(s.UnitValue),
		PrincipalPerUnit:     nonNil(s.PrincipalPerUnit),
		CouponRatePerSecond:  nonNil(s.CouponRatePerSecond),
		OverdueRatePerSecond: nonNil(s.OverdueRatePerSecond),
		URI:                  s.URI,
		StartTs:              int64(s.StartTs),
		EndTs:                int64(s.EndTs),
		CreatedAt:            int64(s.CreatedAt),
		FinalValue:           nonNil(s.FinalValue),
		RepaidAt:             int64(s.RepaidAt),
	}
}

// BondAllocateProductID returns the next product identifier and advances the
// counter. Identifiers start at zero and are never reused.
func (m *Manager) BondAllocateProductID() (uint64, error) {
	var next uint64
	if _, err := m.KVGet(bondNextProductIDKey, &next); err != nil {
		return 0, err
	}
	if err := m.KVPut(bondNextProductIDKey, next+1); err != nil {
		return 0, err
	}
	return next, nil
}

// BondProductCount returns how many product identifiers have been allocated.
func (m *Manager) BondProductCount() (uint64, error) {
	var next uint64
	if _, err := m.KVGet(bondNextProductIDKey, &next); err != nil {
		return 0, err
	}
	return next, nil
}

// BondProductGet loads a product record.
func (m *Manager) BondProductGet(id uint64) (*bond.Product, bool, error) {
	stored := new(storedProduct)
	ok, err := m.KVGet(bondProductKey(id), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toProduct(), true, nil
}

// BondProductPut stores a product record.
func (m *Manager) BondProductPut(p *bond.Product) error {
	if p == nil {
		return fmt.Errorf("state: nil product")
	}
	stored, err := newStoredProduct(p)
	if err != nil {
		return err
	}
	return m.KVPut(bondProductKey(p.ID), stored)
}

func (m *Manager) loadBigInt(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (m *Manager) storeBigInt(key []byte, value *big.Int) error {
	if value != nil && value.Sign() < 0 {
		return fmt.Errorf("state: negative amount not allowed")
	}
	return m.KVPut(key, nonNil(value))
}

// BondBalance returns the share balance of holder.
func (m *Manager) BondBalance(id uint64, holder common.Address) (*big.Int, error) {
	return m.loadBigInt(bondBalanceKey(id, holder))
}

// BondSetBalance stores the share balance of holder and records the holder in
// the product's holder index.
func (m *Manager) BondSetBalance(id uint64, holder common.Address, amount *big.Int) error {
	if err := m.storeBigInt(bondBalanceKey(id, holder), amount); err != nil {
		return err
	}
	return m.KVAppend(bondHoldersKey(id), holder.Bytes())
}

// BondTotalSupply returns the circulating share count.
func (m *Manager) BondTotalSupply(id uint64) (*big.Int, error) {
	return m.loadBigInt(bondSupplyKey(id))
}

// BondSetTotalSupply stores the circulating share count.
func (m *Manager) BondSetTotalSupply(id uint64, amount *big.Int) error {
	return m.storeBigInt(bondSupplyKey(id), amount)
}

// BondHolders lists every address that has held shares of the product.
func (m *Manager) BondHolders(id uint64) ([]common.Address, error) {
	var raw [][]byte
	if err := m.KVGetList(bondHoldersKey(id), &raw); err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(raw))
	for _, b := range raw {
		out = append(out, common.BytesToAddress(b))
	}
	return out, nil
}

// BondCursorGet loads the coupon claim cursor of holder.
func (m *Manager) BondCursorGet(id uint64, holder common.Address) (*bond.ClaimCursor, bool, error) {
	stored := new(storedCursor)
	ok, err := m.KVGet(bondCursorKey(id, holder), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &bond.ClaimCursor{LastSettledTs: int64(stored.LastSettledTs), Pending: nonNil(stored.Pending)}, true, nil
}

// BondCursorPut stores the coupon claim cursor of holder.
func (m *Manager) BondCursorPut(id uint64, holder common.Address, cursor *bond.ClaimCursor) error {
	if cursor == nil {
		return fmt.Errorf("state: nil cursor")
	}
	ts, err := toUnix("cursor", cursor.LastSettledTs)
	if err != nil {
		return err
	}
	return m.KVPut(bondCursorKey(id, holder), &storedCursor{LastSettledTs: ts, Pending: nonNil(cursor.Pending)})
}

// BondCursorDelete removes the coupon claim cursor of holder.
func (m *Manager) BondCursorDelete(id uint64, holder common.Address) error {
	return m.KVDelete(bondCursorKey(id, holder))
}

// BondApproval reports whether operator may move owner's shares.
func (m *Manager) BondApproval(owner, operator common.Address) (bool, error) {
	var approved bool
	if _, err := m.KVGet(bondApprovalKey(owner, operator), &approved); err != nil {
		return false, err
	}
	return approved, nil
}

// BondSetApproval records an operator approval. Revocations delete the key.
func (m *Manager) BondSetApproval(owner, operator common.Address, approved bool) error {
	if !approved {
		return m.KVDelete(bondApprovalKey(owner, operator))
	}
	return m.KVPut(bondApprovalKey(owner, operator), true)
}
