package bond

import (
	"fmt"
	"math/big"
)

// Registry owns product records keyed by sequential identifiers. It performs
// no authorisation; the engine gates every mutation.
type Registry struct {
	state engineState
}

func newRegistry(state engineState) *Registry {
	return &Registry{state: state}
}

// Product loads a copy of the product record.
func (r *Registry) Product(id uint64) (*Product, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	product, ok, err := r.state.BondProductGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, id)
	}
	return product, nil
}

func (r *Registry) create(terms Terms, now int64) (*Product, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	id, err := r.state.BondAllocateProductID()
	if err != nil {
		return nil, err
	}
	product := &Product{
		ID:                   id,
		Kind:                 terms.Kind,
		Token:                terms.Token,
		UnitValue:            cloneBigInt(terms.UnitValue),
		PrincipalPerUnit:     cloneBigInt(terms.PrincipalPerUnit),
		CouponRatePerSecond:  cloneBigInt(terms.CouponRatePerSecond),
		OverdueRatePerSecond: cloneBigInt(terms.OverdueRatePerSecond),
		URI:                  terms.URI,
		StartTs:              terms.StartTs,
		EndTs:                terms.EndTs,
		CreatedAt:            now,
		FinalValue:           big.NewInt(0),
	}
	if err := r.state.BondProductPut(product); err != nil {
		return nil, err
	}
	return product.Clone(), nil
}

func (r *Registry) setURI(id uint64, uri string) (*Product, error) {
	product, err := r.Product(id)
	if err != nil {
		return nil, err
	}
	product.URI = uri
	if err := r.state.BondProductPut(product); err != nil {
		return nil, err
	}
	return product, nil
}

// markRepaid performs the one-way Created -> Repaid transition.
func (r *Registry) markRepaid(id uint64, finalValue *big.Int, now int64) (*Product, error) {
	product, err := r.Product(id)
	if err != nil {
		return nil, err
	}
	if product.Repaid() {
		return nil, ErrAlreadyRepaid
	}
	if finalValue == nil || finalValue.Sign() <= 0 {
		return nil, fmt.Errorf("%w: final value must be positive", ErrInvalidAmount)
	}
	product.FinalValue = new(big.Int).Set(finalValue)
	product.RepaidAt = now
	if err := r.state.BondProductPut(product); err != nil {
		return nil, err
	}
	return product, nil
}
