package bond

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AddCouponProduct creates an interest-bearing product with zero supply.
// Shares are issued afterwards through MintBatch.
func (e *Engine) AddCouponProduct(caller, token common.Address, principalPerUnit, couponRatePerSecond, overdueRatePerSecond *big.Int, uri string, startTs, endTs int64) (*Product, error) {
	return e.CreateProduct(caller, Terms{
		Kind:                 KindCoupon,
		Token:                token,
		PrincipalPerUnit:     principalPerUnit,
		CouponRatePerSecond:  couponRatePerSecond,
		OverdueRatePerSecond: overdueRatePerSecond,
		URI:                  uri,
		StartTs:              startTs,
		EndTs:                endTs,
	})
}

// DepositInterest pulls interim coupon funding from the administrator into
// the vault.
func (e *Engine) DepositInterest(caller common.Address, id uint64, amount *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.requireGateway(); err != nil {
		return err
	}
	product, err := e.productOfKind(id, KindCoupon)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}
	if err := e.gateway.PullFrom(product.Token, caller, amount); err != nil {
		return err
	}
	e.emit(NewInterestDepositedEvent(product, amount))
	return nil
}

// RepayCoupon pulls amount from the administrator and marks the product
// repaid with the principal per share as its final value. Interest stops
// accruing at the repayment instant.
func (e *Engine) RepayCoupon(caller common.Address, id uint64, amount *big.Int) (*Product, error) {
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := e.requireGateway(); err != nil {
		return nil, err
	}
	product, err := e.productOfKind(id, KindCoupon)
	if err != nil {
		return nil, err
	}
	if product.Repaid() {
		return nil, ErrAlreadyRepaid
	}
	if amount != nil && amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: repayment amount", ErrInvalidAmount)
	}
	funded := cloneBigInt(amount)
	if err := e.gateway.PullFrom(product.Token, caller, funded); err != nil {
		return nil, err
	}
	repaid, err := e.registry.markRepaid(id, product.PrincipalPerUnit, e.now())
	if err != nil {
		return nil, err
	}
	e.emit(NewProductRepaidEvent(repaid, funded))
	return repaid, nil
}

// ClaimCoupon pays the holder's accrued interest. Once the product is repaid
// it also pays principal for every share, burns the shares and closes the
// cursor.
func (e *Engine) ClaimCoupon(holder common.Address, id uint64) (*Claim, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireGateway(); err != nil {
		return nil, err
	}
	product, err := e.productOfKind(id, KindCoupon)
	if err != nil {
		return nil, err
	}
	shares, err := e.ledger.BalanceOf(id, holder)
	if err != nil {
		return nil, err
	}
	now := e.now()
	cursor, err := e.checkpoint(product, holder, shares, now)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 && isZero(cursor.Pending) {
		return nil, ErrZeroBalanceClaim
	}
	interest := cloneBigInt(cursor.Pending)
	principal := big.NewInt(0)
	if product.Repaid() {
		if principal, err = mulChecked(product.PrincipalPerUnit, shares); err != nil {
			return nil, err
		}
	}
	payout, err := addChecked(interest, principal)
	if err != nil {
		return nil, err
	}

	cursor.Pending = big.NewInt(0)
	if err := e.state.BondCursorPut(id, holder, cursor); err != nil {
		return nil, err
	}
	terminal := product.Repaid()
	if terminal {
		if err := e.ledger.Burn(id, holder, shares); err != nil {
			return nil, err
		}
		if err := e.state.BondCursorDelete(id, holder); err != nil {
			return nil, err
		}
	}
	if err := e.gateway.PushTo(product.Token, holder, payout); err != nil {
		return nil, err
	}

	claim := &Claim{
		ProductID: id,
		Holder:    holder,
		Shares:    shares,
		Interest:  interest,
		Principal: principal,
		Payout:    payout,
		SettledAt: now,
	}
	if terminal && shares.Sign() > 0 {
		e.emit(NewSharesBurnedEvent(id, holder, shares))
	}
	e.emit(NewClaimedEvent(claim))
	return claim, nil
}

// WithdrawCouponResidue pays amount of the product's settlement token from
// the vault to the administrator.
func (e *Engine) WithdrawCouponResidue(caller common.Address, id uint64, amount *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.requireGateway(); err != nil {
		return err
	}
	product, err := e.productOfKind(id, KindCoupon)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: withdrawal must be positive", ErrInvalidAmount)
	}
	if err := e.gateway.PushTo(product.Token, e.admin, amount); err != nil {
		return err
	}
	e.emit(NewResidueWithdrawnEvent(product, e.admin, amount))
	return nil
}
