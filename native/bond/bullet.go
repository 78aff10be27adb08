package bond

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AddBulletProduct creates a single-payment product and mints initialSupply
// shares to the administrator.
func (e *Engine) AddBulletProduct(caller common.Address, initialSupply *big.Int, token common.Address, unitValue *big.Int, uri string, startTs, endTs int64) (*Product, error) {
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if initialSupply != nil && initialSupply.Sign() < 0 {
		return nil, fmt.Errorf("%w: initial supply", ErrInvalidAmount)
	}
	product, err := e.CreateProduct(caller, Terms{
		Kind:      KindBullet,
		Token:     token,
		UnitValue: unitValue,
		URI:       uri,
		StartTs:   startTs,
		EndTs:     endTs,
	})
	if err != nil {
		return nil, err
	}
	if !isZero(initialSupply) {
		if err := e.ledger.Mint(product.ID, e.admin, initialSupply); err != nil {
			return nil, err
		}
		e.emit(NewSharesMintedEvent(product.ID, e.admin, initialSupply))
	}
	return product, nil
}

// RepayBullet funds a bullet product. totalFinalValue is pulled from the
// administrator as supplied; it is not recomputed against the supply.
func (e *Engine) RepayBullet(caller common.Address, id uint64, finalValue, totalFinalValue *big.Int) (*Product, error) {
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := e.requireGateway(); err != nil {
		return nil, err
	}
	product, err := e.productOfKind(id, KindBullet)
	if err != nil {
		return nil, err
	}
	if product.Repaid() {
		return nil, ErrAlreadyRepaid
	}
	if finalValue == nil || finalValue.Sign() <= 0 {
		return nil, fmt.Errorf("%w: final value must be positive", ErrInvalidAmount)
	}
	if totalFinalValue != nil && totalFinalValue.Sign() < 0 {
		return nil, fmt.Errorf("%w: total final value", ErrInvalidAmount)
	}
	funded := cloneBigInt(totalFinalValue)
	if err := e.gateway.PullFrom(product.Token, caller, funded); err != nil {
		return nil, err
	}
	repaid, err := e.registry.markRepaid(id, finalValue, e.now())
	if err != nil {
		return nil, err
	}
	e.emit(NewProductRepaidEvent(repaid, funded))
	return repaid, nil
}

// ClaimBullet burns the holder's entire balance and pays finalValue per share.
func (e *Engine) ClaimBullet(holder common.Address, id uint64) (*Claim, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireGateway(); err != nil {
		return nil, err
	}
	product, err := e.productOfKind(id, KindBullet)
	if err != nil {
		return nil, err
	}
	if !product.Repaid() {
		return nil, ErrNotRepaid
	}
	shares, err := e.ledger.BalanceOf(id, holder)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, ErrZeroBalanceClaim
	}
	payout, err := mulChecked(product.FinalValue, shares)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Burn(id, holder, shares); err != nil {
		return nil, err
	}
	if err := e.gateway.PushTo(product.Token, holder, payout); err != nil {
		return nil, err
	}
	claim := &Claim{
		ProductID: id,
		Holder:    holder,
		Shares:    shares,
		Interest:  big.NewInt(0),
		Principal: cloneBigInt(payout),
		Payout:    payout,
		SettledAt: e.now(),
	}
	e.emit(NewSharesBurnedEvent(id, holder, shares))
	e.emit(NewClaimedEvent(claim))
	return claim, nil
}

// WithdrawResidue pays the administrator finalValue for every share it still
// holds. The shares are not burned, so repeated calls pay again.
func (e *Engine) WithdrawResidue(caller common.Address, id uint64) (*big.Int, error) {
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := e.requireGateway(); err != nil {
		return nil, err
	}
	product, err := e.productOfKind(id, KindBullet)
	if err != nil {
		return nil, err
	}
	if !product.Repaid() {
		return nil, ErrNotRepaid
	}
	shares, err := e.ledger.BalanceOf(id, e.admin)
	if err != nil {
		return nil, err
	}
	payout, err := mulChecked(product.FinalValue, shares)
	if err != nil {
		return nil, err
	}
	if err := e.gateway.PushTo(product.Token, e.admin, payout); err != nil {
		return nil, err
	}
	e.emit(NewResidueWithdrawnEvent(product, e.admin, payout))
	return payout, nil
}
