package bond

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceHook runs before a holder's balance changes. It receives the balance
// as it stands prior to the mutation.
type BalanceHook func(id uint64, holder common.Address, balance *big.Int) error

// Ledger tracks share balances per product and holder. Callers are
// responsible for authorisation; the ledger only enforces non-negative
// balances and supply conservation.
type Ledger struct {
	state engineState
	hook  BalanceHook
}

func newLedger(state engineState, hook BalanceHook) *Ledger {
	return &Ledger{state: state, hook: hook}
}

// BalanceOf returns the holder's share count.
func (l *Ledger) BalanceOf(id uint64, holder common.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	balance, err := l.state.BondBalance(id, holder)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(balance), nil
}

// TotalSupply returns the number of shares in circulation for the product.
func (l *Ledger) TotalSupply(id uint64) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	supply, err := l.state.BondTotalSupply(id)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(supply), nil
}

// Holdings lists every holder that has ever received shares of the product
// together with the current balance, in first-receipt order.
func (l *Ledger) Holdings(id uint64) ([]Holding, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	holders, err := l.state.BondHolders(id)
	if err != nil {
		return nil, err
	}
	out := make([]Holding, 0, len(holders))
	for _, holder := range holders {
		balance, err := l.BalanceOf(id, holder)
		if err != nil {
			return nil, err
		}
		out = append(out, Holding{Holder: holder, Balance: balance})
	}
	return out, nil
}

// Mint credits amount shares to holder and grows the supply.
func (l *Ledger) Mint(id uint64, holder common.Address, amount *big.Int) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if holder == (common.Address{}) {
		return fmt.Errorf("%w: mint recipient", ErrZeroAddress)
	}
	if isZero(amount) {
		return nil
	}
	balance, err := l.BalanceOf(id, holder)
	if err != nil {
		return err
	}
	supply, err := l.TotalSupply(id)
	if err != nil {
		return err
	}
	newSupply, err := addChecked(supply, amount)
	if err != nil {
		return err
	}
	newBalance, err := addChecked(balance, amount)
	if err != nil {
		return err
	}
	if err := l.runHook(id, holder, balance); err != nil {
		return err
	}
	if err := l.state.BondSetBalance(id, holder, newBalance); err != nil {
		return err
	}
	return l.state.BondSetTotalSupply(id, newSupply)
}

// Burn debits amount shares from holder and shrinks the supply.
func (l *Ledger) Burn(id uint64, holder common.Address, amount *big.Int) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if isZero(amount) {
		return nil
	}
	balance, err := l.BalanceOf(id, holder)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	supply, err := l.TotalSupply(id)
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		return fmt.Errorf("bond: supply underflow for product %d", id)
	}
	if err := l.runHook(id, holder, balance); err != nil {
		return err
	}
	if err := l.state.BondSetBalance(id, holder, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return l.state.BondSetTotalSupply(id, new(big.Int).Sub(supply, amount))
}

// Transfer moves amount shares from one holder to another. The supply is
// untouched.
func (l *Ledger) Transfer(id uint64, from, to common.Address, amount *big.Int) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer recipient", ErrZeroAddress)
	}
	fromBalance, err := l.BalanceOf(id, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(cloneBigInt(amount)) < 0 {
		return ErrInsufficientBalance
	}
	if isZero(amount) || from == to {
		return nil
	}
	toBalance, err := l.BalanceOf(id, to)
	if err != nil {
		return err
	}
	newTo, err := addChecked(toBalance, amount)
	if err != nil {
		return err
	}
	if err := l.runHook(id, from, fromBalance); err != nil {
		return err
	}
	if err := l.runHook(id, to, toBalance); err != nil {
		return err
	}
	if err := l.state.BondSetBalance(id, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.state.BondSetBalance(id, to, newTo)
}

func (l *Ledger) checkAmount(amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount != nil && amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (l *Ledger) runHook(id uint64, holder common.Address, balance *big.Int) error {
	if l.hook == nil {
		return nil
	}
	return l.hook(id, holder, balance)
}
