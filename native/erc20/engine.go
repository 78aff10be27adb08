package erc20

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/elysia-dev/elysia-korea-pf/core/events"
	"github.com/elysia-dev/elysia-korea-pf/core/types"
)

type engineState interface {
	TokenGet(token common.Address) (*Token, bool, error)
	TokenPut(t *Token) error
	TokenBalance(token, account common.Address) (*big.Int, error)
	TokenSetBalance(token, account common.Address, amount *big.Int) error
	TokenAllowance(token, owner, spender common.Address) (*big.Int, error)
	TokenSetAllowance(token, owner, spender common.Address, amount *big.Int) error
}

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

// Engine is a minimal fungible token ledger used as the settlement medium.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine returns an engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(tokenEvent{evt: event})
}

func (e *Engine) token(addr common.Address) (*Token, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	tok, ok, err := e.state.TokenGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return tok, nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrInvalidAmount
	}
	return nil
}

// Register stores a new token at the address derived from its symbol.
func (e *Engine) Register(symbol, name string, decimals uint8, minter common.Address) (*Token, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return nil, ErrInvalidSymbol
	}
	if minter == (common.Address{}) {
		return nil, fmt.Errorf("%w: minter", ErrZeroAddress)
	}
	addr := TokenAddress(normalized)
	if _, ok, err := e.state.TokenGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenExists, normalized)
	}
	if strings.TrimSpace(name) == "" {
		name = normalized
	}
	tok := &Token{
		Address:     addr,
		Symbol:      normalized,
		Name:        name,
		Decimals:    decimals,
		Minter:      minter,
		TotalSupply: big.NewInt(0),
	}
	if err := e.state.TokenPut(tok); err != nil {
		return nil, err
	}
	e.emit(NewTokenRegisteredEvent(tok))
	return tok.Clone(), nil
}

// Metadata returns the token record.
func (e *Engine) Metadata(token common.Address) (*Token, error) {
	return e.token(token)
}

// TotalSupply returns the circulating supply of the token.
func (e *Engine) TotalSupply(token common.Address) (*big.Int, error) {
	tok, err := e.token(token)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(tok.TotalSupply), nil
}

// BalanceOf returns the account's balance of token.
func (e *Engine) BalanceOf(token, account common.Address) (*big.Int, error) {
	if _, err := e.token(token); err != nil {
		return nil, err
	}
	return e.state.TokenBalance(token, account)
}

// Allowance returns how much spender may still pull from owner.
func (e *Engine) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	if _, err := e.token(token); err != nil {
		return nil, err
	}
	return e.state.TokenAllowance(token, owner, spender)
}

// Mint creates amount new units for to. Only the registered minter may mint.
func (e *Engine) Mint(caller, token, to common.Address, amount *big.Int) error {
	tok, err := e.token(token)
	if err != nil {
		return err
	}
	if caller != tok.Minter {
		return ErrUnauthorizedMinter
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: mint recipient", ErrZeroAddress)
	}
	supply := new(big.Int).Add(cloneBigInt(tok.TotalSupply), amount)
	if err := checkAmount(supply); err != nil {
		return err
	}
	balance, err := e.state.TokenBalance(token, to)
	if err != nil {
		return err
	}
	if err := e.state.TokenSetBalance(token, to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	tok.TotalSupply = supply
	if err := e.state.TokenPut(tok); err != nil {
		return err
	}
	e.emit(NewTransferEvent(token, common.Address{}, to, amount))
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (e *Engine) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if _, err := e.token(token); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if spender == (common.Address{}) {
		return fmt.Errorf("%w: spender", ErrZeroAddress)
	}
	if err := e.state.TokenSetAllowance(token, owner, spender, amount); err != nil {
		return err
	}
	e.emit(NewApprovalEvent(token, owner, spender, amount))
	return nil
}

// Transfer moves amount from one account to another.
func (e *Engine) Transfer(token, from, to common.Address, amount *big.Int) error {
	if _, err := e.token(token); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	return e.move(token, from, to, amount)
}

// TransferFrom moves amount from one account to another using spender's
// allowance.
func (e *Engine) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if _, err := e.token(token); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	allowance, err := e.state.TokenAllowance(token, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := e.move(token, from, to, amount); err != nil {
		return err
	}
	if allowance.Cmp(MaxAllowance) != 0 {
		if err := e.state.TokenSetAllowance(token, from, spender, new(big.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) move(token, from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	fromBalance, err := e.state.TokenBalance(token, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientBalance, fromBalance, amount)
	}
	if from != to {
		toBalance, err := e.state.TokenBalance(token, to)
		if err != nil {
			return err
		}
		if err := e.state.TokenSetBalance(token, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := e.state.TokenSetBalance(token, to, new(big.Int).Add(toBalance, amount)); err != nil {
			return err
		}
	}
	e.emit(NewTransferEvent(token, from, to, amount))
	return nil
}
