package erc20

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/core/events"
)

type pairKey struct {
	token common.Address
	a, b  common.Address
}

type mockState struct {
	tokens     map[common.Address]*Token
	balances   map[pairKey]*big.Int
	allowances map[pairKey]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		tokens:     make(map[common.Address]*Token),
		balances:   make(map[pairKey]*big.Int),
		allowances: make(map[pairKey]*big.Int),
	}
}

func (m *mockState) TokenGet(token common.Address) (*Token, bool, error) {
	t, ok := m.tokens[token]
	if !ok {
		return nil, false, nil
	}
	return t.Clone(), true, nil
}

func (m *mockState) TokenPut(t *Token) error {
	m.tokens[t.Address] = t.Clone()
	return nil
}

func (m *mockState) TokenBalance(token, account common.Address) (*big.Int, error) {
	return cloneBigInt(m.balances[pairKey{token, account, common.Address{}}]), nil
}

func (m *mockState) TokenSetBalance(token, account common.Address, amount *big.Int) error {
	m.balances[pairKey{token, account, common.Address{}}] = cloneBigInt(amount)
	return nil
}

func (m *mockState) TokenAllowance(token, owner, spender common.Address) (*big.Int, error) {
	return cloneBigInt(m.allowances[pairKey{token, owner, spender}]), nil
}

func (m *mockState) TokenSetAllowance(token, owner, spender common.Address, amount *big.Int) error {
	m.allowances[pairKey{token, owner, spender}] = cloneBigInt(amount)
	return nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

var (
	minter = common.HexToAddress("0x1000")
	holder = common.HexToAddress("0x2000")
	vault  = common.HexToAddress("0x3000")
)

func setup(t *testing.T) (*Engine, *Token, *captureEmitter) {
	t.Helper()
	engine := NewEngine()
	engine.SetState(newMockState())
	emitter := &captureEmitter{}
	engine.SetEmitter(emitter)
	tok, err := engine.Register("usdc", "USD Coin", 6, minter)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return engine, tok, emitter
}

func balanceOf(t *testing.T, engine *Engine, token, account common.Address) int64 {
	t.Helper()
	bal, err := engine.BalanceOf(token, account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestRegister(t *testing.T) {
	engine, tok, _ := setup(t)
	if tok.Symbol != "USDC" {
		t.Fatalf("unexpected symbol %q", tok.Symbol)
	}
	if tok.Address != TokenAddress("USDC") {
		t.Fatalf("unexpected address %s", tok.Address.Hex())
	}
	if _, err := engine.Register("USDC", "", 6, minter); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
	if _, err := engine.Register(" ", "", 6, minter); !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol, got %v", err)
	}
	if _, err := engine.Metadata(TokenAddress("DAI")); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestMintRequiresMinter(t *testing.T) {
	engine, tok, emitter := setup(t)
	if err := engine.Mint(holder, tok.Address, holder, big.NewInt(5)); !errors.Is(err, ErrUnauthorizedMinter) {
		t.Fatalf("expected ErrUnauthorizedMinter, got %v", err)
	}
	if err := engine.Mint(minter, tok.Address, holder, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	supply, err := engine.TotalSupply(tok.Address)
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Int64() != 5 || balanceOf(t, engine, tok.Address, holder) != 5 {
		t.Fatalf("unexpected supply %s", supply)
	}
	last := events.Unwrap(emitter.events[len(emitter.events)-1])
	if last.Type != EventTypeTransfer || last.Attributes["from"] != (common.Address{}).Hex() {
		t.Fatalf("unexpected mint event %+v", last)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	engine, tok, _ := setup(t)
	if err := engine.Mint(minter, tok.Address, holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := engine.TransferFrom(tok.Address, vault, holder, vault, big.NewInt(10))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if err := engine.Approve(tok.Address, holder, vault, big.NewInt(40)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := engine.TransferFrom(tok.Address, vault, holder, vault, big.NewInt(30)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	allowance, err := engine.Allowance(tok.Address, holder, vault)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Int64() != 10 {
		t.Fatalf("expected remaining allowance 10, got %s", allowance)
	}
	if balanceOf(t, engine, tok.Address, vault) != 30 || balanceOf(t, engine, tok.Address, holder) != 70 {
		t.Fatalf("unexpected balances after transferFrom")
	}
}

func TestUnlimitedAllowanceIsNotDecremented(t *testing.T) {
	engine, tok, _ := setup(t)
	if err := engine.Mint(minter, tok.Address, holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Approve(tok.Address, holder, vault, MaxAllowance); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := engine.TransferFrom(tok.Address, vault, holder, vault, big.NewInt(60)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	allowance, err := engine.Allowance(tok.Address, holder, vault)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Cmp(MaxAllowance) != 0 {
		t.Fatalf("expected unlimited allowance to persist")
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	engine, tok, _ := setup(t)
	if err := engine.Transfer(tok.Address, holder, vault, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := engine.Transfer(tok.Address, holder, vault, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := engine.Mint(minter, tok.Address, holder, big.NewInt(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Transfer(tok.Address, holder, common.Address{}, big.NewInt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}
