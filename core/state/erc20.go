package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/native/erc20"
)

type storedToken struct {
	Address     common.Address
	Symbol      string
	Name        string
	Decimals    uint8
	Minter      common.Address
	TotalSupply *big.Int
}

// TokenGet loads a settlement token record.
func (m *Manager) TokenGet(token common.Address) (*erc20.Token, bool, error) {
	stored := new(storedToken)
	ok, err := m.KVGet(tokenKey(token), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &erc20.Token{
		Address:     stored.Address,
		Symbol:      stored.Symbol,
		Name:        stored.Name,
		Decimals:    stored.Decimals,
		Minter:      stored.Minter,
		TotalSupply: nonNil(stored.TotalSupply),
	}, true, nil
}

// TokenPut stores a settlement token record and indexes its address.
func (m *Manager) TokenPut(t *erc20.Token) error {
	if t == nil {
		return fmt.Errorf("state: nil token")
	}
	stored := &storedToken{
		Address:     t.Address,
		Symbol:      t.Symbol,
		Name:        t.Name,
		Decimals:    t.Decimals,
		Minter:      t.Minter,
		TotalSupply: nonNil(t.TotalSupply),
	}
	if err := m.KVPut(tokenKey(t.Address), stored); err != nil {
		return err
	}
	return m.KVAppend(tokenListKey, t.Address.Bytes())
}

// TokenList returns the addresses of every registered token.
func (m *Manager) TokenList() ([]common.Address, error) {
	var raw [][]byte
	if err := m.KVGetList(tokenListKey, &raw); err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(raw))
	for _, b := range raw {
		out = append(out, common.BytesToAddress(b))
	}
	return out, nil
}

// TokenBalance returns account's balance of token.
func (m *Manager) TokenBalance(token, account common.Address) (*big.Int, error) {
	return m.loadBigInt(tokenBalanceKey(token, account))
}

// TokenSetBalance stores account's balance of token.
func (m *Manager) TokenSetBalance(token, account common.Address, amount *big.Int) error {
	return m.storeBigInt(tokenBalanceKey(token, account), amount)
}

// TokenAllowance returns how much spender may pull from owner.
func (m *Manager) TokenAllowance(token, owner, spender common.Address) (*big.Int, error) {
	return m.loadBigInt(tokenAllowanceKey(token, owner, spender))
}

// TokenSetAllowance stores spender's allowance over owner's balance.
func (m *Manager) TokenSetAllowance(token, owner, spender common.Address, amount *big.Int) error {
	return m.storeBigInt(tokenAllowanceKey(token, owner, spender), amount)
}
