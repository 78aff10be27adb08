package bond

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Gateway moves settlement value on behalf of the engine. Implementations
// report success or failure; the engine keeps no copy of the token balances.
type Gateway interface {
	// PullFrom collects amount of token from payer into the vault.
	PullFrom(token, payer common.Address, amount *big.Int) error
	// PushTo pays amount of token from the vault to payee.
	PushTo(token, payee common.Address, amount *big.Int) error
}

// SettlementToken is the fungible-asset surface consumed by TokenGateway.
type SettlementToken interface {
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	Transfer(token, from, to common.Address, amount *big.Int) error
	BalanceOf(token, account common.Address) (*big.Int, error)
}

// TokenGateway settles through a SettlementToken, holding funds at a vault
// address that acts as the spender for pulls.
type TokenGateway struct {
	vault  common.Address
	tokens SettlementToken
}

// NewTokenGateway binds the gateway to a vault address and token ledger.
func NewTokenGateway(vault common.Address, tokens SettlementToken) *TokenGateway {
	return &TokenGateway{vault: vault, tokens: tokens}
}

// Vault returns the address holding pulled funds.
func (g *TokenGateway) Vault() common.Address {
	if g == nil {
		return common.Address{}
	}
	return g.vault
}

// PullFrom implements Gateway.
func (g *TokenGateway) PullFrom(token, payer common.Address, amount *big.Int) error {
	if g == nil || g.tokens == nil {
		return errNilGateway
	}
	if isZero(amount) {
		return nil
	}
	if err := g.tokens.TransferFrom(token, g.vault, payer, g.vault, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferRejected, err)
	}
	return nil
}

// PushTo implements Gateway.
func (g *TokenGateway) PushTo(token, payee common.Address, amount *big.Int) error {
	if g == nil || g.tokens == nil {
		return errNilGateway
	}
	if isZero(amount) {
		return nil
	}
	if err := g.tokens.Transfer(token, g.vault, payee, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferRejected, err)
	}
	return nil
}

// VaultBalance reports how much of token the vault currently holds.
func (g *TokenGateway) VaultBalance(token common.Address) (*big.Int, error) {
	if g == nil || g.tokens == nil {
		return nil, errNilGateway
	}
	return g.tokens.BalanceOf(token, g.vault)
}

// ModuleAddress derives the deterministic vault address used when no vault
// is configured.
func ModuleAddress() common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("module/bond/vault"))[12:])
}
