package erc20

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/core/types"
)

const (
	EventTypeTokenRegistered = "erc20.registered"
	EventTypeTransfer        = "erc20.transfer"
	EventTypeApproval        = "erc20.approval"
)

// NewTokenRegisteredEvent announces a new asset.
func NewTokenRegisteredEvent(t *Token) *types.Event {
	return &types.Event{Type: EventTypeTokenRegistered, Attributes: map[string]string{
		"token":  t.Address.Hex(),
		"symbol": t.Symbol,
		"minter": t.Minter.Hex(),
	}}
}

// NewTransferEvent mirrors the ERC-20 Transfer log. Mints use the zero
// address as sender.
func NewTransferEvent(token, from, to common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"token":  token.Hex(),
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": cloneBigInt(amount).String(),
	}}
}

// NewApprovalEvent mirrors the ERC-20 Approval log.
func NewApprovalEvent(token, owner, spender common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeApproval, Attributes: map[string]string{
		"token":   token.Hex(),
		"owner":   owner.Hex(),
		"spender": spender.Hex(),
		"amount":  cloneBigInt(amount).String(),
	}}
}
