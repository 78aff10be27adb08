package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	bondNextProductIDKey = []byte("bond/product/next-id")
	tokenListKey         = []byte("erc20/tokens")
)

func bondProductKey(id uint64) []byte {
	return []byte(fmt.Sprintf("bond/product/%d", id))
}

func bondBalanceKey(id uint64, holder common.Address) []byte {
	return append([]byte(fmt.Sprintf("bond/balance/%d/", id)), holder.Bytes()...)
}

func bondSupplyKey(id uint64) []byte {
	return []byte(fmt.Sprintf("bond/supply/%d", id))
}

func bondHoldersKey(id uint64) []byte {
	return []byte(fmt.Sprintf("bond/holders/%d", id))
}

func bondCursorKey(id uint64, holder common.Address) []byte {
	return append([]byte(fmt.Sprintf("bond/cursor/%d/", id)), holder.Bytes()...)
}

func bondApprovalKey(owner, operator common.Address) []byte {
	key := append([]byte("bond/approval/"), owner.Bytes()...)
	return append(key, operator.Bytes()...)
}

func tokenKey(token common.Address) []byte {
	return append([]byte("erc20/token/"), token.Bytes()...)
}

func tokenBalanceKey(token, account common.Address) []byte {
	key := append([]byte("erc20/balance/"), token.Bytes()...)
	return append(key, account.Bytes()...)
}

func tokenAllowanceKey(token, owner, spender common.Address) []byte {
	key := append([]byte("erc20/allowance/"), token.Bytes()...)
	key = append(key, owner.Bytes()...)
	return append(key, spender.Bytes()...)
}
