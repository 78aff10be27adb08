package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/elysia-dev/elysia-korea-pf/native/erc20"
	"github.com/elysia-dev/elysia-korea-pf/storage"
)

func TestTokenRecordsThroughEngine(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	engine := erc20.NewEngine()
	engine.SetState(mgr)

	minter := common.HexToAddress("0x1")
	holder := common.HexToAddress("0x2")
	tok, err := engine.Register("usdt", "Tether", 6, minter)
	require.NoError(t, err)
	require.NoError(t, engine.Mint(minter, tok.Address, holder, big.NewInt(50)))

	list, err := mgr.TokenList()
	require.NoError(t, err)
	require.Equal(t, []common.Address{tok.Address}, list)

	meta, ok, err := mgr.TokenGet(tok.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "USDT", meta.Symbol)
	require.Equal(t, uint8(6), meta.Decimals)
	require.Equal(t, int64(50), meta.TotalSupply.Int64())

	require.NoError(t, engine.Approve(tok.Address, holder, minter, erc20.MaxAllowance))
	allowance, err := mgr.TokenAllowance(tok.Address, holder, minter)
	require.NoError(t, err)
	require.Zero(t, allowance.Cmp(erc20.MaxAllowance))
}
