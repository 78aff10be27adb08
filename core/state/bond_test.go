package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/elysia-dev/elysia-korea-pf/native/bond"
	"github.com/elysia-dev/elysia-korea-pf/storage"
)

func TestBondProductRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())

	id, err := mgr.BondAllocateProductID()
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	id, err = mgr.BondAllocateProductID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	count, err := mgr.BondProductCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	product := &bond.Product{
		ID:                   1,
		Kind:                 bond.KindCoupon,
		Token:                common.HexToAddress("0xabc"),
		PrincipalPerUnit:     big.NewInt(1_000),
		CouponRatePerSecond:  big.NewInt(2),
		OverdueRatePerSecond: big.NewInt(3),
		URI:                  "ipfs://x",
		StartTs:              10,
		EndTs:                20,
		CreatedAt:            5,
	}
	require.NoError(t, mgr.BondProductPut(product))

	got, ok, err := mgr.BondProductGet(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bond.KindCoupon, got.Kind)
	require.Equal(t, "ipfs://x", got.URI)
	require.Equal(t, int64(20), got.EndTs)
	require.Zero(t, got.FinalValue.Sign())
	require.Zero(t, got.UnitValue.Sign())
	require.False(t, got.Repaid())

	_, ok, err = mgr.BondProductGet(9)
	require.NoError(t, err)
	require.False(t, ok)

	product.StartTs = -1
	require.Error(t, mgr.BondProductPut(product))
}

func TestBondBalancesAndHolderIndex(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	a := common.HexToAddress("0xa")
	b := common.HexToAddress("0xb")

	require.NoError(t, mgr.BondSetBalance(0, a, big.NewInt(5)))
	require.NoError(t, mgr.BondSetBalance(0, b, big.NewInt(1)))
	require.NoError(t, mgr.BondSetBalance(0, a, big.NewInt(0)))
	require.Error(t, mgr.BondSetBalance(0, a, big.NewInt(-1)))

	holders, err := mgr.BondHolders(0)
	require.NoError(t, err)
	require.Equal(t, []common.Address{a, b}, holders)

	bal, err := mgr.BondBalance(0, a)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	holders, err = mgr.BondHolders(1)
	require.NoError(t, err)
	require.Empty(t, holders)
}

func TestBondCursorsAndApprovals(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	holder := common.HexToAddress("0xa")
	operator := common.HexToAddress("0xb")

	_, ok, err := mgr.BondCursorGet(0, holder)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.BondCursorPut(0, holder, &bond.ClaimCursor{LastSettledTs: 100, Pending: big.NewInt(7)}))
	cursor, ok, err := mgr.BondCursorGet(0, holder)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(100), cursor.LastSettledTs)
	require.Equal(t, int64(7), cursor.Pending.Int64())

	require.NoError(t, mgr.BondCursorDelete(0, holder))
	_, ok, err = mgr.BondCursorGet(0, holder)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.BondSetApproval(holder, operator, true))
	approved, err := mgr.BondApproval(holder, operator)
	require.NoError(t, err)
	require.True(t, approved)
	approved, err = mgr.BondApproval(operator, holder)
	require.NoError(t, err)
	require.False(t, approved)
	require.NoError(t, mgr.BondSetApproval(holder, operator, false))
	approved, err = mgr.BondApproval(holder, operator)
	require.NoError(t, err)
	require.False(t, approved)
}
