package bond

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func couponProduct() *Product {
	return &Product{
		Kind:                 KindCoupon,
		PrincipalPerUnit:     big.NewInt(1_000),
		CouponRatePerSecond:  big.NewInt(2),
		OverdueRatePerSecond: big.NewInt(3),
		StartTs:              1_000,
		EndTs:                2_000,
		FinalValue:           big.NewInt(0),
	}
}

func TestAccruedPerUnit(t *testing.T) {
	open := couponProduct()
	repaid := couponProduct()
	repaid.FinalValue = big.NewInt(1_000)
	repaid.RepaidAt = 2_200
	early := couponProduct()
	early.FinalValue = big.NewInt(1_000)
	early.RepaidAt = 1_400

	cases := []struct {
		name    string
		product *Product
		at      int64
		want    int64
	}{
		{"before start", open, 500, 0},
		{"at start", open, 1_000, 0},
		{"mid term", open, 1_500, 1_000},
		{"at maturity", open, 2_000, 2_000},
		{"overdue", open, 2_500, 3_500},
		{"capped at repayment", repaid, 3_000, 2_600},
		{"early repayment", early, 1_900, 800},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := accruedPerUnit(tc.product, tc.at)
			require.NoError(t, err)
			requireAmount(t, tc.want, got)
		})
	}
}

func (f *fixture) addCoupon(t *testing.T) *Product {
	t.Helper()
	p, err := f.engine.AddCouponProduct(testAdmin, testToken, big.NewInt(1_000), big.NewInt(2), big.NewInt(3), "ipfs://coupon", 1_000, 2_000)
	require.NoError(t, err)
	return p
}

func TestCouponLifecycle(t *testing.T) {
	f := newFixture(t)
	f.now = 900
	p := f.addCoupon(t)
	supply, err := f.engine.TotalSupply(p.ID)
	require.NoError(t, err)
	requireAmount(t, 0, supply)

	require.NoError(t, f.engine.MintBatch(testAdmin, p.ID, []common.Address{alice}, []*big.Int{big.NewInt(10)}))
	f.gateway.credit(testAdmin, 100_000)
	require.NoError(t, f.engine.DepositInterest(testAdmin, p.ID, big.NewInt(50_000)))
	requireAmount(t, 50_000, f.gateway.balance(f.gateway.vault))

	f.now = 1_500
	claim, err := f.engine.Claim(alice, p.ID)
	require.NoError(t, err)
	requireAmount(t, 10_000, claim.Interest)
	requireAmount(t, 0, claim.Principal)
	requireAmount(t, 10_000, f.gateway.balance(alice))

	// Nothing accrued since the previous claim.
	claim, err = f.engine.Claim(alice, p.ID)
	require.NoError(t, err)
	requireAmount(t, 0, claim.Payout)
	requireAmount(t, 10_000, f.gateway.balance(alice))

	f.now = 1_600
	claim, err = f.engine.Claim(alice, p.ID)
	require.NoError(t, err)
	requireAmount(t, 2_000, claim.Payout)

	f.now = 1_800
	require.NoError(t, f.engine.SafeTransferFrom(alice, alice, bob, p.ID, big.NewInt(4), nil))
	f.requireConservation(t, p.ID)

	f.now = 2_500
	preview, err := f.engine.Claimable(alice, p.ID)
	require.NoError(t, err)
	requireAmount(t, 15_400, preview.Interest)
	requireAmount(t, 15_400, preview.Payout)

	_, err = f.engine.RepayCoupon(alice, p.ID, big.NewInt(10_000))
	require.ErrorIs(t, err, ErrUnauthorized)
	repaid, err := f.engine.RepayCoupon(testAdmin, p.ID, big.NewInt(10_000))
	require.NoError(t, err)
	requireAmount(t, 1_000, repaid.FinalValue)
	_, err = f.engine.RepayCoupon(testAdmin, p.ID, big.NewInt(10_000))
	require.ErrorIs(t, err, ErrAlreadyRepaid)
	requireAmount(t, 48_000, f.gateway.balance(f.gateway.vault))

	// Accrual stops at the repayment instant.
	f.now = 3_000
	claim, err = f.engine.Claim(alice, p.ID)
	require.NoError(t, err)
	requireAmount(t, 6, claim.Shares)
	requireAmount(t, 15_400, claim.Interest)
	requireAmount(t, 6_000, claim.Principal)
	requireAmount(t, 21_400, claim.Payout)
	requireAmount(t, 33_400, f.gateway.balance(alice))

	bal, err := f.engine.BalanceOf(p.ID, alice)
	require.NoError(t, err)
	requireAmount(t, 0, bal)
	_, ok := f.state.cursors[holderKey{p.ID, alice}]
	require.False(t, ok)

	_, err = f.engine.Claim(alice, p.ID)
	require.ErrorIs(t, err, ErrZeroBalanceClaim)

	claim, err = f.engine.Claim(bob, p.ID)
	require.NoError(t, err)
	requireAmount(t, 7_600, claim.Interest)
	requireAmount(t, 4_000, claim.Principal)
	requireAmount(t, 11_600, f.gateway.balance(bob))

	supply, err = f.engine.TotalSupply(p.ID)
	require.NoError(t, err)
	requireAmount(t, 0, supply)
	f.requireConservation(t, p.ID)
	requireAmount(t, 15_000, f.gateway.balance(f.gateway.vault))

	require.ErrorIs(t, f.engine.WithdrawCouponResidue(alice, p.ID, big.NewInt(1)), ErrUnauthorized)
	require.ErrorIs(t, f.engine.WithdrawCouponResidue(testAdmin, p.ID, big.NewInt(15_001)), ErrTransferRejected)
	require.NoError(t, f.engine.WithdrawCouponResidue(testAdmin, p.ID, big.NewInt(15_000)))
	requireAmount(t, 55_000, f.gateway.balance(testAdmin))

	require.Len(t, f.emitter.ofType(EventTypeSharesBurned), 2)
	require.Len(t, f.emitter.ofType(EventTypeInterestDeposited), 1)
	require.Len(t, f.emitter.ofType(EventTypeProductRepaid), 1)
}

func TestCouponClaimWithoutPosition(t *testing.T) {
	f := newFixture(t)
	p := f.addCoupon(t)
	_, err := f.engine.Claim(carol, p.ID)
	require.ErrorIs(t, err, ErrZeroBalanceClaim)
}

func TestCouponTransferKeepsEarnedInterest(t *testing.T) {
	f := newFixture(t)
	f.now = 1_000
	p := f.addCoupon(t)
	require.NoError(t, f.engine.MintBatch(testAdmin, p.ID, []common.Address{alice}, []*big.Int{big.NewInt(5)}))
	f.gateway.credit(testAdmin, 10_000)
	require.NoError(t, f.engine.DepositInterest(testAdmin, p.ID, big.NewInt(10_000)))

	f.now = 1_100
	require.NoError(t, f.engine.SafeTransferFrom(alice, alice, bob, p.ID, big.NewInt(5), nil))

	// Alice earned 5 shares x 100s x 2 before handing the shares over.
	claim, err := f.engine.Claim(alice, p.ID)
	require.NoError(t, err)
	requireAmount(t, 0, claim.Shares)
	requireAmount(t, 1_000, claim.Payout)

	f.now = 1_200
	claim, err = f.engine.Claim(bob, p.ID)
	require.NoError(t, err)
	requireAmount(t, 1_000, claim.Payout)
}

func TestCouponMissingCursorWithBalanceStartsAtIssue(t *testing.T) {
	f := newFixture(t)
	p := f.addCoupon(t)
	// A balance recorded without a cursor accrues from StartTs.
	require.NoError(t, f.state.BondSetBalance(p.ID, alice, big.NewInt(1)))
	require.NoError(t, f.state.BondSetTotalSupply(p.ID, big.NewInt(1)))

	f.now = 1_250
	preview, err := f.engine.Claimable(alice, p.ID)
	require.NoError(t, err)
	requireAmount(t, 500, preview.Interest)
}

func TestCouponPushFailure(t *testing.T) {
	f := newFixture(t)
	p := f.addCoupon(t)
	require.NoError(t, f.engine.MintBatch(testAdmin, p.ID, []common.Address{alice}, []*big.Int{big.NewInt(1)}))
	f.now = 1_500
	_, err := f.engine.Claim(alice, p.ID)
	require.ErrorIs(t, err, ErrTransferRejected)
	require.Empty(t, f.emitter.ofType(EventTypeClaimed))
}

func TestBulletClaimablePreview(t *testing.T) {
	f := newFixture(t)
	p := f.addBullet(t, 10)
	preview, err := f.engine.Claimable(testAdmin, p.ID)
	require.NoError(t, err)
	requireAmount(t, 0, preview.Payout)

	f.gateway.credit(testAdmin, 1_000)
	_, err = f.engine.RepayBullet(testAdmin, p.ID, big.NewInt(100), big.NewInt(1_000))
	require.NoError(t, err)
	preview, err = f.engine.Claimable(testAdmin, p.ID)
	require.NoError(t, err)
	requireAmount(t, 1_000, preview.Payout)

	bal, err := f.engine.BalanceOf(p.ID, testAdmin)
	require.NoError(t, err)
	requireAmount(t, 10, bal)
}
