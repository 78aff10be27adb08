package bond

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type tokenCall struct {
	spender, from, to common.Address
	amount            *big.Int
}

type fakeToken struct {
	calls []tokenCall
	err   error
}

func (f *fakeToken) TransferFrom(_, spender, from, to common.Address, amount *big.Int) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, tokenCall{spender, from, to, amount})
	return nil
}

func (f *fakeToken) Transfer(_, from, to common.Address, amount *big.Int) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, tokenCall{common.Address{}, from, to, amount})
	return nil
}

func (f *fakeToken) BalanceOf(common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(42), nil
}

func TestTokenGatewayRoutesThroughVault(t *testing.T) {
	token := &fakeToken{}
	vault := ModuleAddress()
	gw := NewTokenGateway(vault, token)
	require.Equal(t, vault, gw.Vault())

	require.NoError(t, gw.PullFrom(testToken, alice, big.NewInt(7)))
	require.NoError(t, gw.PushTo(testToken, bob, big.NewInt(3)))
	require.NoError(t, gw.PushTo(testToken, bob, big.NewInt(0)))
	require.Len(t, token.calls, 2)
	require.Equal(t, tokenCall{vault, alice, vault, big.NewInt(7)}, token.calls[0])
	require.Equal(t, vault, token.calls[1].from)
	require.Equal(t, bob, token.calls[1].to)

	bal, err := gw.VaultBalance(testToken)
	require.NoError(t, err)
	requireAmount(t, 42, bal)
}

func TestTokenGatewayWrapsFailures(t *testing.T) {
	cause := errors.New("erc20: insufficient allowance")
	gw := NewTokenGateway(ModuleAddress(), &fakeToken{err: cause})

	err := gw.PullFrom(testToken, alice, big.NewInt(1))
	require.ErrorIs(t, err, ErrTransferRejected)
	require.ErrorIs(t, err, cause)

	err = gw.PushTo(testToken, alice, big.NewInt(1))
	require.ErrorIs(t, err, ErrTransferRejected)

	var nilGateway *TokenGateway
	require.ErrorIs(t, nilGateway.PullFrom(testToken, alice, big.NewInt(1)), errNilGateway)
}
