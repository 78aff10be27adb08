package erc20

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Token is the metadata and supply record of a registered asset.
type Token struct {
	Address     common.Address
	Symbol      string
	Name        string
	Decimals    uint8
	Minter      common.Address
	TotalSupply *big.Int
}

// Clone returns a deep copy of the token record.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	clone.TotalSupply = cloneBigInt(t.TotalSupply)
	return &clone
}

// TokenAddress derives the deterministic address for a symbol.
func TokenAddress(symbol string) common.Address {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("token/" + normalized))[12:])
}

// MaxAllowance is treated as an unlimited approval and never decremented.
var MaxAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
