// Package api holds the JSON wire types shared by the bondd server and its
// client. Token amounts travel as base-10 strings since they may exceed 64
// bits.
package api

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/native/bond"
	"github.com/elysia-dev/elysia-korea-pf/native/erc20"
)

type Product struct {
	ID                   uint64 `json:"id"`
	Kind                 string `json:"kind"`
	Token                string `json:"token"`
	UnitValue            string `json:"unitValue,omitempty"`
	PrincipalPerUnit     string `json:"principalPerUnit,omitempty"`
	CouponRatePerSecond  string `json:"couponRatePerSecond,omitempty"`
	OverdueRatePerSecond string `json:"overdueRatePerSecond,omitempty"`
	URI                  string `json:"uri"`
	StartTs              int64  `json:"startTs"`
	EndTs                int64  `json:"endTs"`
	CreatedAt            int64  `json:"createdAt"`
	FinalValue           string `json:"finalValue"`
	RepaidAt             int64  `json:"repaidAt,omitempty"`
	Repaid               bool   `json:"repaid"`
}

// FromProduct converts a stored product to its wire form.
func FromProduct(p *bond.Product) Product {
	out := Product{
		ID:         p.ID,
		Kind:       p.Kind.String(),
		Token:      p.Token.Hex(),
		URI:        p.URI,
		StartTs:    p.StartTs,
		EndTs:      p.EndTs,
		CreatedAt:  p.CreatedAt,
		FinalValue: Amount(p.FinalValue),
		RepaidAt:   p.RepaidAt,
		Repaid:     p.Repaid(),
	}
	switch p.Kind {
	case bond.KindBullet:
		out.UnitValue = Amount(p.UnitValue)
	case bond.KindCoupon:
		out.PrincipalPerUnit = Amount(p.PrincipalPerUnit)
		out.CouponRatePerSecond = Amount(p.CouponRatePerSecond)
		out.OverdueRatePerSecond = Amount(p.OverdueRatePerSecond)
	}
	return out
}

type Claim struct {
	ProductID uint64 `json:"productId"`
	Holder    string `json:"holder"`
	Shares    string `json:"shares"`
	Interest  string `json:"interest"`
	Principal string `json:"principal"`
	Payout    string `json:"payout"`
	SettledAt int64  `json:"settledAt"`
}

// FromClaim converts a settled or previewed claim to its wire form.
func FromClaim(c *bond.Claim) Claim {
	return Claim{
		ProductID: c.ProductID,
		Holder:    c.Holder.Hex(),
		Shares:    Amount(c.Shares),
		Interest:  Amount(c.Interest),
		Principal: Amount(c.Principal),
		Payout:    Amount(c.Payout),
		SettledAt: c.SettledAt,
	}
}

type Holding struct {
	Holder  string `json:"holder"`
	Balance string `json:"balance"`
}

type Holders struct {
	ProductID   uint64    `json:"productId"`
	TotalSupply string    `json:"totalSupply"`
	Holders     []Holding `json:"holders"`
}

type Balance struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type Token struct {
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    uint8  `json:"decimals"`
	Minter      string `json:"minter"`
	TotalSupply string `json:"totalSupply"`
}

// FromToken converts a token record to its wire form.
func FromToken(t *erc20.Token) Token {
	return Token{
		Address:     t.Address.Hex(),
		Symbol:      t.Symbol,
		Name:        t.Name,
		Decimals:    t.Decimals,
		Minter:      t.Minter.Hex(),
		TotalSupply: Amount(t.TotalSupply),
	}
}

type Paid struct {
	ProductID uint64 `json:"productId"`
	Amount    string `json:"amount"`
}

type Error struct {
	Error string `json:"error"`
}

type CreateBulletRequest struct {
	InitialSupply string `json:"initialSupply"`
	Token         string `json:"token"`
	UnitValue     string `json:"unitValue"`
	URI           string `json:"uri"`
	StartTs       int64  `json:"startTs"`
	EndTs         int64  `json:"endTs"`
}

type CreateCouponRequest struct {
	Token                string `json:"token"`
	PrincipalPerUnit     string `json:"principalPerUnit"`
	CouponRatePerSecond  string `json:"couponRatePerSecond"`
	OverdueRatePerSecond string `json:"overdueRatePerSecond"`
	URI                  string `json:"uri"`
	StartTs              int64  `json:"startTs"`
	EndTs                int64  `json:"endTs"`
}

type SetURIRequest struct {
	URI string `json:"uri"`
}

type MintBatchRequest struct {
	Holders []string `json:"holders"`
	Amounts []string `json:"amounts"`
}

type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Data   string `json:"data,omitempty"`
}

type ApprovalRequest struct {
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

type Approval struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

// RepayRequest funds a product. FinalValue is required for bullet products
// and ignored for coupon products.
type RepayRequest struct {
	FinalValue string `json:"finalValue,omitempty"`
	Amount     string `json:"amount"`
}

type AmountRequest struct {
	Amount string `json:"amount,omitempty"`
}

type RegisterTokenRequest struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
	Minter   string `json:"minter"`
}

type TokenApproveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type TokenMintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Amount formats a base unit quantity.
func Amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// ParseAmount parses a non-negative base-10 quantity. "max" selects the
// unlimited allowance value.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "max") {
		return new(big.Int).Set(erc20.MaxAllowance), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}

// ParseOptionalAmount returns nil for an empty string.
func ParseOptionalAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return ParseAmount(raw)
}

// ParseAddress parses a hex account address.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// ParseProductID parses a product id path segment.
func ParseProductID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid product id %q", raw)
	}
	return id, nil
}
