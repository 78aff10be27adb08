package bond

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/core/types"
)

const (
	EventTypeProductCreated    = "bond.product.created"
	EventTypeProductURIUpdated = "bond.product.uri_updated"
	EventTypeProductRepaid     = "bond.product.repaid"
	EventTypeSharesMinted      = "bond.shares.minted"
	EventTypeSharesBurned      = "bond.shares.burned"
	EventTypeSharesTransferred = "bond.shares.transferred"
	EventTypeApprovalUpdated   = "bond.approval.updated"
	EventTypeInterestDeposited = "bond.interest.deposited"
	EventTypeClaimed           = "bond.claimed"
	EventTypeResidueWithdrawn  = "bond.residue.withdrawn"
)

// Claim summarises a settled claim.
type Claim struct {
	ProductID uint64
	Holder    common.Address
	Shares    *big.Int
	Interest  *big.Int
	Principal *big.Int
	Payout    *big.Int
	SettledAt int64
}

// NewProductCreatedEvent returns the canonical payload for a new product.
func NewProductCreatedEvent(p *Product) *types.Event {
	attrs := productAttrs(p)
	if p != nil {
		attrs["kind"] = p.Kind.String()
		attrs["token"] = p.Token.Hex()
		attrs["uri"] = p.URI
		attrs["startTs"] = strconv.FormatInt(p.StartTs, 10)
		attrs["endTs"] = strconv.FormatInt(p.EndTs, 10)
		switch p.Kind {
		case KindBullet:
			attrs["unitValue"] = formatAmount(p.UnitValue)
		case KindCoupon:
			attrs["principalPerUnit"] = formatAmount(p.PrincipalPerUnit)
			attrs["couponRatePerSecond"] = formatAmount(p.CouponRatePerSecond)
			attrs["overdueRatePerSecond"] = formatAmount(p.OverdueRatePerSecond)
		}
	}
	return &types.Event{Type: EventTypeProductCreated, Attributes: attrs}
}

// NewProductURIUpdatedEvent is emitted when the metadata pointer changes.
func NewProductURIUpdatedEvent(p *Product) *types.Event {
	attrs := productAttrs(p)
	if p != nil {
		attrs["uri"] = p.URI
	}
	return &types.Event{Type: EventTypeProductURIUpdated, Attributes: attrs}
}

// NewProductRepaidEvent is emitted once per product when it becomes repaid.
// funded is the amount pulled from the administrator.
func NewProductRepaidEvent(p *Product, funded *big.Int) *types.Event {
	attrs := productAttrs(p)
	if p != nil {
		attrs["finalValue"] = formatAmount(p.FinalValue)
		attrs["repaidAt"] = strconv.FormatInt(p.RepaidAt, 10)
	}
	attrs["funded"] = formatAmount(funded)
	return &types.Event{Type: EventTypeProductRepaid, Attributes: attrs}
}

// NewSharesMintedEvent records issuance to a holder.
func NewSharesMintedEvent(id uint64, holder common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeSharesMinted, Attributes: map[string]string{
		"id":     strconv.FormatUint(id, 10),
		"holder": holder.Hex(),
		"amount": formatAmount(amount),
	}}
}

// NewSharesBurnedEvent records redemption of shares.
func NewSharesBurnedEvent(id uint64, holder common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeSharesBurned, Attributes: map[string]string{
		"id":     strconv.FormatUint(id, 10),
		"holder": holder.Hex(),
		"amount": formatAmount(amount),
	}}
}

// NewSharesTransferredEvent records a share movement between holders.
func NewSharesTransferredEvent(id uint64, operator, from, to common.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeSharesTransferred, Attributes: map[string]string{
		"id":       strconv.FormatUint(id, 10),
		"operator": operator.Hex(),
		"from":     from.Hex(),
		"to":       to.Hex(),
		"amount":   formatAmount(amount),
	}}
}

// NewApprovalUpdatedEvent records an operator approval change.
func NewApprovalUpdatedEvent(owner, operator common.Address, approved bool) *types.Event {
	return &types.Event{Type: EventTypeApprovalUpdated, Attributes: map[string]string{
		"owner":    owner.Hex(),
		"operator": operator.Hex(),
		"approved": strconv.FormatBool(approved),
	}}
}

// NewInterestDepositedEvent records interim coupon funding.
func NewInterestDepositedEvent(p *Product, amount *big.Int) *types.Event {
	attrs := productAttrs(p)
	attrs["amount"] = formatAmount(amount)
	return &types.Event{Type: EventTypeInterestDeposited, Attributes: attrs}
}

// NewClaimedEvent records a settled claim.
func NewClaimedEvent(c *Claim) *types.Event {
	attrs := make(map[string]string)
	if c == nil {
		return &types.Event{Type: EventTypeClaimed, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(c.ProductID, 10)
	attrs["holder"] = c.Holder.Hex()
	attrs["shares"] = formatAmount(c.Shares)
	attrs["interest"] = formatAmount(c.Interest)
	attrs["principal"] = formatAmount(c.Principal)
	attrs["amount"] = formatAmount(c.Payout)
	attrs["settledAt"] = strconv.FormatInt(c.SettledAt, 10)
	return &types.Event{Type: EventTypeClaimed, Attributes: attrs}
}

// NewResidueWithdrawnEvent records a payout to the administrator.
func NewResidueWithdrawnEvent(p *Product, recipient common.Address, amount *big.Int) *types.Event {
	attrs := productAttrs(p)
	attrs["recipient"] = recipient.Hex()
	attrs["amount"] = formatAmount(amount)
	return &types.Event{Type: EventTypeResidueWithdrawn, Attributes: attrs}
}

func productAttrs(p *Product) map[string]string {
	attrs := make(map[string]string)
	if p == nil {
		return attrs
	}
	attrs["id"] = strconv.FormatUint(p.ID, 10)
	return attrs
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
