package bond

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/core/events"
	"github.com/elysia-dev/elysia-korea-pf/core/types"
)

type engineState interface {
	BondAllocateProductID() (uint64, error)
	BondProductGet(id uint64) (*Product, bool, error)
	BondProductPut(p *Product) error
	BondBalance(id uint64, holder common.Address) (*big.Int, error)
	BondSetBalance(id uint64, holder common.Address, amount *big.Int) error
	BondTotalSupply(id uint64) (*big.Int, error)
	BondSetTotalSupply(id uint64, amount *big.Int) error
	BondHolders(id uint64) ([]common.Address, error)
	BondCursorGet(id uint64, holder common.Address) (*ClaimCursor, bool, error)
	BondCursorPut(id uint64, holder common.Address, cursor *ClaimCursor) error
	BondCursorDelete(id uint64, holder common.Address) error
	BondApproval(owner, operator common.Address) (bool, error)
	BondSetApproval(owner, operator common.Address, approved bool) error
}

type bondEvent struct {
	evt *types.Event
}

func (e bondEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bondEvent) Event() *types.Event { return e.evt }

// Engine exposes the share ledger, product registry and both settlement
// protocols behind a single administrator. State, gateway and emitter are
// injected so the node can bind a fresh state overlay per operation.
type Engine struct {
	state    engineState
	registry *Registry
	ledger   *Ledger
	gateway  Gateway
	admin    common.Address
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine creates a bond engine governed by admin with a no-op emitter.
func NewEngine(admin common.Address) *Engine {
	return &Engine{
		admin:   admin,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.registry = newRegistry(state)
	e.ledger = newLedger(state, e.beforeBalanceChange)
}

// SetGateway configures the settlement token gateway.
func (e *Engine) SetGateway(gateway Gateway) { e.gateway = gateway }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Admin returns the administrator address.
func (e *Engine) Admin() common.Address { return e.admin }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(bondEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.registry == nil || e.ledger == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) requireAdmin(caller common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != e.admin {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) requireGateway() error {
	if e.gateway == nil {
		return errNilGateway
	}
	return nil
}

// productOfKind loads a product and checks it belongs to the given variant.
func (e *Engine) productOfKind(id uint64, kind Kind) (*Product, error) {
	product, err := e.registry.Product(id)
	if err != nil {
		return nil, err
	}
	if product.Kind != kind {
		return nil, fmt.Errorf("%w: product %d is %s", ErrKindMismatch, id, product.Kind)
	}
	return product, nil
}

// CreateProduct allocates a new product from the supplied terms without
// minting any shares.
func (e *Engine) CreateProduct(caller common.Address, terms Terms) (*Product, error) {
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if terms.Kind == KindCoupon && isZero(terms.PrincipalPerUnit) {
		return nil, fmt.Errorf("%w: coupon principal must be positive", ErrInvalidAmount)
	}
	product, err := e.registry.create(terms, e.now())
	if err != nil {
		return nil, err
	}
	e.emit(NewProductCreatedEvent(product))
	return product, nil
}

// SetURI replaces the metadata pointer of a product.
func (e *Engine) SetURI(caller common.Address, id uint64, uri string) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	product, err := e.registry.setURI(id, uri)
	if err != nil {
		return err
	}
	e.emit(NewProductURIUpdatedEvent(product))
	return nil
}

// Product returns a copy of the product record.
func (e *Engine) Product(id uint64) (*Product, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.registry.Product(id)
}

// MintBatch issues shares of an existing product to several holders at once.
func (e *Engine) MintBatch(caller common.Address, id uint64, holders []common.Address, amounts []*big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if len(holders) != len(amounts) {
		return ErrLengthMismatch
	}
	product, err := e.registry.Product(id)
	if err != nil {
		return err
	}
	if product.Repaid() {
		return ErrAlreadyRepaid
	}
	for i := range holders {
		if amounts[i] == nil || amounts[i].Sign() < 0 {
			return fmt.Errorf("%w: entry %d", ErrInvalidAmount, i)
		}
		if err := e.ledger.Mint(id, holders[i], amounts[i]); err != nil {
			return err
		}
		if amounts[i].Sign() > 0 {
			e.emit(NewSharesMintedEvent(id, holders[i], amounts[i]))
		}
	}
	return nil
}

// SafeTransferFrom moves shares from one holder to another. The operator must
// be the owner or an approved operator. Transfers are permitted before and
// after repayment.
func (e *Engine) SafeTransferFrom(operator, from, to common.Address, id uint64, amount *big.Int, data []byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	_ = data
	if operator != from {
		approved, err := e.state.BondApproval(from, operator)
		if err != nil {
			return err
		}
		if !approved {
			return ErrNotApproved
		}
	}
	if _, err := e.registry.Product(id); err != nil {
		return err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if err := e.ledger.Transfer(id, from, to, amount); err != nil {
		return err
	}
	e.emit(NewSharesTransferredEvent(id, operator, from, to, amount))
	return nil
}

// SetApprovalForAll grants or revokes an operator's right to move every share
// the owner holds.
func (e *Engine) SetApprovalForAll(owner, operator common.Address, approved bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if owner == operator {
		return ErrSelfApproval
	}
	if operator == (common.Address{}) {
		return fmt.Errorf("%w: operator", ErrZeroAddress)
	}
	if err := e.state.BondSetApproval(owner, operator, approved); err != nil {
		return err
	}
	e.emit(NewApprovalUpdatedEvent(owner, operator, approved))
	return nil
}

// IsApprovedForAll reports whether operator may move owner's shares.
func (e *Engine) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.state.BondApproval(owner, operator)
}

// BalanceOf returns the holder's share count for the product.
func (e *Engine) BalanceOf(id uint64, holder common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.ledger.BalanceOf(id, holder)
}

// TotalSupply returns the circulating share count for the product.
func (e *Engine) TotalSupply(id uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.ledger.TotalSupply(id)
}

// Holdings returns the balance table of a product.
func (e *Engine) Holdings(id uint64) ([]Holding, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.registry.Product(id); err != nil {
		return nil, err
	}
	return e.ledger.Holdings(id)
}

// Claim redeems the holder's position using the settlement rules of the
// product's variant. Anyone may trigger a claim; funds always go to holder.
func (e *Engine) Claim(holder common.Address, id uint64) (*Claim, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	product, err := e.registry.Product(id)
	if err != nil {
		return nil, err
	}
	switch product.Kind {
	case KindBullet:
		return e.ClaimBullet(holder, id)
	case KindCoupon:
		return e.ClaimCoupon(holder, id)
	default:
		return nil, ErrKindMismatch
	}
}

// Claimable previews what Claim would pay at the current time without
// mutating state.
func (e *Engine) Claimable(holder common.Address, id uint64) (*Claim, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	product, err := e.registry.Product(id)
	if err != nil {
		return nil, err
	}
	shares, err := e.ledger.BalanceOf(id, holder)
	if err != nil {
		return nil, err
	}
	now := e.now()
	claim := &Claim{
		ProductID: id,
		Holder:    holder,
		Shares:    shares,
		Interest:  big.NewInt(0),
		Principal: big.NewInt(0),
		Payout:    big.NewInt(0),
		SettledAt: now,
	}
	switch product.Kind {
	case KindBullet:
		if !product.Repaid() {
			return claim, nil
		}
		principal, err := mulChecked(product.FinalValue, shares)
		if err != nil {
			return nil, err
		}
		claim.Principal = principal
		claim.Payout = cloneBigInt(principal)
	case KindCoupon:
		cursor, err := e.checkpoint(product, holder, shares, now)
		if err != nil {
			return nil, err
		}
		claim.Interest = cloneBigInt(cursor.Pending)
		if product.Repaid() {
			principal, err := mulChecked(product.PrincipalPerUnit, shares)
			if err != nil {
				return nil, err
			}
			claim.Principal = principal
		}
		payout, err := addChecked(claim.Interest, claim.Principal)
		if err != nil {
			return nil, err
		}
		claim.Payout = payout
	}
	return claim, nil
}

// beforeBalanceChange checkpoints coupon interest so that accrued value stays
// with the holder who earned it when shares move.
func (e *Engine) beforeBalanceChange(id uint64, holder common.Address, balance *big.Int) error {
	product, err := e.registry.Product(id)
	if err != nil {
		return err
	}
	if product.Kind != KindCoupon {
		return nil
	}
	cursor, err := e.checkpoint(product, holder, balance, e.now())
	if err != nil {
		return err
	}
	return e.state.BondCursorPut(id, holder, cursor)
}
