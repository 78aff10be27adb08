package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/core/events"
	bondstate "github.com/elysia-dev/elysia-korea-pf/core/state"
	"github.com/elysia-dev/elysia-korea-pf/native/bond"
	nativecommon "github.com/elysia-dev/elysia-korea-pf/native/common"
	"github.com/elysia-dev/elysia-korea-pf/native/erc20"
	"github.com/elysia-dev/elysia-korea-pf/observability"
	"github.com/elysia-dev/elysia-korea-pf/storage"
)

const (
	moduleBond  = "bond"
	moduleERC20 = "erc20"
)

// Options configures a Node.
type Options struct {
	// Admin is the single administrator of every product.
	Admin common.Address
	// Vault holds settlement funds. Zero means bond.ModuleAddress().
	Vault common.Address
	// Emitter receives events after their operation commits.
	Emitter events.Emitter
	Pauses  nativecommon.PauseView
	Logger  *slog.Logger
	Now     func() int64
}

// Node is the central controller. It serialises every operation, binds the
// engines to a fresh state overlay and commits or discards it as a unit.
type Node struct {
	db      storage.Database
	admin   common.Address
	vault   common.Address
	emitter events.Emitter
	pauses  nativecommon.PauseView
	logger  *slog.Logger
	nowFn   func() int64
	metrics *observability.SettlementMetrics
	stateMu sync.Mutex
}

// NewNode wires a node over db.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if opts.Admin == (common.Address{}) {
		return nil, fmt.Errorf("node: administrator address required")
	}
	vault := opts.Vault
	if vault == (common.Address{}) {
		vault = bond.ModuleAddress()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().Unix() }
	}
	return &Node{
		db:      db,
		admin:   opts.Admin,
		vault:   vault,
		emitter: emitter,
		pauses:  opts.Pauses,
		logger:  logger.With("component", "node"),
		nowFn:   nowFn,
		metrics: observability.Settlement(),
	}, nil
}

// Admin returns the administrator address.
func (n *Node) Admin() common.Address { return n.admin }

// Vault returns the address that holds settlement funds.
func (n *Node) Vault() common.Address { return n.vault }

type engines struct {
	state *bondstate.Manager
	bond  *bond.Engine
	token *erc20.Engine
}

func (n *Node) newEngines(manager *bondstate.Manager, emitter events.Emitter) *engines {
	tokenEngine := erc20.NewEngine()
	tokenEngine.SetState(manager)
	tokenEngine.SetEmitter(emitter)

	bondEngine := bond.NewEngine(n.admin)
	bondEngine.SetState(manager)
	bondEngine.SetGateway(bond.NewTokenGateway(n.vault, tokenEngine))
	bondEngine.SetEmitter(emitter)
	bondEngine.SetNowFunc(n.nowFn)
	return &engines{state: manager, bond: bondEngine, token: tokenEngine}
}

// apply runs fn against a fresh overlay. The overlay is committed only when
// fn succeeds; buffered events are published after the commit.
func (n *Node) apply(module, operation string, fn func(*engines) error) (err error) {
	start := time.Now()
	defer func() {
		n.metrics.Observe(operation, time.Since(start), err)
	}()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := nativecommon.Guard(n.pauses, module); err != nil {
		return fmt.Errorf("%s: %w", module, err)
	}
	manager := bondstate.NewManager(n.db)
	buffer := &events.Buffer{}
	if err := fn(n.newEngines(manager, buffer)); err != nil {
		manager.Discard()
		n.logger.Debug("operation rejected", "operation", operation, "error", err)
		return err
	}
	dirty := manager.Dirty()
	if err := manager.Commit(); err != nil {
		n.logger.Error("commit failed", "operation", operation, "error", err)
		return err
	}
	published := buffer.Drain()
	for _, evt := range published {
		n.emitter.Emit(evt)
		observability.Events().RecordPublished(evt.EventType())
	}
	n.logger.Info("operation committed", "operation", operation, "keys", dirty, "events", len(published))
	return nil
}

// view runs fn against a read-only overlay that is always discarded.
func (n *Node) view(fn func(*engines) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := bondstate.NewManager(n.db)
	defer manager.Discard()
	return fn(n.newEngines(manager, events.NoopEmitter{}))
}

// RegisterToken creates a settlement token. Only the administrator may
// register tokens.
func (n *Node) RegisterToken(caller common.Address, symbol, name string, decimals uint8, minter common.Address) (*erc20.Token, error) {
	var tok *erc20.Token
	err := n.apply(moduleERC20, "token_register", func(e *engines) error {
		if caller != n.admin {
			return bond.ErrUnauthorized
		}
		var err error
		tok, err = e.token.Register(symbol, name, decimals, minter)
		return err
	})
	return tok, err
}

// MintToken issues settlement tokens. Only the token's minter may mint.
func (n *Node) MintToken(caller, token, to common.Address, amount *big.Int) error {
	return n.apply(moduleERC20, "token_mint", func(e *engines) error {
		return e.token.Mint(caller, token, to, amount)
	})
}

// ApproveToken sets spender's allowance over owner's settlement tokens.
// Holders approve the vault before repayments and deposits.
func (n *Node) ApproveToken(owner, token, spender common.Address, amount *big.Int) error {
	return n.apply(moduleERC20, "token_approve", func(e *engines) error {
		return e.token.Approve(token, owner, spender, amount)
	})
}

// TransferToken moves settlement tokens between accounts.
func (n *Node) TransferToken(from, token, to common.Address, amount *big.Int) error {
	return n.apply(moduleERC20, "token_transfer", func(e *engines) error {
		return e.token.Transfer(token, from, to, amount)
	})
}

// Token returns settlement token metadata.
func (n *Node) Token(token common.Address) (*erc20.Token, error) {
	var tok *erc20.Token
	err := n.view(func(e *engines) error {
		var err error
		tok, err = e.token.Metadata(token)
		return err
	})
	return tok, err
}

// Tokens lists every registered settlement token.
func (n *Node) Tokens() ([]*erc20.Token, error) {
	var out []*erc20.Token
	err := n.view(func(e *engines) error {
		addrs, err := e.state.TokenList()
		if err != nil {
			return err
		}
		for _, addr := range addrs {
			tok, err := e.token.Metadata(addr)
			if err != nil {
				return err
			}
			out = append(out, tok)
		}
		return nil
	})
	return out, err
}

// TokenBalance returns account's settlement token balance.
func (n *Node) TokenBalance(token, account common.Address) (*big.Int, error) {
	var bal *big.Int
	err := n.view(func(e *engines) error {
		var err error
		bal, err = e.token.BalanceOf(token, account)
		return err
	})
	return bal, err
}

// TokenAllowance returns spender's remaining allowance over owner's tokens.
func (n *Node) TokenAllowance(token, owner, spender common.Address) (*big.Int, error) {
	var allowance *big.Int
	err := n.view(func(e *engines) error {
		var err error
		allowance, err = e.token.Allowance(token, owner, spender)
		return err
	})
	return allowance, err
}

// AddBulletProduct creates a bullet product and mints initialSupply to the
// administrator. Callers other than the administrator are rejected before any
// lookup.
func (n *Node) AddBulletProduct(caller common.Address, initialSupply *big.Int, token common.Address, unitValue *big.Int, uri string, startTs, endTs int64) (*bond.Product, error) {
	var product *bond.Product
	err := n.apply(moduleBond, "add_bullet", func(e *engines) error {
		if caller != n.admin {
			return bond.ErrUnauthorized
		}
		if _, err := e.token.Metadata(token); err != nil {
			return err
		}
		var err error
		product, err = e.bond.AddBulletProduct(caller, initialSupply, token, unitValue, uri, startTs, endTs)
		return err
	})
	return product, err
}

// AddCouponProduct creates a coupon product with zero supply.
func (n *Node) AddCouponProduct(caller, token common.Address, principalPerUnit, couponRatePerSecond, overdueRatePerSecond *big.Int, uri string, startTs, endTs int64) (*bond.Product, error) {
	var product *bond.Product
	err := n.apply(moduleBond, "add_coupon", func(e *engines) error {
		if caller != n.admin {
			return bond.ErrUnauthorized
		}
		if _, err := e.token.Metadata(token); err != nil {
			return err
		}
		var err error
		product, err = e.bond.AddCouponProduct(caller, token, principalPerUnit, couponRatePerSecond, overdueRatePerSecond, uri, startTs, endTs)
		return err
	})
	return product, err
}

// SetURI replaces a product's metadata pointer.
func (n *Node) SetURI(caller common.Address, id uint64, uri string) error {
	return n.apply(moduleBond, "set_uri", func(e *engines) error {
		return e.bond.SetURI(caller, id, uri)
	})
}

// MintBatch issues shares to several holders.
func (n *Node) MintBatch(caller common.Address, id uint64, holders []common.Address, amounts []*big.Int) error {
	return n.apply(moduleBond, "mint_batch", func(e *engines) error {
		return e.bond.MintBatch(caller, id, holders, amounts)
	})
}

// SafeTransferFrom moves shares between holders.
func (n *Node) SafeTransferFrom(operator, from, to common.Address, id uint64, amount *big.Int, data []byte) error {
	return n.apply(moduleBond, "transfer", func(e *engines) error {
		return e.bond.SafeTransferFrom(operator, from, to, id, amount, data)
	})
}

// SetApprovalForAll grants or revokes an operator.
func (n *Node) SetApprovalForAll(owner, operator common.Address, approved bool) error {
	return n.apply(moduleBond, "set_approval", func(e *engines) error {
		return e.bond.SetApprovalForAll(owner, operator, approved)
	})
}

// IsApprovedForAll reports whether operator may move owner's shares.
func (n *Node) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	var approved bool
	err := n.view(func(e *engines) error {
		var err error
		approved, err = e.bond.IsApprovedForAll(owner, operator)
		return err
	})
	return approved, err
}

// Repay funds a product. For bullet products finalValue is the per-share
// payment and amount the total pulled; coupon products ignore finalValue and
// pull amount.
func (n *Node) Repay(caller common.Address, id uint64, finalValue, amount *big.Int) (*bond.Product, error) {
	var repaid *bond.Product
	err := n.apply(moduleBond, "repay", func(e *engines) error {
		if caller != n.admin {
			return bond.ErrUnauthorized
		}
		product, err := e.bond.Product(id)
		if err != nil {
			return err
		}
		switch product.Kind {
		case bond.KindBullet:
			repaid, err = e.bond.RepayBullet(caller, id, finalValue, amount)
		case bond.KindCoupon:
			repaid, err = e.bond.RepayCoupon(caller, id, amount)
		default:
			err = bond.ErrKindMismatch
		}
		return err
	})
	if err == nil {
		n.metrics.RecordRepaid()
	}
	return repaid, err
}

// DepositInterest funds interim coupon claims.
func (n *Node) DepositInterest(caller common.Address, id uint64, amount *big.Int) error {
	return n.apply(moduleBond, "deposit_interest", func(e *engines) error {
		return e.bond.DepositInterest(caller, id, amount)
	})
}

// Claim redeems holder's position in product id.
func (n *Node) Claim(holder common.Address, id uint64) (*bond.Claim, error) {
	var claim *bond.Claim
	var token common.Address
	err := n.apply(moduleBond, "claim", func(e *engines) error {
		product, err := e.bond.Product(id)
		if err != nil {
			return err
		}
		token = product.Token
		claim, err = e.bond.Claim(holder, id)
		return err
	})
	if err == nil {
		n.metrics.RecordPayout(token.Hex(), claim.Payout)
	}
	return claim, err
}

// Claimable previews what a claim would pay now.
func (n *Node) Claimable(holder common.Address, id uint64) (*bond.Claim, error) {
	var claim *bond.Claim
	err := n.view(func(e *engines) error {
		var err error
		claim, err = e.bond.Claimable(holder, id)
		return err
	})
	return claim, err
}

// WithdrawResidue pays the administrator. Bullet products pay finalValue for
// every share the administrator holds and ignore amount; coupon products pay
// amount.
func (n *Node) WithdrawResidue(caller common.Address, id uint64, amount *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := n.apply(moduleBond, "withdraw_residue", func(e *engines) error {
		if caller != n.admin {
			return bond.ErrUnauthorized
		}
		product, err := e.bond.Product(id)
		if err != nil {
			return err
		}
		switch product.Kind {
		case bond.KindBullet:
			paid, err = e.bond.WithdrawResidue(caller, id)
		case bond.KindCoupon:
			if err = e.bond.WithdrawCouponResidue(caller, id, amount); err == nil {
				paid = new(big.Int).Set(amount)
			}
		default:
			err = bond.ErrKindMismatch
		}
		return err
	})
	return paid, err
}

// Product returns a product record.
func (n *Node) Product(id uint64) (*bond.Product, error) {
	var product *bond.Product
	err := n.view(func(e *engines) error {
		var err error
		product, err = e.bond.Product(id)
		return err
	})
	return product, err
}

// Products lists every product in identifier order.
func (n *Node) Products() ([]*bond.Product, error) {
	var out []*bond.Product
	err := n.view(func(e *engines) error {
		count, err := e.state.BondProductCount()
		if err != nil {
			return err
		}
		for id := uint64(0); id < count; id++ {
			product, err := e.bond.Product(id)
			if errors.Is(err, bond.ErrUnknownProduct) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, product)
		}
		return nil
	})
	return out, err
}

// BalanceOf returns holder's share balance.
func (n *Node) BalanceOf(id uint64, holder common.Address) (*big.Int, error) {
	var bal *big.Int
	err := n.view(func(e *engines) error {
		var err error
		bal, err = e.bond.BalanceOf(id, holder)
		return err
	})
	return bal, err
}

// TotalSupply returns a product's circulating share count.
func (n *Node) TotalSupply(id uint64) (*big.Int, error) {
	var supply *big.Int
	err := n.view(func(e *engines) error {
		var err error
		supply, err = e.bond.TotalSupply(id)
		return err
	})
	return supply, err
}

// Holdings returns a product's balance table.
func (n *Node) Holdings(id uint64) ([]bond.Holding, error) {
	var holdings []bond.Holding
	err := n.view(func(e *engines) error {
		var err error
		holdings, err = e.bond.Holdings(id)
		return err
	})
	return holdings, err
}
