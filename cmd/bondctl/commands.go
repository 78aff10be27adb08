package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/cmd/internal/prompt"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/api"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/auth"
)

const envJWTSecret = "BONDD_JWT_SECRET"

func runJWT(_ context.Context, args []string, stdout io.Writer) error {
	fs, _ := newFlagSet("jwt")
	subject := fs.String("sub", "", "caller address the token is issued to")
	issuer := fs.String("issuer", "bondd", "token issuer")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	caller, err := api.ParseAddress(*subject)
	if err != nil {
		return fmt.Errorf("-sub: %w", err)
	}
	secret, err := prompt.NewSecret(envJWTSecret, "JWT signing secret").Get()
	if err != nil {
		return err
	}
	token, err := auth.Issue([]byte(secret), *issuer, caller, *ttl, time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}

func runToken(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: bondctl token <register|mint|approve> [flags]")
	}
	action, rest := args[0], args[1:]
	fs, conn := newFlagSet("token " + action)
	symbol := fs.String("symbol", "", "token symbol (register)")
	name := fs.String("name", "", "token name (register)")
	decimals := fs.Uint("decimals", 18, "token decimals (register)")
	minter := fs.String("minter", "", "minter address, defaults to the caller (register)")
	token := fs.String("token", "", "token address (mint, approve)")
	to := fs.String("to", "", "recipient (mint)")
	spender := fs.String("spender", "", "spender, defaults to the settlement vault (approve)")
	amount := fs.String("amount", "", "amount in base units; \"max\" for an unlimited approval")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	switch action {
	case "register":
		if err := requireFlag("symbol", *symbol); err != nil {
			return err
		}
		if *decimals > 255 {
			return errors.New("-decimals must fit in a byte")
		}
		out, err := c.RegisterToken(ctx, api.RegisterTokenRequest{Symbol: *symbol, Name: *name, Decimals: uint8(*decimals), Minter: *minter})
		if err != nil {
			return err
		}
		return printJSON(stdout, out)
	case "mint":
		if err := requireFlag("token", *token); err != nil {
			return err
		}
		out, err := c.MintToken(ctx, *token, api.TokenMintRequest{To: *to, Amount: *amount})
		if err != nil {
			return err
		}
		return printJSON(stdout, out)
	case "approve":
		if err := requireFlag("token", *token); err != nil {
			return err
		}
		out, err := c.ApproveToken(ctx, *token, api.TokenApproveRequest{Spender: *spender, Amount: *amount})
		if err != nil {
			return err
		}
		return printJSON(stdout, out)
	default:
		return fmt.Errorf("unknown token action %q", action)
	}
}

func runAddBullet(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("add-bullet")
	supply := fs.String("supply", "", "initial share supply minted to the administrator")
	token := fs.String("token", "", "settlement token address")
	unitValue := fs.String("unit-value", "", "nominal value per share in token base units")
	uri := fs.String("uri", "", "metadata URI")
	start := fs.String("start", "", "start time (unix seconds or RFC 3339)")
	end := fs.String("end", "", "end time (unix seconds or RFC 3339)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	startTs, err := parseTimestamp(*start)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	endTs, err := parseTimestamp(*end)
	if err != nil {
		return fmt.Errorf("-end: %w", err)
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	out, err := c.CreateBullet(ctx, api.CreateBulletRequest{
		InitialSupply: *supply,
		Token:         *token,
		UnitValue:     *unitValue,
		URI:           *uri,
		StartTs:       startTs,
		EndTs:         endTs,
	})
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

func runAddCoupon(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("add-coupon")
	token := fs.String("token", "", "settlement token address")
	principal := fs.String("principal", "", "principal per share in token base units")
	couponRate := fs.String("coupon-rate", "", "interest per share per second until the end time")
	overdueRate := fs.String("overdue-rate", "", "interest per share per second after the end time")
	uri := fs.String("uri", "", "metadata URI")
	start := fs.String("start", "", "start time (unix seconds or RFC 3339)")
	end := fs.String("end", "", "end time (unix seconds or RFC 3339)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	startTs, err := parseTimestamp(*start)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	endTs, err := parseTimestamp(*end)
	if err != nil {
		return fmt.Errorf("-end: %w", err)
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	out, err := c.CreateCoupon(ctx, api.CreateCouponRequest{
		Token:                *token,
		PrincipalPerUnit:     *principal,
		CouponRatePerSecond:  *couponRate,
		OverdueRatePerSecond: *overdueRate,
		URI:                  *uri,
		StartTs:              startTs,
		EndTs:                endTs,
	})
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

type batchMinter interface {
	MintBatch(ctx context.Context, id uint64, req api.MintBatchRequest) (*api.Holders, error)
}

func runMintBatch(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("mint-batch")
	manifestPath := fs.String("manifest", "", "YAML manifest of holders and amounts")
	product := fs.Int64("product", -1, "product id, overrides the manifest")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag("manifest", *manifestPath); err != nil {
		return err
	}
	manifest, err := LoadManifest(*manifestPath)
	if err != nil {
		return err
	}
	id, err := manifest.ProductID(*product)
	if err != nil {
		return err
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	return mintBatch(ctx, c, manifest, id, prompt.NewConfirmer(*yes), stdout)
}

func mintBatch(ctx context.Context, minter batchMinter, manifest *Manifest, id uint64, confirm *prompt.Confirmer, stdout io.Writer) error {
	fmt.Fprintf(stdout, "Mint %s shares of product %d to %d holders\n", manifest.Total(), id, len(manifest.Entries))
	ok, err := confirm.Confirm("Proceed?")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(stdout, "Aborted.")
		return nil
	}
	out, err := minter.MintBatch(ctx, id, manifest.MintRequest())
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

type shareTransferer interface {
	Transfer(ctx context.Context, id uint64, req api.TransferRequest) (*api.Balance, error)
}

func runAirdrop(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("airdrop")
	manifestPath := fs.String("manifest", "", "YAML manifest of holders and amounts")
	product := fs.Int64("product", -1, "product id, overrides the manifest")
	from := fs.String("from", "", "share owner, defaults to the authenticated caller")
	yes := fs.Bool("yes", false, "send every entry without prompting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag("manifest", *manifestPath); err != nil {
		return err
	}
	manifest, err := LoadManifest(*manifestPath)
	if err != nil {
		return err
	}
	id, err := manifest.ProductID(*product)
	if err != nil {
		return err
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	return airdrop(ctx, c, manifest, id, *from, prompt.NewConfirmer(*yes), stdout)
}

// airdrop transfers each entry separately so the operator can skip any of
// them. A failed transfer stops the run; earlier transfers stay settled.
func airdrop(ctx context.Context, transferer shareTransferer, manifest *Manifest, id uint64, from string, confirm *prompt.Confirmer, stdout io.Writer) error {
	sent := 0
	for i, entry := range manifest.Entries {
		fmt.Fprintf(stdout, "[%d/%d] send %s shares of product %d to %s\n", i+1, len(manifest.Entries), entry.Amount, id, entry.Holder)
		ok, err := confirm.Confirm("Proceed?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "skipped")
			continue
		}
		balance, err := transferer.Transfer(ctx, id, api.TransferRequest{From: from, To: entry.Holder, Amount: entry.Amount})
		if err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, entry.Holder, err)
		}
		sent++
		fmt.Fprintf(stdout, "sent; sender balance %s\n", balance.Balance)
	}
	fmt.Fprintf(stdout, "%d of %d transfers sent\n", sent, len(manifest.Entries))
	return nil
}

func runRepay(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("repay")
	product := fs.Int64("product", -1, "product id")
	finalValue := fs.String("final-value", "", "settlement value per share (bullet only)")
	amount := fs.String("amount", "", "total amount pulled into the vault")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := requireProduct(*product)
	if err != nil {
		return err
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	out, err := c.Repay(ctx, id, api.RepayRequest{FinalValue: *finalValue, Amount: *amount})
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

func runDeposit(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("deposit")
	product := fs.Int64("product", -1, "product id")
	amount := fs.String("amount", "", "interest amount in token base units")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := requireProduct(*product)
	if err != nil {
		return err
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	out, err := c.Deposit(ctx, id, *amount)
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

func runClaim(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("claim")
	product := fs.Int64("product", -1, "product id")
	holder := fs.String("holder", "", "holder address")
	preview := fs.Bool("preview", false, "show the payout without settling")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := requireProduct(*product)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(*holder) {
		return fmt.Errorf("-holder must be a hex address")
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	var out *api.Claim
	if *preview {
		out, err = c.Claimable(ctx, id, *holder)
	} else {
		out, err = c.Claim(ctx, id, *holder)
	}
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

func runResidue(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("residue")
	product := fs.Int64("product", -1, "product id")
	amount := fs.String("amount", "", "amount to withdraw (coupon); bullet withdraws the whole vault balance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := requireProduct(*product)
	if err != nil {
		return err
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	out, err := c.WithdrawResidue(ctx, id, *amount)
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

func runProduct(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("product")
	product := fs.Int64("product", -1, "product id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := requireProduct(*product)
	if err != nil {
		return err
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	info, err := c.Product(ctx, id)
	if err != nil {
		return err
	}
	holders, err := c.Holders(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(stdout, struct {
		Product *api.Product `json:"product"`
		Holders *api.Holders `json:"holders"`
	}{info, holders})
}

func runExport(ctx context.Context, args []string, stdout io.Writer) error {
	fs, conn := newFlagSet("export")
	product := fs.Int64("product", -1, "product id")
	format := fs.String("format", "csv", "csv or parquet")
	out := fs.String("out", "", "output file, defaults to stdout for csv")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := requireProduct(*product)
	if err != nil {
		return err
	}
	normalized := strings.ToLower(strings.TrimSpace(*format))
	if normalized == "parquet" && *out == "" {
		return errors.New("-out is required for parquet exports")
	}
	c, err := conn.client()
	if err != nil {
		return err
	}
	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return c.Report(ctx, id, normalized, w)
}
