package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/elysia-dev/elysia-korea-pf/services/bondd/client"
)

const (
	envURL   = "BONDCTL_URL"
	envToken = "BONDCTL_TOKEN"

	defaultURL = "http://localhost:8080"
)

type command struct {
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"jwt":        {"issue a bearer token for an address", runJWT},
	"token":      {"register, mint or approve a settlement token", runToken},
	"add-bullet": {"create a bullet product", runAddBullet},
	"add-coupon": {"create a coupon product", runAddCoupon},
	"mint-batch": {"mint shares to every holder in a manifest", runMintBatch},
	"airdrop":    {"transfer shares to each manifest holder after confirmation", runAirdrop},
	"repay":      {"fund a product's final settlement", runRepay},
	"deposit":    {"deposit interim coupon interest", runDeposit},
	"claim":      {"settle a holder's claim", runClaim},
	"residue":    {"withdraw unclaimed settlement funds", runResidue},
	"product":    {"show a product and its holders", runProduct},
	"export":     {"write a holder snapshot as csv or parquet", runExport},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.run(ctx, os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: bondctl <command> [flags]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-11s %s\n", name, commands[name].summary)
	}
}

// connFlags are shared by every command that talks to bondd.
type connFlags struct {
	url   *string
	token *string
}

func newFlagSet(name string) (*flag.FlagSet, connFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	conn := connFlags{
		url:   fs.String("url", envOr(envURL, defaultURL), "bondd base URL (env "+envURL+")"),
		token: fs.String("auth", os.Getenv(envToken), "bearer token (env "+envToken+")"),
	}
	return fs, conn
}

func (c connFlags) client() (*client.Client, error) {
	return client.New(*c.url, *c.token)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("-%s is required", name)
	}
	return nil
}

func requireProduct(id int64) (uint64, error) {
	if id < 0 {
		return 0, errors.New("-product is required")
	}
	return uint64(id), nil
}

// parseTimestamp accepts unix seconds or RFC 3339.
func parseTimestamp(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, errors.New("timestamp required")
	}
	if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return v, nil
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: use unix seconds or RFC 3339", raw)
	}
	return t.Unix(), nil
}
