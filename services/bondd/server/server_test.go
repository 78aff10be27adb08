package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/elysia-dev/elysia-korea-pf/core"
	"github.com/elysia-dev/elysia-korea-pf/core/events"
	"github.com/elysia-dev/elysia-korea-pf/native/bond"
	"github.com/elysia-dev/elysia-korea-pf/native/erc20"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/api"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/auth"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/indexer"
	bondmw "github.com/elysia-dev/elysia-korea-pf/services/bondd/middleware"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/models"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/stream"
	"github.com/elysia-dev/elysia-korea-pf/storage"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	admin      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	holder     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

type harness struct {
	t       *testing.T
	handler http.Handler
	node    *core.Node
	token   common.Address
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := setupTestDB(t)
	idx, err := indexer.New(db, nil)
	require.NoError(t, err)
	hub := stream.NewHub()
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		Admin:   admin,
		Emitter: events.Multi{idx, hub},
	})
	require.NoError(t, err)
	tok, err := node.RegisterToken(admin, "usdc", "USD Coin", 6, admin)
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(auth.Options{Secret: testSecret, Issuer: "bondd"})
	require.NoError(t, err)
	srv, err := New(Config{
		Node:         node,
		DB:           db,
		Indexer:      idx,
		Hub:          hub,
		Verifier:     verifier,
		ClaimLimiter: bondmw.NewRateLimiter("claim", 100, 100),
	})
	require.NoError(t, err)
	return &harness{t: t, handler: srv.Handler(), node: node, token: tok.Address}
}

func bearer(t *testing.T, caller common.Address) string {
	t.Helper()
	token, err := auth.Issue(testSecret, "bondd", caller, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

func (h *harness) do(method, path string, as *common.Address, body string, headers map[string]string) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", bearer(h.t, *as))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// createBullet issues a product and funds the admin's settlement balance with
// an unlimited vault allowance.
func (h *harness) createBullet(supply string, funds string) api.Product {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/v1/products/bullet", &admin,
		fmt.Sprintf(`{"initialSupply":%q,"token":%q,"unitValue":"100","uri":"ipfs://a","startTs":1000,"endTs":2000}`, supply, h.token.Hex()), nil)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decode[api.Product](h.t, rec)

	rec = h.do(http.MethodPost, "/v1/tokens/"+h.token.Hex()+"/mint", &admin, fmt.Sprintf(`{"to":%q,"amount":%q}`, admin.Hex(), funds), nil)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.do(http.MethodPost, "/v1/tokens/"+h.token.Hex()+"/approve", &admin, `{"amount":"max"}`, nil)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return product
}

func TestBulletLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	product := h.createBullet("1000", "115000")
	require.Equal(t, "bullet", product.Kind)
	base := fmt.Sprintf("/v1/products/%d", product.ID)

	rec := h.do(http.MethodPost, base+"/transfer", &admin, fmt.Sprintf(`{"to":%q,"amount":"33"}`, holder.Hex()), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "967", decode[api.Balance](t, rec).Balance)

	rec = h.do(http.MethodPost, base+"/claim/"+holder.Hex(), nil, "", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, base+"/repay", &admin, `{"finalValue":"115","amount":"115000"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, decode[api.Product](t, rec).Repaid)

	rec = h.do(http.MethodGet, base+"/claimable/"+holder.Hex(), nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3795", decode[api.Claim](t, rec).Payout)

	rec = h.do(http.MethodPost, base+"/claim/"+holder.Hex(), nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "3795", decode[api.Claim](t, rec).Payout)

	rec = h.do(http.MethodPost, base+"/claim/"+holder.Hex(), nil, "", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodGet, "/v1/tokens/"+h.token.Hex()+"/balances/"+holder.Hex(), nil, "", nil)
	require.Equal(t, "3795", decode[api.Balance](t, rec).Balance)

	rec = h.do(http.MethodGet, "/v1/holders/"+holder.Hex()+"/claims", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	claims := decode[[]indexer.Record](t, rec)
	require.Len(t, claims, 1)
	require.Equal(t, "3795", claims[0].Attributes["amount"])

	rec = h.do(http.MethodGet, base+"/events", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]indexer.Record](t, rec)
	require.NotEmpty(t, history)
	require.Equal(t, bond.EventTypeProductCreated, history[0].Type)
	require.Equal(t, bond.EventTypeClaimed, history[len(history)-1].Type)

	rec = h.do(http.MethodGet, base+"/holders", nil, "", nil)
	holders := decode[api.Holders](t, rec)
	require.Equal(t, "967", holders.TotalSupply)
	require.Len(t, holders.Holders, 1)

	rec = h.do(http.MethodGet, base+"/report?format=csv", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "111205", rows[1][7])

	rec = h.do(http.MethodPost, base+"/residue", &admin, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "111205", decode[api.Paid](t, rec).Amount)
}

func TestAuthAndAuthorization(t *testing.T) {
	h := newHarness(t)
	body := fmt.Sprintf(`{"initialSupply":"1","token":%q,"unitValue":"1","startTs":0,"endTs":1}`, h.token.Hex())

	rec := h.do(http.MethodPost, "/v1/products/bullet", nil, body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/v1/products/bullet", &holder, body, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/v1/products/bullet", &admin, `{"initialSupply":"-1"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/v1/products/bullet", &admin, `{"unexpected":true}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/v1/products/99", nil, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/v1/products/abc", nil, "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/healthz", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFailedPayoutReturnsPaymentRequired(t *testing.T) {
	h := newHarness(t)
	product := h.createBullet("10", "1")
	base := fmt.Sprintf("/v1/products/%d", product.ID)

	rec := h.do(http.MethodPost, base+"/repay", &admin, `{"finalValue":"100","amount":"1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, base+"/claim/"+admin.Hex(), nil, "", nil)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	bal, err := h.node.BalanceOf(product.ID, admin)
	require.NoError(t, err)
	require.Equal(t, int64(10), bal.Int64())
}

func TestRepayIdempotency(t *testing.T) {
	h := newHarness(t)
	product := h.createBullet("10", "10000")
	path := fmt.Sprintf("/v1/products/%d/repay", product.ID)
	key := map[string]string{bondmw.HeaderIdempotencyKey: "repay-" + uuid.NewString()}

	first := h.do(http.MethodPost, path, &admin, `{"finalValue":"100","amount":"1000"}`, key)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	replay := h.do(http.MethodPost, path, &admin, `{"finalValue":"100","amount":"1000"}`, key)
	require.Equal(t, http.StatusOK, replay.Code)
	require.Equal(t, "true", replay.Header().Get(bondmw.HeaderReplayed))
	require.JSONEq(t, first.Body.String(), replay.Body.String())

	mismatch := h.do(http.MethodPost, path, &admin, `{"finalValue":"200","amount":"2000"}`, key)
	require.Equal(t, http.StatusUnprocessableEntity, mismatch.Code)

	again := h.do(http.MethodPost, path, &admin, `{"finalValue":"100","amount":"1000"}`, nil)
	require.Equal(t, http.StatusConflict, again.Code)

	vault, err := h.node.TokenBalance(h.token, h.node.Vault())
	require.NoError(t, err)
	require.Equal(t, int64(1000), vault.Int64())
}

func TestCouponOverHTTP(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/v1/products/coupon", &admin, fmt.Sprintf(
		`{"token":%q,"principalPerUnit":"1000","couponRatePerSecond":"0","overdueRatePerSecond":"0","uri":"","startTs":0,"endTs":1}`, h.token.Hex()), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decode[api.Product](t, rec)
	require.Equal(t, "coupon", product.Kind)
	base := fmt.Sprintf("/v1/products/%d", product.ID)

	rec = h.do(http.MethodPost, base+"/mint", &admin, fmt.Sprintf(`{"holders":[%q],"amounts":["2"]}`, holder.Hex()), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, base+"/mint", &admin, fmt.Sprintf(`{"holders":[%q],"amounts":[]}`, holder.Hex()), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, h.node.MintToken(admin, h.token, admin, bigInt(5000)))
	require.NoError(t, h.node.ApproveToken(admin, h.token, h.node.Vault(), erc20.MaxAllowance))

	rec = h.do(http.MethodPost, base+"/deposit", &admin, `{"amount":"500"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.do(http.MethodPost, base+"/repay", &admin, `{"amount":"2000"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, base+"/claim/"+holder.Hex(), nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	claim := decode[api.Claim](t, rec)
	require.Equal(t, "2000", claim.Principal)
	require.Equal(t, "2000", claim.Payout)

	rec = h.do(http.MethodPost, base+"/residue", &admin, `{"amount":"500"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "500", decode[api.Paid](t, rec).Amount)
}

func TestApprovalEndpoints(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/v1/approvals", &holder, fmt.Sprintf(`{"operator":%q,"approved":true}`, admin.Hex()), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/v1/approvals/"+holder.Hex()+"/"+admin.Hex(), nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[api.Approval](t, rec).Approved)

	rec = h.do(http.MethodPost, "/v1/approvals", &holder, fmt.Sprintf(`{"operator":%q,"approved":true}`, holder.Hex()), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	rejected := fmt.Errorf("%w: %w", bond.ErrTransferRejected, erc20.ErrInsufficientBalance)
	cases := []struct {
		err  error
		want int
	}{
		{bond.ErrUnauthorized, http.StatusForbidden},
		{bond.ErrNotApproved, http.StatusForbidden},
		{bond.ErrUnknownProduct, http.StatusNotFound},
		{erc20.ErrUnknownToken, http.StatusNotFound},
		{bond.ErrAlreadyRepaid, http.StatusConflict},
		{bond.ErrNotRepaid, http.StatusConflict},
		{bond.ErrZeroBalanceClaim, http.StatusConflict},
		{bond.ErrLengthMismatch, http.StatusBadRequest},
		{bond.ErrInsufficientBalance, http.StatusBadRequest},
		{bond.ErrOverflow, http.StatusBadRequest},
		{rejected, http.StatusPaymentRequired},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }
