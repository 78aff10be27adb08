package server

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/elysia-dev/elysia-korea-pf/services/bondd/api"
)

func parseAmounts(raw []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(raw))
	for i, v := range raw {
		amount, err := api.ParseAmount(v)
		if err != nil {
			return nil, fmt.Errorf("amounts[%d]: %w", i, err)
		}
		out[i] = amount
	}
	return out, nil
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	var req api.RepayRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	finalValue, err := api.ParseOptionalAmount(req.FinalValue)
	if err != nil {
		s.badRequest(w, "finalValue: "+err.Error())
		return
	}
	amount, err := api.ParseAmount(req.Amount)
	if err != nil {
		s.badRequest(w, "amount: "+err.Error())
		return
	}
	product, err := s.node.Repay(caller, id, finalValue, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProduct(product))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	var req api.AmountRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	amount, err := api.ParseAmount(req.Amount)
	if err != nil {
		s.badRequest(w, "amount: "+err.Error())
		return
	}
	if err := s.node.DepositInterest(caller, id, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Paid{ProductID: id, Amount: api.Amount(amount)})
}

func (s *Server) handleResidue(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	var req api.AmountRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			s.badRequest(w, err.Error())
			return
		}
	}
	amount, err := api.ParseOptionalAmount(req.Amount)
	if err != nil {
		s.badRequest(w, "amount: "+err.Error())
		return
	}
	paid, err := s.node.WithdrawResidue(caller, id, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Paid{ProductID: id, Amount: api.Amount(paid)})
}

// handleClaim settles on behalf of the holder in the path. Anyone may call
// it; the payout always goes to the holder.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	holder, ok := s.pathAddress(w, r, "holder")
	if !ok {
		return
	}
	claim, err := s.node.Claim(holder, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromClaim(claim))
}

func (s *Server) handleProductEvents(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, api.Error{Error: "indexer disabled"})
		return
	}
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	after, limit, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	records, err := s.indexer.ProductEvents(r.Context(), id, after, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHolderClaims(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, api.Error{Error: "indexer disabled"})
		return
	}
	holder, ok := s.pathAddress(w, r, "holder")
	if !ok {
		return
	}
	_, limit, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	records, err := s.indexer.HolderClaims(r.Context(), holder, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) pageParams(w http.ResponseWriter, r *http.Request) (int64, int, bool) {
	query := r.URL.Query()
	var after int64
	if raw := query.Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			s.badRequest(w, "invalid after cursor")
			return 0, 0, false
		}
		after = v
	}
	var limit int
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			s.badRequest(w, "invalid limit")
			return 0, 0, false
		}
		limit = v
	}
	return after, limit, true
}
