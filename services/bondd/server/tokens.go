package server

import (
	"net/http"

	"github.com/elysia-dev/elysia-korea-pf/services/bondd/api"
)

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.node.Tokens()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Token, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, api.FromToken(t))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	token, ok := s.pathAddress(w, r, "token")
	if !ok {
		return
	}
	meta, err := s.node.Token(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromToken(meta))
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	token, ok := s.pathAddress(w, r, "token")
	if !ok {
		return
	}
	account, ok := s.pathAddress(w, r, "account")
	if !ok {
		return
	}
	balance, err := s.node.TokenBalance(token, account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Balance{Account: account.Hex(), Balance: api.Amount(balance)})
}

func (s *Server) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req api.RegisterTokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	minter := caller
	if req.Minter != "" {
		parsed, err := api.ParseAddress(req.Minter)
		if err != nil {
			s.badRequest(w, "minter: "+err.Error())
			return
		}
		minter = parsed
	}
	token, err := s.node.RegisterToken(caller, req.Symbol, req.Name, req.Decimals, minter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromToken(token))
}

// handleTokenApprove sets the caller's allowance. An empty spender approves
// the settlement vault, which is what repay and deposit pull through.
func (s *Server) handleTokenApprove(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.caller(w, r)
	if !ok {
		return
	}
	token, ok := s.pathAddress(w, r, "token")
	if !ok {
		return
	}
	var req api.TokenApproveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	spender := s.node.Vault()
	if req.Spender != "" {
		parsed, err := api.ParseAddress(req.Spender)
		if err != nil {
			s.badRequest(w, "spender: "+err.Error())
			return
		}
		spender = parsed
	}
	amount, err := api.ParseAmount(req.Amount)
	if err != nil {
		s.badRequest(w, "amount: "+err.Error())
		return
	}
	if err := s.node.ApproveToken(owner, token, spender, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	allowance, err := s.node.TokenAllowance(token, owner, spender)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Balance{Account: spender.Hex(), Balance: api.Amount(allowance)})
}

func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	token, ok := s.pathAddress(w, r, "token")
	if !ok {
		return
	}
	var req api.TokenMintRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	to, err := api.ParseAddress(req.To)
	if err != nil {
		s.badRequest(w, "to: "+err.Error())
		return
	}
	amount, err := api.ParseAmount(req.Amount)
	if err != nil {
		s.badRequest(w, "amount: "+err.Error())
		return
	}
	if err := s.node.MintToken(caller, token, to, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.node.TokenBalance(token, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Balance{Account: to.Hex(), Balance: api.Amount(balance)})
}
