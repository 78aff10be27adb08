package server

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/services/bondd/api"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/report"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.node.Products()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Product, 0, len(products))
	for _, p := range products {
		out = append(out, api.FromProduct(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	product, err := s.node.Product(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProduct(product))
}

func (s *Server) handleHolders(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	supply, err := s.node.TotalSupply(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	holdings, err := s.node.Holdings(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := api.Holders{ProductID: id, TotalSupply: api.Amount(supply), Holders: make([]api.Holding, 0, len(holdings))}
	for _, h := range holdings {
		if h.Balance == nil || h.Balance.Sign() == 0 {
			continue
		}
		out.Holders = append(out.Holders, api.Holding{Holder: h.Holder.Hex(), Balance: api.Amount(h.Balance)})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	holder, ok := s.pathAddress(w, r, "holder")
	if !ok {
		return
	}
	balance, err := s.node.BalanceOf(id, holder)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Balance{Account: holder.Hex(), Balance: api.Amount(balance)})
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	holder, ok := s.pathAddress(w, r, "holder")
	if !ok {
		return
	}
	claim, err := s.node.Claimable(holder, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromClaim(claim))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	rows, err := report.Snapshot(s.node, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contentType := "text/csv"
	if format == report.FormatParquet {
		contentType = "application/vnd.apache.parquet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"product-"+strconv.FormatUint(id, 10)+"."+string(format)+"\"")
	w.WriteHeader(http.StatusOK)
	if err := report.Write(w, format, rows); err != nil {
		s.logger.Error("write report", "product", id, "error", err)
	}
}

func (s *Server) handleCreateBullet(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req api.CreateBulletRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	supply, err := api.ParseAmount(req.InitialSupply)
	if err != nil {
		s.badRequest(w, "initialSupply: "+err.Error())
		return
	}
	unitValue, err := api.ParseAmount(req.UnitValue)
	if err != nil {
		s.badRequest(w, "unitValue: "+err.Error())
		return
	}
	token, err := api.ParseAddress(req.Token)
	if err != nil {
		s.badRequest(w, "token: "+err.Error())
		return
	}
	product, err := s.node.AddBulletProduct(caller, supply, token, unitValue, req.URI, req.StartTs, req.EndTs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromProduct(product))
}

func (s *Server) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req api.CreateCouponRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	token, err := api.ParseAddress(req.Token)
	if err != nil {
		s.badRequest(w, "token: "+err.Error())
		return
	}
	principal, err := api.ParseAmount(req.PrincipalPerUnit)
	if err != nil {
		s.badRequest(w, "principalPerUnit: "+err.Error())
		return
	}
	couponRate, err := api.ParseAmount(req.CouponRatePerSecond)
	if err != nil {
		s.badRequest(w, "couponRatePerSecond: "+err.Error())
		return
	}
	overdueRate, err := api.ParseAmount(req.OverdueRatePerSecond)
	if err != nil {
		s.badRequest(w, "overdueRatePerSecond: "+err.Error())
		return
	}
	product, err := s.node.AddCouponProduct(caller, token, principal, couponRate, overdueRate, req.URI, req.StartTs, req.EndTs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromProduct(product))
}

func (s *Server) handleSetURI(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	var req api.SetURIRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.node.SetURI(caller, id, req.URI); err != nil {
		s.writeError(w, r, err)
		return
	}
	product, err := s.node.Product(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProduct(product))
}

func (s *Server) handleMintBatch(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	var req api.MintBatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	holders := make([]common.Address, len(req.Holders))
	for i, raw := range req.Holders {
		addr, err := api.ParseAddress(raw)
		if err != nil {
			s.badRequest(w, "holders["+strconv.Itoa(i)+"]: "+err.Error())
			return
		}
		holders[i] = addr
	}
	amounts, err := parseAmounts(req.Amounts)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.node.MintBatch(caller, id, holders, amounts); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleHolders(w, r)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	operator, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	var req api.TransferRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	from := operator
	if req.From != "" {
		parsed, err := api.ParseAddress(req.From)
		if err != nil {
			s.badRequest(w, "from: "+err.Error())
			return
		}
		from = parsed
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
	if err := s.node.SafeTransferFrom(operator, from, to, id, amount, []byte(req.Data)); err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.node.BalanceOf(id, from)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Balance{Account: from.Hex(), Balance: api.Amount(balance)})
}

func (s *Server) handleSetApproval(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req api.ApprovalRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	operator, err := api.ParseAddress(req.Operator)
	if err != nil {
		s.badRequest(w, "operator: "+err.Error())
		return
	}
	if err := s.node.SetApprovalForAll(owner, operator, req.Approved); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Approval{Owner: owner.Hex(), Operator: operator.Hex(), Approved: req.Approved})
}

func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.pathAddress(w, r, "owner")
	if !ok {
		return
	}
	operator, ok := s.pathAddress(w, r, "operator")
	if !ok {
		return
	}
	approved, err := s.node.IsApprovedForAll(owner, operator)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Approval{Owner: owner.Hex(), Operator: operator.Hex(), Approved: approved})
}
