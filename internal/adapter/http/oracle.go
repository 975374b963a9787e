package http

import (
	"context"
	"net/http"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
)

// WithOracle registers the request, callback, escrow and configuration
// routes for c. The caller is identified by the X-Caller header.
func WithOracle(c *oracle.Contract) Option {
	return func(s *Server) {
		h := &oracleHandlers{server: s, contract: c}
		s.mux.HandleFunc("POST /api/v1/requests", h.createRequest)
		s.mux.HandleFunc("GET /api/v1/requests", h.listRequests)
		s.mux.HandleFunc("GET /api/v1/requests/{id}", h.getRequest)
		s.mux.HandleFunc("POST /api/v1/fulfillments", h.fulfill)
		s.mux.HandleFunc("GET /api/v1/escrow", h.escrow)
		s.mux.HandleFunc("POST /api/v1/escrow/deposit", h.deposit)
		s.mux.HandleFunc("POST /api/v1/escrow/withdraw", h.withdraw)
		s.mux.HandleFunc("GET /api/v1/config", h.config)
		s.mux.HandleFunc("PUT /api/v1/config/callback-authority", h.setCallbackAuthority)
		s.mux.HandleFunc("PUT /api/v1/config/task-id", h.setTaskID)
		s.mux.HandleFunc("PUT /api/v1/config/fee", h.setFee)
		s.mux.HandleFunc("PUT /api/v1/config/owner", h.transferOwnership)
	}
}

type oracleHandlers struct {
	server   *Server
	contract *oracle.Contract
}

func (h *oracleHandlers) createRequest(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	var body CreateRequestBody
	if err := decodeBody(r, &body); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	req, err := h.contract.Request(r.Context(), caller, body.City)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRequestView(req))
}

func (h *oracleHandlers) listRequests(w http.ResponseWriter, _ *http.Request) {
	pending := h.contract.PendingRequests()
	out := make([]RequestView, len(pending))
	for i, req := range pending {
		out[i] = newRequestView(req)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *oracleHandlers) getRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseRequestID(r.PathValue("id"))
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	req, ok := h.contract.Pending(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: domain.ErrUnknownRequest.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newRequestView(req))
}

func (h *oracleHandlers) fulfill(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	var body FulfillBody
	if err := decodeBody(r, &body); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	id, err := parseRequestID(body.RequestID)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	err = h.contract.Fulfill(r.Context(), caller, id, body.City, domain.Temperature(*body.Temperature), body.Description, *body.Timestamp)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *oracleHandlers) escrow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, EscrowView{Balance: domain.FormatTokenAmount(h.contract.Balance())})
}

func (h *oracleHandlers) deposit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	var body AmountBody
	if err := decodeBody(r, &body); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	amount, err := domain.ParseTokenAmount(body.Amount)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	if err := h.contract.Deposit(r.Context(), caller, amount); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EscrowView{Balance: domain.FormatTokenAmount(h.contract.Balance())})
}

func (h *oracleHandlers) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	var body AmountBody
	if err := decodeBody(r, &body); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	amount, err := domain.ParseTokenAmount(body.Amount)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	withdrawn, err := h.contract.Withdraw(r.Context(), caller, amount)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WithdrawView{
		Amount:  domain.FormatTokenAmount(withdrawn),
		Balance: domain.FormatTokenAmount(h.contract.Balance()),
	})
}

func (h *oracleHandlers) config(w http.ResponseWriter, _ *http.Request) {
	h.writeConfig(w)
}

func (h *oracleHandlers) setCallbackAuthority(w http.ResponseWriter, r *http.Request) {
	h.setAddress(w, r, h.contract.SetCallbackAuthority)
}

func (h *oracleHandlers) transferOwnership(w http.ResponseWriter, r *http.Request) {
	h.setAddress(w, r, h.contract.TransferOwnership)
}

func (h *oracleHandlers) setTaskID(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	var body TaskIDBody
	if err := decodeBody(r, &body); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	taskID, err := domain.TaskIDFromString(body.TaskID)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	if err := h.contract.SetTaskID(r.Context(), caller, taskID); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	h.writeConfig(w)
}

func (h *oracleHandlers) setFee(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	var body FeeBody
	if err := decodeBody(r, &body); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	fee, err := domain.ParseTokenAmount(body.Fee)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	if err := h.contract.SetFee(r.Context(), caller, fee); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	h.writeConfig(w)
}

func (h *oracleHandlers) setAddress(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, caller, addr common.Address) error) {
	caller, err := callerFrom(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	var body AddressBody
	if err := decodeBody(r, &body); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	if err := set(r.Context(), caller, common.HexToAddress(body.Address)); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	h.writeConfig(w)
}

func (h *oracleHandlers) writeConfig(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, newConfigView(h.contract.Address(), h.contract.Owner(), h.contract.Config()))
}
