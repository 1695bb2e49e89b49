package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/xchain-orchestrator/pkg/app/errors"
	apphttp "github.com/chainsafe/xchain-orchestrator/pkg/app/http"
	"github.com/chainsafe/xchain-orchestrator/pkg/auth"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// maxBodySize caps request bodies at 1MB
const maxBodySize = 1 << 20

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the transfer endpoints on r. Callers must be
// authenticated by auth.Middleware before these handlers run.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/transfers", apphttp.HandleError(h.accept))
	r.Get("/transfers", apphttp.HandleError(h.list))
	r.Get("/transfers/{id}", apphttp.HandleError(h.get))
	r.Post("/transfers/{id}/cancel", apphttp.HandleError(h.cancel))
	r.With(auth.RequireOperator).Post("/transfers/{id}/retry", apphttp.HandleError(h.retry))
	r.Post("/quotes", apphttp.HandleError(h.quote))
}

func principal(r *http.Request) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return nil, apperrors.UnAuthorizedError(nil, "authentication required")
	}
	return p, nil
}

func decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

func (h *HTTP) accept(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	var req AcceptRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	req.OwnerID = p.Subject

	resp, err := h.service.Accept(r.Context(), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusCreated, resp)
	return nil
}

// load fetches the record and hides it from callers that may not see it.
func (h *HTTP) load(r *http.Request, p *auth.Principal) (*StatusResponse, error) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(resp.OwnerID) {
		return nil, apperrors.ResourceNotFoundError(nil, "transfer not found")
	}
	return resp, nil
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	resp, err := h.load(r, p)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) list(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	q := r.URL.Query()
	req := &ListRequest{
		OwnerID: q.Get("owner"),
		Status:  transfer.Status(q.Get("status")),
	}
	if req.Limit, err = intParam(q.Get("limit")); err != nil {
		return apperrors.BadRequestError(err, "invalid limit")
	}
	if req.Offset, err = intParam(q.Get("offset")); err != nil {
		return apperrors.BadRequestError(err, "invalid offset")
	}

	if !p.IsOperator() {
		if req.OwnerID != "" && req.OwnerID != p.Subject {
			return apperrors.ForbiddenError(nil, "cannot list another owner's transfers")
		}
		req.OwnerID = p.Subject
	}

	resp, err := h.service.List(r.Context(), req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"transfers": resp})
	return nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *HTTP) cancel(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	current, err := h.load(r, p)
	if err != nil {
		return err
	}
	resp, err := h.service.Cancel(r.Context(), current.ID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) retry(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) quote(w http.ResponseWriter, r *http.Request) error {
	var req QuoteRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	resp, err := h.service.Quote(r.Context(), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}
