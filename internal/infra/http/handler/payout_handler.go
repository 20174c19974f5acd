package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/infra/http/middleware"
	"github.com/GrowthSense/buntuanchorastralia/internal/usecase"
	"github.com/rs/zerolog/log"
)

// PayoutHandler exposes the agent-facing payout surface.
type PayoutHandler struct {
	listUseCase     *usecase.ListPayoutsUseCase
	completeUseCase *usecase.CompletePayoutUseCase
	approveUseCase  *usecase.ApprovePayoutUseCase
}

func NewPayoutHandler(
	listUC *usecase.ListPayoutsUseCase,
	completeUC *usecase.CompletePayoutUseCase,
	approveUC *usecase.ApprovePayoutUseCase,
) *PayoutHandler {
	return &PayoutHandler{
		listUseCase:     listUC,
		completeUseCase: completeUC,
		approveUseCase:  approveUC,
	}
}

// agentScope resolves the agent filter for list endpoints: an explicit
// agent_id query wins, otherwise the authenticated actor scopes the view.
func agentScope(r *http.Request) string {
	if id := r.URL.Query().Get("agent_id"); id != "" {
		return id
	}
	return middleware.Actor(r.Context())
}

func (h *PayoutHandler) ListReady(w http.ResponseWriter, r *http.Request) {
	views, err := h.listUseCase.Ready(r.Context(), agentScope(r))
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"payouts": views})
}

func (h *PayoutHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	views, err := h.listUseCase.All(r.Context(), agentScope(r))
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"payouts": views})
}

func (h *PayoutHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	views, err := h.listUseCase.Pending(r.Context())
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"payouts": views})
}

func (h *PayoutHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.listUseCase.Agents(r.Context())
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	type agentView struct {
		PublicID string `json:"public_id"`
		Name     string `json:"name"`
		Location string `json:"location"`
		Hours    string `json:"hours"`
	}
	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, agentView{
			PublicID: a.PublicID.String(),
			Name:     a.Name,
			Location: a.Location,
			Hours:    a.Hours,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"agents": views})
}

type lookupRequest struct {
	PickupCode string `json:"pickup_code"`
}

func (h *PayoutHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PickupCode == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	view, err := h.listUseCase.Lookup(r.Context(), req.PickupCode)
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type completeRequest struct {
	TransactionID string `json:"transaction_id"`
	PickupCode    string `json:"pickup_code"`
}

func (h *PayoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	receipt, err := h.completeUseCase.Execute(r.Context(), usecase.CompletePayoutInput{
		AnchorTxID:     req.TransactionID,
		PickupCode:     req.PickupCode,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Actor:          middleware.Actor(r.Context()),
	})
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

type approveRequest struct {
	PickupCode string `json:"pickup_code"`
}

func (h *PayoutHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PickupCode == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	tx, err := h.approveUseCase.Approve(r.Context(), req.PickupCode)
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"transaction_id": tx.ID,
		"status":         string(tx.Status),
	})
}

func (h *PayoutHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PickupCode == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := h.approveUseCase.MarkTransactionReady(r.Context(), req.PickupCode)
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// respondPayoutError maps domain errors to HTTP status codes.
func respondPayoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		respondError(w, http.StatusBadRequest, "Idempotency-Key header is required")
	case errors.Is(err, domain.ErrAmbiguousAgentID):
		respondError(w, http.StatusBadRequest, "agent_id must be an integer id or a UUID")
	case errors.Is(err, domain.ErrInvalidPickupCode):
		respondError(w, http.StatusBadRequest, "invalid pickup code")
	case errors.Is(err, domain.ErrPickupCodeExpired):
		respondError(w, http.StatusGone, "pickup code expired")
	case errors.Is(err, domain.ErrPayoutNotReady):
		respondError(w, http.StatusConflict, "payout is not ready for disbursement")
	case errors.Is(err, domain.ErrPayoutAlreadyReady):
		respondError(w, http.StatusConflict, "payout is already approved")
	case errors.Is(err, domain.ErrPayoutNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrAgentNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case domain.IsStaleState(err):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("payout request failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
