package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/usecase"
	"github.com/rs/zerolog/log"
)

const signatureHeader = "X-Webhook-Signature"

// WebhookHandler ingests signed callbacks from the banking provider.
type WebhookHandler struct {
	railEventUseCase *usecase.ProcessRailEventUseCase
	secret           []byte
}

func NewWebhookHandler(railEventUC *usecase.ProcessRailEventUseCase, secret string) *WebhookHandler {
	return &WebhookHandler{
		railEventUseCase: railEventUC,
		secret:           []byte(secret),
	}
}

type railEventPayload struct {
	Direction   string `json:"direction"`
	Description string `json:"description"`
	ExternalID  string `json:"external_id"`
}

func (h *WebhookHandler) HandleBankEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload railEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	transactionID := usecase.ParseRailCorrelation(payload.Description)
	if transactionID == "" {
		// Not correlated to a settlement; acknowledge so the provider stops
		// redelivering.
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	outcome, err := h.railEventUseCase.Execute(r.Context(), usecase.RailEventInput{
		TransactionID: transactionID,
		Direction:     payload.Direction,
		ExternalRef:   payload.ExternalID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTransactionNotFound):
			respondError(w, http.StatusNotFound, "unknown transaction")
		case domain.IsStaleState(err):
			respondError(w, http.StatusConflict, err.Error())
		default:
			log.Error().Err(err).Str("transaction_id", transactionID).Msg("rail event failed")
			respondError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": string(outcome.Kind),
	})
}

// verifySignature compares the presented HMAC against one computed over the
// canonical form of the payload: decoded and re-encoded, which normalizes key
// order and whitespace.
func (h *WebhookHandler) verifySignature(body []byte, presented string) bool {
	if presented == "" {
		return false
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return false
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(presented))
}
