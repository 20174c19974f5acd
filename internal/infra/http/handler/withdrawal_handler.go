package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// WithdrawalHandler exposes the withdrawal hook points the protocol layer
// calls: request instructions for a new withdrawal, and settle one after its
// on-chain funding is confirmed.
type WithdrawalHandler struct {
	requestUseCase *usecase.RequestWithdrawalUseCase
	settleUseCase  *usecase.SettleWithdrawalUseCase
}

func NewWithdrawalHandler(requestUC *usecase.RequestWithdrawalUseCase, settleUC *usecase.SettleWithdrawalUseCase) *WithdrawalHandler {
	return &WithdrawalHandler{
		requestUseCase: requestUC,
		settleUseCase:  settleUC,
	}
}

type withdrawalRequest struct {
	TransactionID     string `json:"transaction_id"`
	Account           string `json:"account"`
	Amount            string `json:"amount"`
	Type              string `json:"type"`
	BankAccountNumber string `json:"bank_account_number"`
	BankNumber        string `json:"bank_number"`
	AgentID           string `json:"agent_id"`
}

func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	amount := decimal.Zero
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid amount")
			return
		}
		amount = parsed
	}

	instructions, err := h.requestUseCase.Execute(r.Context(), usecase.RequestWithdrawalInput{
		TransactionID:     req.TransactionID,
		Account:           req.Account,
		Amount:            amount,
		Type:              req.Type,
		BankAccountNumber: req.BankAccountNumber,
		BankNumber:        req.BankNumber,
		AgentID:           req.AgentID,
	})
	if err != nil {
		respondWithdrawalError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, instructions)
}

func (h *WithdrawalHandler) Settle(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.settleUseCase.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithdrawalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func respondWithdrawalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrAgentNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid amount")
	case errors.Is(err, domain.ErrAmountTooSmall):
		respondError(w, http.StatusBadRequest, "amount too small to cover fees")
	case errors.Is(err, domain.ErrMissingBankDestination):
		respondError(w, http.StatusBadRequest, "bank destination is required")
	case errors.Is(err, domain.ErrAmbiguousAgentID):
		respondError(w, http.StatusBadRequest, "agent_id must be an integer id or a UUID")
	case domain.IsStaleState(err):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("withdrawal request failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
