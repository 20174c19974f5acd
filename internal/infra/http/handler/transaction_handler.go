package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TransactionHandler exposes the internal operations surface: inspection,
// manual approvals, and agent cash deposits.
type TransactionHandler struct {
	adminUseCase   *usecase.TransactionAdminUseCase
	depositUseCase *usecase.AgentDepositUseCase
}

func NewTransactionHandler(adminUC *usecase.TransactionAdminUseCase, depositUC *usecase.AgentDepositUseCase) *TransactionHandler {
	return &TransactionHandler{
		adminUseCase:   adminUC,
		depositUseCase: depositUC,
	}
}

type transactionView struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	AmountIn      string `json:"amount_in"`
	AmountFee     string `json:"amount_fee"`
	AmountOut     string `json:"amount_out"`
	AssetCode     string `json:"asset_code"`
	Memo          string `json:"memo,omitempty"`
	LedgerTxRef   string `json:"ledger_transaction_ref,omitempty"`
	StartedAt     string `json:"started_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

func toTransactionView(tx *domain.Transaction) transactionView {
	view := transactionView{
		ID:            tx.ID,
		Kind:          string(tx.Kind),
		Status:        string(tx.Status),
		StatusMessage: tx.StatusMessage,
		AmountIn:      tx.AmountIn.String(),
		AmountFee:     tx.AmountFee.String(),
		AmountOut:     tx.AmountOut.String(),
		AssetCode:     tx.Asset.Code,
		Memo:          tx.Memo,
		LedgerTxRef:   tx.LedgerTransactionRef,
		StartedAt:     tx.StartedAt.UTC().Format(time.RFC3339),
	}
	if tx.CompletedAt != nil {
		view.CompletedAt = tx.CompletedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	txs, err := h.adminUseCase.List(r.Context())
	if err != nil {
		respondTransactionError(w, err)
		return
	}
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, toTransactionView(tx))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"transactions": views})
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.adminUseCase.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondTransactionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionView(tx))
}

func (h *TransactionHandler) ApproveDeposit(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.adminUseCase.ApproveDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondTransactionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (h *TransactionHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	tx, err := h.adminUseCase.ApproveWithdrawal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondTransactionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionView(tx))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *TransactionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	tx, err := h.adminUseCase.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		respondTransactionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionView(tx))
}

type agentDepositRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
	AgentID string `json:"agent_id"`
}

func (h *TransactionHandler) AgentDeposit(w http.ResponseWriter, r *http.Request) {
	var req agentDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	tx, outcome, err := h.depositUseCase.Execute(r.Context(), usecase.AgentDepositInput{
		Account: req.Account,
		Amount:  amount,
		AgentID: req.AgentID,
	})
	if err != nil {
		respondTransactionError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction": toTransactionView(tx),
		"outcome":     outcome,
	})
}

func respondTransactionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrAgentNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid amount")
	case errors.Is(err, domain.ErrAmountTooSmall):
		respondError(w, http.StatusBadRequest, "amount too small to cover fees")
	case errors.Is(err, domain.ErrAmbiguousAgentID):
		respondError(w, http.StatusBadRequest, "agent_id must be an integer id or a UUID")
	case domain.IsStaleState(err):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("transaction request failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
