package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalType selects the off-chain leg for a withdrawal.
const (
	WithdrawalTypeCash         = "cash"
	WithdrawalTypeBankAccount  = "bank_account"
	WithdrawalTypeBankTransfer = "bank_transfer"
)

type RequestWithdrawalInput struct {
	// TransactionID, when set, resumes an existing record: the pickup code
	// already issued for it is returned instead of a duplicate.
	TransactionID string

	Account string
	Amount  decimal.Decimal
	Type    string

	BankAccountNumber string
	BankNumber        string
	AgentID           string
}

// WithdrawalInstructions is returned to the protocol-compliance layer, which
// relays it to the wallet.
type WithdrawalInstructions struct {
	TransactionID string                 `json:"id"`
	AccountID     string                 `json:"account_id"`
	Memo          string                 `json:"memo"`
	MemoType      string                 `json:"memo_type"`
	How           string                 `json:"how"`
	ExtraInfo     map[string]interface{} `json:"extra_info"`
}

// RequestWithdrawalUseCase is the process-withdraw-request hook: it creates
// (or resumes) the settlement record, computes fees, and issues either a cash
// pickup code or bank instructions.
type RequestWithdrawalUseCase struct {
	transactionRepository gateway.TransactionRepository
	payoutRepository      gateway.PayoutRepository
	agentRepository       gateway.AgentRepository
	ledger                gateway.LedgerGateway
	asset                 domain.Asset

	Now func() time.Time
}

func NewRequestWithdrawal(
	txRepo gateway.TransactionRepository,
	payoutRepo gateway.PayoutRepository,
	agentRepo gateway.AgentRepository,
	ledger gateway.LedgerGateway,
	asset domain.Asset,
) *RequestWithdrawalUseCase {
	return &RequestWithdrawalUseCase{
		transactionRepository: txRepo,
		payoutRepository:      payoutRepo,
		agentRepository:       agentRepo,
		ledger:                ledger,
		asset:                 asset,
		Now:                   time.Now,
	}
}

func (u *RequestWithdrawalUseCase) Execute(ctx context.Context, input RequestWithdrawalInput) (*WithdrawalInstructions, error) {
	tx, err := u.resolveTransaction(ctx, input)
	if err != nil {
		return nil, err
	}

	// Fee math is validated before any external side effect.
	if err := tx.ApplyFee(); err != nil {
		return nil, err
	}

	instructions := &WithdrawalInstructions{
		TransactionID: tx.ID,
		AccountID:     u.ledger.ReceiveAccount(),
		Memo:          tx.Memo,
		MemoType:      "text",
	}

	switch input.Type {
	case WithdrawalTypeCash:
		payout, err := u.issuePayout(ctx, tx, input.AgentID)
		if err != nil {
			return nil, err
		}
		if err := u.transactionRepository.UpdateAmounts(ctx, tx); err != nil {
			return nil, fmt.Errorf("persist withdrawal amounts: %w", err)
		}
		instructions.How = "Send the payment with the memo provided. Then go to the selected cash-out agent with your ID and pickup code."
		instructions.ExtraInfo = map[string]interface{}{
			"pickup_code":   payout.PickupCode,
			"expected_time": "Same day",
			"expires_at":    payout.ExpiresAt.UTC().Format(time.RFC3339),
		}
		return instructions, nil

	case WithdrawalTypeBankAccount, WithdrawalTypeBankTransfer:
		if input.BankAccountNumber == "" || input.BankNumber == "" {
			return nil, domain.ErrMissingBankDestination
		}
		tx.ToAddress = input.BankAccountNumber
		if err := u.transactionRepository.UpdateAmounts(ctx, tx); err != nil {
			return nil, fmt.Errorf("persist withdrawal amounts: %w", err)
		}
		tail := input.BankAccountNumber
		if len(tail) > 4 {
			tail = tail[len(tail)-4:]
		}
		instructions.How = fmt.Sprintf("Send the payment with the memo provided. We will disburse to your bank account ending %s.", tail)
		instructions.ExtraInfo = map[string]interface{}{
			"bank_account_number": input.BankAccountNumber,
			"bank_number":         input.BankNumber,
			"expected_time":       "1-2 business days",
		}
		return instructions, nil

	default:
		return nil, fmt.Errorf("unsupported withdrawal type: %q", input.Type)
	}
}

func (u *RequestWithdrawalUseCase) resolveTransaction(ctx context.Context, input RequestWithdrawalInput) (*domain.Transaction, error) {
	if input.TransactionID != "" {
		return u.transactionRepository.GetByID(ctx, input.TransactionID)
	}

	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	id := uuid.NewString()
	tx := &domain.Transaction{
		ID:                  id,
		Kind:                domain.KindWithdrawal,
		Status:              domain.StatusPendingUserTransferStart,
		AmountIn:            input.Amount,
		Asset:               u.asset,
		Memo:                domain.MemoForTransaction(id),
		CounterpartyAccount: input.Account,
		StartedAt:           u.Now().UTC(),
	}
	if input.Type == WithdrawalTypeCash {
		tx.FundingMethod = domain.FundingCash
		tx.ExternalAgentID = input.AgentID
	} else {
		tx.FundingMethod = domain.FundingBank
	}
	if err := tx.ApplyFee(); err != nil {
		return nil, err
	}
	if err := u.transactionRepository.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create withdrawal transaction: %w", err)
	}
	return tx, nil
}

// issuePayout is idempotent per transaction: a retry returns the payout
// already issued. Code generation retries on collisions with live codes.
func (u *RequestWithdrawalUseCase) issuePayout(ctx context.Context, tx *domain.Transaction, rawAgentID string) (*domain.CashPayout, error) {
	existing, err := u.payoutRepository.GetByTransactionID(ctx, tx.ID)
	if err == nil {
		return existing, nil
	}
	if err != domain.ErrPayoutNotFound {
		return nil, err
	}

	var agentID *int64
	if rawAgentID != "" {
		filter, err := domain.ParseAgentFilter(rawAgentID)
		if err != nil {
			return nil, err
		}
		agent, err := u.lookupAgent(ctx, filter)
		if err != nil {
			return nil, err
		}
		agentID = &agent.ID
	}

	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		payout := &domain.CashPayout{
			PublicID:      uuid.New(),
			TransactionID: tx.ID,
			PickupCode:    domain.NewPickupCode(),
			ExpiresAt:     u.Now().UTC().Add(domain.PayoutTTL),
			Ready:         false,
			AgentID:       agentID,
		}
		err := u.payoutRepository.Create(ctx, payout)
		if err == nil {
			return payout, nil
		}
		if err != gateway.ErrPickupCodeCollision {
			return nil, fmt.Errorf("create cash payout: %w", err)
		}
	}
	return nil, fmt.Errorf("could not generate a unique pickup code after %d attempts", maxAttempts)
}

func (u *RequestWithdrawalUseCase) lookupAgent(ctx context.Context, filter domain.AgentFilter) (*domain.Agent, error) {
	switch {
	case filter.ID != nil:
		return u.agentRepository.GetByID(ctx, *filter.ID)
	case filter.PublicID != nil:
		return u.agentRepository.GetByPublicID(ctx, *filter.PublicID)
	default:
		return nil, domain.ErrAgentNotFound
	}
}
