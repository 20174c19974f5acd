package stellar

import (
	"context"
	"fmt"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// Gateway signs and submits anchor payments from the distribution account.
type Gateway struct {
	client            horizonclient.ClientInterface
	distribution      *keypair.Full
	networkPassphrase string
}

func NewGateway(client horizonclient.ClientInterface, distributionSeed, networkPassphrase string) (*Gateway, error) {
	kp, err := keypair.ParseFull(distributionSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse distribution seed: %w", err)
	}
	return &Gateway{
		client:            client,
		distribution:      kp,
		networkPassphrase: networkPassphrase,
	}, nil
}

// ReceiveAccount is the address users pay withdrawals into; the distribution
// account doubles as the receive account.
func (g *Gateway) ReceiveAccount() string {
	return g.distribution.Address()
}

// SendPayment pays amount_out of the transaction's asset to its counterparty
// account and returns the ledger transaction hash.
func (g *Gateway) SendPayment(ctx context.Context, tx *domain.Transaction) (string, error) {
	sourceAccount, err := g.client.AccountDetail(horizonclient.AccountRequest{
		AccountID: g.distribution.Address(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to load distribution account: %w", err)
	}

	var asset txnbuild.Asset
	if tx.Asset.Issuer == "" {
		asset = txnbuild.NativeAsset{}
	} else {
		asset = txnbuild.CreditAsset{Code: tx.Asset.Code, Issuer: tx.Asset.Issuer}
	}

	payment := txnbuild.Payment{
		Destination: tx.CounterpartyAccount,
		Amount:      tx.AmountOut.StringFixed(7),
		Asset:       asset,
	}

	builtTx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &sourceAccount,
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{&payment},
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(300),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to build payment transaction: %w", err)
	}

	signedTx, err := builtTx.Sign(g.networkPassphrase, g.distribution)
	if err != nil {
		return "", fmt.Errorf("failed to sign payment transaction: %w", err)
	}

	resp, err := g.client.SubmitTransaction(signedTx)
	if err != nil {
		return "", classifySubmitError(tx.ID, err)
	}
	return resp.Hash, nil
}

// classifySubmitError maps an insufficient distribution balance to the
// sentinel the settlement layer compensates on; everything else surfaces the
// raw cause.
func classifySubmitError(txID string, err error) error {
	horizonErr := horizonclient.GetError(err)
	if horizonErr == nil {
		return fmt.Errorf("failed to submit payment: %w", err)
	}

	codes, codesErr := horizonErr.ResultCodes()
	if codesErr != nil {
		log.Error().Err(codesErr).Str("transaction_id", txID).Msg("could not extract result codes")
		return fmt.Errorf("failed to submit payment: %w", err)
	}
	for _, code := range codes.OperationCodes {
		if code == "op_underfunded" {
			return fmt.Errorf("submit payment for %s: %w", txID, domain.ErrLedgerUnderfunded)
		}
	}
	return fmt.Errorf("failed to submit payment (tx=%s, ops=%v): %w", codes.TransactionCode, codes.OperationCodes, err)
}
