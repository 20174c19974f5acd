package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// SettlementAudit is the immutable record kept for every status event the
// notifier handled, successful delivery or not.
type SettlementAudit struct {
	ID            string    `bson:"_id,omitempty"`
	TransactionID string    `bson:"transaction_id"`
	Status        string    `bson:"status"`
	Stage         string    `bson:"stage,omitempty"`
	Reason        string    `bson:"reason,omitempty"`
	Delivered     bool      `bson:"delivered"`
	Attempts      int       `bson:"attempts"`
	ProcessedAt   time.Time `bson:"processed_at"`
}

type AuditRepository struct {
	collection *mongo.Collection
}

func NewAuditRepository(client *mongo.Client, dbName string) *AuditRepository {
	collection := client.Database(dbName).Collection("settlement_audit")
	return &AuditRepository{collection: collection}
}

func (r *AuditRepository) Save(ctx context.Context, audit SettlementAudit) error {
	audit.ProcessedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, audit)
	if err != nil {
		return fmt.Errorf("failed to insert settlement audit: %w", err)
	}
	return nil
}
