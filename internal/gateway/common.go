package gateway

import "context"

// TransactionObject is the opaque handle for a database transaction carried
// through the context by the TransactionManager.
type TransactionObject interface{}

// TransactionManager runs fn inside an ACID transaction (unit of work).
type TransactionManager interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionKeyType avoids context key collisions.
type TransactionKeyType string

const TransactionKey TransactionKeyType = "transaction"
