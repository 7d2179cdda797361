package shared

import "context"

// TransactionManager runs fn inside a single atomic unit of work.
// Repositories called with the context passed to fn participate in the same transaction;
// if fn returns an error every write is rolled back.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
