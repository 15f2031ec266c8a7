package logger

import "context"

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// loggerKey is the context key for the logger.
	loggerKey contextKey = "snapmapper.logger"
	// txnIDKey is the context key for the transaction ID.
	txnIDKey contextKey = "snapmapper.txn_id"
	// partitionKey is the context key for the partition being worked on.
	partitionKey contextKey = "snapmapper.partition"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithTxnID adds a transaction ID to the context.
func WithTxnID(ctx context.Context, txnID string) context.Context {
	return context.WithValue(ctx, txnIDKey, txnID)
}

// TxnIDFromContext extracts the transaction ID from context.
func TxnIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(txnIDKey).(string); ok {
		return id
	}
	return ""
}

// WithPartition adds a partition label to the context.
func WithPartition(ctx context.Context, partition string) context.Context {
	return context.WithValue(ctx, partitionKey, partition)
}

// PartitionFromContext extracts the partition label from context.
func PartitionFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(partitionKey).(string); ok {
		return p
	}
	return ""
}

// L is a shorthand for FromContext that also enriches the logger
// with the txn ID and partition from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if txnID := TxnIDFromContext(ctx); txnID != "" {
		l = l.With("txn_id", txnID)
	}

	if p := PartitionFromContext(ctx); p != "" {
		l = l.With("partition", p)
	}

	return l
}
