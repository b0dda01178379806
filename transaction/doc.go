// Package transaction is the error handlers' view of resource transactions.
//
// A transaction is bound to a context.Context together with the scope that
// began it:
//
//	ctx = transaction.Begin(ctx, tx, "orders")
//
// On-error propagate handlers roll back only transactions owned by their own
// scope; on-error continue handlers commit them. The system strategy rolls
// back whatever transaction is current.
//
// The sqltx subpackage adapts *sqlx.Tx; Func adapts plain callbacks.
package transaction
