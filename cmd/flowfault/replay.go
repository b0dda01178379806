package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/mulesoft/mule-sub047/component"
	"github.com/mulesoft/mule-sub047/config"
	"github.com/mulesoft/mule-sub047/errors"
	"github.com/mulesoft/mule-sub047/event"
	"github.com/mulesoft/mule-sub047/system"
	"github.com/mulesoft/mule-sub047/transaction"
	"github.com/mulesoft/mule-sub047/transaction/sqltx"
)

type sample struct {
	name      string
	component string
	err       error
}

// samples covers the common families of the error taxonomy
var samples = []sample{
	{"connection lost", "processors/0", fmt.Errorf("send order: %w", errors.ErrConnectionLost)},
	{"invalid payload", "processors/1", fmt.Errorf("decode order: %w", errors.ErrInvalidData)},
	{"validation", "processors/1", errors.ErrValidation},
	{"not permitted", "processors/2", errors.ErrNotPermitted},
	{"rate limited", "processors/3", fmt.Errorf("POST /invoices: status 429: %w", errors.ErrConnectionLost)},
	{"redelivery exhausted", "source", errors.ErrRedeliveryExhausted},
	{"back pressure", "source", errors.ErrFlowBackPressure},
}

// dbReconnector reconnects the database by pinging it
type dbReconnector struct {
	db *sqlx.DB
}

func (r dbReconnector) Reconnect(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type replayer struct {
	flows    *config.Flows
	strategy *system.Strategy
	db       *sqlx.DB
	logger   *slog.Logger
}

func (r *replayer) run(ctx context.Context, rounds int) error {
	for round := 1; round <= rounds; round++ {
		for _, flow := range r.flows.Names() {
			for _, s := range samples {
				if err := ctx.Err(); err != nil {
					return nil
				}
				if err := r.replay(ctx, round, flow, s); err != nil {
					return err
				}
			}
		}
		r.system(ctx, round)
	}

	for _, flow := range r.flows.Names() {
		if stats, ok := r.flows.Statistics(flow); ok {
			r.logger.Info("Flow statistics", "flow", flow,
				"execution_errors", stats.ExecutionErrors(), "fatal_errors", stats.FatalErrors())
		}
	}
	return nil
}

// replay raises s inside a transaction owned by flow and reports what the
// flow's error handler did with it
func (r *replayer) replay(ctx context.Context, round int, flow string, s sample) error {
	chain, _ := r.flows.Chain(flow)

	txCtx, tx, err := sqltx.BeginScoped(ctx, r.db, flow)
	if err != nil {
		return err
	}

	evt := event.New(
		map[string]any{"sample": s.name, "round": round},
		event.WithLocation(component.NewLocation(flow, s.component)),
	)
	out, handleErr := chain.HandleException(txCtx, s.err, evt)

	// Handlers that neither commit nor roll back leave the transaction to us
	if tx.Status() == transaction.StatusActive {
		if err := tx.Rollback(ctx); err != nil {
			r.logger.Warn("Rollback failed", "flow", flow, "error", err)
		}
	}

	attrs := []any{"flow", flow, "sample", s.name, "round", round, "transaction", tx.Status().String()}
	var ex *event.MessagingException
	switch {
	case handleErr == nil:
		r.logger.Info("Fault handled", append(attrs, "payload", out.Payload())...)
	case stderrors.As(handleErr, &ex):
		r.logger.Info("Fault propagated", append(attrs, "error_type", ex.ErrorType().String())...)
	default:
		return handleErr
	}
	return nil
}

// system raises a connectivity fault outside of any flow so that the system
// strategy reconnects the database
func (r *replayer) system(ctx context.Context, round int) {
	evt := event.New(map[string]any{"round": round})
	err := system.WithReconnect(fmt.Errorf("database: %w", errors.ErrConnectionLost), dbReconnector{db: r.db})

	ex := r.strategy.HandleException(event.WithCurrent(ctx, evt), err, nil)
	if out := ex.Event(); out != nil && out.Error() != nil {
		r.logger.Info("System fault recorded", "round", round, "error_type", out.Error().Type.String(),
			"suppressed", len(ex.Suppressed()))
	}
}
