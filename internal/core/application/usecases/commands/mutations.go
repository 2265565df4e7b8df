package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"
)

// Operation names used in rejection log entries.
const (
	operationMove    = "move"
	operationReorder = "reorder"
)

// rejectMutation records a refused route change on the optimisation log and
// returns cause. The entry is written in its own transaction because the one
// of the mutation is rolled back. Errors other than conflicts are not logged.
func rejectMutation(
	ctx context.Context,
	factory UoWFactory,
	clock ports.Clock,
	optimisationID kernel.UUID,
	operation string,
	cause error,
) error {
	var conflict *errs.ConflictError
	if !errors.As(cause, &conflict) {
		return cause
	}

	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return errors.Join(cause, err)
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := uow.OptimisationRepository().Get(ctx, optimisationID)
	if err != nil {
		return errors.Join(cause, err)
	}
	reason := conflict.Detail
	if len(conflict.Reasons) > 0 {
		reason = strings.Join(conflict.Reasons, "; ")
	}
	o.AppendLog(optimisation.EventMutationRejected, optimisation.LogParams{Operation: operation, Reason: reason}, clock.Now())
	if err = uow.OptimisationRepository().Update(ctx, o); err != nil {
		return errors.Join(cause, err)
	}
	if err = uow.Commit(ctx); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// notifyAll sends messages after a commit. Failures are logged only; the
// state change they report is already stored.
func notifyAll(ctx context.Context, notifier ports.Notifier, logger *slog.Logger, messages []ports.Message) {
	for _, msg := range messages {
		if err := notifier.Send(ctx, msg); err != nil {
			logger.WarnContext(ctx, "failed to send notification", "kind", msg.Kind(), "error", err)
		}
	}
}

// routeChanged is the message sent to the driver of a re-timed route.
func routeChanged(r *route.DriverRoute) ports.Message {
	return ports.RouteChangedMessage{OptimisationID: r.OptimisationID(), RouteID: r.ID(), DriverID: r.DriverID()}
}

// routeRemoved is the message sent to the driver of a deleted route.
func routeRemoved(r *route.DriverRoute) ports.Message {
	return ports.RouteRemovedMessage{OptimisationID: r.OptimisationID(), RouteID: r.ID(), DriverID: r.DriverID()}
}
