package commands

import (
	"context"
	"log/slog"

	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/ports"
)

type NotifyCustomersCommandHandler struct {
	uowFactory UoWFactory
	notifier   ports.Notifier
	clock      ports.Clock
	logger     *slog.Logger
}

func NewNotifyCustomersCommandHandler(
	uowFactory UoWFactory,
	notifier ports.Notifier,
	clock ports.Clock,
	logger *slog.Logger,
) NotifyCustomersCommandHandler {
	return NotifyCustomersCommandHandler{
		uowFactory: uowFactory,
		notifier:   notifier,
		clock:      clock,
		logger:     logger.With("component", "NotifyCustomers"),
	}
}

// Handle records the current start time of every delivery point as promised
// and sends one ETA message per job.
func (h *NotifyCustomersCommandHandler) Handle(ctx context.Context, cmd NotifyCustomersCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := getManageable(ctx, uow, cmd.OptimisationID(), cmd.MerchantID())
	if err != nil {
		return err
	}
	routes, err := uow.RouteRepository().ListByOptimisation(ctx, o.ID())
	if err != nil {
		return err
	}

	var messages []ports.Message
	for _, r := range routes {
		for _, pt := range r.Points() {
			if pt.Kind() != route.KindDelivery {
				continue
			}
			pt.NotifyCustomer()
			for _, jobID := range pt.Ref().JobIDs() {
				messages = append(messages, ports.CustomerETAMessage{JobID: jobID, StartTime: pt.StartTime()})
			}
		}
		if err = uow.RouteRepository().Update(ctx, r); err != nil {
			return err
		}
	}
	o.NotifyCustomers(h.clock.Now())
	if err = uow.OptimisationRepository().Update(ctx, o); err != nil {
		return err
	}
	if err = uow.Commit(ctx); err != nil {
		return err
	}

	notifyAll(ctx, h.notifier, h.logger, messages)
	return nil
}
