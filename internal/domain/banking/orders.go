package banking

import (
	"context"
	"fmt"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/pkg/numerator"
)

// CreateOrder persists a draft payment order.
func (s *Service) CreateOrder(ctx context.Context, o *Order, actor string) error {
	if o.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("ПП"), o.PlannedDate)
		if err != nil {
			return fmt.Errorf("generate order number: %w", err)
		}
		o.Number = number
	}

	if err := o.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}
		return s.orderEvents.Append(ctx, NewOrderEvent(o.ID, "created", actor, map[string]any{
			"amount": types.MoneyString(o.Amount),
		}))
	})
}

// GetOrder retrieves a payment order by ID.
func (s *Service) GetOrder(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ApproveOrder moves a draft order to approved.
func (s *Service) ApproveOrder(ctx context.Context, orderID id.ID, actor string) error {
	return s.orderTransition(ctx, orderID, OrderApproved, "approved", actor, nil, nil)
}

// SendOrder pushes an approved order to the bank. At most one send ever
// reaches the bank: the order's idempotency key is fixed at creation and
// reused on every retry, and an order that already carries an external id
// transitions without calling out again.
func (s *Service) SendOrder(ctx context.Context, orderID id.ID, actor string) error {
	return s.orderTransition(ctx, orderID, OrderSent, "sent", actor, nil,
		func(ctx context.Context, o *Order) error {
			if o.ExternalID != nil {
				return nil
			}

			conn, err := s.connections.GetByID(ctx, o.ConnectionID)
			if err != nil {
				return err
			}
			if err := s.ensureFreshToken(ctx, conn); err != nil {
				return err
			}

			externalID, err := s.client.SendOrder(ctx, conn.AccessToken, o)
			if err != nil {
				return apperror.NewIntegration(conn.Provider, "send payment order failed").
					WithDetail("orderId", o.ID).
					WithDetail("error", err.Error())
			}
			o.ExternalID = &externalID
			return nil
		})
}

// AcceptOrder records the bank's acceptance of a sent order.
func (s *Service) AcceptOrder(ctx context.Context, orderID id.ID) error {
	return s.orderTransition(ctx, orderID, OrderAccepted, "accepted", "", nil, nil)
}

// RejectOrder records the bank's rejection of a sent order.
func (s *Service) RejectOrder(ctx context.Context, orderID id.ID, reason string) error {
	return s.orderTransition(ctx, orderID, OrderRejected, "rejected", "",
		map[string]any{"reason": reason}, nil)
}

// MarkOrderPaid closes an accepted order once the money left the account.
func (s *Service) MarkOrderPaid(ctx context.Context, orderID id.ID) error {
	return s.orderTransition(ctx, orderID, OrderPaid, "paid", "", nil, nil)
}

// CancelOrder cancels a draft or approved order.
func (s *Service) CancelOrder(ctx context.Context, orderID id.ID, actor string) error {
	return s.orderTransition(ctx, orderID, OrderCancelled, "cancelled", actor, nil, nil)
}

// RescheduleOrder moves the planned date. Legal only while the order has
// not been sent.
func (s *Service) RescheduleOrder(ctx context.Context, orderID id.ID, plannedDate time.Time, actor string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CanReschedule() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"order can no longer be rescheduled").
				WithDetail("orderId", o.ID).
				WithDetail("status", string(o.Status))
		}

		previous := o.PlannedDate
		o.PlannedDate = plannedDate
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		return s.orderEvents.Append(ctx, NewOrderEvent(o.ID, "rescheduled", actor, map[string]any{
			"from": previous.Format("2006-01-02"),
			"to":   plannedDate.Format("2006-01-02"),
		}))
	})
}

// OrderHistory returns the order's event log.
func (s *Service) OrderHistory(ctx context.Context, orderID id.ID) ([]*OrderEvent, error) {
	return s.orderEvents.ListByOrder(ctx, orderID)
}

// orderTransition applies one state machine step with an optional
// precondition, persisting the order and appending the event atomically.
func (s *Service) orderTransition(
	ctx context.Context,
	orderID id.ID,
	to OrderStatus,
	eventKind string,
	actor string,
	payload map[string]any,
	precondition func(ctx context.Context, o *Order) error,
) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CanTransition(to) {
			return apperror.NewInvalidTransition("payment order", string(o.Status), string(to))
		}

		if precondition != nil {
			if err := precondition(ctx, o); err != nil {
				return err
			}
		}

		from := o.Status
		o.Status = to
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}

		if payload == nil {
			payload = map[string]any{}
		}
		payload["from"] = string(from)
		payload["to"] = string(to)
		return s.orderEvents.Append(ctx, NewOrderEvent(o.ID, eventKind, actor, payload))
	})
}
