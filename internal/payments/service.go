// Package payments settles the cash-only pilot. The payment record is created
// at trip completion; here the driver confirms the cash actually changed
// hands, exactly once.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/eventbus"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
	"github.com/mishwari/taxi-dispatch/pkg/metrics"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// Store abstracts payment persistence for testing.
type Store interface {
	GetByTripID(ctx context.Context, tripID uuid.UUID) (*models.Payment, error)
	ConfirmCash(ctx context.Context, tripID, driverID uuid.UUID) (*models.Payment, bool, error)
}

// TripReader supplies trip state for guard-failure diagnosis.
type TripReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error)
}

// Service handles payment settlement business logic
type Service struct {
	store  Store
	trips  TripReader
	events eventbus.Publisher
}

// NewService creates a new payments service
func NewService(store Store, trips TripReader, events eventbus.Publisher) *Service {
	return &Service{store: store, trips: trips, events: events}
}

// ConfirmCash settles the trip's cash payment on behalf of the driver.
func (s *Service) ConfirmCash(ctx context.Context, tripID, driverID uuid.UUID) (*models.Payment, error) {
	payment, ok, err := s.store.ConfirmCash(ctx, tripID, driverID)
	if err != nil {
		return nil, common.NewInternalError("failed to confirm payment", err)
	}
	if !ok {
		return nil, s.diagnose(ctx, tripID, driverID)
	}

	metrics.PaymentsConfirmed.Inc()

	if s.events != nil {
		_ = s.events.Publish(ctx, eventbus.SubjectPaymentConfirmed, eventbus.PaymentConfirmedData{
			PaymentID: payment.ID,
			TripID:    payment.TripID,
			DriverID:  payment.DriverID,
			Amount:    payment.Amount,
			Currency:  payment.Currency,
			PaidAt:    time.Now().UTC(),
		})
	}

	logger.InfoContext(ctx, "cash payment confirmed",
		zap.String("trip_id", tripID.String()),
		zap.Int("amount_ils", payment.Amount),
	)

	return payment, nil
}

// GetByTrip returns the payment record for a trip the caller participates in.
func (s *Service) GetByTrip(ctx context.Context, tripID, callerID uuid.UUID, role models.UserRole) (*models.Payment, error) {
	payment, err := s.store.GetByTripID(ctx, tripID)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, common.NewNotFoundError("payment not found", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to get payment", err)
	}

	if payment.PassengerID != callerID && payment.DriverID != callerID && !role.IsManagerial() {
		return nil, common.NewForbiddenError("not your payment")
	}

	return payment, nil
}

func (s *Service) diagnose(ctx context.Context, tripID, driverID uuid.UUID) error {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return common.NewNotFoundError("trip not found", err)
	}
	if trip.DriverID != driverID {
		return common.NewForbiddenError("not your trip")
	}
	if trip.Status != models.TripStatusCompleted {
		return common.NewForbiddenError(
			fmt.Sprintf("trip is not completed yet, it is %s", trip.Status))
	}
	if trip.PaymentStatus == models.PaymentStatusPaid {
		return common.NewForbiddenError("payment is already confirmed")
	}
	return common.NewForbiddenError("payment cannot be confirmed in its current state")
}
