// Package trips owns the trip state machine. Every transition is a guarded,
// atomic compare-and-set in the store; the service layer decides which edge
// the caller may take and translates guard failures into typed errors.
package trips

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

// Store abstracts trip persistence. Every mutating operation is atomic and
// guarded: it reports false instead of writing when the pre-state no longer
// holds.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	GetOffer(ctx context.Context, driverID, tripID uuid.UUID) (*models.DriverOffer, error)
	AcceptOffer(ctx context.Context, tripID, driverID uuid.UUID) (bool, error)
	Progress(ctx context.Context, tripID, driverID uuid.UUID, from, to models.TripStatus) (bool, error)
	Complete(ctx context.Context, tripID, driverID uuid.UUID) (bool, error)
	Terminate(ctx context.Context, tripID uuid.UUID, to models.TripStatus, actor models.CancellationActor, reason string, offerTo models.OfferStatus, allowedFrom []models.TripStatus) (bool, error)
	SetRating(ctx context.Context, tripID, passengerID uuid.UUID, rating int, comment *string) (bool, error)
	ListByPassenger(ctx context.Context, passengerID uuid.UUID, limit, offset int) ([]*models.Trip, int64, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]*models.Trip, int64, error)
	GetActiveByDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error)
}

// Service handles trip lifecycle business logic
type Service struct {
	store  Store
	events eventbus.Publisher
}

// NewService creates a new trips service
func NewService(store Store, events eventbus.Publisher) *Service {
	return &Service{store: store, events: events}
}

// Accept lets the offered driver claim the trip. Accepting an offer that
// this driver has already accepted is idempotent.
func (s *Service) Accept(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	trip, err := s.getOwnOffer(ctx, tripID, driverID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.AcceptOffer(ctx, tripID, driverID)
	if err != nil {
		return nil, common.NewInternalError("failed to accept trip", err)
	}
	if !ok {
		// Guard lost. Either we already accepted (idempotent success), the
		// offer expired, or the trip left pending some other way.
		trip, err = s.store.GetByID(ctx, tripID)
		if err != nil {
			return nil, common.NewInternalError("failed to re-read trip", err)
		}
		if trip.Status == models.TripStatusAccepted && trip.DriverID == driverID {
			return trip, nil
		}
		return nil, common.NewForbiddenError(
			fmt.Sprintf("offer is no longer available, trip is %s", trip.Status))
	}

	trip, err = s.store.GetByID(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to re-read trip", err)
	}

	metrics.TripTransitions.WithLabelValues(string(models.TripStatusAccepted)).Inc()
	s.publishStatus(ctx, trip, "")

	logger.InfoContext(ctx, "trip accepted",
		zap.String("trip_id", tripID.String()),
		zap.String("driver_id", driverID.String()),
	)

	return trip, nil
}

// Reject lets the offered driver decline. The trip terminates as
// no_driver_available; the passenger re-requests if they still want a ride.
// Rejecting an offer that already settled, in any terminal state, is a no-op.
func (s *Service) Reject(ctx context.Context, tripID, driverID uuid.UUID) error {
	if _, err := s.getOwnOffer(ctx, tripID, driverID); err != nil {
		return err
	}

	offer, err := s.store.GetOffer(ctx, driverID, tripID)
	if err != nil {
		return common.NewInternalError("failed to get offer", err)
	}
	if offer.Status.IsTerminal() {
		// Repeated reject, a lapsed offer, or one withdrawn by cancellation.
		return nil
	}

	// Offer and trip settle in one transaction so a retried reject can never
	// observe a half-written rejection.
	ok, err := s.store.Terminate(ctx, tripID, models.TripStatusNoDriverAvailable,
		models.CancelledBySystem, models.ReasonNoDriverFound,
		models.OfferStatusRejected, []models.TripStatus{models.TripStatusPending})
	if err != nil {
		return common.NewInternalError("failed to reject offer", err)
	}
	if !ok {
		trip, err := s.store.GetByID(ctx, tripID)
		if err != nil {
			return common.NewInternalError("failed to re-read trip", err)
		}
		return common.NewForbiddenError(
			fmt.Sprintf("offer can no longer be rejected, trip is %s", trip.Status))
	}

	metrics.TripTransitions.WithLabelValues(string(models.TripStatusNoDriverAvailable)).Inc()
	if trip, err := s.store.GetByID(ctx, tripID); err == nil {
		s.publishStatus(ctx, trip, models.ReasonNoDriverFound)
	}

	logger.InfoContext(ctx, "trip offer rejected",
		zap.String("trip_id", tripID.String()),
		zap.String("driver_id", driverID.String()),
	)

	return nil
}

// Arrived marks the driver as at the pickup point.
func (s *Service) Arrived(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	return s.progress(ctx, tripID, driverID, models.TripStatusAccepted, models.TripStatusDriverArrived)
}

// Start begins the ride.
func (s *Service) Start(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	return s.progress(ctx, tripID, driverID, models.TripStatusDriverArrived, models.TripStatusInProgress)
}

func (s *Service) progress(ctx context.Context, tripID, driverID uuid.UUID, from, to models.TripStatus) (*models.Trip, error) {
	ok, err := s.store.Progress(ctx, tripID, driverID, from, to)
	if err != nil {
		return nil, common.NewInternalError("failed to update trip", err)
	}
	if !ok {
		return nil, s.diagnoseGuardFailure(ctx, tripID, driverID, from)
	}

	trip, err := s.store.GetByID(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to re-read trip", err)
	}

	metrics.TripTransitions.WithLabelValues(string(to)).Inc()
	s.publishStatus(ctx, trip, "")

	return trip, nil
}

// Complete finishes the ride and opens the cash settlement.
func (s *Service) Complete(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	ok, err := s.store.Complete(ctx, tripID, driverID)
	if err != nil {
		return nil, common.NewInternalError("failed to complete trip", err)
	}
	if !ok {
		return nil, s.diagnoseGuardFailure(ctx, tripID, driverID, models.TripStatusInProgress)
	}

	trip, err := s.store.GetByID(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to re-read trip", err)
	}

	metrics.TripTransitions.WithLabelValues(string(models.TripStatusCompleted)).Inc()
	s.publishStatus(ctx, trip, "")

	logger.InfoContext(ctx, "trip completed",
		zap.String("trip_id", tripID.String()),
		zap.Int("fare_ils", trip.FareAmount),
	)

	return trip, nil
}

// Cancel lets a participant abandon the trip. Passengers and drivers may
// cancel before the ride starts; an in-progress ride only ends by completion
// or manager override.
func (s *Service) Cancel(ctx context.Context, tripID, callerID uuid.UUID, role models.UserRole, reason string) (*models.Trip, error) {
	trip, err := s.store.GetByID(ctx, tripID)
	if errors.Is(err, ErrTripNotFound) {
		return nil, common.NewNotFoundError("trip not found", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to get trip", err)
	}

	var to models.TripStatus
	var actor models.CancellationActor
	switch role {
	case models.RolePassenger:
		if trip.PassengerID != callerID {
			return nil, common.NewForbiddenError("not your trip")
		}
		to, actor = models.TripStatusCancelledByPassenger, models.CancelledByPassenger
	case models.RoleDriver:
		if trip.DriverID != callerID {
			return nil, common.NewForbiddenError("not your trip")
		}
		to, actor = models.TripStatusCancelledByDriver, models.CancelledByDriver
	default:
		return nil, common.NewForbiddenError("only trip participants may cancel")
	}

	if reason == "" {
		reason = "cancelled by " + string(actor)
	}

	allowedFrom := []models.TripStatus{models.TripStatusPending, models.TripStatusAccepted}
	ok, err := s.store.Terminate(ctx, tripID, to, actor, reason,
		models.OfferStatusCancelled, allowedFrom)
	if err != nil {
		return nil, common.NewInternalError("failed to cancel trip", err)
	}
	if !ok {
		trip, err = s.store.GetByID(ctx, tripID)
		if err != nil {
			return nil, common.NewInternalError("failed to re-read trip", err)
		}
		return nil, common.NewForbiddenError(
			fmt.Sprintf("trip can no longer be cancelled, it is %s", trip.Status))
	}

	trip, err = s.store.GetByID(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to re-read trip", err)
	}

	metrics.TripTransitions.WithLabelValues(string(to)).Inc()
	s.publishStatus(ctx, trip, reason)

	logger.InfoContext(ctx, "trip cancelled",
		zap.String("trip_id", tripID.String()),
		zap.String("by", string(actor)),
		zap.String("reason", reason),
	)

	return trip, nil
}

// ForceCancel is the manager override: it terminates any still-active trip.
func (s *Service) ForceCancel(ctx context.Context, tripID, managerID uuid.UUID) (*models.Trip, error) {
	ok, err := s.store.Terminate(ctx, tripID, models.TripStatusCancelledBySystem,
		models.CancelledBySystem, models.ReasonManagerOverride,
		models.OfferStatusCancelled, models.ActiveTripStatuses)
	if err != nil {
		return nil, common.NewInternalError("failed to force-cancel trip", err)
	}
	if !ok {
		trip, err := s.store.GetByID(ctx, tripID)
		if errors.Is(err, ErrTripNotFound) {
			return nil, common.NewNotFoundError("trip not found", err)
		}
		if err != nil {
			return nil, common.NewInternalError("failed to get trip", err)
		}
		return nil, common.NewForbiddenError(
			fmt.Sprintf("trip is already terminal: %s", trip.Status))
	}

	trip, err := s.store.GetByID(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to re-read trip", err)
	}

	metrics.TripTransitions.WithLabelValues(string(models.TripStatusCancelledBySystem)).Inc()
	s.publishStatus(ctx, trip, models.ReasonManagerOverride)

	logger.WarnContext(ctx, "trip force-cancelled by manager",
		zap.String("trip_id", tripID.String()),
		zap.String("manager_id", managerID.String()),
	)

	return trip, nil
}

// Get returns a trip if the caller is a participant or a manager.
func (s *Service) Get(ctx context.Context, tripID, callerID uuid.UUID, role models.UserRole) (*models.Trip, error) {
	trip, err := s.store.GetByID(ctx, tripID)
	if errors.Is(err, ErrTripNotFound) {
		return nil, common.NewNotFoundError("trip not found", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to get trip", err)
	}

	if trip.PassengerID != callerID && trip.DriverID != callerID && !role.IsManagerial() {
		return nil, common.NewForbiddenError("not your trip")
	}

	return trip, nil
}

// ActiveForDriver returns the driver's current active trip, if any.
func (s *Service) ActiveForDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error) {
	trip, err := s.store.GetActiveByDriver(ctx, driverID)
	if errors.Is(err, ErrTripNotFound) {
		return nil, common.NewNotFoundError("no active trip", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to get active trip", err)
	}
	return trip, nil
}

// ListMine returns the caller's trips, paginated.
func (s *Service) ListMine(ctx context.Context, callerID uuid.UUID, role models.UserRole, limit, offset int) ([]*models.Trip, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var (
		trips []*models.Trip
		total int64
		err   error
	)
	if role == models.RoleDriver {
		trips, total, err = s.store.ListByDriver(ctx, callerID, limit, offset)
	} else {
		trips, total, err = s.store.ListByPassenger(ctx, callerID, limit, offset)
	}
	if err != nil {
		return nil, 0, common.NewInternalError("failed to list trips", err)
	}

	return trips, total, nil
}

// Rate records the passenger's rating on a completed trip.
func (s *Service) Rate(ctx context.Context, tripID, passengerID uuid.UUID, req *models.RatingInput) error {
	ok, err := s.store.SetRating(ctx, tripID, passengerID, req.Rating, req.Comment)
	if err != nil {
		return common.NewInternalError("failed to rate trip", err)
	}
	if ok {
		return nil
	}

	trip, err := s.store.GetByID(ctx, tripID)
	if errors.Is(err, ErrTripNotFound) {
		return common.NewNotFoundError("trip not found", err)
	}
	if err != nil {
		return common.NewInternalError("failed to get trip", err)
	}
	if trip.PassengerID != passengerID {
		return common.NewForbiddenError("not your trip")
	}
	if trip.Status != models.TripStatusCompleted {
		return common.NewForbiddenError(
			fmt.Sprintf("only completed trips can be rated, trip is %s", trip.Status))
	}
	return common.NewForbiddenError("trip is already rated")
}

// diagnoseGuardFailure turns a failed compare-and-set into the error the
// caller can act on.
func (s *Service) diagnoseGuardFailure(ctx context.Context, tripID, driverID uuid.UUID, expected models.TripStatus) error {
	trip, err := s.store.GetByID(ctx, tripID)
	if errors.Is(err, ErrTripNotFound) {
		return common.NewNotFoundError("trip not found", err)
	}
	if err != nil {
		return common.NewInternalError("failed to get trip", err)
	}
	if trip.DriverID != driverID {
		return common.NewForbiddenError("not your trip")
	}
	return common.NewForbiddenError(
		fmt.Sprintf("trip is %s, expected %s", trip.Status, expected))
}

// getOwnOffer verifies the caller is the driver the trip was offered to.
func (s *Service) getOwnOffer(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	trip, err := s.store.GetByID(ctx, tripID)
	if errors.Is(err, ErrTripNotFound) {
		return nil, common.NewNotFoundError("trip not found", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to get trip", err)
	}
	if trip.DriverID != driverID {
		return nil, common.NewForbiddenError("offer belongs to another driver")
	}
	return trip, nil
}

func (s *Service) publishStatus(ctx context.Context, trip *models.Trip, reason string) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, eventbus.SubjectTripStatusChange, eventbus.TripStatusChangedData{
		TripID:      trip.ID,
		PassengerID: trip.PassengerID,
		DriverID:    trip.DriverID,
		Status:      string(trip.Status),
		Reason:      reason,
		ChangedAt:   time.Now().UTC(),
	})
}
