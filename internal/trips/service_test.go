package trips

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// mockStore reimplements the guarded atomic operations in memory so the
// service's state-machine decisions can be tested without a database.
type mockStore struct {
	trips  map[uuid.UUID]*models.Trip
	offers map[uuid.UUID]*models.DriverOffer // keyed by trip id
	// claim release tracking
	released map[uuid.UUID]uuid.UUID // trip id -> driver id

	getErr       error
	terminateErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		trips:    make(map[uuid.UUID]*models.Trip),
		offers:   make(map[uuid.UUID]*models.DriverOffer),
		released: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	trip, ok := m.trips[id]
	if !ok {
		return nil, ErrTripNotFound
	}
	copied := *trip
	return &copied, nil
}

func (m *mockStore) GetOffer(ctx context.Context, driverID, tripID uuid.UUID) (*models.DriverOffer, error) {
	offer, ok := m.offers[tripID]
	if !ok || offer.DriverID != driverID {
		return nil, ErrTripNotFound
	}
	copied := *offer
	return &copied, nil
}

func (m *mockStore) AcceptOffer(ctx context.Context, tripID, driverID uuid.UUID) (bool, error) {
	offer, ok := m.offers[tripID]
	if !ok || offer.DriverID != driverID || offer.Status != models.OfferStatusPending ||
		!offer.ExpiresAt.After(time.Now()) {
		return false, nil
	}
	trip, ok := m.trips[tripID]
	if !ok || trip.Status != models.TripStatusPending || trip.DriverID != driverID {
		return false, nil
	}
	offer.Status = models.OfferStatusAccepted
	trip.Status = models.TripStatusAccepted
	now := time.Now()
	trip.AcceptedAt = &now
	return true, nil
}

func (m *mockStore) Progress(ctx context.Context, tripID, driverID uuid.UUID, from, to models.TripStatus) (bool, error) {
	trip, ok := m.trips[tripID]
	if !ok || trip.DriverID != driverID || trip.Status != from {
		return false, nil
	}
	trip.Status = to
	now := time.Now()
	switch to {
	case models.TripStatusDriverArrived:
		trip.ArrivedAt = &now
	case models.TripStatusInProgress:
		trip.StartedAt = &now
	}
	return true, nil
}

func (m *mockStore) Complete(ctx context.Context, tripID, driverID uuid.UUID) (bool, error) {
	trip, ok := m.trips[tripID]
	if !ok || trip.DriverID != driverID || trip.Status != models.TripStatusInProgress {
		return false, nil
	}
	trip.Status = models.TripStatusCompleted
	trip.PaymentStatus = models.PaymentStatusPending
	now := time.Now()
	trip.CompletedAt = &now
	m.released[tripID] = driverID
	return true, nil
}

func (m *mockStore) Terminate(ctx context.Context, tripID uuid.UUID, to models.TripStatus, actor models.CancellationActor, reason string, offerTo models.OfferStatus, allowedFrom []models.TripStatus) (bool, error) {
	if m.terminateErr != nil {
		return false, m.terminateErr
	}
	trip, ok := m.trips[tripID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range allowedFrom {
		if trip.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	trip.Status = to
	now := time.Now()
	trip.CancelledAt = &now
	trip.CancellationReason = &reason
	by := string(actor)
	trip.CancelledBy = &by
	if offer, ok := m.offers[tripID]; ok && offer.Status == models.OfferStatusPending {
		offer.Status = offerTo
	}
	m.released[tripID] = trip.DriverID
	return true, nil
}

func (m *mockStore) SetRating(ctx context.Context, tripID, passengerID uuid.UUID, rating int, comment *string) (bool, error) {
	trip, ok := m.trips[tripID]
	if !ok || trip.PassengerID != passengerID ||
		trip.Status != models.TripStatusCompleted || trip.Rating != nil {
		return false, nil
	}
	trip.Rating = &rating
	trip.RatingComment = comment
	return true, nil
}

func (m *mockStore) ListByPassenger(ctx context.Context, passengerID uuid.UUID, limit, offset int) ([]*models.Trip, int64, error) {
	var out []*models.Trip
	for _, t := range m.trips {
		if t.PassengerID == passengerID {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockStore) ListByDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]*models.Trip, int64, error) {
	var out []*models.Trip
	for _, t := range m.trips {
		if t.DriverID == driverID {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockStore) GetActiveByDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error) {
	for _, t := range m.trips {
		if t.DriverID == driverID && t.Status.IsActive() {
			copied := *t
			return &copied, nil
		}
	}
	return nil, ErrTripNotFound
}

// seedPendingTrip creates a pending trip with a live offer for the driver.
func seedPendingTrip(store *mockStore, driverID uuid.UUID) *models.Trip {
	trip := &models.Trip{
		ID:          uuid.New(),
		RequestID:   uuid.New(),
		PassengerID: uuid.New(),
		DriverID:    driverID,
		Status:      models.TripStatusPending,
		FareAmount:  19,
	}
	store.trips[trip.ID] = trip
	store.offers[trip.ID] = &models.DriverOffer{
		DriverID:  driverID,
		TripID:    trip.ID,
		Status:    models.OfferStatusPending,
		ExpiresAt: time.Now().Add(20 * time.Second),
	}
	return trip
}

func requireKind(t *testing.T, err error, kind common.ErrorKind) {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, kind, appErr.Kind)
}

func TestAcceptHappyPath(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)

	trip, err := svc.Accept(context.Background(), seeded.ID, driverID)

	require.NoError(t, err)
	assert.Equal(t, models.TripStatusAccepted, trip.Status)
	assert.NotNil(t, trip.AcceptedAt)
	assert.Equal(t, models.OfferStatusAccepted, store.offers[seeded.ID].Status)
}

func TestAcceptIsIdempotent(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)

	_, err := svc.Accept(context.Background(), seeded.ID, driverID)
	require.NoError(t, err)

	trip, err := svc.Accept(context.Background(), seeded.ID, driverID)
	require.NoError(t, err, "repeated accept by the same driver must succeed")
	assert.Equal(t, models.TripStatusAccepted, trip.Status)
}

func TestAcceptExpiredOffer(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	store.offers[seeded.ID].ExpiresAt = time.Now().Add(-time.Second)
	svc := NewService(store, nil)

	_, err := svc.Accept(context.Background(), seeded.ID, driverID)

	requireKind(t, err, common.KindForbidden)
}

func TestAcceptWrongDriver(t *testing.T) {
	store := newMockStore()
	seeded := seedPendingTrip(store, uuid.New())
	svc := NewService(store, nil)

	_, err := svc.Accept(context.Background(), seeded.ID, uuid.New())

	requireKind(t, err, common.KindForbidden)
}

func TestAcceptAfterPassengerCancelled(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)

	// Passenger cancels while the offer is on the driver's screen.
	_, err := svc.Cancel(context.Background(), seeded.ID, seeded.PassengerID, models.RolePassenger, "")
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), seeded.ID, driverID)
	requireKind(t, err, common.KindForbidden)
}

func TestRejectTerminatesTrip(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)

	err := svc.Reject(context.Background(), seeded.ID, driverID)

	require.NoError(t, err)
	assert.Equal(t, models.TripStatusNoDriverAvailable, store.trips[seeded.ID].Status)
	assert.Equal(t, models.OfferStatusRejected, store.offers[seeded.ID].Status)
	assert.Contains(t, store.released, seeded.ID, "driver must be released on rejection")
}

func TestRejectIsIdempotent(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)

	require.NoError(t, svc.Reject(context.Background(), seeded.ID, driverID))
	require.NoError(t, svc.Reject(context.Background(), seeded.ID, driverID))
}

func TestRejectSettledOfferIsNoOp(t *testing.T) {
	// Any terminal offer state means the trip already settled; a late reject
	// must succeed without touching it.
	for _, status := range []models.OfferStatus{
		models.OfferStatusExpired,
		models.OfferStatusCancelled,
	} {
		store := newMockStore()
		driverID := uuid.New()
		seeded := seedPendingTrip(store, driverID)
		store.offers[seeded.ID].Status = status
		store.trips[seeded.ID].Status = models.TripStatusNoDriverAvailable

		svc := NewService(store, nil)
		require.NoError(t, svc.Reject(context.Background(), seeded.ID, driverID), string(status))
		assert.Equal(t, models.TripStatusNoDriverAvailable, store.trips[seeded.ID].Status)
		assert.Equal(t, status, store.offers[seeded.ID].Status)
	}
}

func TestRejectAfterAcceptIsNoOp(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)

	_, err := svc.Accept(context.Background(), seeded.ID, driverID)
	require.NoError(t, err)

	err = svc.Reject(context.Background(), seeded.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusAccepted, store.trips[seeded.ID].Status,
		"a late reject must not disturb the accepted trip")
	assert.Equal(t, models.OfferStatusAccepted, store.offers[seeded.ID].Status)
}

func TestRejectRetryAfterStoreFailure(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)
	ctx := context.Background()

	store.terminateErr = errors.New("connection reset")
	err := svc.Reject(ctx, seeded.ID, driverID)
	requireKind(t, err, common.KindInternal)
	assert.Equal(t, models.OfferStatusPending, store.offers[seeded.ID].Status,
		"a failed reject must leave the offer retryable")
	assert.Equal(t, models.TripStatusPending, store.trips[seeded.ID].Status)

	store.terminateErr = nil
	require.NoError(t, svc.Reject(ctx, seeded.ID, driverID))
	assert.Equal(t, models.OfferStatusRejected, store.offers[seeded.ID].Status)
	assert.Equal(t, models.TripStatusNoDriverAvailable, store.trips[seeded.ID].Status)
	assert.Contains(t, store.released, seeded.ID, "retried reject must release the driver")
}

func TestFullLifecycle(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Accept(ctx, seeded.ID, driverID)
	require.NoError(t, err)

	trip, err := svc.Arrived(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusDriverArrived, trip.Status)

	trip, err = svc.Start(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusInProgress, trip.Status)

	trip, err = svc.Complete(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCompleted, trip.Status)
	assert.Equal(t, models.PaymentStatusPending, trip.PaymentStatus)
	assert.Contains(t, store.released, seeded.ID)
}

func TestStartBeforeArrivedForbidden(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Accept(ctx, seeded.ID, driverID)
	require.NoError(t, err)

	_, err = svc.Start(ctx, seeded.ID, driverID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.KindForbidden, appErr.Kind)
	assert.Contains(t, appErr.Message, string(models.TripStatusAccepted),
		"the error must tell the driver the trip's current state")
}

func TestTerminalStatesAreMonotonic(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Accept(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	_, err = svc.Arrived(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	_, err = svc.Start(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, seeded.ID, driverID)
	require.NoError(t, err)

	// No edge leaves completed.
	_, err = svc.Cancel(ctx, seeded.ID, seeded.PassengerID, models.RolePassenger, "changed my mind")
	requireKind(t, err, common.KindForbidden)

	_, err = svc.Start(ctx, seeded.ID, driverID)
	requireKind(t, err, common.KindForbidden)

	assert.Equal(t, models.TripStatusCompleted, store.trips[seeded.ID].Status)
}

func TestPassengerCannotCancelInProgress(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Accept(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	_, err = svc.Arrived(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	_, err = svc.Start(ctx, seeded.ID, driverID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, seeded.ID, seeded.PassengerID, models.RolePassenger, "")
	requireKind(t, err, common.KindForbidden)
}

func TestCancelByStranger(t *testing.T) {
	store := newMockStore()
	seeded := seedPendingTrip(store, uuid.New())
	svc := NewService(store, nil)

	_, err := svc.Cancel(context.Background(), seeded.ID, uuid.New(), models.RolePassenger, "")
	requireKind(t, err, common.KindForbidden)
}

func TestDriverCancelReleasesClaim(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Accept(ctx, seeded.ID, driverID)
	require.NoError(t, err)

	trip, err := svc.Cancel(ctx, seeded.ID, driverID, models.RoleDriver, "flat tire")
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCancelledByDriver, trip.Status)
	assert.Contains(t, store.released, seeded.ID)
}

func TestForceCancelInProgress(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Accept(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	_, err = svc.Arrived(ctx, seeded.ID, driverID)
	require.NoError(t, err)
	_, err = svc.Start(ctx, seeded.ID, driverID)
	require.NoError(t, err)

	trip, err := svc.ForceCancel(ctx, seeded.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCancelledBySystem, trip.Status)
	require.NotNil(t, trip.CancellationReason)
	assert.Equal(t, models.ReasonManagerOverride, *trip.CancellationReason)
}

func TestForceCancelTerminalTrip(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	seeded.Status = models.TripStatusCompleted
	store.trips[seeded.ID] = seeded
	svc := NewService(store, nil)

	_, err := svc.ForceCancel(context.Background(), seeded.ID, uuid.New())
	requireKind(t, err, common.KindForbidden)
}

func TestGetAccessControl(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, seeded.ID, seeded.PassengerID, models.RolePassenger)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, seeded.ID, driverID, models.RoleDriver)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, seeded.ID, uuid.New(), models.RoleManager)
	assert.NoError(t, err, "managers may inspect any trip")

	_, err = svc.Get(ctx, seeded.ID, uuid.New(), models.RolePassenger)
	requireKind(t, err, common.KindForbidden)
}

func TestRateCompletedTripOnce(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	seeded.Status = models.TripStatusCompleted
	store.trips[seeded.ID] = seeded
	svc := NewService(store, nil)
	ctx := context.Background()

	comment := "smooth ride"
	err := svc.Rate(ctx, seeded.ID, seeded.PassengerID, &models.RatingInput{Rating: 5, Comment: &comment})
	require.NoError(t, err)

	err = svc.Rate(ctx, seeded.ID, seeded.PassengerID, &models.RatingInput{Rating: 1})
	requireKind(t, err, common.KindForbidden)
}

func TestRateActiveTripForbidden(t *testing.T) {
	store := newMockStore()
	seeded := seedPendingTrip(store, uuid.New())
	svc := NewService(store, nil)

	err := svc.Rate(context.Background(), seeded.ID, seeded.PassengerID, &models.RatingInput{Rating: 4})
	requireKind(t, err, common.KindForbidden)
}

func TestInternalErrorsSurfaceAsInternal(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection reset")
	svc := NewService(store, nil)

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New(), models.RolePassenger)
	requireKind(t, err, common.KindInternal)
}

func TestActiveForDriver(t *testing.T) {
	store := newMockStore()
	driverID := uuid.New()
	seeded := seedPendingTrip(store, driverID)
	svc := NewService(store, nil)

	trip, err := svc.ActiveForDriver(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, trip.ID)

	_, err = svc.ActiveForDriver(context.Background(), uuid.New())
	requireKind(t, err, common.KindNotFound)
}
