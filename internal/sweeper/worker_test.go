package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mishwari/taxi-dispatch/pkg/config"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

type mockStore struct {
	timedOutRequests []uuid.UUID
	expiredOffers    []uuid.UUID
	noShows          []uuid.UUID

	expiredRequests []uuid.UUID
	expiryReasons   []string
	expiredTrips    []uuid.UUID
	cancelledTrips  []uuid.UUID

	expireRequestErrs map[uuid.UUID]error
	guardMisses       map[uuid.UUID]bool

	requestCutoff time.Time
	noShowCutoff  time.Time
}

func newSweepMock() *mockStore {
	return &mockStore{
		expireRequestErrs: make(map[uuid.UUID]error),
		guardMisses:       make(map[uuid.UUID]bool),
	}
}

func (m *mockStore) ListTimedOutRequests(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	m.requestCutoff = cutoff
	return m.timedOutRequests, nil
}

func (m *mockStore) ExpireRequest(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	if err := m.expireRequestErrs[id]; err != nil {
		return false, err
	}
	if m.guardMisses[id] {
		return false, nil
	}
	m.expiredRequests = append(m.expiredRequests, id)
	m.expiryReasons = append(m.expiryReasons, reason)
	return true, nil
}

func (m *mockStore) ListTripsWithExpiredOffers(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return m.expiredOffers, nil
}

func (m *mockStore) ExpireOfferTrip(ctx context.Context, tripID uuid.UUID) (bool, error) {
	if m.guardMisses[tripID] {
		return false, nil
	}
	m.expiredTrips = append(m.expiredTrips, tripID)
	return true, nil
}

func (m *mockStore) ListNoShowTrips(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	m.noShowCutoff = cutoff
	return m.noShows, nil
}

func (m *mockStore) CancelNoShow(ctx context.Context, tripID uuid.UUID) (bool, error) {
	if m.guardMisses[tripID] {
		return false, nil
	}
	m.cancelledTrips = append(m.cancelledTrips, tripID)
	return true, nil
}

func sweepConfig() config.DispatchConfig {
	return config.DispatchConfig{
		SearchTimeout:        2 * time.Minute,
		DriverArrivalTimeout: 5 * time.Minute,
		SweepInterval:        time.Minute,
		SweepBudget:          time.Minute,
	}
}

func TestRunOnceSweepsAllKinds(t *testing.T) {
	store := newSweepMock()
	reqID, offerTripID, noShowID := uuid.New(), uuid.New(), uuid.New()
	store.timedOutRequests = []uuid.UUID{reqID}
	store.expiredOffers = []uuid.UUID{offerTripID}
	store.noShows = []uuid.UUID{noShowID}

	w := NewWorker(store, sweepConfig())
	w.RunOnce(context.Background())

	assert.Equal(t, []uuid.UUID{reqID}, store.expiredRequests)
	assert.Equal(t, []string{models.ReasonNoDriverFound}, store.expiryReasons,
		"timed-out searches must record the no_driver_found reason")
	assert.Equal(t, []uuid.UUID{offerTripID}, store.expiredTrips)
	assert.Equal(t, []uuid.UUID{noShowID}, store.cancelledTrips)
}

func TestRunOnceUsesConfiguredCutoffs(t *testing.T) {
	store := newSweepMock()
	fixed := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	w := NewWorker(store, sweepConfig())
	w.now = func() time.Time { return fixed }

	w.RunOnce(context.Background())

	assert.Equal(t, fixed.Add(-2*time.Minute), store.requestCutoff)
	assert.Equal(t, fixed.Add(-5*time.Minute), store.noShowCutoff)
}

func TestRunOnceSkipsFailingDocuments(t *testing.T) {
	store := newSweepMock()
	bad, good := uuid.New(), uuid.New()
	store.timedOutRequests = []uuid.UUID{bad, good}
	store.expireRequestErrs[bad] = errors.New("deadlock detected")

	w := NewWorker(store, sweepConfig())
	w.RunOnce(context.Background())

	assert.Equal(t, []uuid.UUID{good}, store.expiredRequests,
		"one failing document must not stop the sweep")
}

func TestRunOnceToleratesGuardMisses(t *testing.T) {
	store := newSweepMock()
	raced := uuid.New()
	store.expiredOffers = []uuid.UUID{raced}
	store.guardMisses[raced] = true

	w := NewWorker(store, sweepConfig())
	w.RunOnce(context.Background())

	assert.Empty(t, store.expiredTrips, "a document that moved on is skipped silently")
}

func TestStopEndsLoop(t *testing.T) {
	store := newSweepMock()
	cfg := sweepConfig()
	cfg.SweepInterval = 10 * time.Millisecond
	w := NewWorker(store, cfg)

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
