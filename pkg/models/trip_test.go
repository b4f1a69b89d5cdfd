package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TripStatus
		want     bool
	}{
		{TripStatusPending, TripStatusAccepted, true},
		{TripStatusPending, TripStatusNoDriverAvailable, true},
		{TripStatusPending, TripStatusCancelledByPassenger, true},
		{TripStatusPending, TripStatusInProgress, false},
		{TripStatusPending, TripStatusCompleted, false},
		{TripStatusAccepted, TripStatusDriverArrived, true},
		{TripStatusAccepted, TripStatusCancelledByDriver, true},
		{TripStatusAccepted, TripStatusInProgress, false},
		{TripStatusDriverArrived, TripStatusInProgress, true},
		{TripStatusDriverArrived, TripStatusCancelledByPassenger, false},
		{TripStatusInProgress, TripStatusCompleted, true},
		{TripStatusInProgress, TripStatusCancelledByDriver, false},
		{TripStatusInProgress, TripStatusCancelledBySystem, true},
		{TripStatusCompleted, TripStatusInProgress, false},
		{TripStatusCancelledByPassenger, TripStatusAccepted, false},
		{TripStatusNoDriverAvailable, TripStatusAccepted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	all := []TripStatus{
		TripStatusPending, TripStatusAccepted, TripStatusDriverArrived,
		TripStatusInProgress, TripStatusCompleted, TripStatusCancelledByPassenger,
		TripStatusCancelledByDriver, TripStatusCancelledBySystem,
		TripStatusNoDriverAvailable,
	}

	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, CanTransition(from, to),
				"terminal %s must not transition to %s", from, to)
		}
	}
}

func TestIsActiveMatchesActiveTripStatuses(t *testing.T) {
	for _, s := range ActiveTripStatuses {
		assert.True(t, s.IsActive())
		assert.False(t, s.IsTerminal())
	}

	for _, s := range []TripStatus{
		TripStatusCompleted,
		TripStatusCancelledByPassenger,
		TripStatusCancelledByDriver,
		TripStatusCancelledBySystem,
		TripStatusNoDriverAvailable,
	} {
		assert.False(t, s.IsActive())
		assert.True(t, s.IsTerminal())
	}
}

func TestOfferStatusIsTerminal(t *testing.T) {
	assert.False(t, OfferStatusPending.IsTerminal())
	assert.True(t, OfferStatusAccepted.IsTerminal())
	assert.True(t, OfferStatusRejected.IsTerminal())
	assert.True(t, OfferStatusCancelled.IsTerminal())
	assert.True(t, OfferStatusExpired.IsTerminal())
}
