// Package matching admits trip requests and pairs them with the nearest
// available driver. Admission is synchronous: within the callable budget the
// passenger learns either their matched trip or that the search continues in
// the background until the search window lapses.
package matching

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/internal/pricing"
	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/config"
	"github.com/mishwari/taxi-dispatch/pkg/eventbus"
	"github.com/mishwari/taxi-dispatch/pkg/geo"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
	"github.com/mishwari/taxi-dispatch/pkg/metrics"
	"github.com/mishwari/taxi-dispatch/pkg/models"
	redisClient "github.com/mishwari/taxi-dispatch/pkg/redis"
	"github.com/mishwari/taxi-dispatch/pkg/validation"
)

// Match outcomes returned to the passenger.
const (
	OutcomeMatched   = "matched"
	OutcomeSearching = "searching"
)

// maxEstimateDistanceKm bounds a plausible client route estimate.
const maxEstimateDistanceKm = 500.0

// Store abstracts request/claim persistence for testing.
type Store interface {
	CreateRequest(ctx context.Context, req *models.TripRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*models.TripRequest, error)
	CountActiveTripsByPassenger(ctx context.Context, passengerID uuid.UUID) (int, error)
	ClaimDriver(ctx context.Context, req *models.TripRequest, driverID uuid.UUID, offerExpiry time.Time) (*models.Trip, bool, error)
}

// DriverLister supplies matching candidates.
type DriverLister interface {
	ListAvailable(ctx context.Context) ([]*models.Driver, error)
}

// FlagReader reports the kill switch state.
type FlagReader interface {
	Get(ctx context.Context) *models.SystemConfig
}

// HazardChecker reports hazards along the planned route.
type HazardChecker interface {
	CheckRoute(ctx context.Context, from, to geo.Point) []*models.RoadHazard
}

// MatchResult is the synchronous answer to a trip request.
type MatchResult struct {
	Outcome        string               `json:"outcome"`
	Request        *models.TripRequest  `json:"request"`
	Trip           *models.Trip         `json:"trip,omitempty"`
	OfferExpiresAt *time.Time           `json:"offer_expires_at,omitempty"`
	Hazards        []*models.RoadHazard `json:"hazards,omitempty"`
}

// Service handles trip admission and driver matching
type Service struct {
	store   Store
	drivers DriverLister
	flags   FlagReader
	hazards HazardChecker
	calc    *pricing.Calculator
	redis   redisClient.ClientInterface
	events  eventbus.Publisher
	cfg     config.DispatchConfig
}

// NewService creates a new matching service
func NewService(
	store Store,
	drivers DriverLister,
	flags FlagReader,
	hazards HazardChecker,
	calc *pricing.Calculator,
	redis redisClient.ClientInterface,
	events eventbus.Publisher,
	cfg config.DispatchConfig,
) *Service {
	return &Service{
		store:   store,
		drivers: drivers,
		flags:   flags,
		hazards: hazards,
		calc:    calc,
		redis:   redis,
		events:  events,
		cfg:     cfg,
	}
}

// RequestTrip admits a passenger's request and attempts an immediate match.
func (s *Service) RequestTrip(ctx context.Context, passengerID uuid.UUID, input *models.RequestTripInput) (*MatchResult, error) {
	if !s.flags.Get(ctx).TripsEnabled {
		metrics.TripRequests.WithLabelValues("disabled").Inc()
		return nil, common.NewServiceDisabledError("trip requests are temporarily disabled")
	}

	if !validation.ValidCoordinate(input.PickupLatitude, input.PickupLongitude) ||
		!validation.ValidCoordinate(input.DropoffLatitude, input.DropoffLongitude) {
		return nil, common.NewInvalidArgumentError("coordinates out of range")
	}

	active, err := s.store.CountActiveTripsByPassenger(ctx, passengerID)
	if err != nil {
		return nil, common.NewInternalError("failed to check active trips", err)
	}
	if active >= s.cfg.MaxActiveTripsPerPassenger {
		metrics.TripRequests.WithLabelValues("rejected").Inc()
		return nil, common.NewConflictError("you already have an active trip")
	}

	pickup := geo.Point{Lat: input.PickupLatitude, Lng: input.PickupLongitude}
	dropoff := geo.Point{Lat: input.DropoffLatitude, Lng: input.DropoffLongitude}

	// Route distance and duration come from the client, which has the road
	// network. Only the fare is recomputed here, so the client can never set
	// its own price.
	distanceKm := input.Estimate.DistanceKm
	durationMin := input.Estimate.DurationMin
	if distanceKm <= 0 || distanceKm > maxEstimateDistanceKm {
		return nil, common.NewInvalidArgumentError("distance estimate out of range")
	}
	priceIls := s.calc.Price(distanceKm)

	if input.Estimate.PriceIls != priceIls {
		logger.WarnContext(ctx, "client price estimate diverges",
			zap.Int("client_price_ils", input.Estimate.PriceIls),
			zap.Int("server_price_ils", priceIls),
			zap.Float64("distance_km", distanceKm),
		)
	}

	req := &models.TripRequest{
		ID:                   uuid.New(),
		PassengerID:          passengerID,
		PickupLatitude:       pickup.Lat,
		PickupLongitude:      pickup.Lng,
		DropoffLatitude:      dropoff.Lat,
		DropoffLongitude:     dropoff.Lng,
		EstimatedDistanceKm:  distanceKm,
		EstimatedDurationMin: durationMin,
		EstimatedPriceIls:    priceIls,
		Status:               models.RequestStatusOpen,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, common.NewInternalError("failed to create trip request", err)
	}

	hazardWarnings := s.hazards.CheckRoute(ctx, pickup, dropoff)

	matchStart := time.Now()
	trip, offerExpiry, err := s.match(ctx, req, pickup)
	if err != nil {
		return nil, err
	}
	metrics.MatchingDuration.Observe(time.Since(matchStart).Seconds())

	result := &MatchResult{
		Request: req,
		Hazards: hazardWarnings,
	}

	if trip == nil {
		metrics.TripRequests.WithLabelValues(OutcomeSearching).Inc()
		result.Outcome = OutcomeSearching
		s.publishRequested(ctx, req, nil)
		logger.InfoContext(ctx, "no driver matched, request left open",
			zap.String("request_id", req.ID.String()),
		)
		return result, nil
	}

	metrics.TripRequests.WithLabelValues(OutcomeMatched).Inc()
	result.Outcome = OutcomeMatched
	result.Trip = trip
	result.OfferExpiresAt = &offerExpiry

	s.mirrorOffer(ctx, trip)
	s.publishRequested(ctx, req, trip)

	logger.InfoContext(ctx, "trip matched",
		zap.String("request_id", req.ID.String()),
		zap.String("trip_id", trip.ID.String()),
		zap.String("driver_id", trip.DriverID.String()),
		zap.Int("price_ils", trip.EstimatedPriceIls),
	)

	return result, nil
}

// GetRequest returns the passenger's own admission record. Clients poll this
// while a request is still searching.
func (s *Service) GetRequest(ctx context.Context, requestID, passengerID uuid.UUID) (*models.TripRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, common.NewNotFoundError("trip request not found", err)
		}
		return nil, common.NewInternalError("failed to get trip request", err)
	}
	if req.PassengerID != passengerID {
		return nil, common.NewForbiddenError("not your trip request")
	}
	return req, nil
}

// match ranks candidates by pickup distance and claims the nearest. A claim
// lost to a concurrent writer is retried once against the next-nearest
// candidate; after that the request stays open for a later request or the
// sweeper.
func (s *Service) match(ctx context.Context, req *models.TripRequest, pickup geo.Point) (*models.Trip, time.Time, error) {
	candidates, err := s.drivers.ListAvailable(ctx)
	if err != nil {
		return nil, time.Time{}, common.NewInternalError("failed to list drivers", err)
	}

	type ranked struct {
		driver     *models.Driver
		distanceKm float64
	}

	inRange := make([]ranked, 0, len(candidates))
	for _, d := range candidates {
		if !d.HasLocation() {
			continue
		}
		dist := geo.Haversine(pickup.Lat, pickup.Lng, *d.LastLatitude, *d.LastLongitude)
		// Radius boundary is inclusive.
		if dist <= s.cfg.MaxSearchRadiusKm {
			inRange = append(inRange, ranked{driver: d, distanceKm: dist})
		}
	}

	sort.Slice(inRange, func(i, j int) bool {
		return inRange[i].distanceKm < inRange[j].distanceKm
	})

	const maxClaimAttempts = 2
	attempts := len(inRange)
	if attempts > maxClaimAttempts {
		attempts = maxClaimAttempts
	}

	for i := 0; i < attempts; i++ {
		offerExpiry := time.Now().Add(s.cfg.DriverResponseTimeout)
		trip, ok, err := s.store.ClaimDriver(ctx, req, inRange[i].driver.ID, offerExpiry)
		if err != nil {
			return nil, time.Time{}, common.NewInternalError("failed to claim driver", err)
		}
		if ok {
			return trip, offerExpiry, nil
		}
		metrics.ClaimRaces.Inc()
		logger.InfoContext(ctx, "driver claim lost, trying next candidate",
			zap.String("request_id", req.ID.String()),
			zap.String("driver_id", inRange[i].driver.ID.String()),
		)
	}

	return nil, time.Time{}, nil
}

// mirrorOffer writes a TTL'd offer marker to redis. Purely advisory (the
// sweeper owns authoritative expiry); gives realtime consumers a cheap read.
func (s *Service) mirrorOffer(ctx context.Context, trip *models.Trip) {
	if s.redis == nil {
		return
	}
	key := "offer:" + trip.ID.String()
	if err := s.redis.SetWithExpiration(ctx, key, trip.DriverID.String(), s.cfg.DriverResponseTimeout); err != nil {
		logger.WarnContext(ctx, "failed to mirror offer to redis", zap.Error(err))
	}
}

func (s *Service) publishRequested(ctx context.Context, req *models.TripRequest, trip *models.Trip) {
	if s.events == nil {
		return
	}
	data := eventbus.TripRequestedData{
		RequestID:         req.ID,
		PassengerID:       req.PassengerID,
		Matched:           trip != nil,
		PickupLatitude:    req.PickupLatitude,
		PickupLongitude:   req.PickupLongitude,
		DropoffLatitude:   req.DropoffLatitude,
		DropoffLongitude:  req.DropoffLongitude,
		EstimatedPriceIls: req.EstimatedPriceIls,
		RequestedAt:       req.CreatedAt,
	}
	if trip != nil {
		data.TripID = &trip.ID
		data.DriverID = &trip.DriverID
	}
	_ = s.events.Publish(ctx, eventbus.SubjectTripRequested, data)
}
