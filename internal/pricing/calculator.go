// Package pricing holds the server-authoritative fare calculation.
// Prices are integral ILS; the client's submitted estimate is never trusted.
package pricing

import "math"

// Defaults for the pilot rollout.
const (
	DefaultMinFareIls = 5
	DefaultRatePerKm  = 0.5
)

// Calculator computes trip prices from distance. It is a pure function of its
// coefficients; the engine constructs one at startup from config.
type Calculator struct {
	MinFareIls int
	RatePerKm  float64
}

// NewCalculator creates a calculator, falling back to pilot defaults for
// non-positive coefficients.
func NewCalculator(minFareIls int, ratePerKm float64) *Calculator {
	if minFareIls <= 0 {
		minFareIls = DefaultMinFareIls
	}
	if ratePerKm <= 0 {
		ratePerKm = DefaultRatePerKm
	}
	return &Calculator{MinFareIls: minFareIls, RatePerKm: ratePerKm}
}

// Price returns the fare in whole ILS for the given distance.
//
// The distance is rounded up to the nearest 0.1 km, multiplied by the per-km
// rate, rounded up to the nearest integer ILS, then floored at the minimum
// fare. Both roundings are in the rider's disfavour, matching the published
// tariff.
func (c *Calculator) Price(distanceKm float64) int {
	if distanceKm < 0 {
		distanceKm = 0
	}
	tenths := math.Ceil(distanceKm / 0.1)
	price := int(math.Ceil(tenths * 0.1 * c.RatePerKm))
	if price < c.MinFareIls {
		price = c.MinFareIls
	}
	return price
}
