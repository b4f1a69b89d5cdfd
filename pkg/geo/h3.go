package geo

import (
	"github.com/uber/h3-go/v4"
)

// H3 resolution levels.
// See: https://h3geo.org/docs/core-library/restable
const (
	// H3ResolutionHazard is used for road-hazard overlap (~1.2 km edge).
	// Coarse on purpose: a hazard affects its surroundings, not one street.
	H3ResolutionHazard = 7

	// H3ResolutionDriver is used for driver location cells (~175 m edge).
	H3ResolutionDriver = 9

	// routeSamples is the number of midpoints sampled along a route for
	// hazard overlap.
	routeSamples = 12
)

// LatLngToCell converts latitude/longitude to an H3 cell index at the given
// resolution. Input is validated upstream; invalid coordinates map to cell 0.
func LatLngToCell(lat, lng float64, resolution int) h3.Cell {
	latLng := h3.NewLatLng(lat, lng)
	cell, err := h3.LatLngToCell(latLng, resolution)
	if err != nil {
		return 0
	}
	return cell
}

// HazardCell returns the hazard-resolution cell (as string) for a location.
func HazardCell(lat, lng float64) string {
	return LatLngToCell(lat, lng, H3ResolutionHazard).String()
}

// DriverCell returns the driver-resolution cell (as string) for a location.
func DriverCell(lat, lng float64) string {
	return LatLngToCell(lat, lng, H3ResolutionDriver).String()
}

// RouteCells returns the deduplicated hazard-resolution cells covering the
// sampled midpoints of the straight route between pickup and dropoff.
func RouteCells(from, to Point) []string {
	seen := make(map[string]struct{})
	cells := make([]string, 0, routeSamples)
	for _, p := range SampleRoute(from, to, routeSamples) {
		cell := HazardCell(p.Lat, p.Lng)
		if _, ok := seen[cell]; ok {
			continue
		}
		seen[cell] = struct{}{}
		cells = append(cells, cell)
	}
	return cells
}
