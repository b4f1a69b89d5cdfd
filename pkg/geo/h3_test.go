package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHazardCellStableForNearbyPoints(t *testing.T) {
	// Points a few metres apart share the coarse hazard cell.
	a := HazardCell(31.9038, 35.2034)
	b := HazardCell(31.9039, 35.2035)

	assert.NotEmpty(t, a)
	assert.Equal(t, a, b)
}

func TestDriverCellFinerThanHazardCell(t *testing.T) {
	// ~500 m apart: same hazard cell is plausible, but the driver cells differ.
	a := DriverCell(31.9038, 35.2034)
	b := DriverCell(31.9083, 35.2034)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestRouteCellsDeduplicates(t *testing.T) {
	from := Point{Lat: 31.9038, Lng: 35.2034}
	to := Point{Lat: 31.9040, Lng: 35.2036}

	// A route this short collapses into a single hazard cell.
	cells := RouteCells(from, to)

	assert.Len(t, cells, 1)
	assert.Equal(t, HazardCell(from.Lat, from.Lng), cells[0])
}

func TestRouteCellsCoverLongRoute(t *testing.T) {
	from := Point{Lat: 31.9038, Lng: 35.2034}
	to := Point{Lat: 31.8667, Lng: 35.4500}

	cells := RouteCells(from, to)

	assert.Greater(t, len(cells), 1)
	seen := make(map[string]struct{})
	for _, c := range cells {
		_, dup := seen[c]
		assert.False(t, dup, "cells must be unique")
		seen[c] = struct{}{}
	}
	assert.Contains(t, cells, HazardCell(from.Lat, from.Lng))
	assert.Contains(t, cells, HazardCell(to.Lat, to.Lng))
}
