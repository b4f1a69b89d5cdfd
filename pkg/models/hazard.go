package models

import (
	"time"

	"github.com/google/uuid"
)

// HazardKind classifies a reported road hazard
type HazardKind string

const (
	HazardRoadblock  HazardKind = "roadblock"
	HazardClosure    HazardKind = "closure"
	HazardCheckpoint HazardKind = "checkpoint"
)

// RoadHazard is a driver-reported obstruction. Hazards are advisory: trip
// admission never depends on them, but request responses warn when the
// planned route overlaps an active hazard cell.
type RoadHazard struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ReportedBy uuid.UUID  `json:"reported_by" db:"reported_by"`
	Kind       HazardKind `json:"kind" db:"kind"`
	Latitude   float64    `json:"latitude" db:"latitude"`
	Longitude  float64    `json:"longitude" db:"longitude"`
	Cell       string     `json:"cell" db:"cell"`
	Active     bool       `json:"active" db:"active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
}

// ReportHazardInput is the hazard report payload
type ReportHazardInput struct {
	Kind      HazardKind `json:"kind" binding:"required,oneof=roadblock closure checkpoint"`
	Latitude  float64    `json:"latitude" binding:"required,latitude"`
	Longitude float64    `json:"longitude" binding:"required,longitude"`
}
