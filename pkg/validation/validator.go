package validation

import (
	"github.com/go-playground/validator/v10"
)

// Validate is the global validator instance used outside of gin binding
// (services validate again before writing; handlers already bind-validate).
var Validate *validator.Validate

func init() {
	Validate = validator.New()
}

// ValidateStruct validates a struct using its validate/binding tags.
func ValidateStruct(s interface{}) error {
	return Validate.Struct(s)
}

// ValidCoordinate reports whether lat/lng form a real WGS84 coordinate.
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90.0 && lat <= 90.0 && lng >= -180.0 && lng <= 180.0
}
