package geo

import "math"

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in kilometres between two
// coordinates. The result is rounded to two decimal places.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return math.Round(earthRadiusKm*c*100) / 100
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// SampleRoute returns points sampled along the straight segment between from
// and to, endpoints included. Used for hazard overlap checks where the real
// road geometry is unknown; straight-line midpoints are close enough at the
// pilot's trip lengths.
func SampleRoute(from, to Point, samples int) []Point {
	if samples < 2 {
		samples = 2
	}
	points := make([]Point, 0, samples)
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(samples-1)
		points = append(points, Point{
			Lat: from.Lat + (to.Lat-from.Lat)*t,
			Lng: from.Lng + (to.Lng-from.Lng)*t,
		})
	}
	return points
}
