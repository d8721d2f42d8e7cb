package pricing

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two
// (latitude, longitude) pairs.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DeliveryFeeCents prices a delivery. Partial kilometers cost a full
// per-kilometer increment.
func DeliveryFeeCents(distanceKm float64, baseCents, perKmCents int64) int64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	return baseCents + int64(math.Ceil(distanceKm))*perKmCents
}

// OutOfRange reports whether the drop point exceeds the serviceable radius.
func OutOfRange(distanceKm, maxRadiusKm float64) bool {
	return distanceKm > maxRadiusKm
}
