// Package geo holds the great-circle helpers used by provider search and matching.
package geo

import "math"

// EarthRadiusMiles is the mean Earth radius used by DistanceMiles.
const EarthRadiusMiles = 3959.0

// milesPerDegreeLat is the length of one degree of latitude.
const milesPerDegreeLat = EarthRadiusMiles * math.Pi / 180.0

// DistanceMiles returns the haversine distance between two coordinates in miles.
// Inputs are expected to satisfy ValidCoordinates.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(lat1))*math.Cos(degreesToRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push a marginally past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMiles * c
}

// ValidCoordinates reports whether lat is in [-90, 90] and lon in [-180, 180].
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ValidRadius reports whether r is a finite positive search radius.
func ValidRadius(r float64) bool {
	return r > 0 && !math.IsInf(r, 1)
}

// BoundingBox is a lat/lon rectangle that contains a search circle.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBoxFor returns a rectangle enclosing every point within radiusMiles of the
// center. It over-approximates; callers still compare DistanceMiles against the radius.
// When the circle reaches a pole or crosses the antimeridian the longitude span is the
// full [-180, 180].
func BoundingBoxFor(lat, lon, radiusMiles float64) BoundingBox {
	dLat := radiusMiles / milesPerDegreeLat
	box := BoundingBox{
		MinLat: math.Max(-90, lat-dLat),
		MaxLat: math.Min(90, lat+dLat),
		MinLon: -180,
		MaxLon: 180,
	}

	if box.MinLat <= -90 || box.MaxLat >= 90 {
		return box
	}

	// The circle's widest longitude extent is reached poleward of the center, at the
	// tangent meridians: sin(dLon) = sin(r/R) / cos(lat).
	sinAngular := math.Sin(radiusMiles / EarthRadiusMiles)
	cosLat := math.Cos(degreesToRadians(lat))
	if radiusMiles/EarthRadiusMiles >= math.Pi/2 || sinAngular >= cosLat {
		return box
	}
	dLon := radiansToDegrees(math.Asin(sinAngular / cosLat))
	if lon-dLon < -180 || lon+dLon > 180 {
		return box
	}
	box.MinLon = lon - dLon
	box.MaxLon = lon + dLon
	return box
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
