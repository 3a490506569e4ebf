package frames

import "math"

// WGS-84 ellipsoid parameters (kilometers).
const (
	wgs84A  = 6378.137              // semi-major axis
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// EarthFixedToGeodetic converts an Earth-fixed position (km) to geodetic
// coordinates packed as (latitude deg, longitude deg, altitude km).
//
// Longitude is closed-form atan2(y,x), output in (-180,180]. Latitude uses
// Bowring-style iterative refinement with a fixed five iterations over the
// WGS-84 ellipsoid; altitude comes from the final iteration's prime-vertical
// radius. No time dependency.
func EarthFixedToGeodetic(pos Vector3) Vector3 {
	lon := math.Atan2(pos.Y, pos.X)

	p := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y)

	// Initial estimate.
	lat := math.Atan2(pos.Z, p*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(pos.Z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(pos.Z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return Vector3{
		X: lat * 180.0 / math.Pi,
		Y: lon * 180.0 / math.Pi,
		Z: alt,
	}
}

// GeodeticToEarthFixed converts geodetic coordinates (degrees, degrees, km)
// to an Earth-fixed Cartesian position in km. Closed-form; inverse of
// EarthFixedToGeodetic to ellipsoid-model precision.
func GeodeticToEarthFixed(latDeg, lonDeg, altKm float64) Vector3 {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Vector3{
		X: (N + altKm) * cosLat * math.Cos(lon),
		Y: (N + altKm) * cosLat * math.Sin(lon),
		Z: (N*(1-wgs84E2) + altKm) * sinLat,
	}
}

// ObserverEarthFixed returns the observer's Earth-fixed position in km.
func ObserverEarthFixed(obs Observer) Vector3 {
	return GeodeticToEarthFixed(obs.LatDeg, obs.LonDeg, obs.AltKm)
}
