package frames

import (
	"math"
	"time"
)

// ToLocal converts an inertial position into the observer-local tangent-plane
// frame at the given instant: East-North-Up, or North-East-Down when down is
// true. The returned vector carries the axis components in the order of the
// chosen frame. Look angles are derived from the ENU components: range is the
// Euclidean norm, azimuth is atan2(east, north) normalized to [0,360), and
// elevation is asin(up/range), defined as 0 when range is 0.
func ToLocal(pos Vector3, obs Observer, t time.Time, down bool) (Vector3, LookAngles, error) {
	if err := validateObserver(&obs); err != nil {
		return Vector3{}, LookAngles{}, err
	}

	satECEF := ToEarthFixed(pos, t)
	obsECEF := ObserverEarthFixed(obs)

	dx := satECEF.X - obsECEF.X
	dy := satECEF.Y - obsECEF.Y
	dz := satECEF.Z - obsECEF.Z

	lat := obs.LatDeg * math.Pi / 180.0
	lon := obs.LonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	sinLon := math.Sin(lon)
	cosLon := math.Cos(lon)

	// Standard ENU rotation of the Earth-fixed range vector.
	east := -sinLon*dx + cosLon*dy
	north := -sinLat*cosLon*dx - sinLat*sinLon*dy + cosLat*dz
	up := cosLat*cosLon*dx + cosLat*sinLon*dy + sinLat*dz

	rangeKm := math.Sqrt(east*east + north*north + up*up)

	var elevation float64
	if rangeKm > 0 {
		elevation = math.Asin(up/rangeKm) * 180.0 / math.Pi
	}

	azimuth := normalizeAzimuth(math.Atan2(east, north) * 180.0 / math.Pi)

	la := LookAngles{
		AzimuthDeg:   azimuth,
		ElevationDeg: elevation,
		RangeKm:      rangeKm,
	}

	if down {
		return Vector3{X: north, Y: east, Z: -up}, la, nil
	}
	return Vector3{X: east, Y: north, Z: up}, la, nil
}

// normalizeAzimuth maps an angle in degrees onto [0,360). Adding 360 to an
// infinitesimally negative atan2 result rounds to exactly 360.0, so the upper
// bound is clamped back to 0.
func normalizeAzimuth(deg float64) float64 {
	az := math.Mod(deg, 360.0)
	if az < 0 {
		az += 360.0
	}
	if az >= 360.0 {
		az = 0
	}
	return az
}

// Observe converts a position given in an inertial or Earth-fixed frame into
// the observer-local frame, returning the look angles alongside the local
// vector. Other source frames are rejected.
func Observe(pos Vector3, from Frame, obs Observer, t time.Time, down bool) (Vector3, LookAngles, error) {
	switch from {
	case Inertial:
	case EarthFixed:
		pos = ToInertial(pos, t)
	default:
		to := LocalENU
		if down {
			to = LocalNED
		}
		return Vector3{}, LookAngles{}, &UnsupportedTransformError{From: from, To: to}
	}
	return ToLocal(pos, obs, t, down)
}
