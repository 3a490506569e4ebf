package frames

import "time"

// transformFunc converts pos between a fixed frame pair at instant t.
// obs is non-nil (and already validated) only for local targets.
type transformFunc func(pos Vector3, t time.Time, obs *Observer) (Vector3, error)

type framePair struct {
	from, to Frame
}

// transformTable registers the supported frame pairs. Anything not listed is
// rejected at lookup time. Local frames never appear as a source: the core
// computes local coordinates but does not transform back from them.
var transformTable = map[framePair]transformFunc{
	{Inertial, EarthFixed}: func(pos Vector3, t time.Time, _ *Observer) (Vector3, error) {
		return ToEarthFixed(pos, t), nil
	},
	{EarthFixed, Inertial}: func(pos Vector3, t time.Time, _ *Observer) (Vector3, error) {
		return ToInertial(pos, t), nil
	},
	{EarthFixed, Geodetic}: func(pos Vector3, _ time.Time, _ *Observer) (Vector3, error) {
		return EarthFixedToGeodetic(pos), nil
	},
	{Geodetic, EarthFixed}: func(pos Vector3, _ time.Time, _ *Observer) (Vector3, error) {
		return GeodeticToEarthFixed(pos.X, pos.Y, pos.Z), nil
	},
	{Inertial, LocalENU}: func(pos Vector3, t time.Time, obs *Observer) (Vector3, error) {
		v, _, err := Observe(pos, Inertial, *obs, t, false)
		return v, err
	},
	{Inertial, LocalNED}: func(pos Vector3, t time.Time, obs *Observer) (Vector3, error) {
		v, _, err := Observe(pos, Inertial, *obs, t, true)
		return v, err
	},
	// Earth-fixed sources reach local frames by chaining through inertial,
	// inheriting the geodetic round-trip of ToInertial.
	{EarthFixed, LocalENU}: func(pos Vector3, t time.Time, obs *Observer) (Vector3, error) {
		v, _, err := Observe(pos, EarthFixed, *obs, t, false)
		return v, err
	},
	{EarthFixed, LocalNED}: func(pos Vector3, t time.Time, obs *Observer) (Vector3, error) {
		v, _, err := Observe(pos, EarthFixed, *obs, t, true)
		return v, err
	},
}

// Transform converts pos from one frame to another at the given instant.
// Local targets require an observer with latitude in [-90,90] and longitude
// in [-180,180]; the observer is checked before any computation. Frame pairs
// without a registered transform fail with UnsupportedTransformError.
func Transform(pos Vector3, from, to Frame, t time.Time, obs *Observer) (Vector3, error) {
	fn, ok := transformTable[framePair{from, to}]
	if !ok {
		return Vector3{}, &UnsupportedTransformError{From: from, To: to}
	}
	if to == LocalENU || to == LocalNED {
		if err := validateObserver(obs); err != nil {
			return Vector3{}, err
		}
	}
	return fn(pos, t, obs)
}
