// Package frames provides coordinate frame transformations for satellite
// positions: inertial (ECI), Earth-fixed (ECEF), geodetic, and observer-local
// topocentric frames (ENU/NED), plus look-angle computation.
//
// Positions are kilometers, velocities km/s. Angles are degrees at the public
// boundary and radians internally. Geodetic "vectors" reuse the Vector3 slots
// as (latitude deg, longitude deg, altitude km).
package frames

import (
	"fmt"
	"strings"
)

// Frame identifies a reference frame.
type Frame int

const (
	// Inertial is the Earth-centered inertial frame (ECI) used for orbital state.
	Inertial Frame = iota
	// EarthFixed is the Earth-centered Earth-fixed frame (ECEF).
	EarthFixed
	// Geodetic is latitude/longitude/altitude over the WGS-84 ellipsoid.
	Geodetic
	// LocalENU is the observer-local East-North-Up tangent plane frame.
	LocalENU
	// LocalNED is the observer-local North-East-Down tangent plane frame.
	LocalNED
)

var frameNames = map[Frame]string{
	Inertial:   "ECI",
	EarthFixed: "ECEF",
	Geodetic:   "Geodetic",
	LocalENU:   "ENU",
	LocalNED:   "NED",
}

func (f Frame) String() string {
	if s, ok := frameNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Frame(%d)", int(f))
}

// ParseFrame resolves a case-insensitive frame name from the closed set the
// REST surface accepts. Unknown names return an error, not a zero frame.
func ParseFrame(s string) (Frame, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eci", "inertial":
		return Inertial, nil
	case "ecef", "earthfixed", "earth_fixed":
		return EarthFixed, nil
	case "geodetic":
		return Geodetic, nil
	case "enu", "localenu", "local_enu":
		return LocalENU, nil
	case "ned", "localned", "local_ned":
		return LocalNED, nil
	}
	return 0, fmt.Errorf("unknown frame name %q", s)
}

// Vector3 is a position triple in kilometers (or degrees/degrees/km for
// Geodetic). Values are immutable once produced.
type Vector3 struct {
	X, Y, Z float64
}

// Observer is a ground location in geodetic coordinates.
type Observer struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// LookAngles holds azimuth, elevation, and range from an observer to a target.
// Azimuth is degrees clockwise from North in [0,360); elevation is degrees
// above the horizon in [-90,90].
type LookAngles struct {
	AzimuthDeg   float64 `json:"azimuth_deg"`
	ElevationDeg float64 `json:"elevation_deg"`
	RangeKm      float64 `json:"range_km"`
}

// UnsupportedTransformError reports a frame pair with no registered transform.
type UnsupportedTransformError struct {
	From, To Frame
}

func (e *UnsupportedTransformError) Error() string {
	return fmt.Sprintf("unsupported transform: %s -> %s", e.From, e.To)
}

// MissingObserverError reports a local-frame request without a usable
// observer location.
type MissingObserverError struct {
	Reason string
}

func (e *MissingObserverError) Error() string {
	return "observer location: " + e.Reason
}

// validateObserver checks the observer exists and its coordinates are within
// the valid degree ranges. Runs before any computation for local targets.
func validateObserver(obs *Observer) error {
	if obs == nil {
		return &MissingObserverError{Reason: "required for local frames"}
	}
	if obs.LatDeg < -90 || obs.LatDeg > 90 {
		return &MissingObserverError{Reason: fmt.Sprintf("latitude %.4f out of range [-90,90]", obs.LatDeg)}
	}
	if obs.LonDeg < -180 || obs.LonDeg > 180 {
		return &MissingObserverError{Reason: fmt.Sprintf("longitude %.4f out of range [-180,180]", obs.LonDeg)}
	}
	return nil
}
