package frames

import (
	"math"
	"time"
)

// ToEarthFixed rotates an inertial position into the Earth-fixed frame at the
// given instant using the GMST angle. Deterministic for a fixed instant.
//
// r_ECEF = R3(θ) * r_ECI, where R3(θ) is a rotation about the Z-axis.
func ToEarthFixed(pos Vector3, t time.Time) Vector3 {
	gmst := GMST(t)
	return rotateZ(pos, gmst)
}

// StateToEarthFixed rotates an inertial position and velocity into the
// Earth-fixed frame. The velocity picks up the frame rotation term:
//
//	v_ECEF = R3(θ) * v_ECI - ω × r_ECEF
//
// where ω = [0, 0, ω_earth] is Earth's angular velocity vector.
func StateToEarthFixed(pos, vel Vector3, t time.Time) (Vector3, Vector3) {
	gmst := GMST(t)
	rECEF := rotateZ(pos, gmst)
	vRot := rotateZ(vel, gmst)

	// ω × r_ECEF = [-ω*y, ω*x, 0]
	vECEF := Vector3{
		X: vRot.X + OmegaEarth*rECEF.Y,
		Y: vRot.Y - OmegaEarth*rECEF.X,
		Z: vRot.Z,
	}
	return rECEF, vECEF
}

// ToInertial converts an Earth-fixed position back to the inertial frame.
//
// The route goes through geodetic coordinates (Earth-fixed -> geodetic ->
// Earth-fixed -> inertial) rather than applying a literal inverse rotation,
// mirroring the reference behavior of constructing an observer location and
// evaluating it in the inertial frame. The iterative latitude solve makes the
// round-trip inexact at the sub-meter level; that trade-off is intentional
// and kept.
func ToInertial(pos Vector3, t time.Time) Vector3 {
	geo := EarthFixedToGeodetic(pos)
	ecef := GeodeticToEarthFixed(geo.X, geo.Y, geo.Z)
	return rotateZ(ecef, -GMST(t))
}

// rotateZ rotates v about the Z-axis by theta radians.
func rotateZ(v Vector3, theta float64) Vector3 {
	c := math.Cos(theta)
	s := math.Sin(theta)
	return Vector3{
		X: v.X*c + v.Y*s,
		Y: -v.X*s + v.Y*c,
		Z: v.Z,
	}
}
