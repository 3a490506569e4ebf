package frames

import (
	"errors"
	"math"
	"testing"
	"time"
)

var testInstant = time.Date(2025, 2, 14, 4, 19, 40, 0, time.UTC)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		in   string
		want Frame
	}{
		{"eci", Inertial},
		{"ECI", Inertial},
		{"inertial", Inertial},
		{"ecef", EarthFixed},
		{"EarthFixed", EarthFixed},
		{"earth_fixed", EarthFixed},
		{"geodetic", Geodetic},
		{"enu", LocalENU},
		{"LocalENU", LocalENU},
		{"ned", LocalNED},
		{"local_ned", LocalNED},
		{"  eci  ", Inertial},
	}
	for _, tt := range tests {
		got, err := ParseFrame(tt.in)
		if err != nil {
			t.Errorf("ParseFrame(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFrame(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "teme", "icrf", "lla2"} {
		if _, err := ParseFrame(bad); err == nil {
			t.Errorf("ParseFrame(%q) should fail", bad)
		}
	}
}

func TestGMSTReferenceEpoch(t *testing.T) {
	// GMST at the J2000 epoch is 280.46062 degrees (Vallado).
	j2000 := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	got := GMST(j2000) * 180.0 / math.Pi
	if math.Abs(got-280.46062) > 0.01 {
		t.Errorf("GMST(J2000) = %.5f deg, want ~280.46062", got)
	}
}

func TestEarthFixedRoundTrip(t *testing.T) {
	// ECI -> ECEF -> ECI must come back within a fraction of a meter; the
	// return leg runs through the geodetic round trip.
	positions := []Vector3{
		{X: 6778.0, Y: 0, Z: 0},
		{X: 4000.0, Y: 3000.0, Z: 2000.0},
		{X: -5000.0, Y: 1200.0, Z: -4300.0},
		{X: 0, Y: 0, Z: 7000.0},
	}

	for _, pos := range positions {
		ecef := ToEarthFixed(pos, testInstant)
		back := ToInertial(ecef, testInstant)

		dx := back.X - pos.X
		dy := back.Y - pos.Y
		dz := back.Z - pos.Z
		if d := math.Sqrt(dx*dx + dy*dy + dz*dz); d > 1e-3 {
			t.Errorf("round trip error for %v = %.6f km", pos, d)
		}
	}
}

func TestGeodeticRoundTrip(t *testing.T) {
	tests := []struct {
		lat, lon, alt float64
	}{
		{0, 0, 0},
		{43.47151, 27.78379, 0.05},
		{-33.8688, 151.2093, 0.019},
		{89.9, 0, 0.1},
		{-89.9, -120, 2.0},
		{51.5, -0.12, 408.0},
	}

	for _, tt := range tests {
		ecef := GeodeticToEarthFixed(tt.lat, tt.lon, tt.alt)
		geo := EarthFixedToGeodetic(ecef)

		if math.Abs(geo.X-tt.lat) > 1e-4 {
			t.Errorf("lat %.5f -> %.5f", tt.lat, geo.X)
		}
		if math.Abs(geo.Y-tt.lon) > 1e-4 {
			t.Errorf("lon %.5f -> %.5f", tt.lon, geo.Y)
		}
		if math.Abs(geo.Z-tt.alt) > 1e-3 {
			t.Errorf("alt %.4f -> %.4f", tt.alt, geo.Z)
		}
	}
}

func TestObserverEarthFixedMagnitude(t *testing.T) {
	// Sea-level observer at the equator sits at the WGS-84 equatorial radius.
	eq := ObserverEarthFixed(Observer{LatDeg: 0, LonDeg: 0, AltKm: 0})
	if mag := math.Sqrt(eq.X*eq.X + eq.Y*eq.Y + eq.Z*eq.Z); math.Abs(mag-6378.137) > 0.001 {
		t.Errorf("equatorial magnitude = %.4f km, want ~6378.137", mag)
	}

	// Polar observer sits at the polar radius.
	pole := ObserverEarthFixed(Observer{LatDeg: 90, LonDeg: 0, AltKm: 0})
	if mag := math.Sqrt(pole.X*pole.X + pole.Y*pole.Y + pole.Z*pole.Z); math.Abs(mag-6356.7523) > 0.001 {
		t.Errorf("polar magnitude = %.4f km, want ~6356.752", mag)
	}
}

func TestStateToEarthFixedCorotating(t *testing.T) {
	// A point fixed on the rotating Earth has inertial velocity omega x r.
	// Its Earth-fixed velocity must therefore be ~zero.
	ecef := Vector3{X: 42164.0, Y: 0, Z: 0}
	posECI := ToInertial(ecef, testInstant)
	velECI := Vector3{
		X: -OmegaEarth * posECI.Y,
		Y: OmegaEarth * posECI.X,
		Z: 0,
	}

	_, velOut := StateToEarthFixed(posECI, velECI, testInstant)
	if mag := math.Sqrt(velOut.X*velOut.X + velOut.Y*velOut.Y + velOut.Z*velOut.Z); mag > 1e-6 {
		t.Errorf("co-rotating point velocity = %.9f km/s, want ~0", mag)
	}
}

// inertialAbove builds an inertial position that sits at the given geodetic
// point at the test instant.
func inertialAbove(lat, lon, altKm float64) Vector3 {
	return ToInertial(GeodeticToEarthFixed(lat, lon, altKm), testInstant)
}

func TestLookAnglesOverhead(t *testing.T) {
	obs := Observer{LatDeg: 0, LonDeg: 0, AltKm: 0}
	pos := inertialAbove(0, 0, 400.0)

	_, la, err := ToLocal(pos, obs, testInstant, false)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(la.ElevationDeg-90.0) > 0.1 {
		t.Errorf("overhead elevation = %.2f deg, want ~90", la.ElevationDeg)
	}
	if math.Abs(la.RangeKm-400.0) > 1.0 {
		t.Errorf("overhead range = %.2f km, want ~400", la.RangeKm)
	}
}

func TestLookAnglesAzimuthDirections(t *testing.T) {
	obs := Observer{LatDeg: 0, LonDeg: 0, AltKm: 0}

	// North.
	_, laN, err := ToLocal(inertialAbove(10, 0, 400), obs, testInstant, false)
	if err != nil {
		t.Fatal(err)
	}
	if laN.AzimuthDeg > 30 && laN.AzimuthDeg < 330 {
		t.Errorf("northward azimuth = %.2f deg, want near 0/360", laN.AzimuthDeg)
	}

	// East.
	_, laE, err := ToLocal(inertialAbove(0, 10, 400), obs, testInstant, false)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(laE.AzimuthDeg-90.0) > 30 {
		t.Errorf("eastward azimuth = %.2f deg, want near 90", laE.AzimuthDeg)
	}

	// South.
	_, laS, err := ToLocal(inertialAbove(-10, 0, 400), obs, testInstant, false)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(laS.AzimuthDeg-180.0) > 30 {
		t.Errorf("southward azimuth = %.2f deg, want near 180", laS.AzimuthDeg)
	}
}

func TestLookAngleRanges(t *testing.T) {
	obs := Observer{LatDeg: 43.47151, LonDeg: 27.78379, AltKm: 0.05}

	positions := []Vector3{
		{X: 4000, Y: 3000, Z: 2000},
		{X: -6778, Y: 0, Z: 0},
		{X: 0, Y: 6778, Z: 0},
		{X: 1000, Y: -2000, Z: 6500},
		{X: -4200, Y: -4200, Z: -2000},
	}

	for _, pos := range positions {
		enu, la, err := ToLocal(pos, obs, testInstant, false)
		if err != nil {
			t.Fatal(err)
		}
		if la.AzimuthDeg < 0 || la.AzimuthDeg >= 360 {
			t.Errorf("azimuth %.4f out of [0,360) for %v", la.AzimuthDeg, pos)
		}
		if la.ElevationDeg < -90 || la.ElevationDeg > 90 {
			t.Errorf("elevation %.4f out of [-90,90] for %v", la.ElevationDeg, pos)
		}
		if want := math.Sqrt(enu.X*enu.X + enu.Y*enu.Y + enu.Z*enu.Z); math.Abs(la.RangeKm-want) > 1e-9 {
			t.Errorf("range %.6f != |ENU| %.6f", la.RangeKm, want)
		}
		if math.IsNaN(la.RangeKm) || math.IsInf(la.RangeKm, 0) {
			t.Errorf("non-finite range for %v", pos)
		}
	}
}

func TestNormalizeAzimuthDomain(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{90, 90},
		{-90, 270},
		{450, 90},
		{360, 0},
		{-360, 0},
		{359.999, 359.999},
		// A target due north with an east component an ulp below zero gives
		// atan2 a tiny negative result; the wrap must not land on 360.0.
		{-1e-18, 0},
	}
	for _, tc := range cases {
		got := normalizeAzimuth(tc.in)
		if got < 0 || got >= 360 {
			t.Errorf("normalizeAzimuth(%v) = %v, outside [0,360)", tc.in, got)
		}
		if got != tc.want {
			t.Errorf("normalizeAzimuth(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNEDMatchesENU(t *testing.T) {
	obs := Observer{LatDeg: 43.47151, LonDeg: 27.78379, AltKm: 0.05}
	pos := Vector3{X: 4000, Y: 3000, Z: 2000}

	enu, laENU, err := ToLocal(pos, obs, testInstant, false)
	if err != nil {
		t.Fatal(err)
	}
	ned, laNED, err := ToLocal(pos, obs, testInstant, true)
	if err != nil {
		t.Fatal(err)
	}

	if ned.X != enu.Y || ned.Y != enu.X || ned.Z != -enu.Z {
		t.Errorf("NED %v does not match ENU %v reordered", ned, enu)
	}
	if laENU != laNED {
		t.Errorf("look angles differ between ENU and NED: %+v vs %+v", laENU, laNED)
	}
}

func TestTransformDispatch(t *testing.T) {
	obs := &Observer{LatDeg: 43.47151, LonDeg: 27.78379, AltKm: 0.05}
	pos := Vector3{X: 4000, Y: 3000, Z: 2000}

	supported := []struct {
		from, to Frame
		obs      *Observer
	}{
		{Inertial, EarthFixed, nil},
		{EarthFixed, Inertial, nil},
		{EarthFixed, Geodetic, nil},
		{Geodetic, EarthFixed, nil},
		{Inertial, LocalENU, obs},
		{Inertial, LocalNED, obs},
		{EarthFixed, LocalENU, obs},
		{EarthFixed, LocalNED, obs},
	}
	for _, tt := range supported {
		in := pos
		if tt.from == Geodetic {
			in = Vector3{X: 43.47, Y: 27.78, Z: 0.05}
		}
		if _, err := Transform(in, tt.from, tt.to, testInstant, tt.obs); err != nil {
			t.Errorf("Transform(%v -> %v): %v", tt.from, tt.to, err)
		}
	}

	unsupported := []struct{ from, to Frame }{
		{Geodetic, Inertial},
		{Geodetic, LocalENU},
		{LocalENU, Inertial},
		{LocalNED, EarthFixed},
		{LocalENU, LocalNED},
		{Inertial, Inertial},
	}
	for _, tt := range unsupported {
		_, err := Transform(pos, tt.from, tt.to, testInstant, obs)
		var unsupportedErr *UnsupportedTransformError
		if !errors.As(err, &unsupportedErr) {
			t.Errorf("Transform(%v -> %v) = %v, want UnsupportedTransformError", tt.from, tt.to, err)
		}
	}
}

func TestTransformObserverValidation(t *testing.T) {
	pos := Vector3{X: 4000, Y: 3000, Z: 2000}

	cases := []*Observer{
		nil,
		{LatDeg: 91, LonDeg: 0},
		{LatDeg: -90.1, LonDeg: 0},
		{LatDeg: 0, LonDeg: 180.5},
		{LatDeg: 0, LonDeg: -181},
	}
	for _, obs := range cases {
		_, err := Transform(pos, Inertial, LocalENU, testInstant, obs)
		var missing *MissingObserverError
		if !errors.As(err, &missing) {
			t.Errorf("observer %+v: err = %v, want MissingObserverError", obs, err)
		}
	}

	// Boundary values are accepted.
	for _, obs := range []*Observer{
		{LatDeg: 90, LonDeg: 180},
		{LatDeg: -90, LonDeg: -180},
	} {
		if _, err := Transform(pos, Inertial, LocalENU, testInstant, obs); err != nil {
			t.Errorf("observer %+v rejected: %v", obs, err)
		}
	}
}

// TestObserverFixture pins down the end-to-end observer scenario: a target at
// (4000, 3000, 2000) km inertial seen from 43.47151N 27.78379E.
func TestObserverFixture(t *testing.T) {
	obs := Observer{LatDeg: 43.47151, LonDeg: 27.78379, AltKm: 0.05}
	pos := Vector3{X: 4000, Y: 3000, Z: 2000}

	enu, la, err := ToLocal(pos, obs, testInstant, false)
	if err != nil {
		t.Fatal(err)
	}

	// The ENU components must reproduce the look angles from the stated
	// formulas exactly.
	wantAz := math.Mod(math.Atan2(enu.X, enu.Y)*180/math.Pi+360, 360)
	if math.Abs(la.AzimuthDeg-wantAz) > 1e-9 {
		t.Errorf("azimuth %.9f != atan2(east,north) %.9f", la.AzimuthDeg, wantAz)
	}
	wantEl := math.Asin(enu.Z/la.RangeKm) * 180 / math.Pi
	if math.Abs(la.ElevationDeg-wantEl) > 1e-9 {
		t.Errorf("elevation %.9f != asin(up/range) %.9f", la.ElevationDeg, wantEl)
	}

	// Transform via the dispatch table agrees with the direct computation.
	viaTable, err := Transform(pos, Inertial, LocalENU, testInstant, &obs)
	if err != nil {
		t.Fatal(err)
	}
	if viaTable != enu {
		t.Errorf("Transform ENU %v != ToLocal ENU %v", viaTable, enu)
	}

	// Chaining ECEF through inertial matches the direct inertial path.
	ecef := ToEarthFixed(pos, testInstant)
	viaECEF, err := Transform(ecef, EarthFixed, LocalENU, testInstant, &obs)
	if err != nil {
		t.Fatal(err)
	}
	dx := viaECEF.X - enu.X
	dy := viaECEF.Y - enu.Y
	dz := viaECEF.Z - enu.Z
	if d := math.Sqrt(dx*dx + dy*dy + dz*dz); d > 1e-3 {
		t.Errorf("ECEF-chained ENU differs by %.6f km", d)
	}
}
