package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/catalog"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/frames"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/passes"
)

const maxBodyBytes = 1 << 20 // 1 MiB request body cap

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeCatalogError maps catalog sentinels onto HTTP statuses.
func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, catalog.ErrSourceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type observerBody struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeKm float64 `json:"altitude_km"`
}

type transformRequest struct {
	Position  [3]float64    `json:"position"`
	FromFrame string        `json:"from_frame"`
	ToFrame   string        `json:"to_frame"`
	Timestamp string        `json:"timestamp,omitempty"`
	Observer  *observerBody `json:"observer,omitempty"`
}

type transformResponse struct {
	Position   [3]float64         `json:"position"`
	Frame      string             `json:"frame"`
	Timestamp  string             `json:"timestamp"`
	LookAngles *frames.LookAngles `json:"look_angles,omitempty"`
}

// handleTransform converts a position vector between reference frames.
// POST /api/v1/transform
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	from, err := frames.ParseFrame(req.FromFrame)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := frames.ParseFrame(req.ToFrame)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := time.Now().UTC()
	if req.Timestamp != "" {
		t, err = time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timestamp: "+err.Error())
			return
		}
	}

	var obs *frames.Observer
	if req.Observer != nil {
		obs = &frames.Observer{
			LatDeg: req.Observer.Latitude,
			LonDeg: req.Observer.Longitude,
			AltKm:  req.Observer.AltitudeKm,
		}
	}

	pos := frames.Vector3{X: req.Position[0], Y: req.Position[1], Z: req.Position[2]}
	resp := transformResponse{Frame: to.String(), Timestamp: t.UTC().Format(time.RFC3339)}

	if to == frames.LocalENU || to == frames.LocalNED {
		if err := transformObserverErr(obs); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out, la, err := frames.Observe(pos, from, *obs, t, to == frames.LocalNED)
		if err != nil {
			writeTransformError(w, err)
			return
		}
		resp.Position = [3]float64{out.X, out.Y, out.Z}
		resp.LookAngles = &la
	} else {
		out, err := frames.Transform(pos, from, to, t, obs)
		if err != nil {
			writeTransformError(w, err)
			return
		}
		resp.Position = [3]float64{out.X, out.Y, out.Z}
	}

	writeJSON(w, http.StatusOK, resp)
}

func transformObserverErr(obs *frames.Observer) error {
	if obs == nil {
		return &frames.MissingObserverError{Reason: "observer is required for local frames"}
	}
	return nil
}

func writeTransformError(w http.ResponseWriter, err error) {
	var unsupported *frames.UnsupportedTransformError
	var missing *frames.MissingObserverError
	switch {
	case errors.As(err, &unsupported), errors.As(err, &missing):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type satellitePayload struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Position  *[3]float64 `json:"position,omitempty"` // km, inertial
	Velocity  *[3]float64 `json:"velocity,omitempty"` // km/s, inertial
	Timestamp string      `json:"timestamp"`
	Error     string      `json:"error,omitempty"`
}

type satellitesResponse struct {
	Group      string             `json:"group"`
	Count      int                `json:"count"`
	Satellites []satellitePayload `json:"satellites"`
}

// handleSatellites returns a catalog group with current inertial positions.
// GET /api/v1/satellites?group=stations&limit=50
func (s *Server) handleSatellites(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		group = "stations"
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	sets, err := s.deps.Catalog.FetchGroup(r.Context(), group, limit)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	now := time.Now().UTC()
	payloads := make([]satellitePayload, 0, len(sets))
	for _, set := range sets {
		payloads = append(payloads, s.satelliteState(set, now))
	}

	writeJSON(w, http.StatusOK, satellitesResponse{
		Group:      group,
		Count:      len(payloads),
		Satellites: payloads,
	})
}

// handleSatellite returns a single satellite with its current state.
// GET /api/v1/satellites/{id}
func (s *Server) handleSatellite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid satellite id")
		return
	}

	set, err := s.deps.Catalog.FetchByID(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.satelliteState(set, time.Now().UTC()))
}

// satelliteState propagates one element set to its current inertial state.
// Kernel failures are carried as a per-satellite error string.
func (s *Server) satelliteState(set catalog.ElementSet, t time.Time) satellitePayload {
	p := satellitePayload{
		ID:        set.NoradID,
		Name:      set.Name,
		Timestamp: t.Format(time.RFC3339),
	}

	prop, err := s.deps.Props.For(set)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	pos, vel, err := prop.StateAt(t)
	if err != nil {
		p.Error = err.Error()
		return p
	}

	p.Position = &[3]float64{pos.X, pos.Y, pos.Z}
	p.Velocity = &[3]float64{vel.X, vel.Y, vel.Z}
	return p
}

type orbitPoint struct {
	Position  [3]float64 `json:"position"` // km, inertial
	Velocity  [3]float64 `json:"velocity"` // km/s, inertial
	Timestamp string     `json:"timestamp"`
}

type orbitResponse struct {
	ID            int          `json:"id"`
	Name          string       `json:"name"`
	DurationHours int          `json:"duration_hours"`
	StepMinutes   int          `json:"step_minutes"`
	Points        []orbitPoint `json:"points"`
}

// handleOrbit samples one satellite's inertial track from now over a rolling
// window. Samples the kernel rejects are skipped, matching each satellite's
// per-point treatment elsewhere.
// GET /api/v1/satellites/{id}/orbit?hours=24&step_minutes=5
func (s *Server) handleOrbit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid satellite id")
		return
	}

	q := r.URL.Query()
	hours := 24
	if v := q.Get("hours"); v != "" {
		hours, err = strconv.Atoi(v)
		if err != nil || hours < 1 || hours > 168 {
			writeError(w, http.StatusBadRequest, "invalid hours parameter, must be 1-168")
			return
		}
	}
	step := 5
	if v := q.Get("step_minutes"); v != "" {
		step, err = strconv.Atoi(v)
		if err != nil || step < 1 || step > 60 {
			writeError(w, http.StatusBadRequest, "invalid step_minutes parameter, must be 1-60")
			return
		}
	}

	set, err := s.deps.Catalog.FetchByID(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	prop, err := s.deps.Props.For(set)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	start := time.Now().UTC()
	steps := hours * 60 / step
	points := make([]orbitPoint, 0, steps)
	for i := 0; i < steps; i++ {
		ts := start.Add(time.Duration(i*step) * time.Minute)
		pos, vel, err := prop.StateAt(ts)
		if err != nil {
			continue
		}
		points = append(points, orbitPoint{
			Position:  [3]float64{pos.X, pos.Y, pos.Z},
			Velocity:  [3]float64{vel.X, vel.Y, vel.Z},
			Timestamp: ts.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, orbitResponse{
		ID:            set.NoradID,
		Name:          set.Name,
		DurationHours: hours,
		StepMinutes:   step,
		Points:        points,
	})
}

type azelResponse struct {
	ID            int               `json:"id"`
	Name          string            `json:"name"`
	Timestamp     string            `json:"timestamp"`
	GroundStation observerBody      `json:"ground_station"`
	LookAngles    frames.LookAngles `json:"look_angles"`
	IsVisible     bool              `json:"is_visible"`
	Position      [3]float64        `json:"position"` // km, inertial
	Velocity      [3]float64        `json:"velocity"` // km/s, inertial
}

// handleAzEl reports the instantaneous look angles to one satellite from a
// ground station, with a visibility flag for elevation above the horizon.
// GET /api/v1/satellites/{id}/azel?lat=43.47&lon=27.78&alt_km=0.05
func (s *Server) handleAzEl(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid satellite id")
		return
	}

	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing lat parameter")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing lon parameter")
		return
	}
	altKm := 0.0
	if v := q.Get("alt_km"); v != "" {
		altKm, err = strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid alt_km parameter")
			return
		}
	}

	set, err := s.deps.Catalog.FetchByID(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	prop, err := s.deps.Props.For(set)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now().UTC()
	pos, vel, err := prop.StateAt(now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	obs := frames.Observer{LatDeg: lat, LonDeg: lon, AltKm: altKm}
	_, la, err := frames.Observe(pos, frames.Inertial, obs, now, false)
	if err != nil {
		writeTransformError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, azelResponse{
		ID:            set.NoradID,
		Name:          set.Name,
		Timestamp:     now.Format(time.RFC3339),
		GroundStation: observerBody{Latitude: lat, Longitude: lon, AltitudeKm: altKm},
		LookAngles:    la,
		IsVisible:     la.ElevationDeg > 0,
		Position:      [3]float64{pos.X, pos.Y, pos.Z},
		Velocity:      [3]float64{vel.X, vel.Y, vel.Z},
	})
}

type groupsResponse struct {
	Groups []catalog.GroupInfo `json:"groups"`
	Cached []string            `json:"cached"`
}

// handleGroups lists the advertised catalog groups and which of them are
// currently held in the cache.
// GET /api/v1/groups
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	cached := s.deps.Catalog.Groups()
	sort.Strings(cached)
	writeJSON(w, http.StatusOK, groupsResponse{
		Groups: catalog.KnownGroups(),
		Cached: cached,
	})
}

type frameInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleFrames lists the coordinate frames the transform endpoint accepts.
// GET /api/v1/frames
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]frameInfo{"frames": {
		{ID: "eci", Name: "Earth-Centered Inertial", Description: "Inertial frame fixed relative to the stars; satellite states are propagated here."},
		{ID: "ecef", Name: "Earth-Centered Earth-Fixed", Description: "WGS-84 frame rotating with the Earth; ground positions live here."},
		{ID: "geodetic", Name: "Geodetic", Description: "Latitude, longitude (degrees) and altitude (km) on the WGS-84 ellipsoid."},
		{ID: "enu", Name: "East-North-Up", Description: "Observer-local tangent plane; targets carry look angles."},
		{ID: "ned", Name: "North-East-Down", Description: "Observer-local tangent plane with the down axis positive."},
	}})
}

// handlePasses predicts visibility passes for one satellite and observer.
// GET /api/v1/passes?norad_id=25544&lat=43.47&lon=27.78&alt_km=0.05&hours=24&min_elevation=10
func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	id, err := strconv.Atoi(q.Get("norad_id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid or missing norad_id parameter")
		return
	}

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing lat parameter")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing lon parameter")
		return
	}

	altKm := 0.0
	if v := q.Get("alt_km"); v != "" {
		altKm, err = strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid alt_km parameter")
			return
		}
	}

	hours := 24
	if v := q.Get("hours"); v != "" {
		hours, err = strconv.Atoi(v)
		if err != nil || hours < 1 || hours > 72 {
			writeError(w, http.StatusBadRequest, "invalid hours parameter, must be 1-72")
			return
		}
	}

	minElevation := 10.0
	if v := q.Get("min_elevation"); v != "" {
		minElevation, err = strconv.ParseFloat(v, 64)
		if err != nil || minElevation < 0 || minElevation >= 90 {
			writeError(w, http.StatusBadRequest, "invalid min_elevation parameter, must be in [0,90)")
			return
		}
	}

	set, err := s.deps.Catalog.FetchByID(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	results, err := passes.Predict(r.Context(), passes.Request{
		Observer:     frames.Observer{LatDeg: lat, LonDeg: lon, AltKm: altKm},
		Sets:         []catalog.ElementSet{set},
		Start:        time.Now().UTC(),
		Window:       time.Duration(hours) * time.Hour,
		MinElevation: minElevation,
	})
	if err != nil {
		var missing *frames.MissingObserverError
		if errors.As(err, &missing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(results) != 1 {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("unexpected result count %d", len(results)))
		return
	}

	writeJSON(w, http.StatusOK, results[0])
}
