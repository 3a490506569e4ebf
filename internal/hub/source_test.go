package hub

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/catalog"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/sgp4"
)

const issTLE = "ISS (ZARYA)\n" +
	"1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993\n" +
	"2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058\n"

func TestCatalogSourcePositionAt(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("CATNR") == "25544" {
			io.WriteString(w, issTLE)
		}
	}))
	defer upstream.Close()

	logger := testLogger()
	cat := catalog.NewCache(catalog.Config{
		BaseURL:  upstream.URL + "/",
		CacheDir: t.TempDir(),
	}, logger)
	src := NewCatalogSource(cat, sgp4.NewCache(logger))

	at := time.Date(2025, 2, 14, 6, 0, 0, 0, time.UTC)
	u, err := src.PositionAt(context.Background(), 25544, at)
	if err != nil {
		t.Fatal(err)
	}

	if u.ID != 25544 || u.Name != "ISS (ZARYA)" {
		t.Errorf("update = %d/%q, want 25544/ISS (ZARYA)", u.ID, u.Name)
	}
	mag := math.Sqrt(u.Position[0]*u.Position[0] + u.Position[1]*u.Position[1] + u.Position[2]*u.Position[2])
	if mag < 6600 || mag > 6900 {
		t.Errorf("position magnitude = %.1f km, want ~6790", mag)
	}
	if u.Timestamp != at.Format(time.RFC3339) {
		t.Errorf("timestamp = %q, want %q", u.Timestamp, at.Format(time.RFC3339))
	}
}

func TestCatalogSourceUnknownSatellite(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Empty 200: no such record upstream.
	}))
	defer upstream.Close()

	logger := testLogger()
	cat := catalog.NewCache(catalog.Config{
		BaseURL:  upstream.URL + "/",
		CacheDir: t.TempDir(),
	}, logger)
	src := NewCatalogSource(cat, sgp4.NewCache(logger))

	_, err := src.PositionAt(context.Background(), 424242, time.Now().UTC())
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
