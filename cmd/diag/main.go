package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/catalog"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/frames"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/passes"
)

func main() {
	dir := os.Getenv("SATCTL_CATALOG_CACHE_DIR")
	if dir == "" {
		dir = "/tmp/satctl/catalog"
	}

	group := "stations"
	if len(os.Args) > 1 {
		group = os.Args[1]
	}

	store := catalog.NewStore(dir)
	entries, err := store.LoadAll()
	if err != nil {
		fmt.Println("ERROR loading catalog cache:", err)
		os.Exit(1)
	}

	var entry *catalog.GroupEntry
	for _, e := range entries {
		if e.Group == group {
			entry = e
			break
		}
	}
	if entry == nil {
		fmt.Printf("no cached group %q under %s\n", group, dir)
		os.Exit(1)
	}

	fmt.Printf("Loaded group %q: %d element sets, refreshed %v (age %v)\n",
		entry.Group, len(entry.Sets), entry.RefreshedAt.Format(time.RFC3339), entry.Age().Round(time.Second))

	sets := entry.Sets
	if len(sets) > 5 {
		sets = sets[:5]
	}
	if len(sets) > 0 {
		fmt.Printf("First entry: %s (NORAD %d)\n", sets[0].Name, sets[0].NoradID)
	}

	now := time.Now().UTC()
	fmt.Printf("Prediction start: %v\n", now)

	results, err := passes.Predict(context.Background(), passes.Request{
		Observer:     frames.Observer{LatDeg: 39.7392, LonDeg: -104.9903, AltKm: 1.609},
		Sets:         sets,
		Start:        now,
		Window:       24 * time.Hour,
		MinElevation: 1,
	})
	if err != nil {
		fmt.Println("ERROR predicting passes:", err)
		os.Exit(1)
	}

	totalPasses := 0
	for _, sat := range results {
		if sat.Error != "" {
			fmt.Printf("  NORAD %d: ERROR %s\n", sat.NoradID, sat.Error)
			continue
		}
		fmt.Printf("  NORAD %d: %d passes\n", sat.NoradID, len(sat.Passes))
		totalPasses += len(sat.Passes)
		for j, p := range sat.Passes {
			fmt.Printf("    pass %d: rise=%v maxEl=%.1f° dur=%.0fs\n",
				j, p.RiseTime.Format(time.RFC3339), p.MaxElevation, p.DurationSeconds)
		}
	}
	fmt.Printf("\nTotal passes found: %d\n", totalPasses)
}
