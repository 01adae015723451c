// Command validate performs integrity checks over the feed fixtures: every
// record either becomes a quake or is dropped for a known reason, every
// position is on the globe, the bucket histogram accounts for every quake,
// and the GeoJSON output carries one feature per quake.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -jma-json data/mock/jma_quake_list.json \
//	  -usgs-json data/mock/usgs_summary.geojson
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/quake-map-etl/internal/adapter/feed"
	"github.com/couchcryptid/quake-map-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	jmaJSON := flag.String("jma-json", "", "path to a JMA list.json fixture")
	usgsJSON := flag.String("usgs-json", "", "path to a USGS GeoJSON summary fixture (optional)")
	flag.Parse()

	if *jmaJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*jmaJSON, *usgsJSON); code != 0 {
		os.Exit(code)
	}
}

func run(jmaPath, usgsPath string) int {
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.March, 16, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Quake Feed Integrity Validation ===")
	fmt.Println()

	records, err := loadRecords(jmaPath, usgsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	res := domain.FormatRecords(records)
	quakes := domain.LatestByID(res.Quakes)

	phases := []*phase{
		validateAccounting(records, res),
		validatePositions(quakes),
		validateHistogram(quakes),
		validateFeatures(quakes),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d read, %d formatted, %d distinct quakes, %d dropped\n",
		len(records), len(res.Quakes), len(quakes), len(res.Dropped))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadRecords(jmaPath, usgsPath string) ([]domain.QuakeRecord, error) {
	data, err := os.ReadFile(jmaPath)
	if err != nil {
		return nil, fmt.Errorf("load JMA JSON: %w", err)
	}
	records, err := feed.DecodeJMA(data)
	if err != nil {
		return nil, fmt.Errorf("load JMA JSON: %w", err)
	}
	fmt.Printf("  jma:  %d records\n", len(records))

	if usgsPath == "" {
		return records, nil
	}

	data, err = os.ReadFile(usgsPath)
	if err != nil {
		return nil, fmt.Errorf("load USGS GeoJSON: %w", err)
	}
	usgs, skipped, err := feed.DecodeUSGS(data)
	if err != nil {
		return nil, fmt.Errorf("load USGS GeoJSON: %w", err)
	}
	fmt.Printf("  usgs: %d records (%d features skipped)\n", len(usgs), skipped)
	return append(records, usgs...), nil
}

// validateAccounting checks that no record disappears silently.
func validateAccounting(records []domain.QuakeRecord, res domain.FormatResult) *phase {
	p := &phase{name: "Record accounting"}

	if got := len(res.Quakes) + len(res.Dropped); got != len(records) {
		p.errorf("%d records in, %d quakes + %d dropped out", len(records), len(res.Quakes), len(res.Dropped))
	}
	for _, d := range res.Dropped {
		switch d.Field {
		case domain.FieldCod, domain.FieldMag:
		default:
			p.errorf("%s/%s: dropped for unknown field %q", d.Record.Source, d.Record.EventID, d.Field)
		}
		if d.Reason() == "invalid" {
			p.errorf("%s/%s: unclassified drop: %v", d.Record.Source, d.Record.EventID, d.Err)
		}
	}
	return p
}

func validatePositions(quakes []domain.Quake) *phase {
	p := &phase{name: "Positions in range"}
	for i := range quakes {
		q := &quakes[i]
		lat, lon := q.Position.Latitude, q.Position.Longitude
		if math.IsNaN(lat) || lat < -90 || lat > 90 {
			p.errorf("%s: latitude %v out of range", q.ID, lat)
		}
		if math.IsNaN(lon) || lon < -180 || lon > 180 {
			p.errorf("%s: longitude %v out of range", q.ID, lon)
		}
		if q.DepthKm != nil && math.IsNaN(*q.DepthKm) {
			p.errorf("%s: depth is NaN", q.ID)
		}
	}
	return p
}

// validateHistogram checks that every quake is either counted in exactly the
// bucket containing its magnitude or sits below the first threshold.
func validateHistogram(quakes []domain.Quake) *phase {
	p := &phase{name: "Bucket histogram"}

	counts := domain.Snapshot{Quakes: quakes}.BucketCounts()
	counted := 0
	for _, c := range counts {
		counted += c
	}

	below := 0
	for i := range quakes {
		q := &quakes[i]
		if q.Bucket == nil {
			if q.Magnitude >= domain.Thresholds()[0] {
				p.errorf("%s: magnitude %v has no bucket", q.ID, q.Magnitude)
			}
			below++
			continue
		}
		b, err := domain.BucketAt(*q.Bucket)
		if err != nil {
			p.errorf("%s: %v", q.ID, err)
			continue
		}
		if !b.Contains(q.Magnitude) {
			p.errorf("%s: magnitude %v outside bucket %d [%v, %v)", q.ID, q.Magnitude, b.Index, b.Min, b.Max)
		}
	}

	if counted+below != len(quakes) {
		p.errorf("histogram counts %d + %d below threshold, want %d", counted, below, len(quakes))
	}

	fmt.Println("  Bucket histogram:")
	for _, b := range domain.Buckets() {
		if counts[b.Index] > 0 {
			fmt.Printf("    M%-4s %d\n", b.Label(), counts[b.Index])
		}
	}
	if below > 0 {
		fmt.Printf("    <M%-3s %d\n", domain.Buckets()[0].Label(), below)
	}
	return p
}

func validateFeatures(quakes []domain.Quake) *phase {
	p := &phase{name: "GeoJSON features"}

	fc := domain.ToFeatureCollection(quakes)
	if len(fc.Features) != len(quakes) {
		p.errorf("%d features for %d quakes", len(fc.Features), len(quakes))
		return p
	}
	for i, f := range fc.Features {
		q := &quakes[i]
		if f.ID != q.ID {
			p.errorf("feature %d: id %v, want %s", i, f.ID, q.ID)
		}
		if mag := f.Properties.MustFloat64("mag", math.NaN()); mag != q.Magnitude {
			p.errorf("%s: mag property %v, want %v", q.ID, mag, q.Magnitude)
		}
		pt := f.Point()
		if pt.Lon() != q.Position.Longitude || pt.Lat() != q.Position.Latitude {
			p.errorf("%s: point %v does not match position %+v", q.ID, pt, q.Position)
		}
	}
	return p
}
