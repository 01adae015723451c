// Command quakefmt converts a JMA quake list (or a USGS GeoJSON summary) into
// the map's GeoJSON FeatureCollection and prints it as indented JSON. It runs
// the same formatting the service does, without geocoding.
//
// Usage:
//
//	go run ./cmd/quakefmt -input data/mock/jma_quake_list.json
//	go run ./cmd/quakefmt -source usgs -url https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson
//	go run ./cmd/quakefmt -input data/mock/jma_quake_list.json -bucket 4
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/quake-map-etl/internal/adapter/feed"
	"github.com/couchcryptid/quake-map-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	input := flag.String("input", "", "path to a feed document on disk")
	url := flag.String("url", "", "feed URL to fetch instead of reading -input")
	source := flag.String("source", domain.SourceJMA, "feed format: jma or usgs")
	bucket := flag.Int("bucket", -1, "only print quakes in this magnitude bucket (0-12)")
	timeout := flag.Duration("timeout", 10*time.Second, "fetch timeout for -url")
	flag.Parse()

	if (*input == "") == (*url == "") {
		flag.Usage()
		return fmt.Errorf("exactly one of -input or -url is required")
	}

	records, err := load(*source, *input, *url, *timeout)
	if err != nil {
		return err
	}

	res := domain.FormatRecords(records)
	quakes := domain.LatestByID(res.Quakes)
	for _, d := range res.Dropped {
		log.Printf("dropped %s/%s: %v", d.Record.Source, d.Record.EventID, d)
	}

	if *bucket >= 0 {
		b, err := domain.BucketAt(*bucket)
		if err != nil {
			return err
		}
		quakes = domain.FilterByBucket(quakes, b)
	}

	data, err := json.MarshalIndent(domain.ToFeatureCollection(quakes), "", "  ")
	if err != nil {
		return fmt.Errorf("encode feature collection: %w", err)
	}
	fmt.Println(string(data))

	log.Printf("%d records, %d quakes, %d dropped", len(records), len(quakes), len(res.Dropped))
	return nil
}

func load(source, input, url string, timeout time.Duration) ([]domain.QuakeRecord, error) {
	if url != "" {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		switch source {
		case domain.SourceJMA:
			return feed.NewJMAClient(url, timeout, logger).Fetch(ctx)
		case domain.SourceUSGS:
			return feed.NewUSGSClient(url, timeout, logger).Fetch(ctx)
		}
		return nil, fmt.Errorf("unknown source %q", source)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", input, err)
	}
	switch source {
	case domain.SourceJMA:
		return feed.DecodeJMA(data)
	case domain.SourceUSGS:
		records, skipped, err := feed.DecodeUSGS(data)
		if skipped > 0 {
			log.Printf("skipped %d features without a point geometry", skipped)
		}
		return records, err
	}
	return nil, fmt.Errorf("unknown source %q", source)
}
