// Command seedreports generates deterministic report fixtures for tests
// and demos. It uses the actual domain package with a frozen clock so the
// output matches real submission behavior, and can optionally seed the
// remote document store directly.
//
// Usage:
//
//	go run ./cmd/seedreports -count 50 -out data/mock/reports.json
//	go run ./cmd/seedreports -count 50 -mongo-uri mongodb://localhost:27017 -mongo-db roadmedic
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	mongoadapter "github.com/roadmedic/reportsync/internal/adapter/mongo"
	"github.com/roadmedic/reportsync/internal/domain"
)

// Fixtures are anchored around central Bengaluru.
var (
	baseTime  = time.Date(2024, time.April, 26, 6, 0, 0, 0, time.UTC)
	centerLat = 12.9716
	centerLon = 77.5946
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	count := flag.Int("count", 50, "number of reports to generate")
	owners := flag.String("owners", "user1,user2,user3", "comma-separated owner ids")
	seed := flag.Int64("seed", 1, "random seed")
	out := flag.String("out", "", "output path for the JSON fixture")
	mongoURI := flag.String("mongo-uri", "", "seed this MongoDB instance instead of only writing the fixture")
	mongoDB := flag.String("mongo-db", "roadmedic", "database name when seeding")
	flag.Parse()

	if *out == "" && *mongoURI == "" {
		flag.Usage()
		return fmt.Errorf("nothing to do: pass -out and/or -mongo-uri")
	}

	ownerIDs := strings.Split(*owners, ",")

	// Freeze the clock so capturedAt values are reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(baseTime))
	defer domain.SetClock(nil)

	reports := generate(*count, ownerIDs, rand.New(rand.NewSource(*seed)))
	log.Printf("generated %d reports for %d owners", len(reports), len(ownerIDs))

	if *out != "" {
		if err := writeFixture(*out, reports); err != nil {
			return err
		}
		log.Printf("fixture written to %s", *out)
	}

	if *mongoURI != "" {
		n, err := seedStore(*mongoURI, *mongoDB, reports)
		if err != nil {
			return err
		}
		log.Printf("seeded %d reports into %s/%s", n, *mongoURI, *mongoDB)
	}

	return nil
}

// generate spreads reports across a few km around the center point, cycling
// owners and severities so every partition and grade is represented.
func generate(count int, owners []string, rng *rand.Rand) []domain.Report {
	severities := []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh}

	reports := make([]domain.Report, 0, count)
	for i := 0; i < count; i++ {
		// Roughly +/- 2km in each direction.
		lat := centerLat + (rng.Float64()-0.5)*0.036
		lon := centerLon + (rng.Float64()-0.5)*0.036

		r := domain.Report{
			OwnerID:    owners[i%len(owners)],
			CapturedAt: domain.Now() - int64(i)*60_000, // one per minute, newest first
			Location:   domain.Point{Lat: lat, Lon: lon},
			Severity:   severities[i%len(severities)],
			Asset:      domain.RemoteAsset(fmt.Sprintf("https://assets.example/seed/%04d.jpg", i)),
		}
		if i%4 == 0 {
			r.Address = fmt.Sprintf("%d MG Road, Bengaluru", 1+i)
		}
		reports = append(reports, r)
	}
	return reports
}

func writeFixture(path string, reports []domain.Report) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func seedStore(uri, dbName string, reports []domain.Report) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	logger := slog.Default()
	client, err := mongoadapter.Connect(ctx, uri, logger)
	if err != nil {
		return 0, err
	}
	defer client.Disconnect(context.Background())

	repo := mongoadapter.NewRepository(client, dbName, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return 0, err
	}

	for i, r := range reports {
		if _, err := repo.Create(ctx, r); err != nil {
			return i, fmt.Errorf("seed report %d: %w", i, err)
		}
	}
	return len(reports), nil
}
