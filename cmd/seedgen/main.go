// Command seedgen generates synthetic risk data for development and test
// environments: a geographic grid of blocks with area-specific risk
// profiles, per-factor raw measurements, and weekly history snapshots. It
// scores blocks through the actual risk package so the generated fixtures
// match real engine behavior.
//
// Output goes to JSON fixtures, to a store (memory, sqlite, postgres), or
// both:
//
//	go run ./cmd/seedgen -blocks 200 -days 30 \
//	  -blocks-out data/seed/blocks.json \
//	  -raw-out data/seed/raw_measurements.json \
//	  -history-out data/seed/history.json
//
//	go run ./cmd/seedgen -blocks 200 -driver sqlite -dsn file:riskindex.db
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/neuracity/risk-index-service/internal/risk"
	"github.com/neuracity/risk-index-service/internal/storage"
)

// Generation covers the same downtown Manhattan box the collector services
// report on.
const (
	latMin = 40.70
	latMax = 40.80
	lngMin = -74.02
	lngMax = -73.95
)

var baseDate = time.Date(2026, time.August, 1, 6, 0, 0, 0, time.UTC)

// areaProfile is the per-factor risk baseline for one kind of neighborhood,
// on the normalized [0,1] scale.
type areaProfile struct {
	crime, blight, emergency, air, heat, traffic float64
}

var areaProfiles = map[string]areaProfile{
	"DOWNTOWN":      {crime: 0.6, blight: 0.3, emergency: 0.4, air: 0.6, heat: 0.7, traffic: 0.7},
	"MIDTOWN":       {crime: 0.5, blight: 0.2, emergency: 0.3, air: 0.7, heat: 0.8, traffic: 0.8},
	"RESIDENTIAL":   {crime: 0.3, blight: 0.4, emergency: 0.5, air: 0.4, heat: 0.5, traffic: 0.4},
	"INDUSTRIAL":    {crime: 0.7, blight: 0.8, emergency: 0.7, air: 0.9, heat: 0.9, traffic: 0.6},
	"PARK_DISTRICT": {crime: 0.2, blight: 0.1, emergency: 0.4, air: 0.2, heat: 0.2, traffic: 0.3},
	"CAMPUS":        {crime: 0.3, blight: 0.2, emergency: 0.3, air: 0.3, heat: 0.4, traffic: 0.5},
}

// areaFor assigns a neighborhood kind from position in the grid.
func areaFor(lat, lng float64) string {
	switch {
	case lat > 40.76 && lng < -73.99:
		return "MIDTOWN"
	case lat > 40.76:
		return "PARK_DISTRICT"
	case lat > 40.73 && lng < -73.99:
		return "DOWNTOWN"
	case lat > 40.73:
		return "CAMPUS"
	case lat > 40.71:
		return "RESIDENTIAL"
	case lng < -74.00:
		return "INDUSTRIAL"
	default:
		return "RESIDENTIAL"
	}
}

// rawMeasurement is the collector-service message envelope, matching the
// shape the ingest pipeline consumes from the source topic.
type rawMeasurement struct {
	BlockID    string    `json:"block_id"`
	FactorType string    `json:"factor_type"`
	Data       any       `json:"data"`
	DataSource string    `json:"data_source"`
	MeasuredAt time.Time `json:"measured_at"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	numBlocks := flag.Int("blocks", 200, "number of geographic blocks to generate")
	days := flag.Int("days", 30, "days of historical data")
	seed := flag.Int64("seed", 1, "random seed for reproducible output")
	blocksOut := flag.String("blocks-out", "", "output path for the scored blocks JSON fixture")
	rawOut := flag.String("raw-out", "", "output path for the raw measurements JSON fixture")
	historyOut := flag.String("history-out", "", "output path for the history snapshots JSON fixture")
	driver := flag.String("driver", "", "store driver to insert into (memory, sqlite, postgres)")
	dsn := flag.String("dsn", "", "store DSN")
	flag.Parse()

	if *blocksOut == "" && *rawOut == "" && *historyOut == "" && *driver == "" {
		flag.Usage()
		return fmt.Errorf("nothing to do: set at least one of -blocks-out, -raw-out, -history-out, -driver")
	}

	// Freeze the engine clock for reproducible LastCalculatedAt stamps.
	risk.SetClock(clockwork.NewFakeClockAt(baseDate))
	defer risk.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))
	cfg := risk.DefaultConfig()

	blocks, raws, err := generateBlocks(rng, cfg, *numBlocks, *days)
	if err != nil {
		return err
	}
	history := generateHistory(rng, cfg, blocks, *days)

	log.Printf("generated %d blocks, %d raw measurements, %d history snapshots",
		len(blocks), len(raws), len(history))

	if *blocksOut != "" {
		if err := writeJSON(*blocksOut, blocks); err != nil {
			return fmt.Errorf("writing blocks fixture: %w", err)
		}
		log.Printf("wrote blocks fixture: %s", *blocksOut)
	}
	if *rawOut != "" {
		if err := writeJSON(*rawOut, raws); err != nil {
			return fmt.Errorf("writing raw measurements fixture: %w", err)
		}
		log.Printf("wrote raw measurements fixture: %s", *rawOut)
	}
	if *historyOut != "" {
		if err := writeJSON(*historyOut, history); err != nil {
			return fmt.Errorf("writing history fixture: %w", err)
		}
		log.Printf("wrote history fixture: %s", *historyOut)
	}

	if *driver != "" {
		if err := insertIntoStore(*driver, *dsn, cfg, blocks, raws, history); err != nil {
			return err
		}
	}

	printSummary(blocks)
	return nil
}

// generateBlocks lays a square grid over the bounding box and scores each
// cell through the risk engine from synthesized raw inputs.
func generateBlocks(rng *rand.Rand, cfg risk.Config, n, days int) ([]risk.BlockRiskProfile, []rawMeasurement, error) {
	perSide := int(math.Sqrt(float64(n)))
	if perSide < 1 {
		perSide = 1
	}
	latStep := (latMax - latMin) / float64(perSide)
	lngStep := (lngMax - lngMin) / float64(perSide)

	blocks := make([]risk.BlockRiskProfile, 0, perSide*perSide)
	var raws []rawMeasurement

	for i := 0; i < perSide; i++ {
		for j := 0; j < perSide; j++ {
			lat := latMin + float64(i)*latStep + latStep/2
			lng := lngMin + float64(j)*lngStep + lngStep/2

			area := areaFor(lat, lng)
			in := synthesizeInputs(rng, cfg, area)

			profile, err := risk.BuildProfile("", lat, lng, in, cfg)
			if err != nil {
				return nil, nil, fmt.Errorf("scoring block at (%.4f, %.4f): %w", lat, lng, err)
			}
			blocks = append(blocks, profile)
			raws = append(raws, measurementsForBlock(rng, profile.BlockID, in, days)...)
		}
	}
	return blocks, raws, nil
}

// synthesizeInputs inverts the factor normalizers just far enough that the
// area's baseline score (plus noise) falls out of the real calculation.
func synthesizeInputs(rng *rand.Rand, cfg risk.Config, area string) risk.RawInputs {
	p := areaProfiles[area]
	noise := func(base float64) float64 {
		v := base + rng.Float64()*0.3 - 0.15
		return math.Max(0.0, math.Min(1.0, v))
	}

	severity := 0.8 + rng.Float64()*0.4
	if area == "INDUSTRIAL" || area == "DOWNTOWN" {
		severity = 1.0 + rng.Float64()*0.5
	}

	blight := noise(p.blight)
	emergency := noise(p.emergency)
	heat := noise(p.heat)
	air := noise(p.air)
	pm25 := air * 100

	roadType := risk.RoadResidential
	switch area {
	case "MIDTOWN", "DOWNTOWN":
		roadType = risk.RoadArterial
	case "INDUSTRIAL":
		roadType = risk.RoadHighway
	}
	safeSpeed := map[risk.RoadType]float64{
		risk.RoadResidential: 25, risk.RoadArterial: 35, risk.RoadHighway: 55,
	}[roadType]
	avgSpeed := safeSpeed + noise(p.traffic)*30

	return risk.RawInputs{
		Crime: risk.CrimeInput{
			IncidentsPerMonth:  math.Round(noise(p.crime) * cfg.CrimeMaxIncidents),
			SeverityMultiplier: severity,
		},
		Blight: risk.BlightInput{
			AbandonedBuildings: int(blight * 10),
			VacantLots:         int(blight * 15),
			CodeViolations:     int(blight * 20),
		},
		Emergency: risk.EmergencyResponseInput{
			AvgResponseMinutes: emergency * emergency * cfg.EmergencyMaxMinutes,
			P90ResponseMinutes: emergency * emergency * cfg.EmergencyMaxMinutes * 1.4,
		},
		Air: risk.AirQualityInput{
			AQI:  math.Round(air * cfg.AirQualityMaxAQI),
			PM25: &pm25,
		},
		Heat: risk.HeatInput{
			AvgTemperatureCelsius:    20 + heat*25,
			MaxTemperatureCelsius:    25 + heat*25,
			TreeCanopyPercent:        (1 - heat) * 100,
			ImperviousSurfacePercent: heat * 100,
		},
		Traffic: risk.TrafficInput{
			AvgSpeedMPH:      avgSpeed,
			P85SpeedMPH:      avgSpeed + 7,
			PedestrianVolume: rng.Intn(300),
			RoadType:         roadType,
		},
	}
}

// measurementsForBlock emits raw measurement envelopes on each factor's
// natural cadence: air quality daily, crime/emergency/traffic weekly, blight
// and heat once.
func measurementsForBlock(rng *rand.Rand, blockID string, in risk.RawInputs, days int) []rawMeasurement {
	var out []rawMeasurement
	emit := func(factor risk.Factor, data any, daysAgo int) {
		out = append(out, rawMeasurement{
			BlockID:    blockID,
			FactorType: string(factor),
			Data:       data,
			DataSource: "synthetic",
			MeasuredAt: baseDate.AddDate(0, 0, -daysAgo),
		})
	}

	for d := 0; d < days; d += 7 {
		crime := in.Crime
		crime.IncidentsPerMonth = math.Max(0, crime.IncidentsPerMonth+float64(rng.Intn(21)-10))
		emit(risk.FactorCrime, crime, d)

		emergency := in.Emergency
		emergency.AvgResponseMinutes = math.Max(2.0, emergency.AvgResponseMinutes+rng.Float64()*6-3)
		emit(risk.FactorEmergencyResponse, emergency, d)

		traffic := in.Traffic
		traffic.AvgSpeedMPH = math.Max(15, traffic.AvgSpeedMPH+rng.Float64()*10-5)
		emit(risk.FactorTrafficSpeed, traffic, d)
	}

	for d := 0; d < days; d++ {
		air := in.Air
		air.AQI = math.Max(0, air.AQI+rng.Float64()*40-20)
		emit(risk.FactorAirQuality, air, d)
	}

	emit(risk.FactorBlight, in.Blight, 0)
	emit(risk.FactorHeatExposure, in.Heat, 0)
	return out
}

// generateHistory writes weekly snapshots per block with slight drift, the
// composite and category recomputed so every row stays internally
// consistent.
func generateHistory(rng *rand.Rand, cfg risk.Config, blocks []risk.BlockRiskProfile, days int) []risk.HistorySnapshot {
	drift := func(v float64) float64 {
		return math.Max(0.0, math.Min(1.0, v+rng.Float64()*0.1-0.05))
	}

	var history []risk.HistorySnapshot
	for d := 0; d < days; d += 7 {
		at := baseDate.AddDate(0, 0, -d)
		for _, b := range blocks {
			drifted := b
			drifted.FactorScores = risk.FactorScores{
				Crime:             drift(b.Crime),
				Blight:            drift(b.Blight),
				EmergencyResponse: drift(b.EmergencyResponse),
				AirQuality:        drift(b.AirQuality),
				HeatExposure:      drift(b.HeatExposure),
				TrafficSpeed:      drift(b.TrafficSpeed),
			}
			index, category, _ := risk.CompositeIndex(drifted.FactorScores, cfg)
			drifted.CompositeRiskIndex = index
			drifted.RiskCategory = category

			snap := risk.SnapshotProfile(drifted, at)
			snap.ID = fmt.Sprintf("%s-%s", b.BlockID, at.Format("2006-01-02"))
			history = append(history, snap)
		}
	}
	return history
}

func insertIntoStore(driver, dsn string, cfg risk.Config, blocks []risk.BlockRiskProfile, raws []rawMeasurement, history []risk.HistorySnapshot) error {
	ctx := context.Background()

	store, err := storage.NewStore(driver, dsn)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	if err := store.UpsertBlocks(ctx, blocks); err != nil {
		return fmt.Errorf("insert blocks: %w", err)
	}
	log.Printf("inserted %d blocks", len(blocks))

	// Run the raw envelopes through the real parser so stored measurements
	// carry the same ids and scores the ingest pipeline would produce.
	measurements := make([]risk.Measurement, 0, len(raws))
	for _, raw := range raws {
		payload, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("marshal raw measurement: %w", err)
		}
		m, err := risk.ParseRawMeasurement(risk.RawSample{Value: payload, Timestamp: raw.MeasuredAt}, cfg)
		if err != nil {
			return fmt.Errorf("parse raw measurement: %w", err)
		}
		measurements = append(measurements, m)
	}
	const chunk = 500
	for i := 0; i < len(measurements); i += chunk {
		end := min(i+chunk, len(measurements))
		if err := store.SaveMeasurements(ctx, measurements[i:end]); err != nil {
			return fmt.Errorf("insert measurements: %w", err)
		}
	}
	log.Printf("inserted %d measurements", len(measurements))

	for _, snap := range history {
		if err := store.AppendSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.ID, err)
		}
	}
	log.Printf("inserted %d history snapshots", len(history))
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printSummary(blocks []risk.BlockRiskProfile) {
	stats := risk.ComputeStatistics(blocks)

	fmt.Println("\n=== Generated risk summary ===")
	fmt.Printf("Total blocks: %d\n", stats.TotalBlocks)
	fmt.Printf("Average risk: %.3f, max risk: %.3f (%s)\n",
		stats.AverageRiskIndex, stats.MaxRiskIndex, stats.MaxRiskBlockID)
	for _, c := range risk.Categories {
		bucket := stats.Distribution[c]
		fmt.Printf("  %-8s %4d (%.1f%%)\n", c, bucket.Count, bucket.Percentage)
	}
}
