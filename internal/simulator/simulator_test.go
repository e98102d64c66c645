package simulator

import (
	"context"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/guardian-iot/guardian-sim/internal/models"
)

func testWaterParams() WaterParams {
	return WaterParams{
		PHMin:               6.5,
		PHMax:               8.5,
		TurbidityMin:        1,
		TurbidityMax:        80,
		ContaminationChance: 0.3,
		TemperatureMin:      15.0,
		TemperatureMax:      30.0,
	}
}

func testFundParams() FundParams {
	return FundParams{
		AllocatedMin: 5000,
		AllocatedMax: 50000,
		UtilizedMin:  0.6,
		UtilizedMax:  0.95,
		FraudChance:  0.1,
	}
}

func newTestSimulator(seed int64) *Simulator {
	return New("test_node", "test_site", testWaterParams(), testFundParams(), rand.New(rand.NewSource(seed)))
}

// zeroSource always yields zero, pinning every draw to the bottom of its
// range. Bernoulli decisions read 0 < chance, so both the anomaly and the
// fraud branch are taken whenever their chance is positive.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func TestGenerateWaterReading_GoldenZeroDraws(t *testing.T) {
	s := New("test_node", "test_site", testWaterParams(), testFundParams(), rand.New(zeroSource{}))

	r := s.GenerateWaterReading()

	if !r.AnomalyFlag {
		t.Fatal("Expected anomaly branch with zero draws")
	}
	if r.WaterPH != 4.0 {
		t.Errorf("Expected pH 4.0 (bottom of low band), got %v", r.WaterPH)
	}
	if r.WaterTurbidity != 85 {
		t.Errorf("Expected turbidity 85, got %d", r.WaterTurbidity)
	}
	if !r.ContaminantsDetected {
		t.Error("Expected contaminants forced true on anomaly")
	}
	if r.TemperatureC != 15.0 {
		t.Errorf("Expected temperature 15.0, got %v", r.TemperatureC)
	}
	if r.FlowRateLPS != 0.5 {
		t.Errorf("Expected flow rate 0.5, got %v", r.FlowRateLPS)
	}
	if r.SensorID != "test_node" || r.Location != "test_site" {
		t.Errorf("Unexpected identity: %s / %s", r.SensorID, r.Location)
	}
}

func TestGenerateFundReading_GoldenZeroDraws(t *testing.T) {
	s := New("test_node", "test_site", testWaterParams(), testFundParams(), rand.New(zeroSource{}))

	r := s.GenerateFundReading()

	if !r.FraudFlag {
		t.Fatal("Expected fraud branch with zero draws")
	}
	if r.AllocatedAmount != 5000 {
		t.Errorf("Expected allocated 5000, got %d", r.AllocatedAmount)
	}
	// ratio bottoms out at 0.2, discrepancy factor at 0.3
	if r.UtilizedAmount != 1000.0 {
		t.Errorf("Expected utilized 1000.00, got %v", r.UtilizedAmount)
	}
	if r.Discrepancy != 1500.0 {
		t.Errorf("Expected discrepancy 1500.00, got %v", r.Discrepancy)
	}
	if r.FundID != "FUND_1000" {
		t.Errorf("Expected FUND_1000, got %s", r.FundID)
	}
	if r.Department != models.DepartmentWater {
		t.Errorf("Expected Water department, got %s", r.Department)
	}
	if r.Location != "test_site" {
		t.Errorf("Unexpected location: %s", r.Location)
	}
}

func TestGenerate_SeededDeterminism(t *testing.T) {
	a := newTestSimulator(42)
	b := newTestSimulator(42)

	for i := 0; i < 50; i++ {
		wa, wb := a.GenerateWaterReading(), b.GenerateWaterReading()
		wa.Timestamp, wb.Timestamp = "", ""
		if wa != wb {
			t.Fatalf("Water readings diverged at draw %d: %+v vs %+v", i, wa, wb)
		}

		fa, fb := a.GenerateFundReading(), b.GenerateFundReading()
		fa.Timestamp, fb.Timestamp = "", ""
		if fa != fb {
			t.Fatalf("Fund readings diverged at draw %d: %+v vs %+v", i, fa, fb)
		}
	}
}

func TestGenerateWaterReading_Invariants(t *testing.T) {
	s := newTestSimulator(7)

	for i := 0; i < 10000; i++ {
		r := s.GenerateWaterReading()

		if err := r.Validate(); err != nil {
			t.Fatalf("Reading %d failed validation: %v", i, err)
		}
		if r.WaterPH < 4.0 || r.WaterPH > 9.5 {
			t.Fatalf("pH %v outside overall bounds [4.0, 9.5]", r.WaterPH)
		}
		if r.FlowRateLPS < 0.5 || r.FlowRateLPS > 5.0 {
			t.Fatalf("Flow rate %v outside [0.5, 5.0]", r.FlowRateLPS)
		}
		if r.TemperatureC < 15.0 || r.TemperatureC > 30.0 {
			t.Fatalf("Temperature %v outside configured range", r.TemperatureC)
		}

		if r.AnomalyFlag {
			inLowBand := r.WaterPH >= 4.0 && r.WaterPH <= 6.4
			inHighBand := r.WaterPH >= 8.6 && r.WaterPH <= 9.5
			if !inLowBand && !inHighBand {
				t.Fatalf("Anomalous pH %v not in either out-of-range band", r.WaterPH)
			}
			if r.WaterTurbidity < 85 || r.WaterTurbidity > 200 {
				t.Fatalf("Anomalous turbidity %d outside [85, 200]", r.WaterTurbidity)
			}
			if !r.ContaminantsDetected {
				t.Fatal("Anomalous reading without contaminants")
			}
		} else {
			if r.WaterPH < 6.5 || r.WaterPH > 8.5 {
				t.Fatalf("Normal pH %v outside configured range", r.WaterPH)
			}
			if r.WaterTurbidity < 1 || r.WaterTurbidity > 80 {
				t.Fatalf("Normal turbidity %d outside configured range", r.WaterTurbidity)
			}
		}
	}
}

func TestGenerateFundReading_Invariants(t *testing.T) {
	s := newTestSimulator(11)
	fundIDPattern := regexp.MustCompile(`^FUND_\d{4}$`)
	validDepartments := map[models.Department]bool{
		models.DepartmentWater:          true,
		models.DepartmentSanitation:     true,
		models.DepartmentInfrastructure: true,
		models.DepartmentHealth:         true,
	}

	for i := 0; i < 10000; i++ {
		r := s.GenerateFundReading()

		if err := r.Validate(); err != nil {
			t.Fatalf("Reading %d failed validation: %v", i, err)
		}
		if !fundIDPattern.MatchString(r.FundID) {
			t.Fatalf("Fund ID %q does not match FUND_ + 4 digits", r.FundID)
		}
		if !validDepartments[r.Department] {
			t.Fatalf("Unexpected department %q", r.Department)
		}
		if r.AllocatedAmount < 5000 || r.AllocatedAmount > 50000 {
			t.Fatalf("Allocated %d outside configured range", r.AllocatedAmount)
		}

		if r.FraudFlag {
			if r.Discrepancy <= 0 {
				t.Fatal("Fraudulent reading with zero discrepancy")
			}
			if r.UtilizedAmount > float64(r.AllocatedAmount)*0.5 {
				t.Fatalf("Fraudulent utilization %v exceeds half of allocation %d", r.UtilizedAmount, r.AllocatedAmount)
			}
		} else if r.Discrepancy != 0 {
			t.Fatalf("Non-fraudulent reading with discrepancy %v", r.Discrepancy)
		}
	}
}

func TestBranchRates(t *testing.T) {
	s := newTestSimulator(99)

	const n = 100000
	anomalies := 0
	normals := 0
	contaminated := 0
	frauds := 0

	for i := 0; i < n; i++ {
		w := s.GenerateWaterReading()
		if w.AnomalyFlag {
			anomalies++
		} else {
			normals++
			if w.ContaminantsDetected {
				contaminated++
			}
		}
		if s.GenerateFundReading().FraudFlag {
			frauds++
		}
	}

	anomalyRate := float64(anomalies) / n
	if anomalyRate < 0.06 || anomalyRate > 0.08 {
		t.Errorf("Anomaly rate %v not consistent with 7%%", anomalyRate)
	}

	contaminationRate := float64(contaminated) / float64(normals)
	if contaminationRate < 0.28 || contaminationRate > 0.32 {
		t.Errorf("Contamination rate %v not consistent with 30%%", contaminationRate)
	}

	fraudRate := float64(frauds) / n
	if fraudRate < 0.09 || fraudRate > 0.11 {
		t.Errorf("Fraud rate %v not consistent with 10%%", fraudRate)
	}
}

func TestTimestampFormat(t *testing.T) {
	s := newTestSimulator(1)
	snap := s.Snapshot()

	for _, ts := range []string{snap.WaterReading.Timestamp, snap.FundReading.Timestamp, snap.SystemTimestamp} {
		parsed, err := time.Parse(models.TimestampLayout, ts)
		if err != nil {
			t.Fatalf("Timestamp %q does not match layout: %v", ts, err)
		}
		if d := time.Since(parsed.UTC()); d < -time.Minute || d > time.Minute {
			t.Errorf("Timestamp %q not close to current UTC time", ts)
		}
	}
}

func TestStream_CancellationStopsCleanly(t *testing.T) {
	s := newTestSimulator(3)
	ctx, cancel := context.WithCancel(context.Background())

	const want = 5
	stream := s.Stream(ctx, 0)

	received := 0
	for received < want {
		snap, ok := <-stream
		if !ok {
			t.Fatalf("Stream closed early after %d snapshots", received)
		}
		if err := snap.Validate(); err != nil {
			t.Fatalf("Snapshot %d invalid: %v", received, err)
		}
		received++
	}

	cancel()

	// At most one snapshot may already be in flight when the cancel lands;
	// after that the channel must close.
	extra := 0
	for snap := range stream {
		if err := snap.Validate(); err != nil {
			t.Fatalf("In-flight snapshot invalid: %v", err)
		}
		extra++
		if extra > 1 {
			t.Fatalf("Stream yielded %d snapshots after cancellation", extra)
		}
	}
}

func TestStream_Pacing(t *testing.T) {
	s := newTestSimulator(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const interval = 20 * time.Millisecond
	stream := s.Stream(ctx, interval)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, ok := <-stream; !ok {
			t.Fatal("Stream closed unexpectedly")
		}
	}
	elapsed := time.Since(start)

	// Three snapshots require two full pacing delays.
	if elapsed < 2*interval {
		t.Errorf("Three snapshots arrived in %v, expected at least %v", elapsed, 2*interval)
	}
}
