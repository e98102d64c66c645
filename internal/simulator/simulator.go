// Package simulator generates plausible synthetic telemetry for two domains:
// water-quality sensing and public-fund allocation. It is a stand-in data
// source for demos and pipeline testing when no real sensors or ledgers
// exist.
//
// Each generated reading is an independent random sample. Water readings
// carry a 7% chance of a deliberate out-of-range anomaly; fund readings
// carry a configurable chance of a simulated fraud pattern (under-utilization
// plus a nonzero discrepancy). Readings are generate-and-forget: nothing is
// persisted and no cross-tick linkage exists.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/guardian-iot/guardian-sim/internal/models"
)

// anomalyChance is the per-reading probability of sampling a water anomaly.
const anomalyChance = 0.07

// Out-of-range pH bands used when a water anomaly is sampled. The two bands
// are disjoint from the safe interval [6.5, 8.5] and chosen with equal
// probability.
const (
	anomalyPHLowMin  = 4.0
	anomalyPHLowMax  = 6.4
	anomalyPHHighMin = 8.6
	anomalyPHHighMax = 9.5
)

// Anomalous turbidity range (NTU), inclusive.
const (
	anomalyTurbidityMin = 85
	anomalyTurbidityMax = 200
)

// Flow rate bounds in liters per second, sampled independently of the
// anomaly branch.
const (
	flowRateMin = 0.5
	flowRateMax = 5.0
)

// Fraud-path sampling bounds: utilization ratio and the discrepancy factor
// applied to the allocated amount.
const (
	fraudRatioMin       = 0.2
	fraudRatioMax       = 0.5
	fraudDiscrepancyMin = 0.3
	fraudDiscrepancyMax = 0.7
)

// Fund ID numeric suffix range, inclusive. Collisions across readings are
// allowed; fund_id is not a unique key.
const (
	fundIDMin = 1000
	fundIDMax = 9999
)

// WaterParams configures normal-range water sampling.
type WaterParams struct {
	PHMin               float64
	PHMax               float64
	TurbidityMin        int
	TurbidityMax        int
	ContaminationChance float64
	TemperatureMin      float64
	TemperatureMax      float64
}

// FundParams configures normal-range fund sampling.
type FundParams struct {
	AllocatedMin int
	AllocatedMax int
	UtilizedMin  float64
	UtilizedMax  float64
	FraudChance  float64
}

// Simulator produces randomized water and fund readings for one fixed
// sensor identity. Configuration is immutable after construction; the only
// mutable state is the injected random source, which is not safe for
// concurrent use across goroutines.
type Simulator struct {
	sensorID string
	location string
	water    WaterParams
	fund     FundParams
	rng      *rand.Rand
}

// New creates a Simulator. Passing a nil rng seeds one from the wall clock;
// tests inject a fixed-seed source for deterministic output.
func New(sensorID, location string, water WaterParams, fund FundParams, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		sensorID: sensorID,
		location: location,
		water:    water,
		fund:     fund,
		rng:      rng,
	}
}

// GenerateWaterReading produces one randomized water-quality reading.
// With probability 7% the reading is anomalous: pH lands in one of the two
// out-of-range bands, turbidity in [85, 200], and contaminants are forced
// true. Temperature and flow rate are sampled regardless of the branch.
func (s *Simulator) GenerateWaterReading() models.WaterReading {
	anomaly := s.rng.Float64() < anomalyChance

	var pH float64
	var turbidity int
	var contaminants bool

	if anomaly {
		if s.rng.Intn(2) == 0 {
			pH = s.uniform(anomalyPHLowMin, anomalyPHLowMax)
		} else {
			pH = s.uniform(anomalyPHHighMin, anomalyPHHighMax)
		}
		turbidity = s.intBetween(anomalyTurbidityMin, anomalyTurbidityMax)
		contaminants = true
	} else {
		pH = s.uniform(s.water.PHMin, s.water.PHMax)
		turbidity = s.intBetween(s.water.TurbidityMin, s.water.TurbidityMax)
		contaminants = s.rng.Float64() < s.water.ContaminationChance
	}

	return models.WaterReading{
		SensorID:             s.sensorID,
		Location:             s.location,
		Timestamp:            nowUTC(),
		WaterPH:              round2(pH),
		WaterTurbidity:       turbidity,
		ContaminantsDetected: contaminants,
		TemperatureC:         round1(s.uniform(s.water.TemperatureMin, s.water.TemperatureMax)),
		FlowRateLPS:          round2(s.uniform(flowRateMin, flowRateMax)),
		AnomalyFlag:          anomaly,
	}
}

// GenerateFundReading produces one randomized fund allocation reading.
// With probability fund.FraudChance the fraud path is taken: utilization is
// sampled in (0.2, 0.5) and the discrepancy is a uniform 30-70% of the
// allocated amount. Otherwise the discrepancy is exactly zero.
func (s *Simulator) GenerateFundReading() models.FundReading {
	fraud := s.rng.Float64() < s.fund.FraudChance
	allocated := s.intBetween(s.fund.AllocatedMin, s.fund.AllocatedMax)

	var ratio, discrepancy float64
	if fraud {
		ratio = s.uniform(fraudRatioMin, fraudRatioMax)
		discrepancy = float64(allocated) * s.uniform(fraudDiscrepancyMin, fraudDiscrepancyMax)
	} else {
		ratio = s.uniform(s.fund.UtilizedMin, s.fund.UtilizedMax)
	}

	departments := models.Departments()

	return models.FundReading{
		FundID:          fmt.Sprintf("FUND_%04d", s.intBetween(fundIDMin, fundIDMax)),
		Department:      departments[s.rng.Intn(len(departments))],
		AllocatedAmount: allocated,
		UtilizedAmount:  round2(float64(allocated) * ratio),
		Discrepancy:     round2(discrepancy),
		Timestamp:       nowUTC(),
		FraudFlag:       fraud,
		Location:        s.location,
	}
}

// Snapshot generates one water reading and one fund reading and pairs them
// with the current wall-clock moment. The two readings share nothing beyond
// that timestamp.
func (s *Simulator) Snapshot() models.Snapshot {
	return models.Snapshot{
		WaterReading:    s.GenerateWaterReading(),
		FundReading:     s.GenerateFundReading(),
		SystemTimestamp: nowUTC(),
	}
}

// Stream returns an unbounded, lazily produced sequence of snapshots paced
// by interval. The channel is closed, without a partial snapshot, when ctx
// is cancelled; a non-positive interval ticks as fast as the consumer pulls.
// Cancellation is checked before generating, while handing off, and during
// the pacing delay.
func (s *Simulator) Stream(ctx context.Context, interval time.Duration) <-chan models.Snapshot {
	out := make(chan models.Snapshot)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			snapshot := s.Snapshot()

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}

			if interval <= 0 {
				continue
			}
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()

	return out
}

// uniform samples a float64 in [min, max).
func (s *Simulator) uniform(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

// intBetween samples an int in [min, max], inclusive on both ends.
func (s *Simulator) intBetween(min, max int) int {
	return min + s.rng.Intn(max-min+1)
}

func nowUTC() string {
	return time.Now().UTC().Format(models.TimestampLayout)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
