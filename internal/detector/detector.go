// Package detector evaluates simulated readings against fixed safety and
// audit thresholds.
//
// Water rules: pH outside [6.5, 8.5], turbidity above 80 NTU, and any
// contaminant detection (zero tolerance). Fund rules: discrepancy above 30%
// of the allocation, utilization outside [0.4, 1.1], and a discrepancy
// spike above twice the rolling mean of the last ten readings.
//
// Severity is LOW with no findings, MEDIUM with findings, and HIGH when a
// water reading trips more than one rule or a fund reading carries the
// fraud flag. Assess combines both reports per tick; CRITICAL means both
// sides are HIGH at once.
package detector

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/guardian-iot/guardian-sim/internal/models"
)

// Water thresholds.
const (
	phLow         = 6.5
	phHigh        = 8.5
	turbidityHigh = 80
)

// Fund thresholds.
const (
	discrepancyRatioMax = 0.3
	utilizationLow      = 0.4
	utilizationHigh     = 1.1
	spikeFactor         = 2.0
)

// historyLimit bounds the rolling fund history used for spike detection.
const historyLimit = 100

// spikeWindow is how many recent readings feed the rolling discrepancy mean.
const spikeWindow = 10

// Detector holds a bounded history of fund readings for spike detection.
// It is not safe for concurrent use; the stream loop is the single caller.
type Detector struct {
	fundHistory []models.FundReading
}

// New creates a Detector with empty history.
func New() *Detector {
	return &Detector{}
}

// DetectWater evaluates one water reading against the fixed thresholds.
func (d *Detector) DetectWater(reading models.WaterReading) models.WaterAnomalyReport {
	var anomalies []models.Anomaly

	if reading.WaterPH < phLow {
		anomalies = append(anomalies, models.Anomaly{
			Code:    models.AnomalyLowPH,
			Value:   reading.WaterPH,
			Message: "pH below safe limit",
		})
	} else if reading.WaterPH > phHigh {
		anomalies = append(anomalies, models.Anomaly{
			Code:    models.AnomalyHighPH,
			Value:   reading.WaterPH,
			Message: "pH above safe limit",
		})
	}

	if reading.WaterTurbidity > turbidityHigh {
		anomalies = append(anomalies, models.Anomaly{
			Code:    models.AnomalyHighTurbidity,
			Value:   float64(reading.WaterTurbidity),
			Message: "water cloudy/contaminated",
		})
	}

	if reading.ContaminantsDetected {
		anomalies = append(anomalies, models.Anomaly{
			Code:    models.AnomalyContaminants,
			Value:   1,
			Message: "harmful substances detected",
		})
	}

	severity := models.SeverityLow
	switch {
	case len(anomalies) > 1:
		severity = models.SeverityHigh
	case len(anomalies) == 1:
		severity = models.SeverityMedium
	}

	return models.WaterAnomalyReport{
		SensorID:  reading.SensorID,
		Timestamp: reading.Timestamp,
		Anomalies: anomalies,
		Severity:  severity,
		DataHash:  hashReading(reading),
	}
}

// DetectFund evaluates one fund reading and records it in the rolling
// history afterwards, so the spike rule compares against prior readings only.
func (d *Detector) DetectFund(reading models.FundReading) models.FundAnomalyReport {
	var anomalies []models.Anomaly

	if reading.Discrepancy > 0 && reading.AllocatedAmount > 0 {
		ratio := reading.Discrepancy / float64(reading.AllocatedAmount)
		if ratio > discrepancyRatioMax {
			anomalies = append(anomalies, models.Anomaly{
				Code:    models.AnomalyHighDiscrepancy,
				Value:   ratio,
				Message: fmt.Sprintf("%.1f%% funds unaccounted", ratio*100),
			})
		}
	}

	if reading.AllocatedAmount > 0 {
		utilization := reading.UtilizedAmount / float64(reading.AllocatedAmount)
		if utilization < utilizationLow {
			anomalies = append(anomalies, models.Anomaly{
				Code:    models.AnomalyLowUtilization,
				Value:   utilization,
				Message: fmt.Sprintf("only %.1f%% funds used", utilization*100),
			})
		} else if utilization > utilizationHigh {
			anomalies = append(anomalies, models.Anomaly{
				Code:    models.AnomalyOverUtilization,
				Value:   utilization,
				Message: fmt.Sprintf("%.1f%% exceeds allocation", utilization*100),
			})
		}
	}

	if mean, ok := d.rollingDiscrepancyMean(); ok && reading.Discrepancy > mean*spikeFactor {
		anomalies = append(anomalies, models.Anomaly{
			Code:    models.AnomalySpikeDiscrepancy,
			Value:   reading.Discrepancy,
			Message: "sudden increase in discrepancies",
		})
	}

	d.fundHistory = append(d.fundHistory, reading)
	if len(d.fundHistory) > historyLimit {
		d.fundHistory = d.fundHistory[len(d.fundHistory)-historyLimit:]
	}

	severity := models.SeverityLow
	switch {
	case reading.FraudFlag:
		severity = models.SeverityHigh
	case len(anomalies) > 0:
		severity = models.SeverityMedium
	}

	return models.FundAnomalyReport{
		FundID:      reading.FundID,
		Department:  reading.Department,
		Timestamp:   reading.Timestamp,
		Anomalies:   anomalies,
		Severity:    severity,
		Allocated:   reading.AllocatedAmount,
		Discrepancy: reading.Discrepancy,
		DataHash:    hashReading(reading),
	}
}

// Assess evaluates both readings of a snapshot and combines their severities.
func (d *Detector) Assess(snapshot models.Snapshot) models.TickAssessment {
	water := d.DetectWater(snapshot.WaterReading)
	fund := d.DetectFund(snapshot.FundReading)

	combined := water.Severity
	switch {
	case water.Severity == models.SeverityHigh && fund.Severity == models.SeverityHigh:
		combined = models.SeverityCritical
	case water.Severity == models.SeverityLow:
		combined = fund.Severity
	}

	return models.TickAssessment{
		Timestamp:        snapshot.SystemTimestamp,
		WaterAnomaly:     water,
		FundAnomaly:      fund,
		CombinedSeverity: combined,
	}
}

// rollingDiscrepancyMean returns the mean discrepancy of the most recent
// readings. The spike rule only engages once more than spikeWindow readings
// have been seen.
func (d *Detector) rollingDiscrepancyMean() (float64, bool) {
	if len(d.fundHistory) <= spikeWindow {
		return 0, false
	}
	recent := d.fundHistory[len(d.fundHistory)-spikeWindow:]
	var sum float64
	for _, r := range recent {
		sum += r.Discrepancy
	}
	return sum / float64(len(recent)), true
}

// hashReading returns the first 16 hex characters of the SHA-256 of the
// reading's canonical JSON, enough to tie a ledger entry to its reading.
func hashReading(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
