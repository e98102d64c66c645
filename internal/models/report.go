package models

// AnomalyCode identifies a single detector rule that fired.
type AnomalyCode string

const (
	AnomalyLowPH            AnomalyCode = "LOW_PH"
	AnomalyHighPH           AnomalyCode = "HIGH_PH"
	AnomalyHighTurbidity    AnomalyCode = "HIGH_TURBIDITY"
	AnomalyContaminants     AnomalyCode = "CONTAMINANTS"
	AnomalyHighDiscrepancy  AnomalyCode = "HIGH_DISCREPANCY"
	AnomalyLowUtilization   AnomalyCode = "LOW_UTILIZATION"
	AnomalyOverUtilization  AnomalyCode = "OVER_UTILIZATION"
	AnomalySpikeDiscrepancy AnomalyCode = "SPIKE_DISCREPANCY"
)

// Severity grades a report for alerting and ledger retention.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Anomaly is one triggered rule with the observed value and a short
// human-readable explanation.
type Anomaly struct {
	Code    AnomalyCode `json:"code"`
	Value   float64     `json:"value"`
	Message string      `json:"message"`
}

// WaterAnomalyReport is the detector's assessment of a single water reading.
// DataHash is a truncated SHA-256 of the canonical reading JSON, used by the
// audit ledger to tie the report back to the exact reading it describes.
type WaterAnomalyReport struct {
	SensorID  string    `json:"sensor_id"`
	Timestamp string    `json:"timestamp"`
	Anomalies []Anomaly `json:"anomalies"`
	Severity  Severity  `json:"severity"`
	DataHash  string    `json:"data_hash"`
}

// FundAnomalyReport is the detector's assessment of a single fund reading.
type FundAnomalyReport struct {
	FundID      string     `json:"fund_id"`
	Department  Department `json:"department"`
	Timestamp   string     `json:"timestamp"`
	Anomalies   []Anomaly  `json:"anomalies"`
	Severity    Severity   `json:"severity"`
	Allocated   int        `json:"allocated"`
	Discrepancy float64    `json:"discrepancy"`
	DataHash    string     `json:"data_hash"`
}

// TickAssessment combines both per-reading reports for one stream tick.
type TickAssessment struct {
	Timestamp        string             `json:"timestamp"`
	WaterAnomaly     WaterAnomalyReport `json:"water_anomaly"`
	FundAnomaly      FundAnomalyReport  `json:"fund_anomaly"`
	CombinedSeverity Severity           `json:"combined_severity"`
}
