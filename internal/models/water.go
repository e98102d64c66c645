package models

import (
	"errors"
	"regexp"
)

// TimestampLayout is the wire format for all reading timestamps: ISO-8601 in
// UTC with microsecond precision and no offset suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000"

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6}$`)

// WaterReading represents a single simulated water-quality sample from one
// sensor node. Field names form the de-facto wire contract for any
// downstream consumer.
type WaterReading struct {
	SensorID             string  `json:"sensor_id"`
	Location             string  `json:"location"`
	Timestamp            string  `json:"timestamp"`
	WaterPH              float64 `json:"water_pH"`
	WaterTurbidity       int     `json:"water_turbidity"`
	ContaminantsDetected bool    `json:"contaminants_detected"`
	TemperatureC         float64 `json:"temperature_c"`
	FlowRateLPS          float64 `json:"flow_rate_lps"`
	AnomalyFlag          bool    `json:"anomaly_flag"`
}

// Validate checks that all water reading fields are valid
func (w *WaterReading) Validate() error {
	if w.SensorID == "" {
		return errors.New("sensor ID must not be empty")
	}
	if w.Location == "" {
		return errors.New("location must not be empty")
	}
	if !timestampPattern.MatchString(w.Timestamp) {
		return errors.New("timestamp must be ISO-8601 UTC with microseconds and no offset")
	}
	if w.WaterPH < 0.0 || w.WaterPH > 14.0 {
		return errors.New("water pH must be between 0.0 and 14.0")
	}
	if w.WaterTurbidity < 0 {
		return errors.New("water turbidity must not be negative")
	}
	if w.FlowRateLPS < 0.5 || w.FlowRateLPS > 5.0 {
		return errors.New("flow rate must be between 0.5 and 5.0 L/s")
	}
	if w.AnomalyFlag && !w.ContaminantsDetected {
		return errors.New("anomalous readings must report contaminants")
	}
	return nil
}
