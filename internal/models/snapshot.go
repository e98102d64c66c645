package models

import "errors"

// Snapshot pairs one water reading and one fund reading produced in the same
// stream tick. The two readings are sampled independently and share only the
// tick's wall-clock moment.
type Snapshot struct {
	WaterReading    WaterReading `json:"water_reading"`
	FundReading     FundReading  `json:"fund_reading"`
	SystemTimestamp string       `json:"system_timestamp"`
}

// Validate checks that the snapshot and both contained readings are valid
func (s *Snapshot) Validate() error {
	if !timestampPattern.MatchString(s.SystemTimestamp) {
		return errors.New("system timestamp must be ISO-8601 UTC with microseconds and no offset")
	}
	if err := s.WaterReading.Validate(); err != nil {
		return err
	}
	return s.FundReading.Validate()
}
