package models

import (
	"errors"
	"regexp"
)

// Department is one of the fixed public-fund categories a reading can be
// attributed to.
type Department string

const (
	DepartmentWater          Department = "Water"
	DepartmentSanitation     Department = "Sanitation"
	DepartmentInfrastructure Department = "Infrastructure"
	DepartmentHealth         Department = "Health"
)

// Departments returns the fixed category set in sampling order.
func Departments() []Department {
	return []Department{
		DepartmentWater,
		DepartmentSanitation,
		DepartmentInfrastructure,
		DepartmentHealth,
	}
}

var fundIDPattern = regexp.MustCompile(`^FUND_\d{4}$`)

// FundReading represents a single simulated public-fund allocation record.
// fund_id is not a unique key; duplicates across readings are expected.
type FundReading struct {
	FundID          string     `json:"fund_id"`
	Department      Department `json:"department"`
	AllocatedAmount int        `json:"allocated_amount"`
	UtilizedAmount  float64    `json:"utilized_amount"`
	Discrepancy     float64    `json:"discrepancy"`
	Timestamp       string     `json:"timestamp"`
	FraudFlag       bool       `json:"fraud_flag"`
	Location        string     `json:"location"`
}

// Validate checks that all fund reading fields are valid
func (f *FundReading) Validate() error {
	if !fundIDPattern.MatchString(f.FundID) {
		return errors.New("fund ID must match FUND_ followed by 4 digits")
	}
	switch f.Department {
	case DepartmentWater, DepartmentSanitation, DepartmentInfrastructure, DepartmentHealth:
	default:
		return errors.New("department must be one of Water, Sanitation, Infrastructure, Health")
	}
	if f.AllocatedAmount < 0 {
		return errors.New("allocated amount must not be negative")
	}
	if f.UtilizedAmount < 0.0 {
		return errors.New("utilized amount must not be negative")
	}
	if !timestampPattern.MatchString(f.Timestamp) {
		return errors.New("timestamp must be ISO-8601 UTC with microseconds and no offset")
	}
	if f.FraudFlag && f.Discrepancy <= 0.0 {
		return errors.New("fraudulent readings must carry a positive discrepancy")
	}
	if !f.FraudFlag && f.Discrepancy != 0.0 {
		return errors.New("non-fraudulent readings must have zero discrepancy")
	}
	if f.Location == "" {
		return errors.New("location must not be empty")
	}
	return nil
}
