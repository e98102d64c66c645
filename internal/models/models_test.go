package models

import "testing"

func validWaterReading() WaterReading {
	return WaterReading{
		SensorID:             "guardian_node_001",
		Location:             "village_center",
		Timestamp:            "2026-08-30T10:15:30.123456",
		WaterPH:              7.2,
		WaterTurbidity:       12,
		ContaminantsDetected: false,
		TemperatureC:         21.5,
		FlowRateLPS:          2.34,
		AnomalyFlag:          false,
	}
}

func validFundReading() FundReading {
	return FundReading{
		FundID:          "FUND_4567",
		Department:      DepartmentSanitation,
		AllocatedAmount: 25000,
		UtilizedAmount:  20000.0,
		Discrepancy:     0,
		Timestamp:       "2026-08-30T10:15:30.123456",
		FraudFlag:       false,
		Location:        "village_center",
	}
}

func TestWaterReadingValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WaterReading)
		wantErr bool
	}{
		{"valid", func(*WaterReading) {}, false},
		{"valid anomaly", func(w *WaterReading) {
			w.AnomalyFlag = true
			w.ContaminantsDetected = true
			w.WaterPH = 5.12
			w.WaterTurbidity = 150
		}, false},
		{"empty sensor ID", func(w *WaterReading) { w.SensorID = "" }, true},
		{"empty location", func(w *WaterReading) { w.Location = "" }, true},
		{"timestamp with offset", func(w *WaterReading) { w.Timestamp = "2026-08-30T10:15:30.123456Z" }, true},
		{"timestamp without microseconds", func(w *WaterReading) { w.Timestamp = "2026-08-30T10:15:30" }, true},
		{"negative pH", func(w *WaterReading) { w.WaterPH = -0.1 }, true},
		{"pH above 14", func(w *WaterReading) { w.WaterPH = 14.2 }, true},
		{"negative turbidity", func(w *WaterReading) { w.WaterTurbidity = -1 }, true},
		{"flow rate too low", func(w *WaterReading) { w.FlowRateLPS = 0.4 }, true},
		{"flow rate too high", func(w *WaterReading) { w.FlowRateLPS = 5.1 }, true},
		{"anomaly without contaminants", func(w *WaterReading) { w.AnomalyFlag = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validWaterReading()
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFundReadingValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FundReading)
		wantErr bool
	}{
		{"valid", func(*FundReading) {}, false},
		{"valid fraud", func(f *FundReading) {
			f.FraudFlag = true
			f.Discrepancy = 9500.0
			f.UtilizedAmount = 7000.0
		}, false},
		{"bad fund ID prefix", func(f *FundReading) { f.FundID = "FOND_1234" }, true},
		{"fund ID too short", func(f *FundReading) { f.FundID = "FUND_123" }, true},
		{"fund ID too long", func(f *FundReading) { f.FundID = "FUND_12345" }, true},
		{"unknown department", func(f *FundReading) { f.Department = "Education" }, true},
		{"negative allocated", func(f *FundReading) { f.AllocatedAmount = -1 }, true},
		{"negative utilized", func(f *FundReading) { f.UtilizedAmount = -0.01 }, true},
		{"bad timestamp", func(f *FundReading) { f.Timestamp = "yesterday" }, true},
		{"fraud without discrepancy", func(f *FundReading) { f.FraudFlag = true }, true},
		{"discrepancy without fraud", func(f *FundReading) { f.Discrepancy = 100.0 }, true},
		{"empty location", func(f *FundReading) { f.Location = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validFundReading()
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshotValidate(t *testing.T) {
	snap := Snapshot{
		WaterReading:    validWaterReading(),
		FundReading:     validFundReading(),
		SystemTimestamp: "2026-08-30T10:15:30.123456",
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("Valid snapshot rejected: %v", err)
	}

	bad := snap
	bad.SystemTimestamp = "2026-08-30 10:15:30"
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for malformed system timestamp")
	}

	bad = snap
	bad.WaterReading.SensorID = ""
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for invalid contained water reading")
	}

	bad = snap
	bad.FundReading.FundID = "bogus"
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for invalid contained fund reading")
	}
}

func TestDepartments(t *testing.T) {
	departments := Departments()
	if len(departments) != 4 {
		t.Fatalf("Expected 4 departments, got %d", len(departments))
	}
	want := []Department{DepartmentWater, DepartmentSanitation, DepartmentInfrastructure, DepartmentHealth}
	for i, d := range want {
		if departments[i] != d {
			t.Errorf("Department %d: expected %s, got %s", i, d, departments[i])
		}
	}
}
