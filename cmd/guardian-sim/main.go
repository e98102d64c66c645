package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/guardian-iot/guardian-sim/internal/config"
	"github.com/guardian-iot/guardian-sim/internal/dashboard"
	"github.com/guardian-iot/guardian-sim/internal/detector"
	"github.com/guardian-iot/guardian-sim/internal/ledger"
	"github.com/guardian-iot/guardian-sim/internal/logger"
	"github.com/guardian-iot/guardian-sim/internal/models"
	"github.com/guardian-iot/guardian-sim/internal/simulator"
	"github.com/guardian-iot/guardian-sim/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize audit ledger
	var auditLedger *ledger.Ledger
	if cfg.Ledger.Enabled {
		if dir := filepath.Dir(cfg.Ledger.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Fatal("Failed to create ledger directory: %v", err)
			}
		}
		auditLedger, err = ledger.Open(cfg.Ledger.DBPath)
		if err != nil {
			logger.Fatal("Failed to open audit ledger: %v", err)
		}
		defer func() {
			if err := auditLedger.Close(); err != nil {
				logger.Error("Failed to close audit ledger: %v", err)
			}
		}()
		logger.Info("Audit ledger opened at %s", cfg.Ledger.DBPath)
	} else {
		logger.Debug("Audit ledger disabled")
	}

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram alerts disabled")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping stream...")
		cancel()
	}()

	// Start dashboard API
	if cfg.Dashboard.Enabled {
		srv := dashboard.New(cfg.Dashboard.ListenAddr, auditLedger)
		go func() {
			logger.Info("Dashboard API listening on %s", cfg.Dashboard.ListenAddr)
			if err := srv.Run(ctx); err != nil {
				logger.Error("Dashboard API stopped: %v", err)
			}
		}()
	}

	// Build the simulator. A zero seed means a fresh wall-clock seed per run;
	// a fixed seed reproduces the exact same stream.
	var rng *rand.Rand
	if cfg.Simulator.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Simulator.Seed))
	}
	sim := simulator.New(
		cfg.Simulator.SensorID,
		cfg.Simulator.Location,
		simulator.WaterParams{
			PHMin:               cfg.Simulator.Water.PHMin,
			PHMax:               cfg.Simulator.Water.PHMax,
			TurbidityMin:        cfg.Simulator.Water.TurbidityMin,
			TurbidityMax:        cfg.Simulator.Water.TurbidityMax,
			ContaminationChance: cfg.Simulator.Water.ContaminationChance,
			TemperatureMin:      cfg.Simulator.Water.TemperatureMin,
			TemperatureMax:      cfg.Simulator.Water.TemperatureMax,
		},
		simulator.FundParams{
			AllocatedMin: cfg.Simulator.Fund.AllocatedMin,
			AllocatedMax: cfg.Simulator.Fund.AllocatedMax,
			UtilizedMin:  cfg.Simulator.Fund.UtilizedMin,
			UtilizedMax:  cfg.Simulator.Fund.UtilizedMax,
			FraudChance:  cfg.Simulator.Fund.FraudChance,
		},
		rng,
	)
	det := detector.New()

	logger.Info("Starting telemetry stream (sensor: %s, location: %s, interval: %v)",
		cfg.Simulator.SensorID, cfg.Simulator.Location, cfg.Simulator.Interval)

	ticks := 0
	for snapshot := range sim.Stream(ctx, cfg.Simulator.Interval) {
		ticks++
		printSummary(snapshot)
		handleTick(det, auditLedger, telegramClient, cfg, snapshot)
	}

	logger.Info("Stream stopped after %d ticks", ticks)
	fmt.Println("Simulation stopped.")
}

// printSummary writes the per-tick console line
func printSummary(s models.Snapshot) {
	fmt.Printf("[%s] pH=%.2f turbidity=%d anomaly=%t | fund=%s allocated=%d discrepancy=%.2f fraud=%t\n",
		s.SystemTimestamp,
		s.WaterReading.WaterPH,
		s.WaterReading.WaterTurbidity,
		s.WaterReading.AnomalyFlag,
		s.FundReading.FundID,
		s.FundReading.AllocatedAmount,
		s.FundReading.Discrepancy,
		s.FundReading.FraudFlag,
	)
}

// handleTick runs detection over one snapshot and routes the findings to the
// ledger and the alert channel. Detection failures never stop the stream.
func handleTick(det *detector.Detector, auditLedger *ledger.Ledger, telegramClient *telegram.Client, cfg *config.Config, snapshot models.Snapshot) {
	assessment := det.Assess(snapshot)

	if auditLedger != nil {
		if assessment.WaterAnomaly.Severity != models.SeverityLow {
			if _, err := auditLedger.AppendWaterAnomaly(assessment.WaterAnomaly); err != nil {
				logger.Error("Failed to record water anomaly: %v", err)
			} else {
				logger.Debug("Water anomaly recorded (severity: %s)", assessment.WaterAnomaly.Severity)
			}
		}
		if assessment.FundAnomaly.Severity != models.SeverityLow {
			if _, err := auditLedger.AppendFundAnomaly(assessment.FundAnomaly); err != nil {
				logger.Error("Failed to record fund anomaly: %v", err)
			} else {
				logger.Debug("Fund anomaly recorded (severity: %s)", assessment.FundAnomaly.Severity)
			}
		}
	}

	if cfg.Telegram.Enabled && telegramClient != nil &&
		(assessment.CombinedSeverity == models.SeverityHigh || assessment.CombinedSeverity == models.SeverityCritical) {
		if err := telegramClient.SendAlert(assessment); err != nil {
			logger.Error("Failed to send Telegram alert: %v", err)
		} else {
			logger.Info("Sent %s alert to Telegram", assessment.CombinedSeverity)
		}
	}
}
