// Package ledger provides an append-only, hash-chained audit log for
// detected anomalies, persisted in SQLite.
//
// Each block stores the SHA-256 of its canonical JSON payload together with
// the hash of the previous block, so any retroactive edit to a stored
// anomaly breaks the chain and is caught by VerifyChain. The ledger is the
// system's only persistence; generated readings themselves are never stored.
package ledger

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guardian-iot/guardian-sim/internal/models"
	_ "modernc.org/sqlite"
)

// genesisHash seeds the chain before the first block exists.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Data types distinguishing the two anomaly streams in the chain.
const (
	DataTypeWaterAnomaly = "WATER_ANOMALY"
	DataTypeFundAnomaly  = "FUND_ANOMALY"
)

// Block is one immutable entry in the audit chain.
type Block struct {
	ID           int64           `json:"id"`
	BlockID      string          `json:"block_id"`
	PreviousHash string          `json:"previous_hash"`
	CurrentHash  string          `json:"current_hash"`
	Timestamp    string          `json:"timestamp"`
	DataType     string          `json:"data_type"`
	SensorID     string          `json:"sensor_id,omitempty"`
	FundID       string          `json:"fund_id,omitempty"`
	AnomalyType  string          `json:"anomaly_type,omitempty"`
	Severity     models.Severity `json:"severity"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// VerifyResult reports the outcome of a full chain walk.
type VerifyResult struct {
	Valid            bool   `json:"valid"`
	Status           string `json:"status"`
	BlockCount       int    `json:"block_count"`
	BrokenBlockID    int64  `json:"broken_block_id,omitempty"`
	ExpectedPrevious string `json:"expected_previous,omitempty"`
	ActualPrevious   string `json:"actual_previous,omitempty"`
}

// Stats summarizes the chain for the dashboard.
type Stats struct {
	TotalAnomalies int    `json:"total_anomalies"`
	WaterAnomalies int    `json:"water_anomalies"`
	FundAnomalies  int    `json:"fund_anomalies"`
	CriticalCount  int    `json:"critical_count"`
	LastUpdate     string `json:"last_update"`
}

// Ledger is a SQLite-backed hash chain. Appends are serialized by a mutex so
// the previous-hash linkage never races.
type Ledger struct {
	db       *sql.DB
	mu       sync.Mutex
	lastHash string
}

// Open opens (creating if needed) the ledger database at path and loads the
// tip of the chain.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS blocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		block_id TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		current_hash TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		data_type TEXT NOT NULL,
		sensor_id TEXT,
		fund_id TEXT,
		anomaly_type TEXT,
		severity TEXT NOT NULL,
		data TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_blocks_data_type ON blocks(data_type);
	CREATE INDEX IF NOT EXISTS idx_blocks_timestamp ON blocks(timestamp);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create blocks table: %w", err)
	}

	l := &Ledger{db: db, lastHash: genesisHash}

	var tip sql.NullString
	err = db.QueryRow("SELECT current_hash FROM blocks ORDER BY id DESC LIMIT 1").Scan(&tip)
	if err != nil && err != sql.ErrNoRows {
		db.Close()
		return nil, fmt.Errorf("failed to load chain tip: %w", err)
	}
	if tip.Valid {
		l.lastHash = tip.String
	}

	return l, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// AppendWaterAnomaly records a water anomaly report as a new block.
func (l *Ledger) AppendWaterAnomaly(report models.WaterAnomalyReport) (*Block, error) {
	return l.appendBlock(DataTypeWaterAnomaly, report.SensorID, "", firstAnomalyCode(report.Anomalies), report.Severity, report)
}

// AppendFundAnomaly records a fund anomaly report as a new block.
func (l *Ledger) AppendFundAnomaly(report models.FundAnomalyReport) (*Block, error) {
	return l.appendBlock(DataTypeFundAnomaly, "", report.FundID, firstAnomalyCode(report.Anomalies), report.Severity, report)
}

func (l *Ledger) appendBlock(dataType, sensorID, fundID, anomalyType string, severity models.Severity, payload any) (*Block, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().UTC().Format(models.TimestampLayout)
	currentHash, err := hashBlock(l.lastHash, timestamp, dataType, sensorID, fundID, anomalyType, severity, data)
	if err != nil {
		return nil, err
	}

	block := &Block{
		BlockID:      uuid.New().String(),
		PreviousHash: l.lastHash,
		CurrentHash:  currentHash,
		Timestamp:    timestamp,
		DataType:     dataType,
		SensorID:     sensorID,
		FundID:       fundID,
		AnomalyType:  anomalyType,
		Severity:     severity,
		Data:         data,
	}

	result, err := l.db.Exec(`
		INSERT INTO blocks
		(block_id, previous_hash, current_hash, timestamp, data_type, sensor_id, fund_id, anomaly_type, severity, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		block.BlockID, block.PreviousHash, block.CurrentHash, block.Timestamp,
		block.DataType, block.SensorID, block.FundID, block.AnomalyType,
		string(block.Severity), string(block.Data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert block: %w", err)
	}

	block.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read block ID: %w", err)
	}

	l.lastHash = currentHash
	return block, nil
}

// VerifyChain walks every block in insertion order and checks that each
// previous_hash matches the preceding block's current_hash.
func (l *Ledger) VerifyChain() (VerifyResult, error) {
	rows, err := l.db.Query("SELECT id, previous_hash, current_hash FROM blocks ORDER BY id")
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	var (
		count    int
		prevHash string
		prevSeen bool
	)
	for rows.Next() {
		var id int64
		var previous, current string
		if err := rows.Scan(&id, &previous, &current); err != nil {
			return VerifyResult{}, fmt.Errorf("failed to scan block: %w", err)
		}
		count++

		if prevSeen && previous != prevHash {
			return VerifyResult{
				Valid:            false,
				Status:           "INVALID_CHAIN",
				BlockCount:       count,
				BrokenBlockID:    id,
				ExpectedPrevious: prevHash,
				ActualPrevious:   previous,
			}, nil
		}
		prevHash = current
		prevSeen = true
	}
	if err := rows.Err(); err != nil {
		return VerifyResult{}, fmt.Errorf("error during block iteration: %w", err)
	}

	if count == 0 {
		return VerifyResult{Valid: true, Status: "EMPTY_CHAIN"}, nil
	}
	return VerifyResult{Valid: true, Status: "VALID_CHAIN", BlockCount: count}, nil
}

// RecentBlocks returns up to limit blocks, newest first.
func (l *Ledger) RecentBlocks(limit int) ([]Block, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := l.db.Query(`
		SELECT id, block_id, previous_hash, current_hash, timestamp, data_type,
		       sensor_id, fund_id, anomaly_type, severity, data
		FROM blocks ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent blocks: %w", err)
	}
	defer rows.Close()

	var blocks []Block
	for rows.Next() {
		var b Block
		var sensorID, fundID, anomalyType, data sql.NullString
		var severity string
		if err := rows.Scan(&b.ID, &b.BlockID, &b.PreviousHash, &b.CurrentHash,
			&b.Timestamp, &b.DataType, &sensorID, &fundID, &anomalyType,
			&severity, &data); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		b.SensorID = sensorID.String
		b.FundID = fundID.String
		b.AnomalyType = anomalyType.String
		b.Severity = models.Severity(severity)
		if data.Valid {
			b.Data = json.RawMessage(data.String)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during block iteration: %w", err)
	}

	return blocks, nil
}

// GetStats aggregates chain counters for the dashboard.
func (l *Ledger) GetStats() (Stats, error) {
	var s Stats

	row := l.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN data_type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN data_type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN severity = ? THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(timestamp), '')
		FROM blocks`,
		DataTypeWaterAnomaly, DataTypeFundAnomaly, string(models.SeverityCritical))
	if err := row.Scan(&s.TotalAnomalies, &s.WaterAnomalies, &s.FundAnomalies, &s.CriticalCount, &s.LastUpdate); err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	return s, nil
}

// LastBlockTime returns the timestamp of the newest block, or ok=false when
// the chain is empty.
func (l *Ledger) LastBlockTime() (time.Time, bool, error) {
	var ts sql.NullString
	err := l.db.QueryRow("SELECT MAX(timestamp) FROM blocks").Scan(&ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last block time: %w", err)
	}
	if !ts.Valid || ts.String == "" {
		return time.Time{}, false, nil
	}

	t, err := time.Parse(models.TimestampLayout, ts.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse block timestamp %q: %w", ts.String, err)
	}
	return t, true, nil
}

// hashBlock computes the SHA-256 over the canonical (sorted-key) JSON of the
// block contents, excluding the hash itself.
func hashBlock(previousHash, timestamp, dataType, sensorID, fundID, anomalyType string, severity models.Severity, data json.RawMessage) (string, error) {
	canonical := map[string]any{
		"previous_hash": previousHash,
		"timestamp":     timestamp,
		"data_type":     dataType,
		"sensor_id":     sensorID,
		"fund_id":       fundID,
		"anomaly_type":  anomalyType,
		"severity":      severity,
		"data":          data,
	}
	encoded, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to marshal block for hashing: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func firstAnomalyCode(anomalies []models.Anomaly) string {
	if len(anomalies) == 0 {
		return ""
	}
	return string(anomalies[0].Code)
}
