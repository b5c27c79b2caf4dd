// Package store persists a backtest run's time-series and discrepancy
// ledger to SQLite via gorm, using a create-or-update flush pattern.
// Persistence is optional: a driver run with no configured sqlite_path
// never touches this package.
package store

import (
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// TimeSeriesRow is one row of the value/price/action time series recorded
// after each replayed event.
type TimeSeriesRow struct {
	gorm.Model
	RunID            string `gorm:"index"`
	EventIndex       int    `gorm:"index"`
	Timestamp        int64
	SpotPrice        string
	DisplaySpotPrice string
	PortfolioValue   string
	ActiveTickLower  int
	ActiveTickUpper  int
	FeesAccumQuote   string
	Action           string
}

// DiscrepancyRow mirrors a replay.Discrepancy for persistence.
type DiscrepancyRow struct {
	gorm.Model
	RunID      string `gorm:"index"`
	EventIndex int
	Timestamp  int64
	Kind       string
	Message    string
}

// MetricsRow is the final summary record for a single run.
type MetricsRow struct {
	gorm.Model
	RunID             string `gorm:"uniqueIndex"`
	TotalReturn       string
	MaxDrawdown       string
	RebalanceCount    int
	GasSpent          string
	ImpermanentLoss   string
	DiscrepancyCount  int
	StrategyPrecondFailures int
}

// Store wraps a gorm.DB opened against a pure-Go SQLite driver (no cgo), so
// a backtest binary cross-compiles cleanly.
type Store struct {
	db *gorm.DB
}

// Open creates (or reopens) a SQLite-backed store at path and migrates its
// schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&TimeSeriesRow{}, &DiscrepancyRow{}, &MetricsRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// FlushTimeSeries batch-inserts a run's time-series rows.
func (s *Store) FlushTimeSeries(rows []TimeSeriesRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.CreateInBatches(rows, 500).Error
}

// FlushDiscrepancies batch-inserts a run's discrepancy ledger.
func (s *Store) FlushDiscrepancies(rows []DiscrepancyRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.CreateInBatches(rows, 500).Error
}

// FlushMetrics creates or updates the single metrics row for runID.
func (s *Store) FlushMetrics(row MetricsRow) error {
	var existing MetricsRow
	err := s.db.Where("run_id = ?", row.RunID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.Create(&row).Error
	}
	if err != nil {
		return err
	}
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = time.Now()
	return s.db.Save(&row).Error
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
