// Package ledger keeps a SQLite record of batch runs and per-symbol outcomes.
package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/newthinker/chartgen/internal/core"
)

type runModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
	Total      int
	Saved      int
	NoData     int
	Failed     int
	Outcomes   []outcomeModel `gorm:"foreignKey:RunID"`
}

func (runModel) TableName() string { return "chart_runs" }

type outcomeModel struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       string `gorm:"index;size:36"`
	Seq         int
	Raw         string
	Symbol      string `gorm:"index"`
	DisplayName string
	Status      string
	Location    string
	Bars        int
	Error       string
	DurationMs  int64
}

func (outcomeModel) TableName() string { return "chart_outcomes" }

// Store persists run summaries.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("ledger path cannot be empty"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &outcomeModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record stores a finished run with its outcomes.
func (s *Store) Record(ctx context.Context, summary core.RunSummary) error {
	if summary.RunID == "" {
		return fmt.Errorf("ledger: run id required")
	}
	run := runModel{
		ID:         summary.RunID,
		StartedAt:  summary.StartedAt.UTC(),
		FinishedAt: summary.FinishedAt.UTC(),
		Total:      summary.Total,
		Saved:      summary.Saved,
		NoData:     summary.NoData,
		Failed:     summary.Failed,
		Outcomes:   make([]outcomeModel, len(summary.Outcomes)),
	}
	for i, o := range summary.Outcomes {
		run.Outcomes[i] = toOutcomeModel(summary.RunID, i, o)
	}
	return s.db.WithContext(ctx).Create(&run).Error
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []runModel
	err := s.db.WithContext(ctx).
		Preload("Outcomes", func(db *gorm.DB) *gorm.DB { return db.Order("seq asc") }).
		Order("started_at desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}

	out := make([]core.RunSummary, len(runs))
	for i, r := range runs {
		out[i] = r.toSummary()
	}
	return out, nil
}

// SymbolHistory returns the latest outcomes for one canonical symbol, newest first.
func (s *Store) SymbolHistory(ctx context.Context, symbol string, limit int) ([]core.Outcome, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []outcomeModel
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]core.Outcome, len(rows))
	for i, r := range rows {
		out[i] = r.toOutcome()
	}
	return out, nil
}

func toOutcomeModel(runID string, seq int, o core.Outcome) outcomeModel {
	return outcomeModel{
		RunID:       runID,
		Seq:         seq,
		Raw:         o.Raw,
		Symbol:      o.Symbol,
		DisplayName: o.DisplayName,
		Status:      string(o.Status),
		Location:    o.Location,
		Bars:        o.Bars,
		Error:       o.Error,
		DurationMs:  o.Duration.Milliseconds(),
	}
}

func (m outcomeModel) toOutcome() core.Outcome {
	return core.Outcome{
		Raw:         m.Raw,
		Symbol:      m.Symbol,
		DisplayName: m.DisplayName,
		Status:      core.Status(m.Status),
		Location:    m.Location,
		Bars:        m.Bars,
		Error:       m.Error,
		Duration:    time.Duration(m.DurationMs) * time.Millisecond,
	}
}

func (r runModel) toSummary() core.RunSummary {
	s := core.RunSummary{
		RunID:      r.ID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      r.Total,
		Saved:      r.Saved,
		NoData:     r.NoData,
		Failed:     r.Failed,
		Outcomes:   make([]core.Outcome, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		s.Outcomes[i] = o.toOutcome()
	}
	return s
}
