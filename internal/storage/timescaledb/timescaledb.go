// Package timescaledb stores link results in a TimescaleDB (PostgreSQL) table.
package timescaledb

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/stormtrack/internal/analysis"
	"github.com/chrissnell/stormtrack/internal/database"
	"github.com/chrissnell/stormtrack/internal/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Storage holds the connection to a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
}

// TrackLink is one stored link result
type TrackLink struct {
	ID         uint      `gorm:"primaryKey"`
	RunID      uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedAt  time.Time
	Track      int `gorm:"index;not null"`
	Identifier int `gorm:"not null"`
	Overlap    int `gorm:"not null"`
	// SelectedTime holds the selected mask timestamp in calendar notation
	// since model calendars do not map onto timestamptz
	SelectedTime string
	Calendar     string
	SelectedUTC  *time.Time
	MaskStep     int
	PixelCount   int
}

// TableName customizes the table name in the DB
func (TrackLink) TableName() string {
	return "track_links"
}

// FromResult converts a link result into a row
func FromResult(runID uuid.UUID, res *analysis.LinkResult) TrackLink {
	row := TrackLink{
		RunID:      runID,
		Track:      res.Track,
		Identifier: res.Identifier,
		MaskStep:   res.MaskStep,
		PixelCount: res.PixelCount(),
	}
	if res.Alignment != nil {
		row.Overlap = res.Alignment.Overlap()
	}
	if res.Selected.IsValid() {
		row.SelectedTime = res.Selected.String()
		row.Calendar = res.Selected.Calendar.String()
		if t, err := res.Selected.Time(); err == nil {
			row.SelectedUTC = &t
		}
	}
	return row
}

// New connects to TimescaleDB and creates the track_links table
func New(ctx context.Context, connectionString string) (*Storage, error) {
	db, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	return NewWithDB(ctx, db)
}

// NewWithDB uses an existing GORM connection
func NewWithDB(ctx context.Context, db *gorm.DB) (*Storage, error) {
	log.Info("creating track_links table...")
	if err := db.WithContext(ctx).AutoMigrate(&TrackLink{}); err != nil {
		return nil, fmt.Errorf("could not create track_links table: %w", err)
	}
	return &Storage{TimescaleDBConn: db}, nil
}

// StoreLink stores one link result
func (t *Storage) StoreLink(ctx context.Context, runID uuid.UUID, res *analysis.LinkResult) error {
	row := FromResult(runID, res)
	if err := t.TimescaleDBConn.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("could not store link for track %d: %w", res.Track, err)
	}
	return nil
}

// LinksForRun returns the stored links of a run ordered by track
func (t *Storage) LinksForRun(ctx context.Context, runID uuid.UUID) ([]TrackLink, error) {
	var rows []TrackLink
	err := t.TimescaleDBConn.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("track").
		Find(&rows).Error
	return rows, err
}

// Close closes the underlying database connection
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
