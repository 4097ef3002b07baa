package telemetry

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/veldt/ventctl/internal/errors"
	"codeberg.org/veldt/ventctl/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

type Repository interface {
	Store(ctx context.Context, sample *Sample) error
	Close() error
}

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	logger.Debug().Msgf("Initializing vitals journal at: %s", cfg.DBPath)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteRepository{
		db: db,
	}, nil
}

func (r *sqliteRepository) Store(ctx context.Context, sample *Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO vitals (
            timestamp, saturation, pulse_rate, temp_f,
            target_rate, alarm_active, running
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(timestamp) DO UPDATE SET
            saturation = excluded.saturation,
            pulse_rate = excluded.pulse_rate,
            temp_f = excluded.temp_f,
            target_rate = excluded.target_rate,
            alarm_active = excluded.alarm_active,
            running = excluded.running
    `,
		sample.Timestamp.Unix(),
		nullable(sample.Saturation),
		nullable(sample.PulseRate),
		nullable(sample.TempF),
		sample.TargetRate,
		boolToInt(sample.AlarmActive),
		boolToInt(sample.Running),
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}

// nullable maps NaN readings onto SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}
