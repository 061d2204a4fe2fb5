package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jatinmanav/StockApp/internal/database"
)

// DBMaintenanceJob keeps the orders database healthy over long uptimes:
// it truncates the WAL file and pings the connection. The ledger profile
// never auto-vacuums, so the WAL checkpoint is the only file-size control.
type DBMaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewDBMaintenanceJob creates a database maintenance job
func NewDBMaintenanceJob(db *database.DB, log zerolog.Logger) *DBMaintenanceJob {
	return &DBMaintenanceJob{
		db:  db,
		log: log.With().Str("job", "db-maintenance").Logger(),
	}
}

// Name returns the job name
func (j *DBMaintenanceJob) Name() string {
	return "db-maintenance"
}

// Run checkpoints the WAL and verifies the connection is alive
func (j *DBMaintenanceJob) Run() error {
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := j.db.QuickCheck(ctx); err != nil {
		return err
	}

	if stats, err := j.db.GetStats(); err == nil {
		j.log.Debug().
			Int64("size_bytes", stats.SizeBytes).
			Int64("wal_size_bytes", stats.WALSizeBytes).
			Msg("Database maintenance completed")
	}

	return nil
}
