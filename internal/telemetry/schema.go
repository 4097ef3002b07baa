package telemetry

import (
	"database/sql"

	"codeberg.org/veldt/ventctl/internal/errors"
)

// initSchema initializes the database schema for the vitals journal
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS vitals (
            timestamp INTEGER PRIMARY KEY,
            saturation REAL,
            pulse_rate REAL,
            temp_f REAL,
            target_rate INTEGER,
            alarm_active INTEGER,
            running INTEGER
        )
    `)
	if err != nil {
		return errors.New().Wrap(ErrStorageInit, err)
	}

	return nil
}
