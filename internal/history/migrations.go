package history

import (
	"database/sql"

	"github.com/HerbHall/wlanscan/pkg/plugin"
)

// migrations returns the history module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create scan history tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS history_sessions (
						id           TEXT PRIMARY KEY,
						status       TEXT NOT NULL,
						started_at   TEXT NOT NULL,
						ended_at     TEXT,
						issued       INTEGER NOT NULL DEFAULT 0,
						inserted     INTEGER NOT NULL DEFAULT 0,
						updated      INTEGER NOT NULL DEFAULT 0,
						networks     INTEGER NOT NULL DEFAULT 0,
						error        TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE INDEX IF NOT EXISTS idx_history_sessions_started ON history_sessions(started_at)`,

					`CREATE TABLE IF NOT EXISTS history_sightings (
						id           TEXT PRIMARY KEY,
						session_id   TEXT NOT NULL REFERENCES history_sessions(id) ON DELETE CASCADE,
						bssid        TEXT NOT NULL,
						ssid         TEXT NOT NULL DEFAULT '',
						hidden       INTEGER NOT NULL DEFAULT 0,
						channel      INTEGER NOT NULL,
						band         TEXT NOT NULL,
						rssi         INTEGER NOT NULL,
						security     TEXT NOT NULL DEFAULT '',
						vendor       TEXT NOT NULL DEFAULT '',
						seen_at      TEXT NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_history_sightings_bssid ON history_sightings(bssid)`,
					`CREATE INDEX IF NOT EXISTS idx_history_sightings_seen ON history_sightings(seen_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
