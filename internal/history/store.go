package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/wlanscan/pkg/models"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/HerbHall/wlanscan/pkg/roles"
)

// DefaultLimit caps listings when the caller gives no limit.
const DefaultLimit = 100

// Store provides database access for the history plugin. Timestamps are
// stored as RFC 3339 UTC text so they sort lexically.
type Store struct {
	store plugin.Store
}

// NewStore creates a Store on the shared database.
func NewStore(s plugin.Store) *Store {
	return &Store{store: s}
}

// SaveSession records a finished session and its networks in one
// transaction. Saving the same session twice replaces its sightings.
func (s *Store) SaveSession(ctx context.Context, sess models.SessionSummary, nets []models.NetworkSummary) error {
	seenAt := sess.EndedAt
	if seenAt == "" {
		seenAt = time.Now().UTC().Format(time.RFC3339)
	}
	return s.store.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO history_sessions (
				id, status, started_at, ended_at, issued, inserted, updated, networks, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, string(sess.Status), sess.StartedAt, nullIfEmpty(sess.EndedAt),
			sess.Issued, sess.Inserted, sess.Updated, len(nets), sess.Error,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM history_sightings WHERE session_id = ?`, sess.ID); err != nil {
			return fmt.Errorf("clear sightings: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO history_sightings (
				id, session_id, bssid, ssid, hidden, channel, band, rssi, security, vendor, seen_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare sighting insert: %w", err)
		}
		defer stmt.Close()

		for i := range nets {
			n := &nets[i]
			seen := n.LastSeen
			if seen == "" {
				seen = seenAt
			}
			hidden := 0
			if n.Hidden {
				hidden = 1
			}
			if _, err := stmt.ExecContext(ctx,
				uuid.New().String(), sess.ID, strings.ToLower(n.BSSID), n.SSID, hidden,
				n.Channel, n.Band, n.RSSI, n.Security, n.Vendor, seen,
			); err != nil {
				return fmt.Errorf("insert sighting %s: %w", n.BSSID, err)
			}
		}
		return nil
	})
}

// Sightings returns sightings matching q, newest first.
func (s *Store) Sightings(ctx context.Context, q roles.SightingQuery) ([]models.Sighting, error) {
	var (
		where []string
		args  []any
	)
	if q.BSSID != "" {
		where = append(where, "bssid = ?")
		args = append(args, strings.ToLower(q.BSSID))
	}
	if q.SSID != "" {
		where = append(where, "ssid = ?")
		args = append(args, q.SSID)
	}
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, session_id, bssid, ssid, hidden, channel, band, rssi, security, vendor, seen_at
		FROM history_sightings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seen_at DESC, bssid LIMIT ?"
	args = append(args, limit)

	rows, err := s.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	defer rows.Close()

	var out []models.Sighting
	for rows.Next() {
		var (
			sg     models.Sighting
			hidden int
		)
		if err := rows.Scan(
			&sg.ID, &sg.SessionID, &sg.BSSID, &sg.SSID, &hidden,
			&sg.Channel, &sg.Band, &sg.RSSI, &sg.Security, &sg.Vendor, &sg.SeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan sighting row: %w", err)
		}
		sg.Hidden = hidden != 0
		out = append(out, sg)
	}
	return out, rows.Err()
}

// Sessions returns recorded sessions, newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT id, status, started_at, COALESCE(ended_at, ''), issued, inserted, updated, networks, error
		FROM history_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		if err := rows.Scan(&r.ID, &r.Status, &r.StartedAt, &r.EndedAt,
			&r.Issued, &r.Inserted, &r.Updated, &r.Networks, &r.Error); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes sessions that started before cutoff, along with
// their sightings. It returns the number of sessions removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.store.Tx(ctx, func(tx *sql.Tx) error {
		ts := cutoff.UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM history_sightings WHERE session_id IN (
				SELECT id FROM history_sessions WHERE started_at < ?)`, ts); err != nil {
			return fmt.Errorf("delete old sightings: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM history_sessions WHERE started_at < ?`, ts)
		if err != nil {
			return fmt.Errorf("delete old sessions: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// SessionRecord is one persisted scan session.
type SessionRecord struct {
	ID        string `json:"id"`
	Status    string `json:"status" example:"completed"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Issued    int    `json:"issued"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Networks  int    `json:"networks"`
	Error     string `json:"error,omitempty"`
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
