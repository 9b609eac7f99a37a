package store

import (
	"strings"
	"time"
)

const defaultLimit = 50

// InsertRecord adds r to the journal. Inserting the same RecordID twice is a
// no-op.
func (db *DB) InsertRecord(r *Record) error {
	_, err := db.Exec(`
		INSERT INTO messages (record_id, counterpart, body, direction, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO NOTHING`,
		r.RecordID, r.Counterpart, r.Body, r.Direction, r.Timestamp, time.Now().UnixMilli())
	return err
}

// ListRecords returns the newest records first.
func (db *DB) ListRecords(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return db.queryRecords(`
		SELECT id, record_id, counterpart, body, direction, timestamp
		FROM messages
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
}

// SearchRecords returns records whose counterpart or body contains query,
// case-insensitively, newest first.
func (db *DB) SearchRecords(query string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	pattern := "%" + escapeLike(query) + "%"
	return db.queryRecords(`
		SELECT id, record_id, counterpart, body, direction, timestamp
		FROM messages
		WHERE body LIKE ? ESCAPE '\' OR counterpart LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, pattern, pattern, limit)
}

func (db *DB) queryRecords(q string, args ...any) ([]Record, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.RecordID, &r.Counterpart, &r.Body, &r.Direction, &r.Timestamp); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
