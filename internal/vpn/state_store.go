package vpn

import (
	"database/sql"
	"errors"
	"time"
)

// SQLStateStore keeps ConnectionState in the single-row connection_state table.
type SQLStateStore struct {
	db *sql.DB
}

func NewSQLStateStore(db *sql.DB) (*SQLStateStore, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	return &SQLStateStore{db: db}, nil
}

func (s *SQLStateStore) SaveState(state ConnectionState) error {
	_, err := s.db.Exec(`
INSERT INTO connection_state (id, servername, protocol, updated_at)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    servername = excluded.servername,
    protocol   = excluded.protocol,
    updated_at = excluded.updated_at`,
		state.ServerName, string(state.Protocol), state.UpdatedAt.Unix())
	return err
}

func (s *SQLStateStore) LoadState() (ConnectionState, bool, error) {
	var (
		state     ConnectionState
		protocol  string
		updatedAt int64
	)
	err := s.db.QueryRow(`SELECT servername, protocol, updated_at FROM connection_state WHERE id = 1`).
		Scan(&state.ServerName, &protocol, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ConnectionState{}, false, nil
	}
	if err != nil {
		return ConnectionState{}, false, err
	}
	state.Protocol = Protocol(protocol)
	state.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return state, true, nil
}
