package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"TradePulse/internal/model"
)

// SQLiteStore persists events, raw envelopes, users, and positions to a
// SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so poll-path reads never wait on the ingest write path.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: logger.With().Str("component", "storage").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			instance_id TEXT NOT NULL,
			key         TEXT NOT NULL,
			value       TEXT,
			ts          INTEGER NOT NULL,
			server_time INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`,

		`CREATE TABLE IF NOT EXISTS raw_envelopes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			received_at INTEGER NOT NULL,
			body        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_received ON raw_envelopes(received_at)`,

		`CREATE TABLE IF NOT EXISTS users (
			email           TEXT PRIMARY KEY,
			balance         REAL NOT NULL,
			initial_balance REAL NOT NULL,
			created_at      INTEGER NOT NULL,
			last_login      INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS positions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			email      TEXT NOT NULL,
			type       TEXT NOT NULL,
			amount     REAL NOT NULL,
			status     TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			closed_at  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_email ON positions(email, status)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) AppendEvent(evt StoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := json.Marshal(evt.Value)
	if err != nil {
		return fmt.Errorf("marshal event value: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO events (instance_id, key, value, ts, server_time)
		VALUES (?,?,?,?,?)`,
		evt.InstanceID, string(evt.Key), string(value), evt.Time, evt.ServerTime,
	)
	return err
}

func (s *SQLiteStore) AppendRawEnvelope(receivedAt int64, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO raw_envelopes (received_at, body) VALUES (?,?)`,
		receivedAt, string(body))
	return err
}

// LoadEvents returns all persisted events sorted by upstream timestamp, for
// rebuilding the in-memory store on boot.
func (s *SQLiteStore) LoadEvents() ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT instance_id, key, value, ts, server_time
		FROM events ORDER BY ts ASC`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var evt StoredEvent
		var key, value string
		if err := rows.Scan(&evt.InstanceID, &key, &value, &evt.Time, &evt.ServerTime); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Key = model.MetricKey(key)
		if err := json.Unmarshal([]byte(value), &evt.Value); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("skipping event with undecodable value")
			continue
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// PruneRawEnvelopes deletes raw envelopes received before the cutoff and
// returns the number of rows removed.
func (s *SQLiteStore) PruneRawEnvelopes(olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM raw_envelopes WHERE received_at < ?`,
		olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune raw envelopes: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) GetUser(email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT email, balance, initial_balance, created_at, last_login
		FROM users WHERE email = ?`, email)
	var u model.User
	err := row.Scan(&u.Email, &u.Balance, &u.InitialBalance, &u.CreatedAt, &u.LastLoginDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO users (email, balance, initial_balance, created_at, last_login)
		VALUES (?,?,?,?,?)`,
		u.Email, u.Balance, u.InitialBalance, u.CreatedAt, u.LastLoginDate)
	return err
}

func (s *SQLiteStore) TouchLogin(email string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE users SET last_login = ? WHERE email = ?`, ts, email)
	return err
}

// RecordBuy inserts the opened position and zeroes the user's balance in one
// transaction. A fault rolls back both writes.
func (s *SQLiteStore) RecordBuy(p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin buy: %w", err)
	}
	res, err := tx.Exec(`INSERT INTO positions (email, type, amount, status, created_at, closed_at)
		VALUES (?,?,?,?,?,0)`,
		p.Email, string(p.Type), p.Amount, string(p.Status), p.CreatedAt)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("open position: %w", err)
	}
	if _, err := tx.Exec(`UPDATE users SET balance = 0 WHERE email = ?`, p.Email); err != nil {
		tx.Rollback()
		return fmt.Errorf("zero balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit buy: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// RecordSell closes the user's open position of the given type and credits
// the proceeds in one transaction. A fault rolls back both writes, so a
// retried sell can never realize the same position twice.
func (s *SQLiteStore) RecordSell(email string, t model.PositionType, closedAt int64, proceeds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sell: %w", err)
	}
	if _, err := tx.Exec(`UPDATE positions SET status = ?, closed_at = ?
		WHERE email = ? AND type = ? AND status = ?`,
		string(model.PositionClosed), closedAt, email, string(t), string(model.PositionOpen)); err != nil {
		tx.Rollback()
		return fmt.Errorf("close position: %w", err)
	}
	if _, err := tx.Exec(`UPDATE users SET balance = ? WHERE email = ?`, proceeds, email); err != nil {
		tx.Rollback()
		return fmt.Errorf("set balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sell: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindOpenPosition(email string, t model.PositionType) (*model.Position, error) {
	return s.findPosition(`SELECT id, email, type, amount, status, created_at, closed_at
		FROM positions WHERE email = ? AND type = ? AND status = ? LIMIT 1`,
		email, string(t), string(model.PositionOpen))
}

func (s *SQLiteStore) FindAnyOpenPosition(email string) (*model.Position, error) {
	return s.findPosition(`SELECT id, email, type, amount, status, created_at, closed_at
		FROM positions WHERE email = ? AND status = ? LIMIT 1`,
		email, string(model.PositionOpen))
}

func (s *SQLiteStore) findPosition(query string, args ...any) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(query, args...)
	var p model.Position
	var ptype, status string
	err := row.Scan(&p.ID, &p.Email, &ptype, &p.Amount, &status, &p.CreatedAt, &p.ClosedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find position: %w", err)
	}
	p.Type = model.PositionType(ptype)
	p.Status = model.PositionStatus(status)
	return &p, nil
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite store")
	return s.db.Close()
}
