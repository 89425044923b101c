package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hoshinonyaruko/tabletop/rolls"
	"github.com/hoshinonyaruko/tabletop/scene"
	"github.com/hoshinonyaruko/tabletop/session"
	"github.com/hoshinonyaruko/tabletop/structs"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const createDocumentsTableSQL = `
CREATE TABLE IF NOT EXISTS documents (
    session_id TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    body TEXT NOT NULL,
    last_update INTEGER NOT NULL
);
`

const createRollsTableSQL = `
CREATE TABLE IF NOT EXISTS rolls (
    session_id TEXT PRIMARY KEY,
    body TEXT NOT NULL
);
`

// Store keeps each session as two rows: the document and its roll log.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ session.Store = (*Store)(nil)

// Open opens (creating if needed) the database file at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)

	if err := InitializeDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("sqlite store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

func executeSQL(db *sql.DB, sqlStatement string) error {
	if _, err := db.Exec(sqlStatement); err != nil {
		return fmt.Errorf("executing SQL statement %q: %w", sqlStatement, err)
	}
	return nil
}

// InitializeDatabase creates the tables.
func InitializeDatabase(db *sql.DB) error {
	for _, stmt := range []string{createDocumentsTableSQL, createRollsTableSQL} {
		if err := executeSQL(db, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LoadDocument(ctx context.Context, sessionID string) (*structs.Document, error) {
	var body string
	var version int64
	err := s.db.QueryRowContext(ctx, "SELECT body, version FROM documents WHERE session_id = ?", sessionID).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	doc, err := scene.Decode([]byte(body))
	if err != nil {
		return nil, err
	}
	// the column is authoritative for CAS
	doc.Version = version
	return doc, nil
}

func (s *Store) CreateDocument(ctx context.Context, sessionID string, doc *structs.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO documents (session_id, version, body, last_update) VALUES (?, ?, ?, ?)",
		sessionID, doc.Version, string(body), doc.LastUpdate)
	if err != nil {
		return err
	}
	return affectedOrConflict(res)
}

func (s *Store) SaveDocument(ctx context.Context, sessionID string, doc *structs.Document, expectedVersion int64) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET version = ?, body = ?, last_update = ? WHERE session_id = ? AND version = ?",
		doc.Version, string(body), doc.LastUpdate, sessionID, expectedVersion)
	if err != nil {
		return err
	}
	return affectedOrConflict(res)
}

func affectedOrConflict(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return session.ErrVersionConflict
	}
	return nil
}

func loadRolls(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, sessionID string) ([]structs.RollRecord, error) {
	var body string
	err := q.QueryRowContext(ctx, "SELECT body FROM rolls WHERE session_id = ?", sessionID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return []structs.RollRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	var log []structs.RollRecord
	if err := json.Unmarshal([]byte(body), &log); err != nil {
		return nil, fmt.Errorf("decode rolls: %w", err)
	}
	return log, nil
}

func (s *Store) LoadRolls(ctx context.Context, sessionID string) ([]structs.RollRecord, error) {
	return loadRolls(ctx, s.db, sessionID)
}

func (s *Store) AppendRoll(ctx context.Context, sessionID string, rec structs.RollRecord, limit int) error {
	// 开启事务
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	log, err := loadRolls(ctx, tx, sessionID)
	if err != nil {
		tx.Rollback()
		return err
	}
	body, err := json.Marshal(rolls.Append(log, rec, limit))
	if err != nil {
		tx.Rollback()
		return err
	}
	_, err = tx.ExecContext(ctx, "INSERT OR REPLACE INTO rolls (session_id, body) VALUES (?, ?)", sessionID, string(body))
	if err != nil {
		tx.Rollback()
		return err
	}

	// 提交事务
	return tx.Commit()
}

func (s *Store) ClearRolls(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM rolls WHERE session_id = ?", sessionID)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
