// Package postgres stores session documents and roll logs in PostgreSQL so
// several server processes can share sessions.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hoshinonyaruko/tabletop/rolls"
	"github.com/hoshinonyaruko/tabletop/scene"
	"github.com/hoshinonyaruko/tabletop/session"
	"github.com/hoshinonyaruko/tabletop/structs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    session_id TEXT PRIMARY KEY,
    version BIGINT NOT NULL,
    body JSONB NOT NULL,
    last_update BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS rolls (
    session_id TEXT PRIMARY KEY,
    body JSONB NOT NULL
);
`

// Store is a session.Store on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ session.Store = (*Store)(nil)

// Open connects to dsn and creates the schema.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	stats := pool.Stat()
	logger.Info("postgres store opened",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("max_conns", stats.MaxConns()),
	)
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) LoadDocument(ctx context.Context, sessionID string) (*structs.Document, error) {
	var body []byte
	var version int64
	err := s.pool.QueryRow(ctx, "SELECT body, version FROM documents WHERE session_id = $1", sessionID).Scan(&body, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	doc, err := scene.Decode(body)
	if err != nil {
		return nil, err
	}
	doc.Version = version
	return doc, nil
}

func (s *Store) CreateDocument(ctx context.Context, sessionID string, doc *structs.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		"INSERT INTO documents (session_id, version, body, last_update) VALUES ($1, $2, $3, $4) ON CONFLICT (session_id) DO NOTHING",
		sessionID, doc.Version, body, doc.LastUpdate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrVersionConflict
	}
	return nil
}

func (s *Store) SaveDocument(ctx context.Context, sessionID string, doc *structs.Document, expectedVersion int64) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE documents SET version = $1, body = $2, last_update = $3 WHERE session_id = $4 AND version = $5",
		doc.Version, body, doc.LastUpdate, sessionID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrVersionConflict
	}
	return nil
}

func decodeRolls(body []byte) ([]structs.RollRecord, error) {
	var log []structs.RollRecord
	if err := json.Unmarshal(body, &log); err != nil {
		return nil, fmt.Errorf("decode rolls: %w", err)
	}
	return log, nil
}

func (s *Store) LoadRolls(ctx context.Context, sessionID string) ([]structs.RollRecord, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, "SELECT body FROM rolls WHERE session_id = $1", sessionID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return []structs.RollRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRolls(body)
}

func (s *Store) AppendRoll(ctx context.Context, sessionID string, rec structs.RollRecord, limit int) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// make sure a row exists so FOR UPDATE has something to lock
		if _, err := tx.Exec(ctx,
			"INSERT INTO rolls (session_id, body) VALUES ($1, '[]'::jsonb) ON CONFLICT (session_id) DO NOTHING",
			sessionID); err != nil {
			return err
		}
		var body []byte
		if err := tx.QueryRow(ctx, "SELECT body FROM rolls WHERE session_id = $1 FOR UPDATE", sessionID).Scan(&body); err != nil {
			return err
		}
		log, err := decodeRolls(body)
		if err != nil {
			return err
		}
		out, err := json.Marshal(rolls.Append(log, rec, limit))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, "UPDATE rolls SET body = $1 WHERE session_id = $2", out, sessionID)
		return err
	})
}

func (s *Store) ClearRolls(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM rolls WHERE session_id = $1", sessionID)
	return err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
