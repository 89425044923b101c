// Package session is the authoritative, versioned store of tabletop
// sessions. Manager serializes every mutation of a session, applies it to a
// private copy of the document, bumps the version and writes the result
// back with a compare-and-swap on the version it read.
package session

import (
	"context"
	"errors"

	"github.com/hoshinonyaruko/tabletop/rolls"
	"github.com/hoshinonyaruko/tabletop/scene"
	"github.com/hoshinonyaruko/tabletop/structs"
)

// Validation failures. They never mutate state and are reported to callers
// as {success:false, error}.
var (
	ErrNotFound         = scene.ErrNotFound
	ErrLastScene        = scene.ErrLastScene
	ErrPositionOccupied = scene.ErrPositionOccupied
	ErrInvalid          = scene.ErrInvalid
)

var (
	// ErrNoDocument is returned by Store.LoadDocument for an unknown session.
	ErrNoDocument = errors.New("session document does not exist")
	// ErrVersionConflict is returned by Store.SaveDocument when the stored
	// version moved since it was read, and by Store.CreateDocument when the
	// document already exists.
	ErrVersionConflict = errors.New("session version conflict")
)

// IsValidation reports whether err is a recoverable request failure rather
// than a storage failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLastScene) ||
		errors.Is(err, ErrPositionOccupied) ||
		errors.Is(err, ErrInvalid) ||
		errors.Is(err, rolls.ErrInvalid)
}

// Store persists the two independent records of a session: the document and
// the roll log. Nothing is assumed about transactions across the two.
type Store interface {
	// LoadDocument returns ErrNoDocument when the session has none yet.
	LoadDocument(ctx context.Context, sessionID string) (*structs.Document, error)
	// CreateDocument stores the first document of a session, failing with
	// ErrVersionConflict if one already exists.
	CreateDocument(ctx context.Context, sessionID string, doc *structs.Document) error
	// SaveDocument replaces the document only if the stored version still
	// equals expectedVersion; otherwise it returns ErrVersionConflict.
	SaveDocument(ctx context.Context, sessionID string, doc *structs.Document, expectedVersion int64) error

	// LoadRolls returns the roll log, oldest first; empty for a new session.
	LoadRolls(ctx context.Context, sessionID string) ([]structs.RollRecord, error)
	// AppendRoll atomically appends rec and truncates the log to limit.
	AppendRoll(ctx context.Context, sessionID string, rec structs.RollRecord, limit int) error
	// ClearRolls empties the roll log.
	ClearRolls(ctx context.Context, sessionID string) error

	Close() error
}
