package session

import (
	"context"

	"github.com/hoshinonyaruko/tabletop/rolls"
	"github.com/hoshinonyaruko/tabletop/scene"
	"github.com/hoshinonyaruko/tabletop/structs"
)

// Document returns the current document with the active scene repaired in
// the returned copy only.
func (m *Manager) Document(ctx context.Context, sessionID string) (*structs.Document, error) {
	doc, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	scene.Active(doc)
	return doc, nil
}

func snapshotOf(doc *structs.Document) *structs.Snapshot {
	active := scene.Active(doc).Clone()
	return &structs.Snapshot{
		ActiveSceneID: doc.ActiveSceneID,
		Scenes:        scene.Summaries(doc),
		Scene:         &active,
		Version:       doc.Version,
	}
}

// Snapshot returns scene summaries, the active scene in full and the version.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (*structs.Snapshot, error) {
	doc, err := m.Document(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(doc), nil
}

// Check reports changes only when the stored version is strictly greater
// than knownVersion, and then carries the snapshot.
func (m *Manager) Check(ctx context.Context, sessionID string, knownVersion int64) (*structs.CheckResult, error) {
	doc, err := m.Document(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if doc.Version <= knownVersion {
		return &structs.CheckResult{HasChanges: false, Version: doc.Version}, nil
	}
	return &structs.CheckResult{HasChanges: true, Version: doc.Version, Data: snapshotOf(doc)}, nil
}

// Ping returns the current ping, or nil.
func (m *Manager) Ping(ctx context.Context, sessionID string) (*structs.Ping, error) {
	doc, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return doc.Ping, nil
}

// RecentRolls returns the newest n rolls, oldest first. n <= 0 uses the
// configured default.
func (m *Manager) RecentRolls(ctx context.Context, sessionID string, n int) ([]structs.RollRecord, error) {
	if n <= 0 {
		n = m.opts.RecentRolls
	}
	log, err := m.store.LoadRolls(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return rolls.Tail(log, n), nil
}
