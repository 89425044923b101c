package session

import (
	"context"
	"fmt"

	"github.com/hoshinonyaruko/tabletop/rolls"
	"github.com/hoshinonyaruko/tabletop/scene"
	"github.com/hoshinonyaruko/tabletop/structs"
)

// Scene lifecycle.

func (m *Manager) CreateScene(ctx context.Context, sessionID, name string) (structs.SceneSummary, int64, error) {
	var sum structs.SceneSummary
	doc, err := m.Mutate(ctx, sessionID, "create-scene", func(doc *structs.Document) error {
		sum = scene.Create(doc, name)
		return nil
	})
	if err != nil {
		return structs.SceneSummary{}, 0, err
	}
	return sum, doc.Version, nil
}

func (m *Manager) DeleteScene(ctx context.Context, sessionID, id string) (int64, error) {
	doc, err := m.Mutate(ctx, sessionID, "delete-scene", func(doc *structs.Document) error {
		return scene.Delete(doc, id)
	})
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

func (m *Manager) RenameScene(ctx context.Context, sessionID, id, name string) (int64, error) {
	doc, err := m.Mutate(ctx, sessionID, "rename-scene", func(doc *structs.Document) error {
		scene.Rename(doc, id, name)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

// SwitchScene activates a scene and returns its full content.
func (m *Manager) SwitchScene(ctx context.Context, sessionID, id string) (*structs.Scene, int64, error) {
	var active structs.Scene
	doc, err := m.Mutate(ctx, sessionID, "switch-scene", func(doc *structs.Document) error {
		s, err := scene.Switch(doc, id)
		if err != nil {
			return err
		}
		active = s.Clone()
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &active, doc.Version, nil
}

func (m *Manager) DuplicateScene(ctx context.Context, sessionID, id string) (structs.SceneSummary, int64, error) {
	var sum structs.SceneSummary
	doc, err := m.Mutate(ctx, sessionID, "duplicate-scene", func(doc *structs.Document) (err error) {
		sum, err = scene.Duplicate(doc, id)
		return err
	})
	if err != nil {
		return structs.SceneSummary{}, 0, err
	}
	return sum, doc.Version, nil
}

// Active scene content.

func (m *Manager) SetBackground(ctx context.Context, sessionID string, patch structs.BackgroundPatch) (structs.Background, int64, error) {
	var bg structs.Background
	v, err := m.mutateActive(ctx, sessionID, "set-background", func(s *structs.Scene) (err error) {
		bg, err = scene.SetBackground(s, patch)
		return err
	})
	return bg, v, err
}

func (m *Manager) RemoveBackground(ctx context.Context, sessionID string) (int64, error) {
	return m.mutateActive(ctx, sessionID, "remove-background", func(s *structs.Scene) error {
		s.Background = nil
		return nil
	})
}

func (m *Manager) SetFog(ctx context.Context, sessionID string, enabled bool, data *string) (int64, error) {
	return m.mutateActive(ctx, sessionID, "set-fog", func(s *structs.Scene) error {
		scene.SetFog(s, enabled, data, m.opts.GridSize)
		return nil
	})
}

func (m *Manager) UpdateFog(ctx context.Context, sessionID string, data *string) (int64, error) {
	return m.mutateActive(ctx, sessionID, "update-fog", func(s *structs.Scene) error {
		scene.UpdateFog(s, data, m.opts.GridSize)
		return nil
	})
}

// ToggleFog sets or, with a nil value, flips the fog flag and returns it.
func (m *Manager) ToggleFog(ctx context.Context, sessionID string, enabled *bool) (bool, int64, error) {
	var on bool
	v, err := m.mutateActive(ctx, sessionID, "toggle-fog", func(s *structs.Scene) error {
		on = scene.ToggleFog(s, enabled)
		return nil
	})
	return on, v, err
}

func (m *Manager) AddMapElement(ctx context.Context, sessionID, assetID, src string, x, y int) (structs.MapElement, int64, error) {
	var el structs.MapElement
	v, err := m.mutateActive(ctx, sessionID, "add-map-element", func(s *structs.Scene) (err error) {
		el, err = scene.AddMapElement(s, assetID, src, x, y)
		return err
	})
	return el, v, err
}

func (m *Manager) RemoveMapElement(ctx context.Context, sessionID, id string) (int64, error) {
	return m.mutateActive(ctx, sessionID, "remove-map-element", func(s *structs.Scene) error {
		scene.RemoveMapElement(s, id)
		return nil
	})
}

func (m *Manager) AddToken(ctx context.Context, sessionID, assetID, src string, x, y int) (structs.Token, int64, error) {
	var tok structs.Token
	v, err := m.mutateActive(ctx, sessionID, "add-token", func(s *structs.Scene) (err error) {
		tok, err = scene.AddToken(s, assetID, src, x, y)
		return err
	})
	return tok, v, err
}

func (m *Manager) MoveToken(ctx context.Context, sessionID, id string, x, y int) (int64, error) {
	return m.mutateActive(ctx, sessionID, "move-token", func(s *structs.Scene) error {
		return scene.MoveToken(s, id, x, y)
	})
}

func (m *Manager) UpdateToken(ctx context.Context, sessionID, id string, patch structs.TokenPatch) (structs.Token, int64, error) {
	var tok structs.Token
	v, err := m.mutateActive(ctx, sessionID, "update-token", func(s *structs.Scene) (err error) {
		tok, err = scene.UpdateToken(s, id, patch)
		return err
	})
	return tok, v, err
}

func (m *Manager) RemoveToken(ctx context.Context, sessionID, id string) (int64, error) {
	return m.mutateActive(ctx, sessionID, "remove-token", func(s *structs.Scene) error {
		scene.RemoveToken(s, id)
		return nil
	})
}

// ClearScene empties the active scene, keeping its id and name.
func (m *Manager) ClearScene(ctx context.Context, sessionID string) (int64, error) {
	return m.mutateActive(ctx, sessionID, "clear", func(s *structs.Scene) error {
		scene.Clear(s)
		return nil
	})
}

// Transient signals.

// SendPing replaces the global ping. The timestamp is taken here, not from
// the client.
func (m *Manager) SendPing(ctx context.Context, sessionID string, x, y int) (structs.Ping, int64, error) {
	var p structs.Ping
	doc, err := m.Mutate(ctx, sessionID, "send-ping", func(doc *structs.Document) error {
		p = structs.Ping{X: x, Y: y, Timestamp: m.opts.Now().UnixMilli()}
		doc.Ping = &p
		return nil
	})
	if err != nil {
		return structs.Ping{}, 0, err
	}
	return p, doc.Version, nil
}

func (m *Manager) ClearPing(ctx context.Context, sessionID string) (int64, error) {
	doc, err := m.Mutate(ctx, sessionID, "clear-ping", func(doc *structs.Document) error {
		doc.Ping = nil
		return nil
	})
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

// Roll log.

// AppendRoll bumps the document version and then stores the roll in the
// session's log. If the bump fails the log is untouched, so a retried roll
// is never recorded twice. If the log write fails after the bump, pollers
// see one version with no visible change.
func (m *Manager) AppendRoll(ctx context.Context, sessionID string, sub rolls.Submission) (structs.RollRecord, int64, error) {
	rec, err := rolls.Normalize(sub, m.opts.Now())
	if err != nil {
		return structs.RollRecord{}, 0, err
	}

	unlock := m.lock(sessionID)
	defer unlock()

	doc, err := m.commit(ctx, sessionID, "roll", func(*structs.Document) error { return nil })
	if err != nil {
		return structs.RollRecord{}, 0, err
	}
	if err := m.store.AppendRoll(ctx, sessionID, rec, m.opts.MaxRolls); err != nil {
		return structs.RollRecord{}, 0, fmt.Errorf("roll: append to log of %s: %w", sessionID, err)
	}
	return rec, doc.Version, nil
}

// ClearRolls empties the roll log. Like every visible change it bumps the
// document version, and the bump comes first for the same reason as in
// AppendRoll.
func (m *Manager) ClearRolls(ctx context.Context, sessionID string) (int64, error) {
	unlock := m.lock(sessionID)
	defer unlock()

	doc, err := m.commit(ctx, sessionID, "clear-rolls", func(*structs.Document) error { return nil })
	if err != nil {
		return 0, err
	}
	if err := m.store.ClearRolls(ctx, sessionID); err != nil {
		return 0, fmt.Errorf("clear-rolls: clear log of %s: %w", sessionID, err)
	}
	return doc.Version, nil
}
