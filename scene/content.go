package scene

import (
	"fmt"
	"html"
	"slices"

	"github.com/google/uuid"
	"github.com/hoshinonyaruko/tabletop/fog"
	"github.com/hoshinonyaruko/tabletop/structs"
)

// MergeBackground builds the background for a set-background request.
// src, name, width and height always come from the patch. offsetX, offsetY
// and scale each take the patch value when given, else the previous
// background's value, else 0, 0 and 1.0. A non-positive scale becomes 1.0.
func MergeBackground(old *structs.Background, patch structs.BackgroundPatch) structs.Background {
	bg := structs.Background{
		Src:    patch.Src,
		Name:   patch.Name,
		Width:  patch.Width,
		Height: patch.Height,
		Scale:  1.0,
	}
	if old != nil {
		bg.OffsetX = old.OffsetX
		bg.OffsetY = old.OffsetY
		bg.Scale = old.Scale
	}
	if patch.OffsetX != nil {
		bg.OffsetX = *patch.OffsetX
	}
	if patch.OffsetY != nil {
		bg.OffsetY = *patch.OffsetY
	}
	if patch.Scale != nil {
		bg.Scale = *patch.Scale
	}
	if bg.Scale <= 0 {
		bg.Scale = 1.0
	}
	return bg
}

// SetBackground replaces the scene background using MergeBackground.
func SetBackground(s *structs.Scene, patch structs.BackgroundPatch) (structs.Background, error) {
	if patch.Src == "" {
		return structs.Background{}, fmt.Errorf("background src is required: %w", ErrInvalid)
	}
	bg := MergeBackground(s.Background, patch)
	s.Background = &bg
	return bg, nil
}

// SetFog replaces the fog record. The payload is normalized against a
// size×size grid; nil means fully fogged.
func SetFog(s *structs.Scene, enabled bool, data *string, size int) {
	s.FogOfWar = structs.FogOfWar{Enabled: enabled, Data: fog.Normalize(data, size, size)}
}

// UpdateFog replaces the fog payload and keeps the enabled flag.
func UpdateFog(s *structs.Scene, data *string, size int) {
	s.FogOfWar.Data = fog.Normalize(data, size, size)
}

// ToggleFog sets the enabled flag, or flips it when enabled is nil. The
// payload is kept so re-enabling restores the previous reveal state.
func ToggleFog(s *structs.Scene, enabled *bool) bool {
	if enabled != nil {
		s.FogOfWar.Enabled = *enabled
	} else {
		s.FogOfWar.Enabled = !s.FogOfWar.Enabled
	}
	return s.FogOfWar.Enabled
}

func tokenAt(s *structs.Scene, x, y int) *structs.Token {
	for i := range s.Tokens {
		if s.Tokens[i].At(x, y) {
			return &s.Tokens[i]
		}
	}
	return nil
}

// AddToken places a token on a free cell. Tokens and map elements are
// separate namespaces: only other tokens block the cell.
func AddToken(s *structs.Scene, assetID, src string, x, y int) (structs.Token, error) {
	if tokenAt(s, x, y) != nil {
		return structs.Token{}, ErrPositionOccupied
	}
	t := structs.Token{ID: uuid.NewString(), AssetID: assetID, Src: src, X: x, Y: y}
	s.Tokens = append(s.Tokens, t)
	return t, nil
}

// MoveToken moves a token. Moving onto its own cell is allowed; moving onto
// another token's cell fails.
func MoveToken(s *structs.Scene, id string, x, y int) error {
	i := slices.IndexFunc(s.Tokens, func(t structs.Token) bool { return t.ID == id })
	if i < 0 {
		return fmt.Errorf("token %s: %w", id, ErrNotFound)
	}
	if other := tokenAt(s, x, y); other != nil && other.ID != id {
		return ErrPositionOccupied
	}
	s.Tokens[i].X, s.Tokens[i].Y = x, y
	return nil
}

func label(v *string) *string {
	if *v == "" {
		return nil
	}
	esc := html.EscapeString(*v)
	return &esc
}

// UpdateToken applies the non-nil fields of patch. An empty label clears it.
func UpdateToken(s *structs.Scene, id string, patch structs.TokenPatch) (structs.Token, error) {
	if patch.Size != nil && *patch.Size <= 0 {
		return structs.Token{}, fmt.Errorf("token size must be positive: %w", ErrInvalid)
	}
	for i := range s.Tokens {
		t := &s.Tokens[i]
		if t.ID != id {
			continue
		}
		if patch.Size != nil {
			size := *patch.Size
			t.Size = &size
		}
		if patch.UpperLabel != nil {
			t.UpperLabel = label(patch.UpperLabel)
		}
		if patch.LowerLabel != nil {
			t.LowerLabel = label(patch.LowerLabel)
		}
		return t.Clone(), nil
	}
	return structs.Token{}, fmt.Errorf("token %s: %w", id, ErrNotFound)
}

// RemoveToken drops a token by id; an unknown id is a no-op.
func RemoveToken(s *structs.Scene, id string) {
	kept := make([]structs.Token, 0, len(s.Tokens))
	for _, t := range s.Tokens {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.Tokens = kept
}

// AddMapElement places a map element on a cell free of other elements.
func AddMapElement(s *structs.Scene, assetID, src string, x, y int) (structs.MapElement, error) {
	for _, e := range s.MapElements {
		if e.At(x, y) {
			return structs.MapElement{}, ErrPositionOccupied
		}
	}
	e := structs.MapElement{ID: uuid.NewString(), AssetID: assetID, Src: src, X: x, Y: y}
	s.MapElements = append(s.MapElements, e)
	return e, nil
}

// RemoveMapElement drops an element by id; an unknown id is a no-op.
func RemoveMapElement(s *structs.Scene, id string) {
	kept := make([]structs.MapElement, 0, len(s.MapElements))
	for _, e := range s.MapElements {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.MapElements = kept
}
