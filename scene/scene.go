// Package scene holds the rules of a session document's scenes: lifecycle
// (create, delete, rename, switch, duplicate), the active-scene pointer and
// the per-scene content operations. Every function works in place on a
// document the caller owns; persistence and versioning live in session.
package scene

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hoshinonyaruko/tabletop/structs"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrLastScene        = errors.New("cannot delete last scene")
	ErrPositionOccupied = errors.New("position occupied")
	ErrInvalid          = errors.New("invalid request")
)

const (
	MaxNameLength    = 50
	DefaultSceneName = "New Scene"
	FirstSceneName   = "Scene 1"
	copySuffix       = " (copy)"
)

// SanitizeName trims, truncates to MaxNameLength runes and HTML-escapes a
// scene name. Blank names become fallback.
func SanitizeName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	return html.EscapeString(truncate(name, MaxNameLength))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func newSceneID() string {
	return "scene_" + uuid.NewString()
}

// seededSceneID derives a scene id from seed. Scenes that are built again on
// every read, rather than loaded, need it to keep their id.
func seededSceneID(seed []byte) string {
	return "scene_" + uuid.NewSHA1(uuid.NameSpaceOID, seed).String()
}

func seeded(name string, seed []byte) structs.Scene {
	s := New(name)
	s.ID = seededSceneID(seed)
	return s
}

// New returns an empty scene: no background, fog disabled, no elements.
func New(name string) structs.Scene {
	return structs.Scene{
		ID:          newSceneID(),
		Name:        name,
		FogOfWar:    structs.FogOfWar{},
		MapElements: []structs.MapElement{},
		Tokens:      []structs.Token{},
	}
}

// NewDocument returns the initial document of a session: one empty scene.
func NewDocument(now time.Time) *structs.Document {
	first := New(FirstSceneName)
	return &structs.Document{
		ActiveSceneID: first.ID,
		Scenes:        []structs.Scene{first},
		Version:       0,
		LastUpdate:    now.Unix(),
	}
}

// NewSeededDocument is NewDocument with the first scene id derived from
// seed instead of generated.
func NewSeededDocument(seed string, now time.Time) *structs.Document {
	doc := NewDocument(now)
	doc.Scenes[0].ID = seededSceneID([]byte(seed))
	doc.ActiveSceneID = doc.Scenes[0].ID
	return doc
}

// Find returns the scene with the given id, or nil.
func Find(doc *structs.Document, id string) *structs.Scene {
	for i := range doc.Scenes {
		if doc.Scenes[i].ID == id {
			return &doc.Scenes[i]
		}
	}
	return nil
}

// Active returns the active scene. A dangling activeSceneId is repointed at
// the first scene, and a document with no scenes gets an empty one whose id
// follows from the dangling pointer, so the result is never nil.
func Active(doc *structs.Document) *structs.Scene {
	if s := Find(doc, doc.ActiveSceneID); s != nil {
		return s
	}
	if len(doc.Scenes) == 0 {
		doc.Scenes = append(doc.Scenes, seeded(FirstSceneName, []byte(doc.ActiveSceneID)))
	}
	doc.ActiveSceneID = doc.Scenes[0].ID
	return &doc.Scenes[0]
}

// Summaries lists id and name of every scene in order.
func Summaries(doc *structs.Document) []structs.SceneSummary {
	out := make([]structs.SceneSummary, 0, len(doc.Scenes))
	for i := range doc.Scenes {
		out = append(out, doc.Scenes[i].Summary())
	}
	return out
}

// Create appends a new empty scene. The active scene does not change.
func Create(doc *structs.Document, name string) structs.SceneSummary {
	s := New(SanitizeName(name, DefaultSceneName))
	doc.Scenes = append(doc.Scenes, s)
	return s.Summary()
}

// Delete removes a scene. The last remaining scene cannot be deleted; an
// unknown id is a no-op. Deleting the active scene activates the new first.
func Delete(doc *structs.Document, id string) error {
	if len(doc.Scenes) <= 1 {
		return ErrLastScene
	}
	kept := make([]structs.Scene, 0, len(doc.Scenes))
	for _, s := range doc.Scenes {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	doc.Scenes = kept
	if doc.ActiveSceneID == id {
		doc.ActiveSceneID = doc.Scenes[0].ID
	}
	return nil
}

// Rename sets a scene's name. An unknown id is silently ignored.
func Rename(doc *structs.Document, id, name string) {
	if s := Find(doc, id); s != nil {
		s.Name = SanitizeName(name, "Scene")
	}
}

// Switch makes id the active scene and returns it.
func Switch(doc *structs.Document, id string) (*structs.Scene, error) {
	s := Find(doc, id)
	if s == nil {
		return nil, fmt.Errorf("scene %s: %w", id, ErrNotFound)
	}
	doc.ActiveSceneID = id
	return s, nil
}

// Duplicate appends a deep copy of a scene under a new id, named with a
// " (copy)" suffix.
func Duplicate(doc *structs.Document, id string) (structs.SceneSummary, error) {
	src := Find(doc, id)
	if src == nil {
		return structs.SceneSummary{}, fmt.Errorf("scene %s: %w", id, ErrNotFound)
	}
	dup := src.Clone()
	dup.ID = newSceneID()
	dup.Name = src.Name + copySuffix
	doc.Scenes = append(doc.Scenes, dup)
	return dup.Summary(), nil
}

// Clear resets a scene's content, keeping its id and name.
func Clear(s *structs.Scene) {
	s.Background = nil
	s.FogOfWar = structs.FogOfWar{}
	s.MapElements = []structs.MapElement{}
	s.Tokens = []structs.Token{}
}
