package scene

import (
	"encoding/json"
	"fmt"

	"github.com/hoshinonyaruko/tabletop/structs"
)

// legacyDocument is the pre-scenes layout: one implicit scene stored at the
// top level of the document.
type legacyDocument struct {
	Scenes      json.RawMessage      `json:"scenes"`
	Background  *structs.Background  `json:"background"`
	FogOfWar    *structs.FogOfWar    `json:"fogOfWar"`
	MapElements []structs.MapElement `json:"mapElements"`
	Tokens      []structs.Token      `json:"tokens"`
	Version     int64                `json:"version"`
	LastUpdate  int64                `json:"lastUpdate"`
	Ping        *structs.Ping        `json:"ping"`
}

// Decode parses a stored document body. Bodies written before scenes
// existed are migrated into a single "Scene 1", as is a body with an empty
// scene list. The migrated scene's id is derived from the body, so it stays
// the same on every load until the document is saved with it. Nil
// collections are replaced by empty ones and a dangling active scene is
// repaired.
func Decode(data []byte) (*structs.Document, error) {
	var legacy legacyDocument
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	var doc *structs.Document
	if len(legacy.Scenes) == 0 || string(legacy.Scenes) == "null" {
		s := seeded(FirstSceneName, data)
		s.Background = legacy.Background
		if legacy.FogOfWar != nil {
			s.FogOfWar = *legacy.FogOfWar
		}
		if legacy.MapElements != nil {
			s.MapElements = legacy.MapElements
		}
		if legacy.Tokens != nil {
			s.Tokens = legacy.Tokens
		}
		doc = &structs.Document{
			ActiveSceneID: s.ID,
			Scenes:        []structs.Scene{s},
			Version:       legacy.Version,
			LastUpdate:    legacy.LastUpdate,
			Ping:          legacy.Ping,
		}
	} else {
		doc = &structs.Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		if len(doc.Scenes) == 0 {
			doc.Scenes = []structs.Scene{seeded(FirstSceneName, data)}
		}
	}

	for i := range doc.Scenes {
		if doc.Scenes[i].MapElements == nil {
			doc.Scenes[i].MapElements = []structs.MapElement{}
		}
		if doc.Scenes[i].Tokens == nil {
			doc.Scenes[i].Tokens = []structs.Token{}
		}
	}
	Active(doc)
	return doc, nil
}
