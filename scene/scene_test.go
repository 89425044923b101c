package scene

import (
	"strings"
	"testing"
	"time"

	"github.com/hoshinonyaruko/tabletop/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	doc := NewDocument(time.Unix(1700000000, 0))

	require.Len(t, doc.Scenes, 1)
	assert.Equal(t, FirstSceneName, doc.Scenes[0].Name)
	assert.Equal(t, doc.Scenes[0].ID, doc.ActiveSceneID)
	assert.True(t, strings.HasPrefix(doc.ActiveSceneID, "scene_"))
	assert.Equal(t, int64(0), doc.Version)
	assert.Equal(t, int64(1700000000), doc.LastUpdate)
	assert.Nil(t, doc.Scenes[0].Background)
	assert.False(t, doc.Scenes[0].FogOfWar.Enabled)
	assert.Empty(t, doc.Scenes[0].Tokens)
}

func TestNewSeededDocument(t *testing.T) {
	a := NewSeededDocument("table-1", time.Unix(1, 0))
	b := NewSeededDocument("table-1", time.Unix(2, 0))
	c := NewSeededDocument("table-2", time.Unix(1, 0))

	assert.Equal(t, a.ActiveSceneID, b.ActiveSceneID)
	assert.Equal(t, a.Scenes[0].ID, a.ActiveSceneID)
	assert.NotEqual(t, a.ActiveSceneID, c.ActiveSceneID)
	assert.True(t, strings.HasPrefix(a.ActiveSceneID, "scene_"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Cave", SanitizeName("  Cave ", DefaultSceneName))
	assert.Equal(t, DefaultSceneName, SanitizeName("   ", DefaultSceneName))
	assert.Equal(t, "&lt;b&gt;", SanitizeName("<b>", DefaultSceneName))
	assert.Equal(t, MaxNameLength, len([]rune(SanitizeName(strings.Repeat("ż", 80), ""))))
}

func TestCreateDoesNotSwitch(t *testing.T) {
	doc := NewDocument(time.Now())
	first := doc.ActiveSceneID

	sum := Create(doc, "Cave")

	assert.Len(t, doc.Scenes, 2)
	assert.Equal(t, "Cave", sum.Name)
	assert.Equal(t, first, doc.ActiveSceneID)
}

func TestDeleteLastSceneFails(t *testing.T) {
	doc := NewDocument(time.Now())
	before := doc.Clone()

	err := Delete(doc, doc.ActiveSceneID)

	assert.ErrorIs(t, err, ErrLastScene)
	assert.Equal(t, before, doc)
}

func TestDeleteActiveSceneRepoints(t *testing.T) {
	doc := NewDocument(time.Now())
	cave := Create(doc, "Cave")
	_, err := Switch(doc, cave.ID)
	require.NoError(t, err)

	require.NoError(t, Delete(doc, cave.ID))

	require.Len(t, doc.Scenes, 1)
	assert.Equal(t, doc.Scenes[0].ID, doc.ActiveSceneID)
	assert.NotNil(t, Find(doc, doc.ActiveSceneID))
}

func TestDeleteInactiveKeepsActive(t *testing.T) {
	doc := NewDocument(time.Now())
	first := doc.ActiveSceneID
	cave := Create(doc, "Cave")

	require.NoError(t, Delete(doc, cave.ID))
	assert.Equal(t, first, doc.ActiveSceneID)
}

func TestRenameUnknownIsSilent(t *testing.T) {
	doc := NewDocument(time.Now())
	Rename(doc, "scene_missing", "Nope")
	assert.Equal(t, FirstSceneName, doc.Scenes[0].Name)

	Rename(doc, doc.ActiveSceneID, "Tavern")
	assert.Equal(t, "Tavern", doc.Scenes[0].Name)
}

func TestSwitchUnknown(t *testing.T) {
	doc := NewDocument(time.Now())
	_, err := Switch(doc, "scene_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateIsDeep(t *testing.T) {
	doc := NewDocument(time.Now())
	src := Active(doc)
	_, err := AddToken(src, "a1", "orc.png", 1, 1)
	require.NoError(t, err)
	data := "AAAA"
	src.FogOfWar.Data = &data
	src.Background = &structs.Background{Src: "map.png", Scale: 1}

	sum, err := Duplicate(doc, src.ID)
	require.NoError(t, err)
	assert.Equal(t, FirstSceneName+" (copy)", sum.Name)
	assert.NotEqual(t, src.ID, sum.ID)

	dup := Find(doc, sum.ID)
	require.NotNil(t, dup)
	require.Len(t, dup.Tokens, 1)

	// Mutating the copy must not leak into the source.
	orig := Find(doc, doc.Scenes[0].ID)
	dup.Tokens[0].X = 9
	dup.Background.Scale = 3
	*dup.FogOfWar.Data = "BBBB"
	assert.Equal(t, 1, orig.Tokens[0].X)
	assert.Equal(t, 1.0, orig.Background.Scale)
	assert.Equal(t, "AAAA", *orig.FogOfWar.Data)
}

func TestActiveSelfHeals(t *testing.T) {
	doc := NewDocument(time.Now())
	doc.ActiveSceneID = "scene_gone"

	s := Active(doc)
	assert.Equal(t, doc.Scenes[0].ID, s.ID)
	assert.Equal(t, doc.Scenes[0].ID, doc.ActiveSceneID)

	empty := &structs.Document{ActiveSceneID: "scene_gone"}
	s = Active(empty)
	require.Len(t, empty.Scenes, 1)
	assert.Equal(t, s.ID, empty.ActiveSceneID)

	again := &structs.Document{ActiveSceneID: "scene_gone"}
	assert.Equal(t, s.ID, Active(again).ID)
}

func TestClearKeepsIdentity(t *testing.T) {
	doc := NewDocument(time.Now())
	s := Active(doc)
	s.Name = "Keep"
	_, _ = AddToken(s, "a", "a.png", 0, 0)
	_, _ = AddMapElement(s, "w", "w.png", 0, 0)
	s.FogOfWar.Enabled = true
	s.Background = &structs.Background{Src: "bg.png"}
	id := s.ID

	Clear(s)

	assert.Equal(t, id, s.ID)
	assert.Equal(t, "Keep", s.Name)
	assert.Nil(t, s.Background)
	assert.False(t, s.FogOfWar.Enabled)
	assert.Nil(t, s.FogOfWar.Data)
	assert.NotNil(t, s.Tokens)
	assert.Empty(t, s.Tokens)
	assert.Empty(t, s.MapElements)
}

func TestDecodeLegacyDocument(t *testing.T) {
	body := `{
		"background": {"src": "old.png", "name": "Old", "width": 10, "height": 10},
		"fogOfWar": {"enabled": true, "data": null},
		"tokens": [{"id": "t1", "assetId": "a", "src": "a.png", "x": 1, "y": 2}],
		"version": 7,
		"lastUpdate": 123
	}`

	doc, err := Decode([]byte(body))
	require.NoError(t, err)

	require.Len(t, doc.Scenes, 1)
	s := doc.Scenes[0]
	assert.Equal(t, FirstSceneName, s.Name)
	assert.Equal(t, s.ID, doc.ActiveSceneID)
	assert.Equal(t, "old.png", s.Background.Src)
	assert.True(t, s.FogOfWar.Enabled)
	assert.Len(t, s.Tokens, 1)
	assert.NotNil(t, s.MapElements)
	assert.Equal(t, int64(7), doc.Version)
}

func TestDecodeMigratedSceneKeepsItsID(t *testing.T) {
	for name, body := range map[string]string{
		"legacy":      `{"tokens":[],"version":4}`,
		"no scenes":   `{"activeSceneId":"","scenes":[],"version":2}`,
		"null scenes": `{"scenes":null,"version":1}`,
	} {
		t.Run(name, func(t *testing.T) {
			first, err := Decode([]byte(body))
			require.NoError(t, err)
			second, err := Decode([]byte(body))
			require.NoError(t, err)

			require.Len(t, first.Scenes, 1)
			assert.Equal(t, FirstSceneName, first.Scenes[0].Name)
			assert.Equal(t, first.Scenes[0].ID, first.ActiveSceneID)
			assert.Equal(t, first.ActiveSceneID, second.ActiveSceneID)

			// the id from one load addresses the scene in the next
			_, err = Switch(second, first.ActiveSceneID)
			require.NoError(t, err)
			Rename(second, first.ActiveSceneID, "Crypt")
			assert.Equal(t, "Crypt", second.Scenes[0].Name)
		})
	}
}

func TestDecodeRepairsActive(t *testing.T) {
	body := `{"activeSceneId": "scene_gone", "scenes": [{"id": "scene_a", "name": "A", "fogOfWar": {"enabled": false, "data": null}}], "version": 3}`

	doc, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "scene_a", doc.ActiveSceneID)
	assert.NotNil(t, doc.Scenes[0].Tokens)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}
