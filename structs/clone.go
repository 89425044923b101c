package structs

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Clone returns a deep copy of the token.
func (t Token) Clone() Token {
	t.Size = cloneFloat(t.Size)
	t.UpperLabel = cloneString(t.UpperLabel)
	t.LowerLabel = cloneString(t.LowerLabel)
	return t
}

// Clone returns a deep copy of the scene. Nil collections come back empty so
// the JSON form is always an array.
func (s *Scene) Clone() Scene {
	out := Scene{
		ID:          s.ID,
		Name:        s.Name,
		FogOfWar:    FogOfWar{Enabled: s.FogOfWar.Enabled, Data: cloneString(s.FogOfWar.Data)},
		MapElements: make([]MapElement, len(s.MapElements)),
		Tokens:      make([]Token, len(s.Tokens)),
	}
	if s.Background != nil {
		bg := *s.Background
		out.Background = &bg
	}
	copy(out.MapElements, s.MapElements)
	for i, t := range s.Tokens {
		out.Tokens[i] = t.Clone()
	}
	return out
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		ActiveSceneID: d.ActiveSceneID,
		Scenes:        make([]Scene, len(d.Scenes)),
		Version:       d.Version,
		LastUpdate:    d.LastUpdate,
	}
	for i := range d.Scenes {
		out.Scenes[i] = d.Scenes[i].Clone()
	}
	if d.Ping != nil {
		p := *d.Ping
		out.Ping = &p
	}
	return out
}
