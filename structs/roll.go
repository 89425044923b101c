package structs

import (
	"encoding/json"
	"fmt"
)

// RollKind tags the variant held by a RollRecord.
type RollKind string

const (
	RollStandard RollKind = "standard"
	RollStaged   RollKind = "l5r" // 多阶段骰（成功/机会/压力）
)

// StandardDie is one polyhedral die result.
type StandardDie struct {
	Type   string `json:"type"` // d4, d6, d20 ...
	Sides  int    `json:"sides"`
	Result int    `json:"result"`
}

// StandardRoll is a sum-of-dice roll with a flat modifier.
type StandardRoll struct {
	Dice     []StandardDie `json:"dice"`
	Modifier int           `json:"modifier"`
	Total    int           `json:"total"`
}

// StagedDie is one symbol die of a multi-phase roll.
type StagedDie struct {
	Type        string `json:"type"` // ring / skill
	Symbol      string `json:"symbol"`
	FaceID      string `json:"faceId,omitempty"`
	Success     int    `json:"success"`
	Opportunity int    `json:"opportunity"`
	Strife      bool   `json:"strife"`
	Exploded    bool   `json:"exploded"`
}

// StagedTotals sums the symbols of a multi-phase roll.
type StagedTotals struct {
	Success     int `json:"success"`
	Opportunity int `json:"opportunity"`
	Strife      int `json:"strife"`
}

// StagedRoll is a multi-phase symbol roll.
type StagedRoll struct {
	Dice   []StagedDie  `json:"dice"`
	Totals StagedTotals `json:"totals"`
}

// RollRecord is one entry of the roll log. Exactly one of Standard and Staged
// is set; the JSON form flattens the active variant next to a "type" tag.
type RollRecord struct {
	ID        string
	Player    string
	Timestamp int64 // 毫秒

	Standard *StandardRoll
	Staged   *StagedRoll
}

// Kind returns the variant tag.
func (r RollRecord) Kind() RollKind {
	if r.Staged != nil {
		return RollStaged
	}
	return RollStandard
}

type rollHeader struct {
	ID        string   `json:"id"`
	Player    string   `json:"player"`
	Type      RollKind `json:"type"`
	Timestamp int64    `json:"timestamp"`
}

type standardWire struct {
	rollHeader
	StandardRoll
}

type stagedWire struct {
	rollHeader
	StagedRoll
}

// MarshalJSON implements json.Marshaler.
func (r RollRecord) MarshalJSON() ([]byte, error) {
	h := rollHeader{ID: r.ID, Player: r.Player, Type: r.Kind(), Timestamp: r.Timestamp}
	if r.Staged != nil {
		st := *r.Staged
		if st.Dice == nil {
			st.Dice = []StagedDie{}
		}
		return json.Marshal(stagedWire{rollHeader: h, StagedRoll: st})
	}
	std := StandardRoll{}
	if r.Standard != nil {
		std = *r.Standard
	}
	if std.Dice == nil {
		std.Dice = []StandardDie{}
	}
	return json.Marshal(standardWire{rollHeader: h, StandardRoll: std})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RollRecord) UnmarshalJSON(data []byte) error {
	var h rollHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	*r = RollRecord{ID: h.ID, Player: h.Player, Timestamp: h.Timestamp}
	switch h.Type {
	case RollStaged:
		var w stagedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		r.Staged = &w.StagedRoll
	case RollStandard, "":
		var w standardWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		r.Standard = &w.StandardRoll
	default:
		return fmt.Errorf("unknown roll type %q", h.Type)
	}
	return nil
}
