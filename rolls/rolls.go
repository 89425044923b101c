// Package rolls normalizes dice-roll submissions and maintains the bounded
// roll log kept next to each session document.
package rolls

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

const (
	DefaultMaxEntries  = 100
	DefaultRecentLimit = 50
	MaxPlayerLength    = 20
	anonymous          = "Anonymous"
)

// ErrInvalid marks a submission that cannot be normalized.
var ErrInvalid = errors.New("invalid roll")

// Die is one die of a submission. Fields of both variants are accepted; the
// submission type decides which ones are read.
type Die struct {
	Type        *string `json:"type,omitempty"`
	Sides       *int    `json:"sides,omitempty"`
	Result      *int    `json:"result,omitempty"`
	Symbol      *string `json:"symbol,omitempty"`
	FaceID      *string `json:"faceId,omitempty"`
	Success     *int    `json:"success,omitempty"`
	Opportunity *int    `json:"opportunity,omitempty"`
	Strife      *bool   `json:"strife,omitempty"`
	Exploded    *bool   `json:"exploded,omitempty"`
}

// Submission is a roll as sent by a client.
type Submission struct {
	Type      string                `json:"type"`
	Player    string                `json:"player"`
	Dice      []Die                 `json:"dice"`
	Modifier  *int                  `json:"modifier,omitempty"`
	Total     *int                  `json:"total,omitempty"`
	Totals    *structs.StagedTotals `json:"totals,omitempty"`
	Timestamp *int64                `json:"timestamp,omitempty"`
}

func str(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func num(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func flag(p *bool) bool {
	return p != nil && *p
}

func playerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = anonymous
	}
	if utf8.RuneCountInString(name) > MaxPlayerLength {
		name = string([]rune(name)[:MaxPlayerLength])
	}
	return html.EscapeString(name)
}

// Normalize turns a submission into a log record with a fresh id. The
// timestamp falls back to now when the client sent none. Any type other
// than the staged one is read as a standard roll.
func Normalize(sub Submission, now time.Time) (structs.RollRecord, error) {
	rec := structs.RollRecord{
		ID:        uuid.NewString(),
		Player:    playerName(sub.Player),
		Timestamp: now.UnixMilli(),
	}
	if sub.Timestamp != nil && *sub.Timestamp > 0 {
		rec.Timestamp = *sub.Timestamp
	}

	if structs.RollKind(sub.Type) == structs.RollStaged {
		staged := &structs.StagedRoll{Dice: make([]structs.StagedDie, 0, len(sub.Dice))}
		for _, d := range sub.Dice {
			staged.Dice = append(staged.Dice, structs.StagedDie{
				Type:        str(d.Type, "ring"),
				Symbol:      html.EscapeString(str(d.Symbol, "")),
				FaceID:      html.EscapeString(str(d.FaceID, "")),
				Success:     num(d.Success, 0),
				Opportunity: num(d.Opportunity, 0),
				Strife:      flag(d.Strife),
				Exploded:    flag(d.Exploded),
			})
		}
		if sub.Totals != nil {
			staged.Totals = *sub.Totals
		}
		rec.Staged = staged
		return rec, nil
	}

	std := &structs.StandardRoll{
		Dice:     make([]structs.StandardDie, 0, len(sub.Dice)),
		Modifier: num(sub.Modifier, 0),
		Total:    num(sub.Total, 0),
	}
	for i, d := range sub.Dice {
		die := structs.StandardDie{
			Type:   str(d.Type, "d6"),
			Sides:  num(d.Sides, 6),
			Result: num(d.Result, 1),
		}
		if die.Sides < 1 {
			return structs.RollRecord{}, fmt.Errorf("die %d has %d sides: %w", i, die.Sides, ErrInvalid)
		}
		std.Dice = append(std.Dice, die)
	}
	rec.Standard = std
	return rec, nil
}

// Append adds rec to the log and keeps only the newest limit entries.
func Append(log []structs.RollRecord, rec structs.RollRecord, limit int) []structs.RollRecord {
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	log = append(log, rec)
	if len(log) > limit {
		log = append([]structs.RollRecord(nil), log[len(log)-limit:]...)
	}
	return log
}

// Tail returns the newest n entries, oldest first.
func Tail(log []structs.RollRecord, n int) []structs.RollRecord {
	if n <= 0 {
		n = DefaultRecentLimit
	}
	if len(log) > n {
		log = log[len(log)-n:]
	}
	return append([]structs.RollRecord{}, log...)
}
