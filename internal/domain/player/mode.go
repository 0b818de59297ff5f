package player

import "fmt"

// RepeatMode controls what happens at the end of the queue or track.
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatOne  RepeatMode = "one"
	RepeatAll  RepeatMode = "all"
)

// ParseRepeatMode parses a repeat mode name.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch RepeatMode(s) {
	case RepeatNone, RepeatOne, RepeatAll:
		return RepeatMode(s), nil
	case "":
		return RepeatNone, nil
	default:
		return RepeatNone, fmt.Errorf("invalid repeat mode %q", s)
	}
}

// Next returns the mode that follows m in the none, one, all cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatOne
	case RepeatOne:
		return RepeatAll
	default:
		return RepeatNone
	}
}

// Mode holds the shuffle and repeat settings.
// Changes only affect the next navigation decision.
type Mode struct {
	Shuffle bool       `json:"shuffle"`
	Repeat  RepeatMode `json:"repeat"`
}
