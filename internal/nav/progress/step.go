package progress

import (
	"fmt"
	"strings"
	"time"

	"turn-by-turn/pkg/types"
)

// NavigationStep is what the instruction banner shows. It is rebuilt on every
// update and never modified afterwards.
type NavigationStep struct {
	Index             int
	Instruction       string
	Notice            string
	Distance          float64 // meters to the next maneuver
	Transport         types.TransportType
	ETA               time.Time
	RemainingDistance float64
	RemainingTime     time.Duration
}

func (s NavigationStep) FormattedDistance() string {
	return FormatDistance(s.Distance)
}

func (s NavigationStep) FormattedETA() string {
	return s.ETA.Format("15:04")
}

// StreetName returns the part of "Turn right onto Main St" after "onto",
// or the whole instruction when there is none.
func (s NavigationStep) StreetName() string {
	if _, street, ok := strings.Cut(s.Instruction, " onto "); ok {
		return strings.TrimSpace(street)
	}
	return s.Instruction
}

func (s NavigationStep) Maneuver() ManeuverKind {
	return ParseManeuver(s.Instruction)
}

func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int(meters))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

type ManeuverKind int

const (
	STRAIGHT ManeuverKind = iota
	LEFT
	RIGHT
	UTURN
	ARRIVE
)

var ManeuverStringMap = map[ManeuverKind]string{
	STRAIGHT: "STRAIGHT",
	LEFT:     "LEFT",
	RIGHT:    "RIGHT",
	UTURN:    "UTURN",
	ARRIVE:   "ARRIVE",
}

// ParseManeuver guesses the maneuver from instruction text; directions
// providers hand us prose, not maneuver codes.
func ParseManeuver(instruction string) ManeuverKind {
	s := strings.ToLower(instruction)
	switch {
	case strings.Contains(s, "arrive"), strings.Contains(s, "destination"):
		return ARRIVE
	case strings.Contains(s, "u-turn"), strings.Contains(s, "make a u"):
		return UTURN
	case strings.Contains(s, "left"):
		return LEFT
	case strings.Contains(s, "right"):
		return RIGHT
	}
	return STRAIGHT
}
