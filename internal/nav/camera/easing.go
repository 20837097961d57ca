package camera

import (
	"fmt"
	"math"
	"strings"
)

type Easing int

const (
	EASE_OUT Easing = iota
	LINEAR
	EASE_IN_OUT
)

var EasingStringMap = map[Easing]string{
	EASE_OUT:    "ease-out",
	LINEAR:      "linear",
	EASE_IN_OUT: "ease-in-out",
}

func (e Easing) String() string {
	return EasingStringMap[e]
}

func ParseEasing(s string) (Easing, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return EASE_OUT, nil
	}
	for e, name := range EasingStringMap {
		if name == s {
			return e, nil
		}
	}
	return EASE_OUT, fmt.Errorf("unknown easing %q", s)
}

// Apply maps linear progress t in [0,1] onto the curve.
func (e Easing) Apply(t float64) float64 {
	t = clamp01(t)
	switch e {
	case LINEAR:
		return t
	case EASE_IN_OUT:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - math.Pow(-2*t+2, 2)/2
	default:
		return 1 - math.Pow(1-t, 3)
	}
}

// smoothstep is 3t²-2t³, used for heading rotation.
func smoothstep(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}
