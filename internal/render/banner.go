package render

import (
	"fmt"

	"turn-by-turn/internal/nav/progress"
	"turn-by-turn/pkg/types"
)

// BannerLines is the text of the instruction banner. next is the maneuver
// after the current one, if any.
func BannerLines(step progress.NavigationStep, next *types.Step) []string {
	lines := []string{
		fmt.Sprintf("%s  %s", step.FormattedDistance(), step.Instruction),
	}
	if step.Notice != "" {
		lines = append(lines, step.Notice)
	}
	if next != nil {
		lines = append(lines, "Then "+next.Instruction)
	}
	lines = append(lines, fmt.Sprintf("%s left, arrive %s",
		progress.FormatDistance(step.RemainingDistance), step.FormattedETA()))
	return lines
}
