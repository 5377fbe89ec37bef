package playback

import (
	"fmt"
	"math"
)

// FormatDuration renders seconds as m:ss. Non-finite input renders 0:00.
func FormatDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	minutes := int(seconds / 60)
	secs := int(math.Mod(seconds, 60))
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
