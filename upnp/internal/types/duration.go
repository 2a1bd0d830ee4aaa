package types

import (
	"fmt"
	"time"
)

// FormatDuration returns the DIDL-Lite representation of d, H:MM:SS with
// a .FFF suffix when d has a sub-second part.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Millisecond)

	h := d / time.Hour
	d -= h * time.Hour

	m := d / time.Minute
	d -= m * time.Minute

	s := d / time.Second
	d -= s * time.Second

	if ms := d / time.Millisecond; ms > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
	}

	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
