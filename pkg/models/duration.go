package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrZeroDuration is returned when a role activation is requested with a
// duration that rounds down to nothing.
var ErrZeroDuration = errors.New("activation duration must be at least one second")

// FormatDuration renders d as an ISO-8601 duration of the form PT1H30M,
// omitting zero components. The PIM schedule API rejects sub-second
// precision, so d is truncated to whole seconds first.
func FormatDuration(d time.Duration) (string, error) {
	d = d.Truncate(time.Second)
	if d <= 0 {
		return "", ErrZeroDuration
	}

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	var b strings.Builder
	b.WriteString("PT")
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dM", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&b, "%dS", seconds)
	}
	return b.String(), nil
}
