package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Accepted grammars, tried in this order; first match wins. The 24-hour
// layout is checked before the 12-hour ones so "2025-06-01 11:05" is always
// read as 24-hour time.
var dateTimeLayouts = []string{
	"2006-01-02 15:04",  // 24-hour
	"2006-01-02 3:04PM", // 12-hour with minutes
	"2006-01-02 3PM",    // 12-hour, bare hour
}

// Location returns the bot's fixed timezone. Falls back to a fixed UTC+8
// zone when the tzdata for name is unavailable.
func Location(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("SGT", 8*60*60)
	}
	return loc
}

// ParseDateTime parses the admin-supplied date and time strings into an
// absolute instant in loc. The meridiem is case-insensitive. Returns
// ErrInvalidFormat if no grammar matches. Rejecting past timestamps is the
// caller's responsibility.
func ParseDateTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(dateStr) + " " + strings.ToUpper(strings.TrimSpace(timeStr))
	for _, layout := range dateTimeLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q (expected YYYY-MM-DD HH:MM, YYYY-MM-DD H:MMAM/PM or YYYY-MM-DD HAM/PM)", ErrInvalidFormat, raw)
}

// EnsureFuture returns ErrPastTime unless t is strictly after now.
// Both the create and the edit-time flows go through this check.
func EnsureFuture(t, now time.Time) error {
	if !t.After(now) {
		return fmt.Errorf("%w: %s", ErrPastTime, RenderTime(t))
	}
	return nil
}

// RenderTime formats an instant the way it is shown to the admin.
func RenderTime(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 3:04PM")
}
