package executor

import (
	"fmt"
	"time"

	"github.com/kioskhub/kiosk-hub-go/internal/protocol"
)

// itemValidAt reports whether an item may be shown at t under its day and
// time-window constraints. An unset constraint never restricts.
func itemValidAt(item protocol.PlaylistItem, t time.Time) bool {
	if len(item.DaysOfWeek) > 0 {
		day := int(t.Weekday())
		found := false
		for _, d := range item.DaysOfWeek {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if item.TimeWindowStart != nil && item.TimeWindowEnd != nil {
		// Zero-padded "HH:MM" compares correctly as a string; endpoints are
		// inclusive.
		now := fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
		if now < *item.TimeWindowStart || now > *item.TimeWindowEnd {
			return false
		}
	}
	return true
}

// nextValidIndex scans forward from start (modulo length) for the first item
// valid at t, visiting at most len(items) entries. Returns -1 when nothing
// is valid right now.
func nextValidIndex(items []protocol.PlaylistItem, start int, t time.Time) int {
	n := len(items)
	if n == 0 {
		return -1
	}
	for offset := 0; offset < n; offset++ {
		idx := (start + offset) % n
		if itemValidAt(items[idx], t) {
			return idx
		}
	}
	return -1
}

// prevValidIndex scans backward from start (modulo length) for the first item
// valid at t.
func prevValidIndex(items []protocol.PlaylistItem, start int, t time.Time) int {
	n := len(items)
	if n == 0 {
		return -1
	}
	for offset := 0; offset < n; offset++ {
		idx := ((start-offset)%n + n) % n
		if itemValidAt(items[idx], t) {
			return idx
		}
	}
	return -1
}
