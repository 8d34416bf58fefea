package notification

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Deduper suppresses repeat notices for the same machine, band and due date
// inside a reminder window. A repair moves the due date and so resets it.
type Deduper struct {
	sent   *cache.Cache
	window time.Duration
}

// NewDeduper constructs a Deduper with the given reminder window.
func NewDeduper(window time.Duration) *Deduper {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Deduper{
		sent:   cache.New(window, window),
		window: window,
	}
}

// Allow reports whether n should be sent now and, if so, marks it as sent.
func (d *Deduper) Allow(n Notice) bool {
	// Add fails when the key is already present and not expired.
	return d.sent.Add(dedupeKey(n), struct{}{}, d.window) == nil
}

// Forget clears the mark for n so a failed delivery can be retried on the next sweep.
func (d *Deduper) Forget(n Notice) {
	d.sent.Delete(dedupeKey(n))
}

// MarkDelivered records that channel already carried n, so a retry after a
// partial failure skips it.
func (d *Deduper) MarkDelivered(channel string, n Notice) {
	d.sent.Set(dedupeKey(n)+"|"+channel, struct{}{}, d.window)
}

// Delivered reports whether channel already carried n inside the window.
func (d *Deduper) Delivered(channel string, n Notice) bool {
	_, found := d.sent.Get(dedupeKey(n) + "|" + channel)
	return found
}

func dedupeKey(n Notice) string {
	return n.MachineID + "|" + string(n.Band) + "|" + n.NextRepairDate.UTC().Format(time.RFC3339)
}
