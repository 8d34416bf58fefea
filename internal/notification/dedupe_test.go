package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"greenhouse-backend/internal/schedule"
)

func TestDeduper(t *testing.T) {
	d := NewDeduper(time.Hour)
	n := sampleNotice()

	assert.True(t, d.Allow(n))
	assert.False(t, d.Allow(n), "same machine, band and due date")

	overdue := n
	overdue.Band = schedule.BandOverdue
	assert.True(t, d.Allow(overdue), "moving into a new band notifies again")

	repaired := n
	repaired.NextRepairDate = n.NextRepairDate.AddDate(0, 0, 30)
	assert.True(t, d.Allow(repaired), "a new due date notifies again")

	d.Forget(n)
	assert.True(t, d.Allow(n))
}

func TestDeduper_WindowExpires(t *testing.T) {
	d := NewDeduper(20 * time.Millisecond)
	n := sampleNotice()

	assert.True(t, d.Allow(n))
	time.Sleep(40 * time.Millisecond)
	assert.True(t, d.Allow(n))
}

func TestDeduper_PerChannelMarks(t *testing.T) {
	d := NewDeduper(time.Hour)
	n := sampleNotice()

	assert.False(t, d.Delivered("smtp", n))
	d.MarkDelivered("smtp", n)
	assert.True(t, d.Delivered("smtp", n))
	assert.False(t, d.Delivered("webhook", n))

	d.Forget(n)
	assert.True(t, d.Delivered("smtp", n), "forgetting the notice keeps channel marks")
	assert.True(t, d.Allow(n))

	moved := n
	moved.NextRepairDate = n.NextRepairDate.AddDate(0, 0, 30)
	assert.False(t, d.Delivered("smtp", moved))
}
