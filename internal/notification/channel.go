package notification

import (
	"context"
	"errors"
)

// Channel delivers a notice over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notice) error
}

// MultiChannel delivers a notice on every wrapped channel.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel constructs a MultiChannel, dropping nil channels.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	m := &MultiChannel{}
	for _, ch := range channels {
		if ch != nil {
			m.channels = append(m.channels, ch)
		}
	}
	return m
}

// Channels returns the wrapped channels.
func (m *MultiChannel) Channels() []Channel {
	return m.channels
}

func (m *MultiChannel) Name() string { return "multi" }

// Send tries every channel and joins their errors.
func (m *MultiChannel) Send(ctx context.Context, n Notice) error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
