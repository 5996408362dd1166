package stream

import (
	"context"

	"github.com/agentgrove/corert/runtime/agent/hooks"
)

// Subscriber implements hooks.Subscriber and forwards events matching its
// Profile to a Sink. Register it on a per-connection basis (not the
// process-wide bus) so one client's disconnect does not affect others.
type Subscriber struct {
	sink    Sink
	profile Profile
}

// NewSubscriber constructs a Subscriber forwarding events allowed by profile
// to sink.
func NewSubscriber(sink Sink, profile Profile) *Subscriber {
	return &Subscriber{sink: sink, profile: profile}
}

// HandleEvent implements hooks.Subscriber.
func (s *Subscriber) HandleEvent(ctx context.Context, event hooks.Event) error {
	if !s.profile.allows(string(event.Type())) {
		return nil
	}
	return s.sink.Send(ctx, event)
}
