package filtersync

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fractalo/chat-curator/filter"
	"github.com/fractalo/chat-curator/messaging"
	"github.com/fractalo/chat-curator/telemetry"
)

// Subscriber is the evaluator-side endpoint. It mirrors the publisher's
// runtime cache by applying patch messages, after bootstrapping itself with a
// full snapshot.
type Subscriber struct {
	cache       *filter.RuntimeCache
	channel     *messaging.Channel
	publisherID string
	stop        func()
}

// NewSubscriber builds a subscriber listening on channel for state published
// by publisherID.
func NewSubscriber(channel *messaging.Channel, publisherID string) *Subscriber {
	return &Subscriber{
		cache:       filter.NewRuntimeCache(nil),
		channel:     channel,
		publisherID: publisherID,
	}
}

// Cache exposes the mirrored runtime cache for evaluation.
func (s *Subscriber) Cache() *filter.RuntimeCache { return s.cache }

// Start waits for the publisher handshake and requests the initial snapshot.
// Patches arriving while the request is in flight are applied as they come;
// field-level patch merging keeps the interleaving consistent. Blocks until
// connected or ctx is done.
func (s *Subscriber) Start(ctx context.Context) error {
	s.stop = s.channel.OnMessage(s.handleMessage)

	if err := s.channel.WaitForConnected(ctx, s.publisherID); err != nil {
		return err
	}

	// The publisher pushes a snapshot on connect as well; the explicit
	// request covers endpoints attaching to an already-running pair. A nil
	// answer is tolerable, the connect push has or will come through.
	content := s.channel.Request(ctx, messaging.PostConfig{
		Type: MsgTypeGetGroups,
		To:   s.publisherID,
	}, 10*time.Second)
	if content != nil {
		s.apply(content)
	}
	slog.Info("filter subscriber started", slog.Int("groups", s.cache.Len()))
	return nil
}

// Stop detaches the subscriber from the channel.
func (s *Subscriber) Stop() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

func (s *Subscriber) handleMessage(msg messaging.Message) {
	if msg.From != s.publisherID {
		return
	}
	switch msg.Type {
	case MsgTypePatch, MsgTypeGroups:
		s.apply(msg.Content)
	}
}

func (s *Subscriber) apply(content json.RawMessage) {
	var patch filter.GroupsPatch
	if err := json.Unmarshal(content, &patch); err != nil {
		slog.Warn("malformed runtime patch", slog.Any("err", err))
		return
	}
	s.cache.ApplyGroupsPatch(patch)
	telemetry.SetCachedGroups(s.cache.Len())
}
