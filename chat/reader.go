package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gempir/go-twitch-irc/v4"

	"github.com/fractalo/chat-curator/filter"
	"github.com/fractalo/chat-curator/telemetry"
)

// Config describes an IRC chat connection. When Username or OAuthToken is
// empty the reader connects anonymously, which Twitch permits for read-only
// access.
type Config struct {
	Channels   []string
	Username   string
	OAuthToken string
}

// Reader joins Twitch chat channels, evaluates each incoming message against
// the filter runtime, and publishes the verdict to a broker.
type Reader struct {
	client   *twitch.Client
	cache    *filter.RuntimeCache
	broker   *Broker
	channels []string
}

func NewReader(cfg Config, cache *filter.RuntimeCache, broker *Broker) (*Reader, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("at least one chat channel is required")
	}

	var client *twitch.Client
	if cfg.Username != "" && cfg.OAuthToken != "" {
		client = twitch.NewClient(cfg.Username, cfg.OAuthToken)
	} else {
		slog.Info("no chat credentials configured, connecting anonymously")
		client = twitch.NewAnonymousClient()
	}

	channels := make([]string, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels = append(channels, strings.ToLower(strings.TrimSpace(ch)))
	}

	return &Reader{
		client:   client,
		cache:    cache,
		broker:   broker,
		channels: channels,
	}, nil
}

// Run connects to chat and blocks until the connection fails or ctx is
// cancelled. Cancellation disconnects the client and returns nil.
func (r *Reader) Run(ctx context.Context) error {
	r.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		r.handleMessage(msg)
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if err := r.client.Disconnect(); err != nil {
				slog.Warn("failed to disconnect from chat", slog.Any("err", err))
			}
		case <-done:
		}
	}()

	r.client.Join(r.channels...)
	slog.Info("connecting to twitch chat", slog.Any("channels", r.channels))

	err := r.client.Connect()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("chat connection failed: %w", err)
	}
	return nil
}

func (r *Reader) handleMessage(msg twitch.PrivateMessage) {
	converted := ConvertMessage(msg)

	var included bool
	telemetry.TimeFunc(telemetry.EvaluateDuration, func() {
		included = r.cache.Evaluate(converted)
	})
	telemetry.RecordEvaluation(included)

	r.broker.Publish(Event{
		Message:    converted,
		Included:   included,
		ReceivedAt: msg.Time,
	})
}

// ConvertMessage maps an IRC private message onto the filter engine's chat
// message shape. Badge versions arrive as integers and are rendered back to
// their tag strings; the badge-info tag supplies the true month counts that
// subscriber and founder badge versions round away.
func ConvertMessage(msg twitch.PrivateMessage) filter.ChatMessage {
	var badges map[string]string
	if len(msg.User.Badges) > 0 {
		badges = make(map[string]string, len(msg.User.Badges))
		for set, version := range msg.User.Badges {
			badges[set] = strconv.Itoa(version)
		}
	}

	return filter.ChatMessage{
		ID:               msg.ID,
		ChannelLogin:     strings.ToLower(msg.Channel),
		UserLogin:        strings.ToLower(msg.User.Name),
		UserDisplayName:  msg.User.DisplayName,
		MessageBody:      strings.ToLower(msg.Message),
		Badges:           badges,
		BadgeDynamicData: parseBadgeInfo(msg.Tags["badge-info"]),
	}
}

// parseBadgeInfo parses the badge-info IRC tag, e.g. "subscriber/26,founder/9".
func parseBadgeInfo(tag string) map[string]float64 {
	if tag == "" {
		return nil
	}
	var data map[string]float64
	for _, pair := range strings.Split(tag, ",") {
		set, value, ok := strings.Cut(pair, "/")
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		if data == nil {
			data = make(map[string]float64)
		}
		data[set] = n
	}
	return data
}
