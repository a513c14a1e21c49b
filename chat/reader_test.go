package chat

import (
	"testing"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
	"github.com/google/go-cmp/cmp"

	"github.com/fractalo/chat-curator/filter"
	"github.com/fractalo/chat-curator/kvstore"
)

func TestConvertMessage(t *testing.T) {
	msg := twitch.PrivateMessage{
		ID:      "msg-1",
		Channel: "SomeStreamer",
		Message: "Hello WORLD",
		User: twitch.User{
			Name:        "someuser",
			DisplayName: "SomeUser",
			Badges:      map[string]int{"subscriber": 2012, "vip": 1},
		},
		Tags: map[string]string{"badge-info": "subscriber/26"},
	}

	got := ConvertMessage(msg)
	want := filter.ChatMessage{
		ID:               "msg-1",
		ChannelLogin:     "somestreamer",
		UserLogin:        "someuser",
		UserDisplayName:  "SomeUser",
		MessageBody:      "hello world",
		Badges:           map[string]string{"subscriber": "2012", "vip": "1"},
		BadgeDynamicData: map[string]float64{"subscriber": 26},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("converted message mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertMessageWithoutBadges(t *testing.T) {
	got := ConvertMessage(twitch.PrivateMessage{
		Channel: "chan",
		Message: "hi",
		User:    twitch.User{Name: "viewer"},
	})
	if got.Badges != nil {
		t.Errorf("Badges = %v, want nil", got.Badges)
	}
	if got.BadgeDynamicData != nil {
		t.Errorf("BadgeDynamicData = %v, want nil", got.BadgeDynamicData)
	}
}

func TestParseBadgeInfo(t *testing.T) {
	tests := []struct {
		tag  string
		want map[string]float64
	}{
		{"", nil},
		{"subscriber/26", map[string]float64{"subscriber": 26}},
		{"subscriber/2,founder/9", map[string]float64{"subscriber": 2, "founder": 9}},
		{"predictions/blue-1", nil},
		{"predictions/pogchamp,subscriber/12", map[string]float64{"subscriber": 12}},
		{"garbage", nil},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(tc.want, parseBadgeInfo(tc.tag)); diff != "" {
			t.Errorf("parseBadgeInfo(%q) mismatch (-want +got):\n%s", tc.tag, diff)
		}
	}
}

func TestBrokerFanout(t *testing.T) {
	broker := NewBroker()
	sub1, cancel1 := broker.Subscribe()
	sub2, cancel2 := broker.Subscribe()
	defer cancel2()

	ev := Event{Message: filter.ChatMessage{ID: "m1"}, Included: true}
	broker.Publish(ev)

	for _, sub := range []<-chan Event{sub1, sub2} {
		select {
		case got := <-sub:
			if got.Message.ID != "m1" || !got.Included {
				t.Errorf("received %+v, want %+v", got, ev)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}

	cancel1()
	if _, ok := <-sub1; ok {
		t.Error("expected closed channel after cancel")
	}
	if broker.Len() != 1 {
		t.Errorf("Len() = %d, want 1", broker.Len())
	}
	cancel1() // second cancel is a no-op
}

func TestReaderEvaluatesAndPublishes(t *testing.T) {
	cache := filter.NewRuntimeCache(kvstore.NewMemory())
	cache.UpdateGroups(filter.Groups{
		"g1": {ID: "g1", IsActive: true, IsGlobal: true},
	})
	cache.UpdateFilterList("g1", filter.TypeUsername, filter.List{
		"f1": filter.UsernameFilter{
			Base:     filter.Base{ID: "f1", IsActive: true, IsIncluded: true},
			Username: "Friend",
		},
	})

	broker := NewBroker()
	events, cancel := broker.Subscribe()
	defer cancel()

	r := &Reader{cache: cache, broker: broker}
	r.handleMessage(twitch.PrivateMessage{
		ID:      "m1",
		Channel: "chan",
		Message: "hello",
		User:    twitch.User{Name: "friend"},
	})
	r.handleMessage(twitch.PrivateMessage{
		ID:      "m2",
		Channel: "chan",
		Message: "spam",
		User:    twitch.User{Name: "stranger"},
	})

	first := <-events
	if first.Message.ID != "m1" || !first.Included {
		t.Errorf("first event = %+v, want included m1", first)
	}
	second := <-events
	if second.Message.ID != "m2" || second.Included {
		t.Errorf("second event = %+v, want excluded m2", second)
	}
}

func TestNewReaderRequiresChannels(t *testing.T) {
	if _, err := NewReader(Config{}, nil, nil); err == nil {
		t.Error("expected error for empty channel list")
	}
}
