package twitchapi

import (
	"context"
	"testing"

	"golang.org/x/oauth2"

	"github.com/fractalo/chat-curator/testutil"
)

func TestGetGlobalChatBadges(t *testing.T) {
	server := testutil.NewMockTwitchServer(t)
	server.MockGlobalBadgesResponse([]map[string]any{
		{
			"set_id": "moderator",
			"versions": []map[string]string{
				{"id": "1", "title": "Moderator"},
			},
		},
		{
			"set_id": "subscriber",
			"versions": []map[string]string{
				{"id": "0", "title": "Subscriber"},
				{"id": "3", "title": "3-Month Subscriber"},
			},
		},
	})

	client := &HelixClient{
		ClientID:    "test-client",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		BaseURL:     server.URL,
	}

	sets, err := client.GetGlobalChatBadges(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 2 {
		t.Fatalf("got %d badge sets, want 2", len(sets))
	}
	if sets[0].SetID != "moderator" || len(sets[0].Versions) != 1 {
		t.Errorf("moderator set mismatch: %+v", sets[0])
	}
	if sets[1].Versions[1].Title != "3-Month Subscriber" {
		t.Errorf("subscriber versions mismatch: %+v", sets[1].Versions)
	}
}

func TestGetGlobalChatBadgesErrorStatus(t *testing.T) {
	server := testutil.NewMockTwitchServer(t)
	// No handler registered: the server answers 404.

	client := &HelixClient{
		ClientID:    "test-client",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		BaseURL:     server.URL,
	}

	if _, err := client.GetGlobalChatBadges(context.Background()); err == nil {
		t.Error("non-200 response should surface as an error")
	}
}
