package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackChat_Send(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		body, _ = url.QueryUnescape(string(raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"123.456"}`))
	}))
	defer srv.Close()

	chat := NewSlackChat("xoxb-test", srv.URL+"/")
	msg := RenderCreated(sampleRequest())
	require.NoError(t, chat.Send(context.Background(), "C123", msg.Text, msg.Interactive))

	assert.Contains(t, body, "C123")
	assert.Contains(t, body, ActionApprove)
	assert.Contains(t, body, ActionDeny)
	assert.Contains(t, body, "req-1")
}

func TestSlackChat_SendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	err := NewSlackChat("xoxb-test", srv.URL+"/").Send(context.Background(), "C404", "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestBlocks(t *testing.T) {
	blocks := Blocks("hello", &Interactive{Actions: []Action{
		{ID: ActionApprove, Label: "Approve", Value: "r1", Style: StylePrimary},
		{ID: ActionDeny, Label: "Deny", Value: "r1"},
	}})
	require.Len(t, blocks, 2)

	section, ok := blocks[0].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Equal(t, "hello", section.Text.Text)

	actions, ok := blocks[1].(*slack.ActionBlock)
	require.True(t, ok)
	require.Len(t, actions.Elements.ElementSet, 2)

	approve, ok := actions.Elements.ElementSet[0].(*slack.ButtonBlockElement)
	require.True(t, ok)
	assert.Equal(t, ActionApprove, approve.ActionID)
	assert.Equal(t, "r1", approve.Value)
	assert.Equal(t, slack.StylePrimary, approve.Style)

	deny := actions.Elements.ElementSet[1].(*slack.ButtonBlockElement)
	assert.Equal(t, slack.Style(""), deny.Style)
}
