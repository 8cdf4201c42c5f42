package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChat struct {
	sendFunc func(ctx context.Context, channel, text string, interactive *Interactive) error
}

func (m *mockChat) Send(ctx context.Context, channel, text string, interactive *Interactive) error {
	return m.sendFunc(ctx, channel, text, interactive)
}

func TestDeliver(t *testing.T) {
	var gotChannel, gotText string
	var gotInteractive *Interactive
	chat := &mockChat{sendFunc: func(ctx context.Context, channel, text string, interactive *Interactive) error {
		gotChannel, gotText, gotInteractive = channel, text, interactive
		return nil
	}}

	msg := RenderCreated(sampleRequest())
	err := NewDispatcher(chat).Deliver(context.Background(), "C-admins", msg)
	require.NoError(t, err)
	assert.Equal(t, "C-admins", gotChannel)
	assert.Equal(t, msg.Text, gotText)
	assert.Same(t, msg.Interactive, gotInteractive)
}

func TestDeliver_Failure(t *testing.T) {
	cause := errors.New("channel_not_found")
	chat := &mockChat{sendFunc: func(ctx context.Context, channel, text string, interactive *Interactive) error {
		return cause
	}}

	err := NewDispatcher(chat).Deliver(context.Background(), "C1", Message{Text: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.ErrorIs(t, err, cause)

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "C1", de.Channel)
}

func TestDeliver_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	chat := &mockChat{sendFunc: func(ctx context.Context, channel, text string, interactive *Interactive) error {
		<-release
		return nil
	}}

	start := time.Now()
	err := NewDispatcher(chat, WithTimeout(20*time.Millisecond)).Deliver(context.Background(), "C1", Message{Text: "hi"})
	assert.ErrorIs(t, err, ErrDelivery)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDeliver_EmptyChannel(t *testing.T) {
	chat := &mockChat{sendFunc: func(ctx context.Context, channel, text string, interactive *Interactive) error {
		t.Fatal("send should not be called")
		return nil
	}}

	err := NewDispatcher(chat).Deliver(context.Background(), "", Message{Text: "hi"})
	assert.ErrorIs(t, err, ErrDelivery)
}
