package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 10 * time.Second

// ErrDelivery matches every *DeliveryError.
var ErrDelivery = errors.New("notification delivery failed")

// DeliveryError reports a message that could not be delivered.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering to %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

// Chat sends messages to a channel or user.
type Chat interface {
	Send(ctx context.Context, channel, text string, interactive *Interactive) error
}

type Dispatcher struct {
	chat    Chat
	timeout time.Duration
	log     zerolog.Logger
}

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(disp *Dispatcher) { disp.log = log }
}

func NewDispatcher(chat Chat, opts ...Option) *Dispatcher {
	d := &Dispatcher{chat: chat, timeout: DefaultTimeout, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends msg to channel. Any failure, including a timeout, is
// returned as a *DeliveryError.
func (d *Dispatcher) Deliver(ctx context.Context, channel string, msg Message) error {
	if channel == "" {
		return &DeliveryError{Channel: channel, Err: errors.New("no channel")}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.chat.Send(ctx, channel, msg.Text, msg.Interactive)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		d.log.Error().Err(err).Str("channel", channel).Msg("notification delivery failed")
		return &DeliveryError{Channel: channel, Err: err}
	}

	d.log.Debug().Str("channel", channel).Msg("notification delivered")
	return nil
}
