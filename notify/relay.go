package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

const otpTopic = "authgate.otp.generated"

// NewMemoryChannel builds the in-process pub/sub backbone shared by a
// [Publisher] and the [Relay] that consumes from it.
func NewMemoryChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		Persistent: true,
	}, watermill.NopLogger{})
}

// Publisher emits OTP messages onto the channel. It satisfies
// [Notifier] so the engine can publish instead of delivering directly.
type Publisher struct {
	channel *gochannel.GoChannel
}

func NewPublisher(channel *gochannel.GoChannel) *Publisher {
	return &Publisher{channel: channel}
}

// NotifyOTP serializes msg and publishes it on the OTP topic.
func (p *Publisher) NotifyOTP(_ context.Context, msg OTPMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal otp message: %w", err)
	}
	return p.channel.Publish(otpTopic, message.NewMessage(watermill.NewUUID(), payload))
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

// Relay subscribes to the OTP topic and hands each message to the
// wrapped Notifier. Undecodable messages are acked and logged; delivery
// failures are logged and acked as well since OTP mail is best effort.
type Relay struct {
	channel  *gochannel.GoChannel
	notifier Notifier
	log      *zap.Logger
	cancel   context.CancelFunc
	doneCh   chan struct{}
}

func NewRelay(channel *gochannel.GoChannel, notifier Notifier, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		channel:  channel,
		notifier: notifier,
		log:      log,
	}
}

// Run subscribes and consumes until Close is called or the
// subscription ends.
func (r *Relay) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.doneCh = make(chan struct{})

	messages, err := r.channel.Subscribe(ctx, otpTopic)
	if err != nil {
		cancel()
		close(r.doneCh)
		return fmt.Errorf("subscribe otp topic: %w", err)
	}

	go func() {
		defer close(r.doneCh)
		for m := range messages {
			r.handle(ctx, m)
		}
	}()

	return nil
}

func (r *Relay) handle(ctx context.Context, m *message.Message) {
	defer m.Ack()

	var msg OTPMessage
	if err := json.Unmarshal(m.Payload, &msg); err != nil {
		r.log.Error("undecodable otp message",
			zap.String("message_id", m.UUID),
			zap.Error(err),
		)
		return
	}

	if err := r.notifier.NotifyOTP(ctx, msg); err != nil {
		r.log.Error("otp delivery failed",
			zap.String("email", msg.Email),
			zap.Error(err),
		)
	}
}

// Close stops consumption and waits for the in-flight handler.
func (r *Relay) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.doneCh != nil {
		<-r.doneCh
	}
}
