package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleAlert() Alert {
	return Alert{
		SessionID:    "s1",
		RestaurantID: "r1",
		OrderID:      "o1",
		OrderCode:    "BD-1",
		Title:        "New Order Received",
		Message:      "Order #BD-1 has been placed",
		Sound:        true,
		At:           time.Unix(1700000000, 0),
	}
}

func TestHubDeliversToSessionOnly(t *testing.T) {
	h := NewHub()
	mine, cancelMine := h.Subscribe("s1")
	other, cancelOther := h.Subscribe("s2")
	defer cancelOther()

	require.NoError(t, h.Send(context.Background(), sampleAlert()))

	select {
	case a := <-mine:
		assert.Equal(t, "o1", a.OrderID)
	default:
		t.Fatal("expected alert for s1")
	}
	select {
	case <-other:
		t.Fatal("s2 must not get s1 alerts")
	default:
	}

	cancelMine()
	cancelMine()
	_, open := <-mine
	assert.False(t, open)
	assert.Zero(t, h.Subscribers("s1"))
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("s1")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, h.Send(context.Background(), sampleAlert()))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("s1")
	h.Close()
	_, open := <-ch
	assert.False(t, open)
	cancel()

	late, _ := h.Subscribe("s1")
	_, open = <-late
	assert.False(t, open)
}

type failingSink struct{ err error }

func (f failingSink) Name() string                       { return "broken" }
func (f failingSink) Send(context.Context, Alert) error { return f.err }

type countingFailures struct{ sinks []string }

func (c *countingFailures) SinkFailed(s string) { c.sinks = append(c.sinks, s) }

func TestFanoutContinuesPastFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	hub := NewHub()
	ch, cancel := hub.Subscribe("s1")
	defer cancel()

	boom := errors.New("boom")
	failures := &countingFailures{}
	f := NewFanout(zap.New(core), failures, failingSink{err: boom}, hub, NewLogSink(zap.New(core)))

	err := f.Send(context.Background(), sampleAlert())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ch, 1)
	assert.Equal(t, []string{"broken"}, failures.sinks)
	assert.Equal(t, 1, logs.FilterMessage("alert delivery failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("New Order Received").Len())
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: 1}, b.err
}

func TestTelegramSink(t *testing.T) {
	bot := &fakeBot{}
	s := &TelegramSink{api: bot, chatID: 42}

	require.NoError(t, s.Send(context.Background(), sampleAlert()))
	require.Len(t, bot.sent, 1)
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "Order #BD-1 has been placed")
	assert.Contains(t, msg.Text, "Restaurant: r1")

	bot.err = errors.New("forbidden")
	assert.Error(t, s.Send(context.Background(), sampleAlert()))
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSinkKeysByRestaurant(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSink{w: w}

	require.NoError(t, s.Send(context.Background(), sampleAlert()))
	a := sampleAlert()
	a.RestaurantID = ""
	require.NoError(t, s.Send(context.Background(), a))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "r1", string(w.msgs[0].Key))
	assert.Equal(t, "s1", string(w.msgs[1].Key))

	var decoded Alert
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "BD-1", decoded.OrderCode)

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}
