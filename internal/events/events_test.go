package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error { return nil }

func TestNewPicksPublisher(t *testing.T) {
	assert.IsType(t, LogPublisher{}, New(config.EventsConfig{}))

	p := New(config.EventsConfig{Brokers: []string{"localhost:9092"}, Topic: "t"})
	kp, ok := p.(*KafkaPublisher)
	require.True(t, ok)
	assert.Equal(t, "t", kp.writer.Topic)
}

func TestToMessage(t *testing.T) {
	e := NewEvent(BookingCreated, 42, map[string]string{"code": "ABC"})
	msg, err := toMessage(e)
	require.NoError(t, err)

	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, BookingCreated, string(msg.Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, BookingCreated, decoded["type"])
	assert.EqualValues(t, 42, decoded["business_id"])
}

func TestEmitSwallowsErrors(t *testing.T) {
	p := &failingPublisher{}
	assert.NotPanics(t, func() {
		Emit(context.Background(), p, BookingPaid, 1, nil)
		Emit(context.Background(), nil, BookingPaid, 1, nil)
	})
	assert.Equal(t, 1, p.calls)
}
