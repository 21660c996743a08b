package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupe(t *testing.T) {
	ns := []Notification{
		{Kind: EventUpdatedRecurring, EventID: "e1", SeriesID: "s1"},
		{Kind: EventUpdatedRecurring, EventID: "e2", SeriesID: "s1"},
		{Kind: EventUpdatedRecurring, EventID: "e3", SeriesID: "s2", PreviousSeriesID: "s1"},
		{Kind: EventUpdated, EventID: "e3"},
		{Kind: EventUpdated, EventID: "e3"},
		{Kind: EventCreated, EventID: "e4"},
		{Kind: EventCreated, EventID: "e5"},
	}

	got := Dedupe(ns)
	require.Len(t, got, 5)
	assert.Equal(t, "e1", got[0].EventID)
	assert.Equal(t, "s2", got[1].SeriesID)
	assert.Equal(t, EventUpdated, got[2].Kind)
	assert.Equal(t, "e4", got[3].EventID)
	assert.Equal(t, "e5", got[4].EventID)

	assert.Nil(t, Dedupe(nil))
}

func TestNotification_Encode(t *testing.T) {
	n := Notification{Kind: EventCreatedRecurring, SeriesID: "s1", ActorID: "u1"}
	b, err := n.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "events:created:recurring", decoded["kind"])
	assert.Equal(t, "s1", decoded["seriesId"])
	assert.Equal(t, "u1", decoded["actorId"])
	assert.NotContains(t, decoded, "previousSeriesId")
}

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(_ context.Context, n Notification) error {
	p.calls++
	if n.EventID == "bad" {
		return errors.New("boom")
	}
	return nil
}

func TestPublishAll(t *testing.T) {
	rec := &Recorder{}
	failed := PublishAll(context.Background(), rec, []Notification{
		{Kind: EventCreatedRecurring, SeriesID: "s1"},
		{Kind: EventCreatedRecurring, SeriesID: "s1"},
	})
	assert.Nil(t, failed)
	assert.Len(t, rec.Sent(), 1)

	fp := &failingPublisher{}
	failed = PublishAll(context.Background(), fp, []Notification{
		{Kind: EventUpdated, EventID: "bad"},
		{Kind: EventUpdated, EventID: "good"},
	})
	assert.Equal(t, 2, fp.calls)
	require.Len(t, failed, 1)
	assert.Error(t, failed[0])
}

type fakeRedis struct {
	channel string
	message any
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message = message
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisher(t *testing.T) {
	client := &fakeRedis{}
	p := newRedisPublisher(client, "")

	n := Notification{Kind: EventUpdated, EventID: "e1", ActorID: "u1"}
	require.NoError(t, p.Publish(context.Background(), n))
	assert.Equal(t, DefaultChannel, client.channel)

	var decoded Notification
	require.NoError(t, json.Unmarshal(client.message.([]byte), &decoded))
	assert.Equal(t, n, decoded)

	client.err = errors.New("connection refused")
	assert.Error(t, p.Publish(context.Background(), n))
	assert.NoError(t, p.Close())
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(nil)
	assert.NoError(t, p.Publish(context.Background(), Notification{Kind: EventDeleted, EventID: "e1"}))
}
