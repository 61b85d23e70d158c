package feed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"truckgate/internal/checkpoint/models"
)

var sampleEntry = models.LogEntry{
	Timestamp:  time.Date(2025, 2, 3, 4, 5, 6, 0, time.FixedZone("CST", -6*3600)),
	DriverName: "Ana Torres",
	QRCode:     "c1",
	Status:     models.OutcomeValid,
	Notes:      "issued at 2025-02-01T00:00:00Z",
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(sampleEntry)

	_, err := uuid.Parse(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, msg.Timestamp.Location())
	assert.True(t, msg.Timestamp.Equal(sampleEntry.Timestamp))
	assert.Equal(t, "VALID", msg.Status)

	data, err := msg.Encode()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "c1", decoded["qr_code"])
	assert.Equal(t, "Ana Torres", decoded["driver_name"])
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var results kgo.ProduceResults
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() { f.closed = true }

func TestKafkaPublish(t *testing.T) {
	producer := &fakeProducer{}
	k := NewKafka(producer, "checkpoint-entries")

	require.NoError(t, k.Publish(context.Background(), sampleEntry))
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "checkpoint-entries", rec.Topic)
	assert.Equal(t, []byte("c1"), rec.Key)

	var msg Message
	require.NoError(t, json.Unmarshal(rec.Value, &msg))
	assert.Equal(t, "Ana Torres", msg.DriverName)

	require.NoError(t, k.Close())
	assert.True(t, producer.closed)
}

func TestKafkaPublishError(t *testing.T) {
	k := NewKafka(&fakeProducer{err: errors.New("broker down")}, "checkpoint-entries")
	err := k.Publish(context.Background(), sampleEntry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

type multiRecordingPublisher struct {
	got    []models.LogEntry
	err    error
	closed bool
}

func (r *multiRecordingPublisher) Publish(_ context.Context, e models.LogEntry) error {
	r.got = append(r.got, e)
	return r.err
}

func (r *multiRecordingPublisher) Close() error {
	r.closed = true
	return nil
}

func TestMultiPublishesToEverySink(t *testing.T) {
	failing := &multiRecordingPublisher{err: errors.New("sink a down")}
	healthy := &multiRecordingPublisher{}
	m := Multi{failing, healthy}

	err := m.Publish(context.Background(), sampleEntry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink a down")
	assert.Len(t, failing.got, 1)
	assert.Len(t, healthy.got, 1)

	require.NoError(t, m.Close())
	assert.True(t, failing.closed)
	assert.True(t, healthy.closed)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), sampleEntry))
	assert.NoError(t, p.Close())
}
