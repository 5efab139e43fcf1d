package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/drift-batch/internal/domain"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testResult() domain.RunResult {
	start := time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)
	return domain.RunResult{
		BatchID:      "batch-1",
		Row:          2,
		Identifier:   "A3",
		OutputFile:   "z_output/tracking_output_tag_ID_A3.nc",
		DurationDays: 300,
		StartedAt:    start,
		FinishedAt:   start.Add(time.Minute),
		Elapsed:      time.Minute,
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(testResult())
	require.NoError(t, err)

	assert.Equal(t, []byte("A3"), msg.Key)
	assert.Contains(t, string(msg.Value), `"identifier":"A3"`)
	assert.Contains(t, string(msg.Value), `"duration_days":300`)
	assert.NotContains(t, string(msg.Value), `"error"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "batch_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("batch-1"), msg.Headers[0].Value)
	assert.Equal(t, "status", msg.Headers[1].Key)
	assert.Equal(t, []byte("succeeded"), msg.Headers[1].Value)
	assert.Equal(t, []byte("2"), msg.Headers[2].Value)
}

func TestSerializeToMessage_Failed(t *testing.T) {
	r := testResult()
	r.Error = "opendrift: exit status 1"

	msg, err := serializeToMessage(r)
	require.NoError(t, err)

	assert.Equal(t, []byte("failed"), msg.Headers[1].Value)
	var decoded domain.RunResult
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, r.Error, decoded.Error)
}

func TestWriter_Publish(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, w.Publish(context.Background(), testResult()))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, []byte("A3"), fw.msgs[0].Key)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_PublishError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := w.Publish(context.Background(), testResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A3")
	assert.Contains(t, err.Error(), "broker down")
}
