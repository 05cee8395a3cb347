package notify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testResult() *types.LoadResult {
	return &types.LoadResult{RunID: "r1", BatchID: "20260301120000", RowsInserted: 42}
}

type mockSQS struct {
	sent []*sqs.SendMessageInput
	err  error
}

func (m *mockSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.sent = append(m.sent, in)
	return &sqs.SendMessageOutput{}, m.err
}

type stubSink struct {
	name string
	err  error
	got  []Message
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Send(_ context.Context, msg Message) error {
	s.got = append(s.got, msg)
	return s.err
}

func TestMessageFor(t *testing.T) {
	tests := []struct {
		name  string
		res   *types.LoadResult
		level Level
		text  string
	}{
		{"ok", testResult(), LevelInfo, "loaded 42 rows for batch 20260301120000"},
		{
			"synthetic",
			&types.LoadResult{BatchID: "B", RowsInserted: 100, Synthetic: true},
			LevelInfo, "loaded 100 rows for batch B (synthetic)",
		},
		{
			"aggregate failures",
			&types.LoadResult{BatchID: "B", RowsInserted: 1, AggregateErrors: map[types.AggregateKind]string{
				types.AggregateHashtag: "x", types.AggregateChannel: "y",
			}},
			LevelWarning, "loaded 1 rows for batch B; aggregates failed: channel, hashtag",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := MessageFor(tt.res, now)
			assert.Equal(t, tt.level, msg.Level)
			assert.Equal(t, tt.text, msg.Text)
			assert.Equal(t, tt.res.BatchID, msg.BatchID)
		})
	}
}

func TestDispatcher_TriesEverySink(t *testing.T) {
	bad := &stubSink{name: "bad", err: errors.New("down")}
	good := &stubSink{name: "good"}
	d := NewDispatcher(nil, bad, good)

	err := d.Notify(context.Background(), testResult())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, bad.got, 1)
	assert.Len(t, good.got, 1)
}

func TestDispatcher_NoSinks(t *testing.T) {
	d, err := FromConfig(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, d.Len())
	assert.NoError(t, d.Notify(context.Background(), testResult()))
}

func TestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loads.jsonl")
	d, err := FromConfig(context.Background(), &types.NotifyConfig{
		Console:    true,
		File:       path,
		WebhookURL: "http://localhost:1/hook",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())
}

func TestSQSSink_Send(t *testing.T) {
	mock := &mockSQS{}
	sink, err := NewSQSSink(context.Background(), "https://sqs.us-east-1.amazonaws.com/1/loads", WithSQSClient(mock))
	require.NoError(t, err)
	assert.Equal(t, "sqs", sink.Name())

	require.NoError(t, sink.Send(context.Background(), MessageFor(testResult(), now)))
	require.Len(t, mock.sent, 1)
	in := mock.sent[0]
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/1/loads", *in.QueueUrl)
	assert.Equal(t, "20260301120000", *in.MessageAttributes["batch_id"].StringValue)

	var decoded Message
	require.NoError(t, json.Unmarshal([]byte(*in.MessageBody), &decoded))
	assert.Equal(t, 42, decoded.Load.RowsInserted)
}

func TestSQSSink_Errors(t *testing.T) {
	_, err := NewSQSSink(context.Background(), "")
	assert.ErrorContains(t, err, "queue URL required")

	sink, err := NewSQSSink(context.Background(), "q", WithSQSClient(&mockSQS{err: errors.New("throttled")}))
	require.NoError(t, err)
	assert.ErrorContains(t, sink.Send(context.Background(), Message{}), "throttled")
}

func TestWebhookSink_Send(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	require.NoError(t, sink.Send(context.Background(), MessageFor(testResult(), now)))
	assert.Equal(t, "20260301120000", got.BatchID)
}

func TestWebhookSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL).Send(context.Background(), Message{})
	assert.ErrorContains(t, err, "status 502")
}

func TestFileSink_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loads.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, sink.Send(context.Background(), MessageFor(testResult(), now)))
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m Message
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestFileSink_BadPath(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "x.jsonl"))
	assert.Error(t, err)
}

func TestConsoleSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := &ConsoleSink{out: &buf}
	assert.Equal(t, "console", sink.Name())

	for _, level := range []Level{LevelError, LevelWarning, LevelInfo} {
		require.NoError(t, sink.Send(context.Background(), Message{Level: level, BatchID: "B", Text: "hi"}))
	}
	assert.Contains(t, buf.String(), "[B] hi")
	assert.Contains(t, buf.String(), "[WARN]")
}
