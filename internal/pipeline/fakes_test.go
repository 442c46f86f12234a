package pipeline

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mahirjain10/object-pipeline/config"
	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		ServiceName:      "object-pipeline-test",
		InputBucketName:  "in",
		OutputBucketName: "out",
		QueueBackend:     config.QueueBackendSQS,
		SqsQueueURL:      "https://sqs.eu-west-1.amazonaws.com/123456789012/check.fifo",
		SqsQueueName:     "check.fifo",
		MessageGroupID:   "otel",
		ChainToCheck:     true,
	}
}

func newTestRecorder(stage types.Stage) (*telemetry.Recorder, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return telemetry.NewRecorder(tp, "object-pipeline-test", stage), sr
}

// invocationSpans returns the ended stage spans, collaborator spans excluded.
func invocationSpans(sr *tracetest.SpanRecorder) []sdktrace.ReadOnlySpan {
	var spans []sdktrace.ReadOnlySpan
	for _, span := range sr.Ended() {
		if span.Name() == telemetry.InvocationSpanName {
			spans = append(spans, span)
		}
	}
	return spans
}

func spanNames(sr *tracetest.SpanRecorder) []string {
	var names []string
	for _, span := range sr.Ended() {
		names = append(names, span.Name())
	}
	return names
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

// outcomeEvent returns the attributes of the single outcome event recorded on
// the single invocation span.
func outcomeEvent(t *testing.T, sr *tracetest.SpanRecorder) map[attribute.Key]attribute.Value {
	t.Helper()
	spans := invocationSpans(sr)
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	return attrMap(events[0].Attributes)
}

func noSuchBucket() error {
	return &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "The specified bucket does not exist"}
}

func noSuchKey() error {
	return &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}
}

// memStore is an in-memory BlobStore listing keys in lexical order, pageSize
// keys per page.
type memStore struct {
	mu           sync.Mutex
	buckets      map[string]map[string][]byte
	contentTypes map[string]string
	pageSize     int

	// script, when set, replaces the listing with fixed pages served in order.
	script []ListPage

	deleteFailures map[string]string
	deleteErr      error
	panicOnGet     bool

	gets, puts, lists int
	listCursors       []string
	deleteCalls       [][]string
}

func newMemStore(buckets ...string) *memStore {
	store := &memStore{
		buckets:        make(map[string]map[string][]byte),
		contentTypes:   make(map[string]string),
		pageSize:       1000,
		deleteFailures: make(map[string]string),
	}
	for _, bucket := range buckets {
		store.buckets[bucket] = make(map[string][]byte)
	}
	return store
}

func (m *memStore) seed(bucket, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket][key] = body
}

func (m *memStore) object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, false
	}
	body, ok := objects[key]
	return body, ok
}

func (m *memStore) keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for key := range m.buckets[bucket] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m *memStore) collaboratorCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets + m.puts + m.lists + len(m.deleteCalls)
}

func (m *memStore) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.panicOnGet {
		panic("storage client exploded")
	}
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, noSuchBucket()
	}
	body, ok := objects[key]
	if !ok {
		return nil, noSuchKey()
	}
	return append([]byte(nil), body...), nil
}

func (m *memStore) PutObject(_ context.Context, bucket, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	objects, ok := m.buckets[bucket]
	if !ok {
		return noSuchBucket()
	}
	objects[key] = append([]byte(nil), body...)
	m.contentTypes[bucket+"/"+key] = contentType
	return nil
}

func (m *memStore) ListObjects(_ context.Context, bucket, cursor string) (ListPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	m.listCursors = append(m.listCursors, cursor)

	if m.script != nil {
		page := m.script[0]
		m.script = m.script[1:]
		return page, nil
	}

	objects, ok := m.buckets[bucket]
	if !ok {
		return ListPage{}, noSuchBucket()
	}
	keys := make([]string, 0, len(objects))
	for key := range objects {
		if key > cursor {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if len(keys) <= m.pageSize {
		return ListPage{Keys: keys}, nil
	}
	page := keys[:m.pageSize]
	return ListPage{Keys: page, NextCursor: page[len(page)-1], Truncated: true}, nil
}

func (m *memStore) DeleteObjects(_ context.Context, bucket string, keys []string) ([]DeleteError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var call []string
	if keys != nil {
		call = append(make([]string, 0, len(keys)), keys...)
	}
	m.deleteCalls = append(m.deleteCalls, call)
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}

	var failures []DeleteError
	for _, key := range keys {
		if reason, ok := m.deleteFailures[key]; ok {
			failures = append(failures, DeleteError{Key: key, Code: "AccessDenied", Message: reason})
			continue
		}
		delete(m.buckets[bucket], key)
	}
	return failures, nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) SendMessage(ctx context.Context, queueID, groupID, body string) (string, error) {
	args := m.Called(ctx, queueID, groupID, body)
	return args.String(0), args.Error(1)
}
