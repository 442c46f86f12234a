package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mahirjain10/object-pipeline/internal/chaos"
	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
)

func newDelete(store BlobStore, injector chaos.Injector) (*DeleteStage, *tracetest.SpanRecorder) {
	recorder, sr := newTestRecorder(types.StageDelete)
	return NewDeleteStage(testConfig(), store, injector, recorder), sr
}

func seedKeys(store *memStore, bucket string, n int) []string {
	keys := make([]string, 0, n)
	for i := range n {
		key := fmt.Sprintf("%013d", 1792315800000+i)
		store.seed(bucket, key, []byte(createdObject))
		keys = append(keys, key)
	}
	return keys
}

func TestDeleteStage(t *testing.T) {
	t.Run("purges three objects across pages with one batch delete", func(t *testing.T) {
		store := newMemStore("in")
		store.pageSize = 2
		keys := seedKeys(store, "in", 3)
		stage, spans := newDelete(store, chaos.Never)

		outcome := stage.Handle(context.Background())

		assert.True(t, outcome.Success)
		assert.Equal(t, "in", outcome.Bucket)
		assert.Equal(t, 2, store.lists)
		assert.Equal(t, []string{"", keys[1]}, store.listCursors)
		require.Len(t, store.deleteCalls, 1)
		assert.Equal(t, keys, store.deleteCalls[0])
		assert.Empty(t, store.keys("in"))

		event := outcomeEvent(t, spans)
		assert.True(t, event[telemetry.AttrIsSuccessful].AsBool())
		assert.Equal(t, int64(3), event["objects.deleted"].AsInt64())
		assert.Equal(t, int64(0), event["objects.failed"].AsInt64())
		assert.Equal(t, []string{"S3.ListObjects", "S3.DeleteObjects", telemetry.InvocationSpanName}, spanNames(spans))
	})

	t.Run("lists ceil(total/pageSize) times", func(t *testing.T) {
		cases := []struct {
			total, pageSize, lists int
		}{
			{total: 1, pageSize: 3, lists: 1},
			{total: 3, pageSize: 3, lists: 1},
			{total: 4, pageSize: 3, lists: 2},
			{total: 9, pageSize: 3, lists: 3},
			{total: 10, pageSize: 3, lists: 4},
			{total: 25, pageSize: 1, lists: 25},
		}

		for _, tc := range cases {
			t.Run(fmt.Sprintf("%d objects, %d per page", tc.total, tc.pageSize), func(t *testing.T) {
				store := newMemStore("in")
				store.pageSize = tc.pageSize
				keys := seedKeys(store, "in", tc.total)
				stage, _ := newDelete(store, chaos.Never)

				outcome := stage.Handle(context.Background())

				assert.True(t, outcome.Success)
				assert.Equal(t, tc.lists, store.lists)
				require.Len(t, store.deleteCalls, 1)
				assert.Equal(t, keys, store.deleteCalls[0])
			})
		}
	})

	t.Run("empty bucket issues one empty batch delete", func(t *testing.T) {
		store := newMemStore("in")
		stage, _ := newDelete(store, chaos.Never)

		outcome := stage.Handle(context.Background())

		assert.True(t, outcome.Success)
		assert.Equal(t, 1, store.lists)
		require.Len(t, store.deleteCalls, 1)
		assert.NotNil(t, store.deleteCalls[0])
		assert.Empty(t, store.deleteCalls[0])
	})

	t.Run("duplicate keys across pages are deleted once", func(t *testing.T) {
		store := newMemStore("in")
		store.script = []ListPage{
			{Keys: []string{"a", "b"}, NextCursor: "b", Truncated: true},
			{Keys: []string{"b", "c"}, NextCursor: "c", Truncated: true},
			{Keys: []string{"c"}},
		}
		stage, _ := newDelete(store, chaos.Never)

		outcome := stage.Handle(context.Background())

		assert.True(t, outcome.Success)
		assert.Equal(t, []string{"", "b", "c"}, store.listCursors)
		require.Len(t, store.deleteCalls, 1)
		assert.Equal(t, []string{"a", "b", "c"}, store.deleteCalls[0])
	})

	t.Run("truncated page without cursor fails the listing", func(t *testing.T) {
		store := newMemStore("in")
		store.script = []ListPage{{Keys: []string{"a"}, Truncated: true}}
		stage, _ := newDelete(store, chaos.Never)

		outcome := stage.Handle(context.Background())

		assert.False(t, outcome.Success)
		assert.Equal(t, KindStorageList.String(), outcome.ErrorKind)
		assert.Equal(t, 1, store.lists)
		assert.Empty(t, store.deleteCalls)
	})

	t.Run("listing failure fails the invocation", func(t *testing.T) {
		store := newMemStore("in")
		seedKeys(store, "in", 2)
		stage, spans := newDelete(store, chaos.Always)

		outcome := stage.Handle(context.Background())

		assert.False(t, outcome.Success)
		assert.Equal(t, KindStorageList.String(), outcome.ErrorKind)
		assert.Equal(t, chaos.WrongBucketName, outcome.Bucket)
		assert.Empty(t, store.deleteCalls)
		assert.Len(t, store.keys("in"), 2)
		assert.False(t, outcomeEvent(t, spans)[telemetry.AttrIsSuccessful].AsBool())
	})

	t.Run("per-object failures are logged, not fatal", func(t *testing.T) {
		store := newMemStore("in")
		keys := seedKeys(store, "in", 3)
		store.deleteFailures[keys[1]] = "Access Denied"
		stage, spans := newDelete(store, chaos.Never)

		outcome := stage.Handle(context.Background())

		assert.True(t, outcome.Success)
		assert.Equal(t, []string{keys[1]}, store.keys("in"))
		event := outcomeEvent(t, spans)
		assert.Equal(t, int64(2), event["objects.deleted"].AsInt64())
		assert.Equal(t, int64(1), event["objects.failed"].AsInt64())
	})

	t.Run("batch delete failure is not fatal", func(t *testing.T) {
		store := newMemStore("in")
		seedKeys(store, "in", 2)
		store.deleteErr = errors.New("connection reset by peer")
		stage, spans := newDelete(store, chaos.Never)

		outcome := stage.Handle(context.Background())

		assert.True(t, outcome.Success)
		assert.Equal(t, int64(2), outcomeEvent(t, spans)["objects.failed"].AsInt64())
	})

	t.Run("asks chaos with the delete rate", func(t *testing.T) {
		var rates []int
		injector := chaos.Func(func(rate int) bool {
			rates = append(rates, rate)
			return false
		})
		stage, _ := newDelete(newMemStore("in"), injector)

		stage.Handle(context.Background())

		assert.Equal(t, []int{chaos.DeleteRate}, rates)
	})
}
