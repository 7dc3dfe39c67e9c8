package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tailspan/tailspan/pkg/demo/bindings"
	"go.uber.org/zap"
)

type fakeKVCache struct {
	values map[string]string
}

func (c *fakeKVCache) Get(ctx context.Context, key string) (string, error) {
	value, found := c.values[key]
	if !found {
		return "", bindings.ErrKeyNotFound
	}
	return value, nil
}

func (c *fakeKVCache) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.values[key] = value
	return nil
}

type fakeSQLStore struct {
	rows []map[string]interface{}
}

func (s *fakeSQLStore) Execute(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	return 0, nil
}

func (s *fakeSQLStore) Query(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	return s.rows, nil
}

type fakeDocStore struct {
	documents []map[string]interface{}
}

func (d *fakeDocStore) Put(ctx context.Context, index string, id string, document map[string]interface{}) error {
	d.documents = append(d.documents, document)
	return nil
}

func (d *fakeDocStore) List(ctx context.Context, index string, size int) ([]map[string]interface{}, error) {
	return d.documents, nil
}

type fakeQueue struct {
	published [][]byte
}

func (q *fakeQueue) Publish(ctx context.Context, subject string, body []byte) error {
	q.published = append(q.published, body)
	return nil
}

func (q *fakeQueue) Consume(subject string, handler func(body []byte) error) (func() error, error) {
	return func() error { return nil }, nil
}

type fakeFetcher struct{}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (int, []byte, error) {
	return http.StatusOK, nil, nil
}

func newTestWorker(cache *fakeKVCache, store *fakeSQLStore, docs *fakeDocStore, queue *fakeQueue) *OrderWorkerImpl {
	return NewOrderWorkerImpl(cache, store, docs, queue, &fakeFetcher{}, "", zap.NewNop())
}

func TestOrderWorkerImpl_ServeHTTP(t *testing.T) {
	t.Run("Serves an order from the store and caches it", func(t *testing.T) {
		cache := &fakeKVCache{values: map[string]string{}}
		store := &fakeSQLStore{rows: []map[string]interface{}{
			{"id": "7", "customer": "ada", "total_cents": 1200, "status": "shipped"},
		}}
		docs := &fakeDocStore{}
		queue := &fakeQueue{}
		worker := newTestWorker(cache, store, docs, queue)

		recorder := httptest.NewRecorder()
		worker.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/orders?order=7", nil))

		require.Equal(t, http.StatusOK, recorder.Code)
		var summary map[string]interface{}
		require.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &summary))
		assert.Equal(t, "ada", summary["customer"])
		assert.NotEmpty(t, cache.values["7"])
		assert.Len(t, docs.documents, 1)
		assert.Equal(t, [][]byte{[]byte("7")}, queue.published)
	})

	t.Run("Serves an order from the cache without touching the store", func(t *testing.T) {
		cache := &fakeKVCache{values: map[string]string{
			"7": `{"id":"7","customer":"ada"}`,
		}}
		store := &fakeSQLStore{}
		worker := newTestWorker(cache, store, &fakeDocStore{}, &fakeQueue{})

		recorder := httptest.NewRecorder()
		worker.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/orders?order=7", nil))

		require.Equal(t, http.StatusOK, recorder.Code)
		var summary map[string]interface{}
		require.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &summary))
		assert.Equal(t, "ada", summary["customer"])
	})

	t.Run("Rejects requests without an order parameter", func(t *testing.T) {
		worker := newTestWorker(&fakeKVCache{values: map[string]string{}}, &fakeSQLStore{}, &fakeDocStore{}, &fakeQueue{})
		recorder := httptest.NewRecorder()
		worker.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/orders", nil))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Returns a server error for unknown orders", func(t *testing.T) {
		worker := newTestWorker(&fakeKVCache{values: map[string]string{}}, &fakeSQLStore{}, &fakeDocStore{}, &fakeQueue{})
		recorder := httptest.NewRecorder()
		worker.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/orders?order=404", nil))
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}
