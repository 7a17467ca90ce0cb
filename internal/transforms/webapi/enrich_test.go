package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/transforms"
)

func newEnrichFn(t *testing.T, endpoint string) *EnrichFn {
	t.Helper()
	fn := NewEnrichFn(Config{
		Endpoint:          endpoint,
		RequestsPerSecond: 1000,
		Burst:             1000,
		MaxRetries:        2,
	})
	require.NoError(t, fn.StartBundle(context.Background()))
	return fn
}

func TestEnrichEmitsDecodedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("q")
		json.NewEncoder(w).Encode(map[string]string{"key": key, "status": "found"})
	}))
	defer server.Close()

	fn := newEnrichFn(t, server.URL+"?q=%s")

	var got []interface{}
	emit := func(v interface{}) { got = append(got, v) }
	require.NoError(t, fn.ProcessElement(context.Background(), "golang", emit))

	require.Len(t, got, 1)
	kv := got[0].(coders.KV)
	assert.Equal(t, "golang", kv.Key)
	body := kv.Value.(map[string]interface{})
	assert.Equal(t, "found", body["status"])
}

func TestEnrichCachesByKey(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	fn := newEnrichFn(t, server.URL+"?q=%s")
	emit := func(interface{}) {}

	for i := 0; i < 3; i++ {
		require.NoError(t, fn.ProcessElement(context.Background(), "same-key", emit))
	}
	require.NoError(t, fn.ProcessElement(context.Background(), "other-key", emit))

	assert.Equal(t, int64(2), hits.Load())
}

func TestEnrichRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	fn := newEnrichFn(t, server.URL+"?q=%s")

	var got []interface{}
	require.NoError(t, fn.ProcessElement(context.Background(), "flaky", func(v interface{}) { got = append(got, v) }))
	assert.Len(t, got, 1)
	assert.Equal(t, int64(3), hits.Load())
}

func TestEnrichDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fn := newEnrichFn(t, server.URL+"?q=%s")

	err := fn.ProcessElement(context.Background(), "missing", func(interface{}) {})
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestEnrichConfigure(t *testing.T) {
	dofn, err := transforms.NewDoFn(EnrichFnName)
	require.NoError(t, err)

	configurable, ok := dofn.(transforms.Configurable)
	require.True(t, ok)

	require.Error(t, configurable.Configure(json.RawMessage(`{}`)))
	require.NoError(t, configurable.Configure(json.RawMessage(`{"endpoint":"http://localhost:1234?q=%s"}`)))
}

func TestEnrichRejectsNonString(t *testing.T) {
	fn := newEnrichFn(t, "http://localhost:1234?q=%s")
	err := fn.ProcessElement(context.Background(), 7, func(interface{}) {})
	require.Error(t, err)
}
