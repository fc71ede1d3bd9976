package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mint-desk/pkg/models"
	"mint-desk/pkg/store"
)

// fakeRTDB serves a single collection the way the REST API does.
type fakeRTDB struct {
	mu    sync.Mutex
	next  int
	nodes map[string]map[string]any
	auth  []string
}

func newFakeRTDB() *fakeRTDB {
	return &fakeRTDB{nodes: map[string]map[string]any{}}
}

func (f *fakeRTDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.auth = append(f.auth, r.URL.Query().Get("auth"))
	f.mu.Unlock()

	p := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")
	parts := strings.Split(p, "/")

	switch {
	case r.Method == http.MethodGet && r.Header.Get("Accept") == "text/event-stream":
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: put\ndata: {\"path\":\"/\",\"data\":null}\n\n")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "event: keep-alive\ndata: null\n\n")
		fmt.Fprint(w, "event: patch\ndata: {\"path\":\"/x\",\"data\":{}}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	case r.Method == http.MethodPost && len(parts) == 1:
		var rec map[string]any
		_ = json.NewDecoder(r.Body).Decode(&rec)
		f.mu.Lock()
		key := fmt.Sprintf("-N%04d", f.next)
		f.next++
		f.nodes[key] = rec
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"name": key})
	case r.Method == http.MethodGet && len(parts) == 1:
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.nodes) == 0 {
			_, _ = io.WriteString(w, "null")
			return
		}
		_ = json.NewEncoder(w).Encode(f.nodes)
	case r.Method == http.MethodGet && len(parts) == 2:
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.nodes[parts[1]]; !ok {
			_, _ = io.WriteString(w, "null")
			return
		}
		_, _ = io.WriteString(w, "true")
	case r.Method == http.MethodPatch && len(parts) == 2:
		var fields map[string]any
		_ = json.NewDecoder(r.Body).Decode(&fields)
		f.mu.Lock()
		node := f.nodes[parts[1]]
		if node == nil {
			node = map[string]any{}
			f.nodes[parts[1]] = node
		}
		for k, v := range fields {
			node[k] = v
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(fields)
	default:
		http.Error(w, `{"error":"unsupported"}`, http.StatusBadRequest)
	}
}

func newTestClient(t *testing.T) (Client, *fakeRTDB) {
	t.Helper()
	fake := newFakeRTDB()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", srv.Client(), zap.NewNop()), fake
}

func TestAppendAndReadAll(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	entries, err := c.ReadAll(ctx, "mint-requests")
	require.NoError(t, err)
	assert.Empty(t, entries)

	k1, err := c.Append(ctx, "mint-requests", models.SubmissionRecord{Email: "a@x.com", TokenID: "0"})
	require.NoError(t, err)
	k2, err := c.Append(ctx, "mint-requests", models.SubmissionRecord{Email: "b@x.com", TokenID: "1"})
	require.NoError(t, err)

	entries, err = c.ReadAll(ctx, "mint-requests")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, k1, entries[0].Key)
	assert.Equal(t, k2, entries[1].Key)
	assert.Equal(t, "b@x.com", entries[1].Record.Email)

	for _, a := range fake.auth {
		assert.Equal(t, "secret", a)
	}
}

func TestPatchMissingRecord(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	err := c.Patch(ctx, "mint-requests", "-Nmissing", map[string]any{"status": "confirmed"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, fake.nodes, "a missing record must not be created")

	key, err := c.Append(ctx, "mint-requests", models.SubmissionRecord{Status: models.StatusPending})
	require.NoError(t, err)
	require.NoError(t, c.Patch(ctx, "mint-requests", key, map[string]any{"status": "confirmed"}))

	entries, err := c.ReadAll(ctx, "mint-requests")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", entries[0].Record.Status)
}

func TestErrorStatusIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Permission denied"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client(), zap.NewNop())
	_, err := c.ReadAll(context.Background(), "mint-requests")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Permission denied")
}

func TestSubscribeStream(t *testing.T) {
	c, _ := newTestClient(t)

	fired := make(chan struct{}, 4)
	unsubscribe, err := c.Subscribe(context.Background(), "mint-requests", func() { fired <- struct{}{} })
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected change %d", i+1)
		}
	}
	unsubscribe()
}

func TestDecodeCollectionSortsKeys(t *testing.T) {
	entries, err := decodeCollection([]byte(`{"-Nb":{"tokenId":"2"},"-Na":{"tokenId":"1"}}`))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].Record.TokenID)
}

func TestDecodeCollectionToleratesMixedTokenIDs(t *testing.T) {
	body := `{"-a":{"tokenId":"1"},"-b":{"tokenId":2},"-c":{"tokenId":null},"-d":{"tokenId":"legacy"}}`
	entries, err := decodeCollection([]byte(body))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "1", entries[0].Record.TokenID)
	assert.Equal(t, "2", entries[1].Record.TokenID)
	assert.Equal(t, "", entries[2].Record.TokenID)
	assert.Equal(t, "legacy", entries[3].Record.TokenID)
}
