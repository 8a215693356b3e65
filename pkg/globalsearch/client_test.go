package globalsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/livefield/pkg/core"
)

const fieldsJSON = `[
	{"ID": 1, "Name": "Plain", "Type": "CHARACTER", "ExtendedConfig": {"LiveField": null}},
	{"ID": 2, "Name": "Total", "Type": "CHARACTER", "Position": 4,
	 "List": {"Type": null, "ListId": 3, "Primary": 0, "Secondary": 0, "Mapping": [], "Cascade": true},
	 "ExtendedConfig": {"LiveField": {"Method": "GET", "Url": "", "Headers": {}, "JsonPath": "", "Script": "return 1;", "Body": null,
	  "Timeout": 30, "RunOnIndex": true}}}
]`

type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	lastPut  map[string]any
	lastPost map[string]any
	deleted  []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/licenses", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"Token": "tok-123"}`)
	})
	mux.HandleFunc("GET /api/admin", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("function") != "version" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, `"6.3.188.0"`)
	})
	mux.HandleFunc("GET /api/admin/databases/9/fields", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, fieldsJSON)
	})
	mux.HandleFunc("GET /api/admin/databases/9/fields/{id}", func(w http.ResponseWriter, r *http.Request) {
		var all []json.RawMessage
		_ = json.Unmarshal([]byte(fieldsJSON), &all)
		switch r.PathValue("id") {
		case "1":
			w.Write([]byte("[" + string(all[0]) + "]"))
		case "2":
			w.Write([]byte("[" + string(all[1]) + "]"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("PUT /api/admin/databases/9/fields/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fs.mu.Lock()
		fs.lastPut = body
		fs.mu.Unlock()
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("POST /api/admin/databases/9/fields", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["Name"] == "Total" {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"Message": "A field with that name already exists"}`)
			return
		}
		fs.mu.Lock()
		fs.lastPost = body
		fs.mu.Unlock()
		body["ID"] = 77
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("DELETE /api/admin/databases/9/fields/{id}", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.deleted = append(fs.deleted, r.PathValue("id"))
		fs.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestClient(url string) *Client {
	return New(url+"/", 9,
		WithCredentials("admin", "secret"),
		WithRateLimit(0, 0),
		WithRetry(3, time.Millisecond),
	)
}

func TestClient_TokenAndVersion(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(srv.URL)
	ctx := context.Background()

	token, err := c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6.3.188.0", v)
}

func TestClient_BadCredentials(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(srv.URL)
	c.Password = "wrong"

	_, err := c.Token(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClient_LiveFields(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(srv.URL)

	all, err := c.Fields(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	live, err := c.LiveFields(context.Background())
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "Total", live[0].Name)
}

func TestClient_FieldNotFound(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(srv.URL)

	_, err := c.Field(context.Background(), 404)
	assert.ErrorIs(t, err, core.ErrFieldNotFound)
}

func TestClient_UpdateLiveField(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(srv.URL)

	err := c.UpdateLiveField(context.Background(), 2, "return 2;\n", core.Mapping{
		ID:       2,
		Name:     "Total",
		Method:   "POST",
		URL:      "https://example.test",
		Headers:  map[string]string{"X-Key": "k"},
		JSONPath: "$.v",
	})
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.NotNil(t, srv.lastPut)
	assert.EqualValues(t, 4, srv.lastPut["Position"], "unknown members must survive the round trip")

	lf := srv.lastPut["ExtendedConfig"].(map[string]any)["LiveField"].(map[string]any)
	assert.Equal(t, "return 2;\n", lf["Script"])
	assert.Equal(t, "POST", lf["Method"])
	assert.Equal(t, "https://example.test", lf["Url"])
	assert.Equal(t, "$.v", lf["JsonPath"])
	assert.EqualValues(t, 30, lf["Timeout"])
	assert.Equal(t, true, lf["RunOnIndex"])

	list := srv.lastPut["List"].(map[string]any)
	assert.EqualValues(t, 3, list["ListId"])
	assert.Equal(t, true, list["Cascade"])
}

func TestClient_UpdateNotLive(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(srv.URL)

	err := c.UpdateLiveField(context.Background(), 1, "return 1;", core.Mapping{})
	assert.ErrorIs(t, err, core.ErrNotLive)
}

func TestClient_CreateLiveField(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(srv.URL)

	f, err := c.CreateLiveField(context.Background(), "Score", "line1\nline2")
	require.NoError(t, err)
	assert.Equal(t, 77, f.ID)
	assert.Equal(t, "Score", f.Name)

	srv.mu.Lock()
	lf := srv.lastPost["ExtendedConfig"].(map[string]any)["LiveField"].(map[string]any)
	srv.mu.Unlock()
	assert.Equal(t, "line1\nline2", lf["Script"])

	_, err = c.CreateLiveField(context.Background(), "Total", "x")
	assert.ErrorIs(t, err, core.ErrFieldExists)
}

func TestClient_DeleteField(t *testing.T) {
	srv := newFakeServer(t)
	c := newTestClient(srv.URL)

	require.NoError(t, c.DeleteField(context.Background(), 2))
	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"2"}, srv.deleted)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"Token": "late"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	token, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", token)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, strings.Repeat("x", 300))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Token(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, strings.HasSuffix(apiErr.Error(), "..."))
}

func TestClient_DoesNotRetryCreate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreateLiveField(context.Background(), "Total", "return 1;")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusGatewayTimeout, apiErr.Status)
	assert.NotErrorIs(t, err, core.ErrFieldExists)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_RateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `{"Token": "t"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, 9, WithRateLimit(2, 1), WithRetry(1, time.Millisecond))

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := c.Token(context.Background())
		require.NoError(t, err)
	}
	// One token up front, then one every 500ms.
	assert.GreaterOrEqual(t, time.Since(start), 1400*time.Millisecond)
	assert.EqualValues(t, 4, calls.Load())
}

func TestClient_DefaultRateLimitHonoursDeadline(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `{"Token": "t"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, 9, WithRetry(1, time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var err error
	for i := 0; i < 8 && err == nil; i++ {
		_, err = c.Token(ctx)
	}
	require.Error(t, err)
	// The default burst of five goes through; the next call would wait past the deadline.
	assert.EqualValues(t, 5, calls.Load())
}
