package httplog_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/edgelog/log"
	"go.jacobcolvin.com/edgelog/log/httplog"
	"go.jacobcolvin.com/edgelog/logtest"
)

// request is a captured POST.
type request struct {
	header http.Header
	method string
	url    string
	body   string
}

// recordingTransport answers every request with status and records it.
type recordingTransport struct {
	err      error
	requests []request
	mu       sync.Mutex
	status   int
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	rt.requests = append(rt.requests, request{
		header: req.Header.Clone(),
		method: req.Method,
		url:    req.URL.String(),
		body:   string(body),
	})
	rt.mu.Unlock()

	if rt.err != nil {
		return nil, rt.err
	}

	status := rt.status
	if status == 0 {
		status = http.StatusOK
	}

	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     http.Header{},
		Request:    req,
	}, nil
}

func (rt *recordingTransport) captured() []request {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	return append([]request(nil), rt.requests...)
}

func TestNew(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		name string
		url  string
		err  error
	}{
		"https": {
			name: "collector",
			url:  "https://logs.example.com/ingest",
		},
		"http with port": {
			name: "collector",
			url:  "http://127.0.0.1:8080/",
		},
		"relative": {
			name: "collector",
			url:  "/ingest",
			err:  log.ErrInvalidArgument,
		},
		"wrong scheme": {
			name: "collector",
			url:  "ftp://logs.example.com/",
			err:  log.ErrInvalidArgument,
		},
		"unparsable": {
			name: "collector",
			url:  "http://[::1",
			err:  log.ErrInvalidArgument,
		},
		"empty name": {
			name: "",
			url:  "https://logs.example.com/",
			err:  log.ErrInvalidArgument,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h, err := httplog.New(tc.name, tc.url)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.url, h.URL())
			assert.Equal(t, log.LevelNotSet, h.Level())
			assert.IsType(t, log.TextFormatter{}, h.Formatter())

			_, err = uuid.Parse(h.InstanceID())
			assert.NoError(t, err)
		})
	}
}

func TestDeliversOnePostPerRecord(t *testing.T) {
	t.Parallel()

	rt := &recordingTransport{}

	reg, diag := logtest.NewRegistry(t)
	logger := reg.GetLogger("tests.test_edge_logger")

	h, err := httplog.New("http_handler", "https://logs.example.com/ingest",
		httplog.WithClient(&http.Client{Transport: rt}),
		httplog.WithFormatter(log.JSONFormatter{}),
	)
	require.NoError(t, err)
	require.NoError(t, logger.AddHandler(h))

	require.NoError(t, logger.Error("the sky is falling", log.Fields{"city": "san francisco"}))

	reqs := rt.captured()
	require.Len(t, reqs, 1)

	req := reqs[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "https://logs.example.com/ingest", req.url)
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
	assert.Equal(t, h.InstanceID(), req.header.Get(httplog.HeaderInstanceID))

	var got map[string]any

	require.NoError(t, json.Unmarshal([]byte(req.body), &got))
	assert.Equal(t, "the sky is falling", got["message"])
	assert.Equal(t, "tests.test_edge_logger", got["name"])
	assert.Equal(t, "ERROR", got["level"])
	assert.Equal(t, "san francisco", got["city"])

	assert.Empty(t, diag.String())
}

func TestHeaders(t *testing.T) {
	t.Parallel()

	rt := &recordingTransport{}

	h, err := httplog.New("collector", "https://logs.example.com/",
		httplog.WithClient(&http.Client{Transport: rt}),
		httplog.WithHeader("Authorization", "Bearer secret"),
		httplog.WithHeaders(http.Header{"X-Tenant": {"a", "b"}}),
	)
	require.NoError(t, err)

	require.NoError(t, h.Emit(log.NewRecord("tests", log.LevelInfo, "hello", nil)))

	reqs := rt.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer secret", reqs[0].header.Get("Authorization"))
	assert.Equal(t, []string{"a", "b"}, reqs[0].header.Values("X-Tenant"))
	assert.Equal(t, "text/plain; charset=utf-8", reqs[0].header.Get("Content-Type"))
	assert.Equal(t, "hello", reqs[0].body)
}

func TestLevelGating(t *testing.T) {
	t.Parallel()

	rt := &recordingTransport{}

	reg, _ := logtest.NewRegistry(t)
	logger := reg.GetLogger("tests")

	h, err := httplog.New("collector", "https://logs.example.com/",
		httplog.WithClient(&http.Client{Transport: rt}),
		httplog.WithLevel(log.LevelError),
	)
	require.NoError(t, err)
	require.NoError(t, logger.AddHandler(h))

	require.NoError(t, logger.Warning("ignored"))
	assert.Empty(t, rt.captured())

	require.NoError(t, logger.SetHandlerLevel("collector", log.LevelWarning))
	require.NoError(t, logger.Warning("sent"))
	assert.Len(t, rt.captured(), 1)
}

func TestTransportFailureIsNotReturned(t *testing.T) {
	t.Parallel()

	rt := &recordingTransport{err: errors.New("connection refused")}

	reg, diag := logtest.NewRegistry(t)
	logger := reg.GetLogger("tests")

	h, err := httplog.New("collector", "https://logs.example.com/",
		httplog.WithClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)
	require.NoError(t, logger.AddHandler(h))

	buf := logtest.Attach(t, logger, "buffer_handler")

	require.NoError(t, logger.Error("still logged"))
	assert.Equal(t, "still logged", buf.String())

	err = h.Emit(log.NewRecord("tests", log.LevelError, "direct", nil))
	require.ErrorIs(t, err, log.ErrDelivery)
	assert.ErrorContains(t, err, "connection refused")

	lines := diag.Lines()
	require.Len(t, lines, 1)

	var report map[string]any

	require.NoError(t, json.Unmarshal([]byte(lines[0]), &report))
	assert.Equal(t, "collector", report["handler"])
	assert.Contains(t, report["error"], "connection refused")
}

func TestServerStatus(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		status int
		fail   bool
	}{
		"ok":         {status: http.StatusOK},
		"accepted":   {status: http.StatusAccepted},
		"no content": {status: http.StatusNoContent},
		"server err": {status: http.StatusInternalServerError, fail: true},
		"forbidden":  {status: http.StatusForbidden, fail: true},
		"redirect":   {status: http.StatusNotModified, fail: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var (
				mu     sync.Mutex
				bodies []string
			)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, err := io.ReadAll(r.Body)
				if err != nil {
					w.WriteHeader(http.StatusBadRequest)

					return
				}

				mu.Lock()
				bodies = append(bodies, string(b))
				mu.Unlock()

				w.WriteHeader(tc.status)
			}))
			t.Cleanup(srv.Close)

			h, err := httplog.New("collector", srv.URL, httplog.WithClient(srv.Client()))
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, h.Close()) })

			err = h.Emit(log.NewRecord("tests", log.LevelInfo, "status %d", nil, tc.status))
			if tc.fail {
				require.ErrorIs(t, err, log.ErrDelivery)
				assert.ErrorContains(t, err, "HTTP")
			} else {
				require.NoError(t, err)
			}

			mu.Lock()
			defer mu.Unlock()

			require.Len(t, bodies, 1)
			assert.Contains(t, bodies[0], "status")
		})
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	h, err := httplog.New("collector", srv.URL,
		httplog.WithClient(srv.Client()),
		httplog.WithTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	err = h.Emit(log.NewRecord("tests", log.LevelInfo, "slow", nil))
	require.ErrorIs(t, err, log.ErrDelivery)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSerializationErrorIsReturned(t *testing.T) {
	t.Parallel()

	rt := &recordingTransport{}

	reg, diag := logtest.NewRegistry(t)
	logger := reg.GetLogger("tests")

	h, err := httplog.New("collector", "https://logs.example.com/",
		httplog.WithClient(&http.Client{Transport: rt}),
		httplog.WithFormatter(log.JSONFormatter{}),
	)
	require.NoError(t, err)
	require.NoError(t, logger.AddHandler(h))

	err = logger.Info("bad", log.Fields{"fn": func() {}})
	require.ErrorIs(t, err, log.ErrSerialization)
	assert.Empty(t, rt.captured())
	assert.Empty(t, diag.String())
}

func TestAsyncDelivery(t *testing.T) {
	t.Parallel()

	rt := &recordingTransport{}

	h, err := httplog.New("collector", "https://logs.example.com/",
		httplog.WithClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)

	async, err := log.NewAsyncHandler(h, log.WithQueueSize(16))
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, async.Emit(log.NewRecord("tests", log.LevelInfo, "queued", nil)))
	}

	require.NoError(t, async.Close())
	assert.Len(t, rt.captured(), 5)
	assert.Zero(t, async.Dropped())
}
