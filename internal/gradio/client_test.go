package gradio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpace 模拟一个 Gradio 5 Space（带 /gradio_api 前缀）
type fakeSpace struct {
	t      *testing.T
	prefix string
	// stream 返回给 GET /call/<name>/<id> 的 SSE 正文
	stream string

	mu        sync.Mutex
	calls     []map[string]any
	uploads   map[string][]byte
	authSeen  []string
	eventName string
}

func newFakeSpace(t *testing.T, stream string) (*fakeSpace, *httptest.Server) {
	t.Helper()
	fs := &fakeSpace{t: t, prefix: "/gradio_api", stream: stream, uploads: map[string][]byte{}}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (f *fakeSpace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/config":
		_ = json.NewEncoder(w).Encode(map[string]any{"api_prefix": f.prefix, "version": "5.9.1"})

	case r.Method == http.MethodPost && r.URL.Path == f.prefix+"/upload":
		file, header, err := r.FormFile("files")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		serverPath := "/tmp/gradio/abc/" + header.Filename
		f.mu.Lock()
		f.uploads[serverPath] = data
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode([]string{serverPath})

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, f.prefix+"/call/"):
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		f.mu.Lock()
		f.calls = append(f.calls, body)
		f.eventName = strings.TrimPrefix(r.URL.Path, f.prefix+"/call/")
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"event_id": "evt-1"})

	case r.Method == http.MethodGet && r.URL.Path == f.prefix+"/call/predict/evt-1":
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, f.stream)

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, token string) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), Config{Src: srv.URL + "/", HFToken: token})
	require.NoError(t, err)
	return c
}

func TestNewClient_URLSource(t *testing.T) {
	_, srv := newFakeSpace(t, "")
	c := newTestClient(t, srv, "")

	assert.Equal(t, srv.URL, c.Root())
	assert.Equal(t, "/gradio_api", c.apiPrefix)
	assert.NoError(t, c.Close())
}

func TestNewClient_ResolvesSpaceID(t *testing.T) {
	_, space := newFakeSpace(t, "")

	var gotPath, gotAuth string
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"subdomain": "owner-room", "host": space.URL})
	}))
	defer hub.Close()

	c, err := NewClient(context.Background(), Config{Src: "Owner/room", HFToken: "hf_x", HubURL: hub.URL})
	require.NoError(t, err)

	assert.Equal(t, "/api/spaces/Owner/room/host", gotPath)
	assert.Equal(t, "Bearer hf_x", gotAuth)
	assert.Equal(t, space.URL, c.Root())
}

func TestNewClient_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(hub string) Config
		want string
	}{
		{name: "empty src", cfg: func(string) Config { return Config{} }, want: "src is required"},
		{name: "bad space id", cfg: func(string) Config { return Config{Src: "no-slash"} }, want: "invalid gradio space id"},
		{name: "unknown space", cfg: func(hub string) Config { return Config{Src: "owner/missing", HubURL: hub} }, want: "status 404"},
	}

	hub := httptest.NewServer(http.NotFoundHandler())
	defer hub.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), tt.cfg(hub.URL))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPredict_TextOnly(t *testing.T) {
	stream := "event: heartbeat\ndata: null\n\n" +
		"event: generating\ndata: [\"partial\"]\n\n" +
		"event: complete\ndata: [\"https://cdn.example/room.png\"]\n\n"
	fs, srv := newFakeSpace(t, stream)
	c := newTestClient(t, srv, "hf_secret")

	result, err := c.Predict(context.Background(), "/predict", "Dragon blowing fire")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/room.png", result)
	require.Len(t, fs.calls, 1)
	assert.Equal(t, []any{"Dragon blowing fire"}, fs.calls[0]["data"])
	assert.Equal(t, "predict", fs.eventName)
	for _, auth := range fs.authSeen {
		assert.Equal(t, "Bearer hf_secret", auth)
	}
}

func TestPredict_UploadsLocalFile(t *testing.T) {
	stream := "event: complete\n" +
		`data: [{"path": "/tmp/gradio/out/result.webp", "url": null, "orig_name": "result.webp", "meta": {"_type": "gradio.FileData"}}]` +
		"\n\n"
	fs, srv := newFakeSpace(t, stream)
	c := newTestClient(t, srv, "")

	local := filepath.Join(t.TempDir(), "room.png")
	require.NoError(t, os.WriteFile(local, []byte("png-bytes"), 0600))

	result, err := c.Predict(context.Background(), "predict", HandleFile(local), "add plants")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/gradio_api/file=/tmp/gradio/out/result.webp", result)
	assert.Equal(t, []byte("png-bytes"), fs.uploads["/tmp/gradio/abc/room.png"])

	require.Len(t, fs.calls, 1)
	args := fs.calls[0]["data"].([]any)
	require.Len(t, args, 2)
	file := args[0].(map[string]any)
	assert.Equal(t, "/tmp/gradio/abc/room.png", file["path"])
	assert.Equal(t, "room.png", file["orig_name"])
	assert.Equal(t, "gradio.FileData", file["meta"].(map[string]any)["_type"])
	assert.Equal(t, "add plants", args[1])
}

func TestPredict_URLFileRefIsNotUploaded(t *testing.T) {
	stream := "event: complete\ndata: [\"ok\", 2]\n\n"
	fs, srv := newFakeSpace(t, stream)
	c := newTestClient(t, srv, "")

	result, err := c.Predict(context.Background(), "/predict", HandleFile("https://bucket.example/up/a.jpg?sig=1"), "x")
	require.NoError(t, err)

	assert.Equal(t, []any{"ok", float64(2)}, result)
	assert.Empty(t, fs.uploads)
	file := fs.calls[0]["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "https://bucket.example/up/a.jpg?sig=1", file["url"])
	assert.Equal(t, "a.jpg", file["orig_name"])
}

func TestPredict_FlattensNestedFileData(t *testing.T) {
	stream := "event: complete\n" +
		`data: [[{"image": {"path": "x.png", "url": "https://s/x.png", "orig_name": "x.png"}, "caption": null}]]` +
		"\n\n"
	_, srv := newFakeSpace(t, stream)
	c := newTestClient(t, srv, "")

	result, err := c.Predict(context.Background(), "/predict", "p")
	require.NoError(t, err)

	assert.Equal(t, []any{map[string]any{"image": "https://s/x.png", "caption": nil}}, result)
}

func TestPredict_ErrorEvent(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{name: "null payload", stream: "event: error\ndata: null\n\n", want: "without details"},
		{name: "string payload", stream: "event: error\ndata: \"CUDA out of memory\"\n\n", want: "CUDA out of memory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newFakeSpace(t, tt.stream)
			c := newTestClient(t, srv, "")

			_, err := c.Predict(context.Background(), "/predict", "p")
			var remote *RemoteError
			require.True(t, errors.As(err, &remote), "got %v", err)
			assert.Contains(t, remote.Message, tt.want)
		})
	}
}

func TestPredict_StreamEndsWithoutResult(t *testing.T) {
	_, srv := newFakeSpace(t, "event: generating\ndata: []\n")
	c := newTestClient(t, srv, "")

	_, err := c.Predict(context.Background(), "/predict", "p")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestPredict_NonSuccessStatus(t *testing.T) {
	_, srv := newFakeSpace(t, "")
	c := newTestClient(t, srv, "")

	_, err := c.Predict(context.Background(), "/does-not-exist/evt", "p")
	require.Error(t, err)

	var status *StatusError
	require.True(t, errors.As(err, &status), "got %v", err)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
}

func TestPredict_MissingLocalFile(t *testing.T) {
	_, srv := newFakeSpace(t, "")
	c := newTestClient(t, srv, "")

	_, err := c.Predict(context.Background(), "/predict", HandleFile(filepath.Join(t.TempDir(), "gone.png")), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload gone.png")
}

func TestPredict_EmptyAPIName(t *testing.T) {
	_, srv := newFakeSpace(t, "")
	c := newTestClient(t, srv, "")

	_, err := c.Predict(context.Background(), "/", "p")
	assert.EqualError(t, err, "gradio api name is required")
}

func TestHandleEvent_MultilineData(t *testing.T) {
	outputs, done, err := handleEvent("complete", strings.Join([]string{"[", `"a",`, `"b"`, "]"}, "\n"))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []any{"a", "b"}, outputs)

	_, done, err = handleEvent("heartbeat", "null")
	assert.NoError(t, err)
	assert.False(t, done)
}

func TestFileRef(t *testing.T) {
	assert.True(t, HandleFile("https://x/y/z.png").IsURL())
	assert.Equal(t, "z.png", HandleFile("https://x/y/z.png?a=b").Name())
	assert.False(t, HandleFile("/tmp/a.png").IsURL())
	assert.Equal(t, "a.png", HandleFile("/tmp/a.png").Name())
}

func TestIsFileData(t *testing.T) {
	tests := []struct {
		in   map[string]any
		want bool
	}{
		{map[string]any{"path": "a", "meta": map[string]any{"_type": "gradio.FileData"}}, true},
		{map[string]any{"path": "a", "url": nil, "orig_name": "a"}, true},
		{map[string]any{"path": "a"}, false},
		{map[string]any{"image": "a"}, false},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.want, isFileData(tt.in), fmt.Sprint(i))
	}
}
