package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xorcism-go/internal/config"
	"github.com/xorcism-go/internal/dao"
	"github.com/xorcism-go/internal/pipeline"
	"github.com/xorcism-go/internal/storage"
	"github.com/xorcism-go/internal/xorcism"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{Munger: config.MungerConfig{
		StageSize:    16,
		DefaultCodec: "none",
		MaxChunkSize: 1 << 10,
	}}
	keys := dao.NewKeyDAO(store, nil)
	sessions := dao.NewSessionDAO(store)

	kh := NewKeyHandler(keys)
	mh := NewMungeHandler(cfg, keys)
	sh := NewSessionHandler(cfg, keys, sessions)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/keys", kh.Create)
	api.GET("/keys", kh.List)
	api.GET("/keys/:name", kh.Get)
	api.DELETE("/keys/:name", kh.Delete)
	api.POST("/munge/:key", mh.Munge)
	api.POST("/sessions", sh.Create)
	api.GET("/sessions/:id", sh.Get)
	api.PUT("/sessions/:id", sh.Munge)
	api.DELETE("/sessions/:id", sh.Delete)
	return r
}

func do(r http.Handler, method, target string, body io.Reader, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createKey(t *testing.T, r http.Handler, name, source, material string) {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"source":%q,"material":%q}`, name, source, material)
	w := do(r, http.MethodPost, "/api/keys", strings.NewReader(body), "Content-Type", "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func mungeLocal(key string, pos uint64, data []byte) []byte {
	m, _ := xorcism.NewAt(key, pos)
	out := bytes.Clone(data)
	m.MungeInPlace(out)
	return out
}

func TestKeyRoutes(t *testing.T) {
	r := newTestRouter(t)
	createKey(t, r, "alpha", "raw", "secret")
	createKey(t, r, "beta", "hex", "0a0b")

	w := do(r, http.MethodGet, "/api/keys", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret", "material must not be listed")

	var list []keyView
	decodeData(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "hex", list[1].Source)

	w = do(r, http.MethodGet, "/api/keys/beta", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, "/api/keys/beta", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/api/keys/beta", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKeyCreateErrors(t *testing.T) {
	r := newTestRouter(t)
	createKey(t, r, "dup", "raw", "x")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"malformed", `{"name":`, http.StatusBadRequest},
		{"duplicate", `{"name":"dup","material":"y"}`, http.StatusConflict},
		{"bad name", `{"name":"has space","material":"y"}`, http.StatusBadRequest},
		{"empty material", `{"name":"e","material":""}`, http.StatusUnprocessableEntity},
		{"bad hex", `{"name":"h","source":"hex","material":"zz"}`, http.StatusUnprocessableEntity},
		{"unknown source", `{"name":"u","source":"rot13","material":"zz"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/keys", strings.NewReader(tt.body), "Content-Type", "application/json")
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestMungeRoute(t *testing.T) {
	r := newTestRouter(t)
	createKey(t, r, "k", "raw", "abc")
	data := []byte(strings.Repeat("stream me through the munger ", 10))

	w := do(r, http.MethodPost, "/api/munge/k", bytes.NewReader(data))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get(HeaderMungeOffset))
	assert.Equal(t, mungeLocal("abc", 0, data), w.Body.Bytes())

	// Munging the output again restores the input.
	w = do(r, http.MethodPost, "/api/munge/k", bytes.NewReader(w.Body.Bytes()))
	assert.Equal(t, data, w.Body.Bytes())
}

func TestMungeRouteOffset(t *testing.T) {
	r := newTestRouter(t)
	createKey(t, r, "k", "raw", "abcdefg")
	data := []byte("tail of a longer stream")

	w := do(r, http.MethodPost, "/api/munge/k?offset=5", bytes.NewReader(data))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get(HeaderMungeOffset))
	assert.Equal(t, mungeLocal("abcdefg", 5, data), w.Body.Bytes())

	w = do(r, http.MethodPost, "/api/munge/k", bytes.NewReader(data), "Range", "bytes=5-")
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 5-*/*", w.Header().Get("Content-Range"))
	assert.Equal(t, mungeLocal("abcdefg", 5, data), w.Body.Bytes())

	w = do(r, http.MethodPost, "/api/munge/k?offset=1", bytes.NewReader(data), "Range", "bytes=5-")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMungeRouteCodec(t *testing.T) {
	r := newTestRouter(t)
	createKey(t, r, "k", "passphrase", "correct horse")
	data := []byte(strings.Repeat("compress then munge ", 50))

	w := do(r, http.MethodPost, "/api/munge/k?codec=zstd", bytes.NewReader(data))
	require.Equal(t, http.StatusOK, w.Code)
	encoded := w.Body.Bytes()
	assert.Less(t, len(encoded), len(data))

	w = do(r, http.MethodPost, "/api/munge/k?codec=zstd&decode=true", bytes.NewReader(encoded))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, data, w.Body.Bytes())

	var local bytes.Buffer
	m, err := xorcism.NewFromSource(xorcism.SourcePassphrase, "correct horse", 0)
	require.NoError(t, err)
	_, err = pipeline.Decode(&local, bytes.NewReader(encoded), m, pipeline.CodecZstd)
	require.NoError(t, err)
	assert.Equal(t, data, local.Bytes())
}

func TestMungeRouteErrors(t *testing.T) {
	r := newTestRouter(t)
	createKey(t, r, "k", "raw", "abc")

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/munge/missing", strings.NewReader("x")).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/munge/k?codec=gzip", strings.NewReader("x")).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/munge/k?offset=-3", strings.NewReader("x")).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/munge/k?decode=yes", strings.NewReader("x")).Code)
}

// TestMungeRouteStreamsWholeBody sends bodies larger than the server's write
// buffer over a real HTTP/1.1 connection, so the response starts while the
// request is still being read.
func TestMungeRouteStreamsWholeBody(t *testing.T) {
	r := newTestRouter(t)
	createKey(t, r, "k", "raw", "duplex")

	ts := httptest.NewServer(r)
	defer ts.Close()

	for _, size := range []int{4 << 10, 100 << 10, 200 << 10} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			data := bytes.Repeat([]byte("0123456789abcdef"), size/16)

			resp, err := http.Post(ts.URL+"/api/munge/k", "application/octet-stream", bytes.NewReader(data))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			out, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Len(t, out, len(data))
			assert.Equal(t, mungeLocal("duplex", 0, data), out)
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	r := newTestRouter(t)
	createKey(t, r, "k", "raw", "session-key")

	w := do(r, http.MethodPost, "/api/sessions", strings.NewReader(`{"key":"k"}`), "Content-Type", "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s dao.Session
	decodeData(t, w, &s)
	require.NotEmpty(t, s.ID)

	data := []byte(strings.Repeat("0123456789", 30))
	var out []byte
	for _, size := range []int{3, 100, 1, 196} {
		chunk := data[len(out) : len(out)+size]
		w := do(r, http.MethodPut, "/api/sessions/"+s.ID, bytes.NewReader(chunk))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, fmt.Sprint(len(out)), w.Header().Get(HeaderMungeOffset))
		assert.Equal(t, fmt.Sprint(len(out)+size), w.Header().Get(HeaderMungePosition))
		out = append(out, w.Body.Bytes()...)
	}
	assert.Equal(t, mungeLocal("session-key", 0, data), out)

	w = do(r, http.MethodGet, "/api/sessions/"+s.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &s)
	assert.Equal(t, uint64(len(data)), s.Position)

	w = do(r, http.MethodDelete, "/api/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPut, "/api/sessions/"+s.ID, strings.NewReader("x"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionRouteErrors(t *testing.T) {
	r := newTestRouter(t)
	createKey(t, r, "k", "raw", "abc")

	w := do(r, http.MethodPost, "/api/sessions", strings.NewReader(`{"key":"nope"}`), "Content-Type", "application/json")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/sessions", strings.NewReader(`{"key":"k","position":7}`), "Content-Type", "application/json")
	require.Equal(t, http.StatusCreated, w.Code)
	var s dao.Session
	decodeData(t, w, &s)
	assert.Equal(t, uint64(7), s.Position)

	// Chunks above max_chunk_size are rejected and the position is kept.
	w = do(r, http.MethodPut, "/api/sessions/"+s.ID, bytes.NewReader(make([]byte, 2<<10)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/sessions/"+s.ID, nil)
	decodeData(t, w, &s)
	assert.Equal(t, uint64(7), s.Position)
}
