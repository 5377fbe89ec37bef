package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	appconfig "github.com/saker-ai/chiku/internal/config"
	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/protocol"
	"github.com/saker-ai/chiku/internal/ws"
)

type resolverFunc func(context.Context, media.Request) media.Result

func (f resolverFunc) Resolve(ctx context.Context, req media.Request) media.Result {
	return f(ctx, req)
}

type recordingResolver struct {
	mu       sync.Mutex
	requests []media.Request
	result   media.Result
}

func (r *recordingResolver) Resolve(_ context.Context, req media.Request) media.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.result
}

func testConfig() appconfig.Config {
	return appconfig.Config{
		CORS: appconfig.CORSConfig{
			AllowOrigin:  "*",
			AllowHeaders: "authorization, x-client-info, apikey, content-type",
		},
		Persona: appconfig.Persona{Name: "Chiku"},
	}
}

func newTestRouter(t *testing.T, resolver media.Resolver) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	return NewRouter(testConfig(), resolver, ws.NewHandler(logger, resolver), logger)
}

func post(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestPreflight(t *testing.T) {
	router := newTestRouter(t, &recordingResolver{})
	for _, path := range []string{"/", "/chiku-commands"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Empty(t, rec.Body.String())
		assertCORS(t, rec)
	}
}

func TestCommandRoutesResolve(t *testing.T) {
	resolver := &recordingResolver{
		result: media.Success(media.NewPayload(media.KindImage, media.SubTypeGenerated, "image/png", []byte{1})),
	}
	router := newTestRouter(t, resolver)

	for _, path := range []string{"/", "/chiku-commands"} {
		rec := post(t, router, path, `{"command":"imagegen","prompt":"a cat"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assertCORS(t, rec)
		assert.JSONEq(t, `{"images":["data:image/png;base64,AQ=="]}`, rec.Body.String())
	}
	require.Len(t, resolver.requests, 2)
	assert.Equal(t, media.Request{Command: "imagegen", Argument: "a cat"}, resolver.requests[0])
}

func TestCommandErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		result media.Result
		status int
		body   string
	}{
		{"client", media.ClientError("Missing text"), http.StatusBadRequest, `{"error":"Missing text"}`},
		{"upstream", media.UpstreamError("TTS failed (bad response)"), http.StatusBadGateway, `{"error":"TTS failed (bad response)"}`},
		{"server", media.ServerError(), http.StatusInternalServerError, `{"error":"Server error"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, &recordingResolver{result: tc.result})
			rec := post(t, router, "/", `{"command":"tts","text":""}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
			assertCORS(t, rec)
		})
	}
}

func TestInvalidBodyIsServerError(t *testing.T) {
	resolver := &recordingResolver{}
	router := newTestRouter(t, resolver)
	rec := post(t, router, "/", `{not json`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Server error"}`, rec.Body.String())
	assert.Empty(t, resolver.requests)
}

func TestPanicKeepsCORS(t *testing.T) {
	router := newTestRouter(t, resolverFunc(func(context.Context, media.Request) media.Result {
		panic("boom")
	}))
	rec := post(t, router, "/", `{"command":"neko"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Server error"}`, rec.Body.String())
	assertCORS(t, rec)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &recordingResolver{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","persona":"Chiku","sessions":0}`, rec.Body.String())
}

func TestWebsocketCommandEchoesRequestID(t *testing.T) {
	resolver := &recordingResolver{
		result: media.Success(media.NewPayload(media.KindAudio, "tts", "audio/wav", []byte{1})),
	}
	ts := httptest.NewServer(newTestRouter(t, resolver))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(protocol.CommandRequest{Type: protocol.TypeCommand, Command: "tts", Text: "hello", RequestID: "req-1"}))
	var reply protocol.CommandResult
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, protocol.TypeCommand, reply.Type)
	assert.Equal(t, "req-1", reply.RequestID)
	assert.Equal(t, http.StatusOK, reply.Status)
	assert.Equal(t, "data:audio/wav;base64,AQ==", reply.AudioDataURL)

	require.NoError(t, conn.WriteJSON(protocol.CommandRequest{Type: protocol.TypeListCommands}))
	var list protocol.CommandList
	require.NoError(t, conn.ReadJSON(&list))
	assert.Len(t, list.Commands, 12)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{bad")))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	raw, _ := json.Marshal(frame)
	assert.JSONEq(t, `{"type":"error","message":"invalid json"}`, string(raw))
}
