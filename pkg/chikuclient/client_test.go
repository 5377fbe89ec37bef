package chikuclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	appconfig "github.com/saker-ai/chiku/internal/config"
	apphttp "github.com/saker-ai/chiku/internal/http"
	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/ws"
)

type tableResolver map[string]media.Result

func (t tableResolver) Resolve(_ context.Context, req media.Request) media.Result {
	if result, ok := t[req.Command+":"+req.Argument]; ok {
		return result
	}
	return media.ClientError("Unknown command")
}

func newBackend(t *testing.T, resolver media.Resolver) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	cfg := appconfig.Config{CORS: appconfig.CORSConfig{AllowOrigin: "*"}}
	ts := httptest.NewServer(apphttp.NewRouter(cfg, resolver, ws.NewHandler(logger, resolver), logger))
	t.Cleanup(ts.Close)
	return ts
}

func backendTable() tableResolver {
	return tableResolver{
		"imagegen:a cat": media.Success(media.NewPayload(media.KindImage, media.SubTypeGenerated, "image/png", []byte("png"))),
		"tts:hello":      media.Success(media.NewPayload(media.KindAudio, "tts", "audio/wav", []byte("wav"))),
		"hug:":           media.Success(media.NewPayload(media.KindImage, "hug", "image/gif", []byte("gif"))),
		"imagegen:":      media.ClientError("Missing prompt"),
		"neko:":          media.UpstreamError("Neko API failed (503)"),
	}
}

func TestClientResolve(t *testing.T) {
	ts := newBackend(t, backendTable())
	client := New(Config{BaseURL: ts.URL + "/"}, zaptest.NewLogger(t))
	ctx := context.Background()

	image := client.Resolve(ctx, media.Request{Command: "imagegen", Argument: "a cat"})
	require.True(t, image.OK(), image.Message())
	payload, _ := image.Payload()
	assert.Equal(t, media.KindImage, payload.Kind)
	assert.Equal(t, media.SubTypeGenerated, payload.SubType)
	assert.Equal(t, "image/png", payload.MimeType)
	assert.Equal(t, 3, payload.Size)

	audio := client.Resolve(ctx, media.Request{Command: "tts", Argument: "hello"})
	payload, _ = audio.Payload()
	assert.Equal(t, media.KindAudio, payload.Kind)

	hug := client.Resolve(ctx, media.Request{Command: "hug"})
	payload, _ = hug.Payload()
	assert.Equal(t, "hug", payload.SubType)

	missing := client.Resolve(ctx, media.Request{Command: "imagegen"})
	assert.Equal(t, media.ClassClient, missing.Class())
	assert.Equal(t, "Missing prompt", missing.Message())

	upstream := client.Resolve(ctx, media.Request{Command: "neko"})
	assert.Equal(t, media.ClassUpstream, upstream.Class())
	assert.Equal(t, "Neko API failed (503)", upstream.Message())
}

func TestClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client := New(Config{BaseURL: url, Timeout: time.Second}, zaptest.NewLogger(t))
	result := client.Resolve(context.Background(), media.Request{Command: "neko"})
	assert.Equal(t, media.ClassServer, result.Class())
	assert.Error(t, client.Health(context.Background()))
}

func TestClientCommandsAndHealth(t *testing.T) {
	ts := newBackend(t, backendTable())
	client := New(Config{BaseURL: ts.URL}, zaptest.NewLogger(t))

	require.NoError(t, client.Health(context.Background()))
	commands, err := client.Commands(context.Background())
	require.NoError(t, err)
	require.Len(t, commands, 12)
	assert.Equal(t, "tts", commands[1].ID)
}

func TestStreamResolvesConcurrently(t *testing.T) {
	ts := newBackend(t, backendTable())
	stream, err := Dial(context.Background(), Config{BaseURL: ts.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	requests := []media.Request{
		{Command: "imagegen", Argument: "a cat"},
		{Command: "tts", Argument: "hello"},
		{Command: "hug"},
		{Command: "neko"},
	}
	results := make([]media.Result, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = stream.Resolve(ctx, req)
		}()
	}
	wg.Wait()

	assert.True(t, results[0].OK())
	payload, _ := results[1].Payload()
	assert.Equal(t, media.KindAudio, payload.Kind)
	payload, _ = results[2].Payload()
	assert.Equal(t, "hug", payload.SubType)
	assert.Equal(t, media.ClassUpstream, results[3].Class())
}

func TestStreamClosed(t *testing.T) {
	ts := newBackend(t, backendTable())
	stream, err := Dial(context.Background(), Config{BaseURL: ts.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	result := stream.Resolve(context.Background(), media.Request{Command: "hug"})
	assert.Equal(t, media.ClassServer, result.Class())
}

func TestStreamURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:8787":  "ws://127.0.0.1:8787/ws",
		"https://chiku.example/": "wss://chiku.example/ws",
		"ws://host:1/ws":         "ws://host:1/ws",
		"ws://host:1":            "ws://host:1/ws",
	}
	for in, want := range cases {
		got, err := streamURL(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := streamURL("ftp://host")
	assert.Error(t, err)
}
