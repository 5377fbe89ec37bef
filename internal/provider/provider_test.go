package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFetcher() *Fetcher {
	return NewFetcher(FetcherOptions{UserAgent: "chiku-test"})
}

func requireMessage(t *testing.T, err error, want string) {
	t.Helper()
	var perr *Error
	require.True(t, errors.As(err, &perr), "error %T is not *provider.Error", err)
	assert.Equal(t, want, perr.Message)
}

func TestDirectImageAcceptsImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a cat", r.URL.Query().Get("prompt"))
		assert.Equal(t, "flux", r.URL.Query().Get("version"))
		assert.Equal(t, "1024x1024", r.URL.Query().Get("size"))
		assert.Equal(t, "chiku-test", r.UserAgent())
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpegbytes"))
	}))
	defer ts.Close()

	p := &DirectImage{URL: ts.URL, Fetcher: newFetcher()}
	blob, err := p.Attempt(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", blob.ContentType)
	assert.Equal(t, "jpegbytes", string(blob.Data))
}

func TestDirectImageRejectsNonImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"busy"}`))
	}))
	defer ts.Close()

	p := &DirectImage{URL: ts.URL, Fetcher: newFetcher()}
	_, err := p.Attempt(context.Background(), "a cat")
	require.Error(t, err)
}

func TestDirectImageRejectsStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := &DirectImage{URL: ts.URL, Fetcher: newFetcher()}
	_, err := p.Attempt(context.Background(), "a cat")
	requireMessage(t, err, "Primary image API failed (500)")
}

func TestHostedImageListFetchesFirstURL(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3:4", r.URL.Query().Get("dimensions"))
		assert.Equal(t, "true", r.URL.Query().Get("safety"))
		_, _ = w.Write([]byte(`{"images":["` + ts.URL + `/1.png","` + ts.URL + `/2.png"]}`))
	})
	mux.HandleFunc("/1.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("first"))
	})

	p := &HostedImageList{URL: ts.URL + "/generate", Fetcher: newFetcher()}
	blob, err := p.Attempt(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, "first", string(blob.Data))
	assert.Equal(t, "image/webp", blob.ContentType)
}

func TestHostedImageListErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "status", status: http.StatusServiceUnavailable, body: "down", want: "Image generation failed (503)"},
		{name: "empty", status: http.StatusOK, body: `{"images":[]}`, want: "No images generated"},
		{name: "missing", status: http.StatusOK, body: `{}`, want: "No images generated"},
		{name: "garbage", status: http.StatusOK, body: `not json`, want: "Image generation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			p := &HostedImageList{URL: ts.URL, Fetcher: newFetcher()}
			_, err := p.Attempt(context.Background(), "a cat")
			requireMessage(t, err, tt.want)
		})
	}
}

func TestSpeech(t *testing.T) {
	var audioHits atomic.Int32
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	mux.HandleFunc("/tts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nova", r.URL.Query().Get("voice"))
		switch r.URL.Query().Get("text") {
		case "ok":
			_, _ = w.Write([]byte(`{"success":true,"result":{"audio_url":"` + ts.URL + `/audio"}}`))
		case "nourl":
			_, _ = w.Write([]byte(`{"success":true,"result":{}}`))
		case "false":
			_, _ = w.Write([]byte(`{"success":false,"result":{"audio_url":"` + ts.URL + `/audio"}}`))
		case "broken":
			_, _ = w.Write([]byte(`{"success":true,"result":{"audio_url":"` + ts.URL + `/missing"}}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	})
	mux.HandleFunc("/audio", func(w http.ResponseWriter, r *http.Request) {
		audioHits.Add(1)
		_, _ = w.Write([]byte("RIFF"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	p := &Speech{URL: ts.URL + "/tts", Fetcher: newFetcher()}

	blob, err := p.Attempt(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(blob.Data))
	assert.NotEmpty(t, blob.ContentType)

	_, err = p.Attempt(context.Background(), "nourl")
	requireMessage(t, err, "TTS failed (bad response)")

	_, err = p.Attempt(context.Background(), "false")
	requireMessage(t, err, "TTS failed (bad response)")
	assert.Equal(t, int32(1), audioHits.Load())

	_, err = p.Attempt(context.Background(), "broken")
	requireMessage(t, err, "TTS failed (404)")

	_, err = p.Attempt(context.Background(), "limited")
	requireMessage(t, err, "TTS failed (429)")
}

func TestSpeechUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	p := &Speech{URL: url, Fetcher: newFetcher()}
	_, err := p.Attempt(context.Background(), "hello")
	requireMessage(t, err, "TTS failed")
}

func TestReaction(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	mux.HandleFunc("/api/v2/hug", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"url":"` + ts.URL + `/hug.gif","anime_name":"x"}]}`))
	})
	mux.HandleFunc("/hug.gif", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "")
		_, _ = w.Write([]byte("GIF89a"))
	})
	mux.HandleFunc("/api/v2/pat", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	mux.HandleFunc("/api/v2/neko", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/v2/kiss", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"url":"` + ts.URL + `/gone.gif"}]}`))
	})

	base := ts.URL + "/api/v2/"
	hug := &Reaction{BaseURL: base, Key: "hug", Fetcher: newFetcher()}
	blob, err := hug.Attempt(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(blob.Data))

	pat := &Reaction{BaseURL: base, Key: "pat", Fetcher: newFetcher()}
	_, err = pat.Attempt(context.Background(), "")
	requireMessage(t, err, "No pat image found")

	neko := &Reaction{BaseURL: base, Key: "neko", Label: "Neko", DefaultMime: "image/png", Fetcher: newFetcher()}
	_, err = neko.Attempt(context.Background(), "")
	requireMessage(t, err, "Neko API failed (500)")

	kiss := &Reaction{BaseURL: base, Key: "kiss", Fetcher: newFetcher()}
	_, err = kiss.Attempt(context.Background(), "")
	requireMessage(t, err, "Failed to fetch kiss image")
}

func TestFetcherHonorsContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newFetcher().Get(ctx, ts.URL, nil)
	require.Error(t, err)
}
