package provider

import (
	"context"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Provider is one upstream source of media for a command argument.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// Attempt returns the media bytes or an *Error.
	Attempt(ctx context.Context, arg string) (*Blob, error)
}

// DirectImage calls an image generator that answers with the image bytes.
// Responses whose content type is not image/* are rejected.
type DirectImage struct {
	URL     string
	Fetcher *Fetcher
}

func (p *DirectImage) Name() string { return "image-primary" }

func (p *DirectImage) Attempt(ctx context.Context, prompt string) (*Blob, error) {
	resp, err := p.Fetcher.Get(ctx, p.URL, map[string]string{
		"prompt":  prompt,
		"version": "flux",
		"size":    "1024x1024",
	})
	if err != nil {
		return nil, fail(err, "Primary image API error")
	}
	if !resp.OK() {
		return nil, fail(nil, "Primary image API failed (%d)", resp.Status)
	}
	if !strings.HasPrefix(resp.ContentType, "image/") {
		return nil, fail(nil, "Primary image API returned %q", resp.ContentType)
	}
	return &Blob{Data: resp.Body, ContentType: resp.ContentType}, nil
}

// HostedImageList calls a generator that answers {"images": [url, ...]} and
// downloads the first image.
type HostedImageList struct {
	URL     string
	Fetcher *Fetcher
}

func (p *HostedImageList) Name() string { return "image-fallback" }

func (p *HostedImageList) Attempt(ctx context.Context, prompt string) (*Blob, error) {
	resp, err := p.Fetcher.Get(ctx, p.URL, map[string]string{
		"prompt":     prompt,
		"image":      "1",
		"dimensions": "3:4",
		"safety":     "true",
	})
	if err != nil {
		return nil, fail(err, "Image generation failed")
	}
	if !resp.OK() {
		return nil, fail(nil, "Image generation failed (%d)", resp.Status)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, fail(nil, "Image generation failed")
	}
	images := gjson.GetBytes(resp.Body, "images")
	if !images.IsArray() || len(images.Array()) == 0 {
		return nil, fail(nil, "No images generated")
	}
	imageURL := images.Array()[0].String()
	if imageURL == "" {
		return nil, fail(nil, "No images generated")
	}

	img, err := p.Fetcher.Get(ctx, imageURL, nil)
	if err != nil {
		return nil, fail(err, "Image generation failed")
	}
	if !img.OK() {
		return nil, fail(nil, "Image fetch failed (%d)", img.Status)
	}
	return &Blob{Data: img.Body, ContentType: contentTypeOr(img.ContentType, "image/png")}, nil
}

// Speech calls a TTS metadata endpoint answering
// {"success": true, "result": {"audio_url": "..."}} and downloads the audio.
type Speech struct {
	URL     string
	Voice   string
	Fetcher *Fetcher
}

func (p *Speech) Name() string { return "tts" }

func (p *Speech) Attempt(ctx context.Context, text string) (*Blob, error) {
	voice := p.Voice
	if voice == "" {
		voice = "nova"
	}
	meta, err := p.Fetcher.Get(ctx, p.URL, map[string]string{"text": text, "voice": voice})
	if err != nil {
		return nil, fail(err, "TTS failed")
	}
	if !meta.OK() {
		return nil, fail(nil, "TTS failed (%d)", meta.Status)
	}

	audioURL := ""
	if gjson.ValidBytes(meta.Body) && gjson.GetBytes(meta.Body, "success").Bool() {
		audioURL = gjson.GetBytes(meta.Body, "result.audio_url").String()
	}
	if audioURL == "" {
		return nil, fail(nil, "TTS failed (bad response)")
	}

	audio, err := p.Fetcher.Get(ctx, audioURL, nil)
	if err != nil {
		return nil, fail(err, "TTS failed")
	}
	if !audio.OK() {
		return nil, fail(nil, "TTS failed (%d)", audio.Status)
	}
	return &Blob{Data: audio.Body, ContentType: contentTypeOr(audio.ContentType, "audio/wav")}, nil
}

// Reaction calls a keyed endpoint <BaseURL>/<Key> answering
// {"results": [{"url": "..."}]} and downloads the first image.
type Reaction struct {
	BaseURL string
	// Key is the endpoint path segment and the lowercase subject of error texts.
	Key string
	// Label is the capitalized subject of error texts; defaults to Key.
	Label string
	// DefaultMime is used when the image response has no content type.
	DefaultMime string
	Fetcher     *Fetcher
}

func (p *Reaction) Name() string { return "reaction-" + p.Key }

func (p *Reaction) Attempt(ctx context.Context, _ string) (*Blob, error) {
	label := p.Label
	if label == "" {
		label = p.Key
	}
	endpoint := strings.TrimRight(p.BaseURL, "/") + "/" + url.PathEscape(p.Key)

	resp, err := p.Fetcher.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, fail(err, "%s fetch failed", label)
	}
	if !resp.OK() {
		return nil, fail(nil, "%s API failed (%d)", label, resp.Status)
	}

	imageURL := ""
	if gjson.ValidBytes(resp.Body) {
		imageURL = gjson.GetBytes(resp.Body, "results.0.url").String()
	}
	if imageURL == "" {
		return nil, fail(nil, "No %s image found", p.Key)
	}

	img, err := p.Fetcher.Get(ctx, imageURL, nil)
	if err != nil {
		return nil, fail(err, "%s fetch failed", label)
	}
	if !img.OK() {
		return nil, fail(nil, "Failed to fetch %s image", p.Key)
	}
	return &Blob{Data: img.Body, ContentType: contentTypeOr(img.ContentType, contentTypeOr(p.DefaultMime, "image/gif"))}, nil
}
