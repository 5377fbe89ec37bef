package chikuclient

import (
	"net/http"
	"time"
)

// DefaultPath is the command route of the backend.
const DefaultPath = "/chiku-commands"

// Config represents a client config.
type Config struct {
	// BaseURL is the backend origin, e.g. http://127.0.0.1:8787.
	BaseURL string
	// Path defaults to DefaultPath.
	Path      string
	UserAgent string
	// Timeout of zero means requests end only when their context does.
	Timeout    time.Duration
	HTTPClient *http.Client
}
