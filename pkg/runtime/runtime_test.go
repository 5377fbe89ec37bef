package runtime

import (
	"context"
	"crypto/x509"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	appconfig "github.com/saker-ai/chiku/internal/config"
)

func TestServeAndShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := appconfig.Config{TLSDisable: true, HTTPAddr: "127.0.0.1:0"}
	srv := NewWithConfig(cfg, zaptest.NewLogger(t))
	require.NotNil(t, srv.Proxy())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errCh)
}

func TestNilServer(t *testing.T) {
	var srv *Server
	assert.NoError(t, srv.Run())
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.Empty(t, srv.Addr())
	assert.Nil(t, srv.Handler())
}

func TestSelfSignedCertCoversLoopback(t *testing.T) {
	cert, err := selfSignedCert("chiku.local", time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, leaf.DNSNames, "localhost")
	assert.Contains(t, leaf.DNSNames, "chiku.local")
	assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))
	assert.Equal(t, "chiku-local", leaf.Subject.CommonName)
}

func TestCertSubjectsSkipsUnspecified(t *testing.T) {
	names, ips := certSubjects("0.0.0.0")
	assert.Equal(t, []string{"localhost"}, names)
	for _, ip := range ips {
		assert.False(t, ip.IsUnspecified())
	}
}

func TestMissingFiles(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "server.crt")
	require.NoError(t, os.WriteFile(cert, []byte("x"), 0o600))
	key := filepath.Join(dir, "server.key")

	assert.Equal(t, []string{key}, missingFiles(cert, key))
	assert.Equal(t, []string{dir}, missingFiles(dir))
}
