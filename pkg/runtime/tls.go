package runtime

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/chiku/internal/config"
)

const selfSignedLifetime = 365 * 24 * time.Hour

func serve(server *http.Server, ln net.Listener, cfg appconfig.Config, logger *zap.Logger) error {
	if cfg.TLSDisable {
		logger.Info("starting http server", zap.String("addr", ln.Addr().String()))
		return server.Serve(ln)
	}

	certPath := filepath.Clean(cfg.TLSCertPath)
	keyPath := filepath.Clean(cfg.TLSKeyPath)
	missing := missingFiles(certPath, keyPath)
	if len(missing) == 0 {
		logger.Info("starting https server", zap.String("addr", ln.Addr().String()))
		return server.ServeTLS(ln, certPath, keyPath)
	}
	if cfg.TLSRequired {
		logger.Warn("tls required but certs missing; using in-memory cert", zap.Strings("missing", missing))
	}

	cert, err := selfSignedCert(cfg.SystemConfig.Host, time.Now())
	if err != nil {
		return fmt.Errorf("generate tls cert: %w", err)
	}
	server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	logger.Info("starting https server with in-memory cert", zap.String("addr", ln.Addr().String()))
	return server.ServeTLS(ln, "", "")
}

func missingFiles(paths ...string) []string {
	var missing []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			missing = append(missing, path)
		}
	}
	return missing
}

// certSubjects lists the names a local certificate should cover: loopback,
// the configured host and every interface address.
func certSubjects(host string) ([]string, []net.IP) {
	names := []string{"localhost"}
	ips := []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
	seen := map[string]bool{}
	for _, ip := range ips {
		seen[ip.String()] = true
	}
	addIP := func(ip net.IP) {
		if ip == nil || ip.IsUnspecified() || seen[ip.String()] {
			return
		}
		seen[ip.String()] = true
		ips = append(ips, ip)
	}

	switch ip := net.ParseIP(host); {
	case host == "":
	case ip != nil:
		addIP(ip)
	case host != "localhost":
		names = append(names, host)
	}

	addrs, _ := net.InterfaceAddrs()
	for _, addr := range addrs {
		switch v := addr.(type) {
		case *net.IPNet:
			addIP(v.IP)
		case *net.IPAddr:
			addIP(v.IP)
		}
	}
	return names, ips
}

func selfSignedCert(host string, now time.Time) (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	names, ips := certSubjects(host)
	notBefore := now.Add(-time.Minute)
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "chiku-local", Organization: []string{"chiku"}},
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(selfSignedLifetime),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     names,
		IPAddresses:  ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	)
}
