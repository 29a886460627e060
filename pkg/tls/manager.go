// Package tls serves the calculator over HTTPS with either Let's Encrypt or
// certificate files from disk.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
)

var ErrLetsEncryptCert = errors.New("certificates are managed by Let's Encrypt")

// Settings mirrors the [TLS] section.
type Settings struct {
	Enabled       bool
	LetsEncrypt   bool
	Domain        string
	Email         string
	CacheDir      string
	CertFile      string
	KeyFile       string
	HTTPSPort     string
	ForceRedirect bool
}

// LoadSettings reads the [TLS] section of the global configuration.
func LoadSettings() Settings {
	return Settings{
		Enabled:       configuration.GetBool("TLS", "enable_tls", false),
		LetsEncrypt:   configuration.GetBool("TLS", "enable_letsencrypt", false),
		Domain:        configuration.GetString("TLS", "domain", ""),
		Email:         configuration.GetString("TLS", "letsencrypt_email", ""),
		CacheDir:      configuration.GetString("TLS", "cert_cache_dir", "certs"),
		CertFile:      configuration.GetString("TLS", "cert_file", "certs/server.crt"),
		KeyFile:       configuration.GetString("TLS", "key_file", "certs/server.key"),
		HTTPSPort:     configuration.GetString("TLS", "https_port", "8443"),
		ForceRedirect: configuration.GetBool("TLS", "force_https_redirect", false),
	}
}

// Validate checks that the settings describe a usable setup.
func (s Settings) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.LetsEncrypt {
		if strings.TrimSpace(s.Domain) == "" {
			return errors.New("domain is required when Let's Encrypt is enabled")
		}
		if strings.TrimSpace(s.Email) == "" {
			return errors.New("letsencrypt_email is required when Let's Encrypt is enabled")
		}
		return nil
	}
	if s.CertFile == "" || s.KeyFile == "" {
		return errors.New("cert_file and key_file are required for manual TLS")
	}
	return nil
}

// Manager builds the TLS configuration and the plain HTTP helper handler.
type Manager struct {
	settings Settings
	autocert *autocert.Manager
	config   *tls.Config
}

// NewManager validates settings and prepares certificates. A disabled
// configuration yields a manager whose Enabled reports false.
func NewManager(s Settings) (*Manager, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("TLS configuration: %w", err)
	}
	m := &Manager{settings: s}
	if !s.Enabled {
		return m, nil
	}
	if s.LetsEncrypt {
		if err := os.MkdirAll(s.CacheDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating certificate cache: %w", err)
		}
		m.autocert = &autocert.Manager{
			Cache:      autocert.DirCache(s.CacheDir),
			Prompt:     autocert.AcceptTOS,
			Email:      s.Email,
			HostPolicy: autocert.HostWhitelist(s.Domain, "www."+s.Domain),
		}
		m.config = m.autocert.TLSConfig()
		m.config.MinVersion = tls.VersionTLS12
		logger.Info(logger.AreaGeneral, "Let's Encrypt enabled for %s", s.Domain)
		return m, nil
	}

	cert, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading certificate %s: %w", s.CertFile, err)
	}
	m.config = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	logger.Info(logger.AreaGeneral, "TLS enabled with certificate %s", s.CertFile)
	return m, nil
}

// Enabled reports whether HTTPS should be served.
func (m *Manager) Enabled() bool { return m.settings.Enabled }

// Config returns the server TLS configuration, nil when disabled.
func (m *Manager) Config() *tls.Config { return m.config }

// HTTPSAddr is the listen address of the HTTPS server.
func (m *Manager) HTTPSAddr() string { return ":" + m.settings.HTTPSPort }

// HTTPHandler returns the handler for the plain HTTP port. With TLS enabled
// it answers ACME challenges and redirects to HTTPS when configured; other
// requests reach app.
func (m *Manager) HTTPHandler(app http.Handler) http.Handler {
	if !m.settings.Enabled {
		return app
	}
	h := app
	if m.settings.ForceRedirect {
		h = m.redirectHandler()
	}
	if m.autocert != nil {
		h = m.autocert.HTTPHandler(h)
	}
	return h
}

func (m *Manager) redirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		target := "https://" + host
		if m.settings.HTTPSPort != "443" {
			target += ":" + m.settings.HTTPSPort
		}
		target += r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

// GenerateSelfSigned writes a self-signed certificate for host to the
// configured cert and key files, valid for validFor.
func GenerateSelfSigned(s Settings, host string, validFor time.Duration) error {
	if s.LetsEncrypt {
		return ErrLetsEncryptCert
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}
	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"retrocalc"}, CommonName: host},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	if ip := net.ParseIP(host); ip != nil {
		tmpl.IPAddresses = []net.IP{ip}
	} else {
		tmpl.DNSNames = []string{host}
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("creating certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}

	if err := writePEM(s.CertFile, "CERTIFICATE", der, 0o644); err != nil {
		return err
	}
	if err := writePEM(s.KeyFile, "EC PRIVATE KEY", keyDER, 0o600); err != nil {
		return err
	}
	logger.Info(logger.AreaGeneral, "self-signed certificate for %s written to %s", host, s.CertFile)
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
