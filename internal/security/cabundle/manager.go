// Package cabundle keeps a CA bundle for TLS connections to the search
// engine in memory and reloads it when the file changes.
package cabundle

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platformbuilds/countgate/pkg/logger"
)

// Manager serves the certificate pool built from an optional CA bundle file.
type Manager struct {
	path   string
	logger logger.Logger

	mu   sync.RWMutex
	pool *x509.CertPool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewManager loads the bundle at path and starts watching it. An empty path
// yields a Manager that trusts the system roots only.
func NewManager(path string, log logger.Logger) (*Manager, error) {
	mgr := &Manager{logger: log}
	if path == "" {
		return mgr, nil
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolve CA bundle path: %w", err)
	}
	mgr.path = abs

	if err := mgr.reload(); err != nil {
		return nil, fmt.Errorf("load CA bundle %s: %w", abs, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create CA bundle watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch directory %s: %w", filepath.Dir(abs), err)
	}
	mgr.watcher = watcher
	mgr.stopCh = make(chan struct{})
	mgr.doneCh = make(chan struct{})

	go mgr.watchLoop()
	log.Info("CA bundle loaded", "path", abs)
	return mgr, nil
}

// RootCAs returns the current pool, or nil when no bundle is configured.
func (m *Manager) RootCAs() *x509.CertPool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool
}

// TLSConfig returns a client configuration that verifies the server against
// the pool current at handshake time, so a reloaded bundle applies to new
// connections without rebuilding the HTTP transport.
func (m *Manager) TLSConfig(skipVerify bool) *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if skipVerify {
		cfg.InsecureSkipVerify = true
		return cfg
	}
	if m.path == "" {
		return cfg
	}

	// Standard verification is replaced by VerifyConnection below.
	cfg.InsecureSkipVerify = true
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("server presented no certificate")
		}
		opts := x509.VerifyOptions{
			DNSName:       cs.ServerName,
			Roots:         m.RootCAs(),
			Intermediates: x509.NewCertPool(),
		}
		for _, c := range cs.PeerCertificates[1:] {
			opts.Intermediates.AddCert(c)
		}
		_, err := cs.PeerCertificates[0].Verify(opts)
		return err
	}
	return cfg
}

// ForceReload re-reads the bundle immediately.
func (m *Manager) ForceReload() error {
	if m.path == "" {
		return nil
	}
	return m.reload()
}

// Close stops the watcher.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	close(m.stopCh)
	err := m.watcher.Close()
	<-m.doneCh
	return err
}

func (m *Manager) watchLoop() {
	defer close(m.doneCh)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != m.path {
				continue
			}
			if err := m.reloadWithRetries(); err != nil {
				m.logger.Warn("CA bundle reload failed; keeping previous pool", "path", m.path, "error", err)
				continue
			}
			m.logger.Info("CA bundle reloaded", "path", m.path)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("CA bundle watcher error", "error", err)
		case <-m.stopCh:
			return
		}
	}
}

// reloadWithRetries tolerates a file that is still being written.
func (m *Manager) reloadWithRetries() error {
	const (
		attempts = 5
		delay    = 200 * time.Millisecond
	)

	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = m.reload(); lastErr == nil {
			return nil
		}
		time.Sleep(delay)
	}
	return lastErr
}

func (m *Manager) reload() error {
	pool, err := loadBundle(m.path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.pool = pool
	m.mu.Unlock()
	return nil
}

var (
	errInvalidPEMData       = errors.New("invalid PEM data in CA bundle")
	errUnexpectedPEMBlock   = errors.New("unexpected PEM block type")
	errNoCertificatesInPool = errors.New("no certificates found in CA bundle")
)

// loadBundle returns the system roots plus every certificate in the file.
func loadBundle(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	added := 0
	for rest := data; len(bytes.TrimSpace(rest)) > 0; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, errInvalidPEMData
		}
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%w: %s", errUnexpectedPEMBlock, block.Type)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		pool.AddCert(cert)
		added++
	}

	if added == 0 {
		return nil, errNoCertificatesInPool
	}
	return pool, nil
}
