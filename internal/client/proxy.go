// ABOUTME: Optional SSH+SOCKS5 dialer for reaching a ledger behind a jumpbox
// ABOUTME: Accepts ssh+socks5://user@host:port?private-key=/path/to/key

package client

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	proxy "github.com/cloudfoundry/socks5-proxy"
)

// DialContextFunc matches net.Dialer.DialContext
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// NewSOCKS5DialContext parses allProxy and returns a dialer that tunnels
// through the SSH host. The SSH connection is established on first use.
func NewSOCKS5DialContext(allProxy string) (DialContextFunc, error) {
	allProxy = strings.TrimPrefix(allProxy, "ssh+")

	proxyURL, err := url.Parse(allProxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if proxyURL.Scheme != "socks5" {
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}

	username := ""
	if proxyURL.User != nil {
		username = proxyURL.User.Username()
	}

	keyPath := proxyURL.Query().Get("private-key")
	if keyPath == "" {
		return nil, fmt.Errorf("proxy URL missing required 'private-key' query param")
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key: %w", err)
	}

	socks5Proxy := proxy.NewSocks5Proxy(proxy.NewHostKey(), proxyLogger(), 1*time.Minute)

	var (
		dialer proxy.DialFunc
		mu     sync.Mutex
	)

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		mu.Lock()
		if dialer == nil {
			d, err := socks5Proxy.Dialer(username, string(key), proxyURL.Host)
			if err != nil {
				mu.Unlock()
				return nil, fmt.Errorf("error creating SOCKS5 dialer: %w", err)
			}
			dialer = d
		}
		d := dialer
		mu.Unlock()

		return d(network, address)
	}, nil
}

// proxyLogger adapts the proxy library's *log.Logger to slog. The default
// slog logger is looked up on every line so output follows logger.InitFile.
func proxyLogger() *log.Logger {
	return log.New(slogWriter{}, "", 0)
}

type slogWriter struct{}

func (slogWriter) Write(p []byte) (int, error) {
	slog.Debug(strings.TrimSpace(string(p)), "component", "socks5-proxy")
	return len(p), nil
}
