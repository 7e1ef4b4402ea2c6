// Package health implements the launcher's health manager: per-service
// reachability probing on an adaptive cadence, with failure debouncing.
package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
)

// probeFunc performs one reachability check.
type probeFunc func(ctx context.Context) error

// probeFor selects the probe for a definition, in priority order: custom
// lifecycle hook, HTTP against HealthURL, TCP against URL's host:port.
// Returns false if the definition exposes nothing to probe.
func probeFor(def *config.ServiceDefinition, cfg config.HealthManagerConfig) (probeFunc, bool) {
	if def.Lifecycle != nil {
		lifecycle := def.Lifecycle
		timeout := cfg.HTTPTimeout
		return func(ctx context.Context) error {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return lifecycle.CheckHealth(probeCtx)
		}, true
	}

	if def.HealthURL != "" {
		return httpProbe(def.HealthURL, cfg.HTTPTimeout), true
	}

	if def.URL != "" {
		addr, err := hostPort(def.URL)
		if err == nil {
			return tcpProbe(addr, cfg.TCPTimeout), true
		}
	}

	return nil, false
}

// httpProbe treats any response below 500 as reachable; a service that
// answers 4xx is up, just unhappy about the request.
func httpProbe(rawURL string, timeout time.Duration) probeFunc {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
		}
		return nil
	}
}

func tcpProbe(addr string, timeout time.Duration) probeFunc {
	return func(ctx context.Context) error {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// hostPort extracts host:port from a service URL, defaulting the port from
// the scheme.
func hostPort(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	port := parsed.Port()
	if port == "" {
		switch parsed.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}
