// Command healthcheck probes the relay's health endpoint from inside its
// container. It exits 0 when the relay reports status "ok".
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/api/v1/health", normalizeAddr(os.Getenv("RELAY_LISTEN_ADDR")))
	if err := probe(ctx, &http.Client{Timeout: 2 * time.Second}, url); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode health body: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("relay reported status %q", body.Status)
	}
	return nil
}

// normalizeAddr points the probe at loopback when the relay binds all
// interfaces, since the probe runs in the same network namespace.
func normalizeAddr(raw string) string {
	host, port, err := net.SplitHostPort(raw)
	if raw == "" || err != nil {
		return defaultAddr
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
