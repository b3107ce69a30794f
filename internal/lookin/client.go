// Package lookin is a client for the LOOKin Remote LAN REST API.
package lookin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/lookind/internal/confirm"
	"github.com/dokzlo13/lookind/internal/metrics"
)

// Client talks to a single device.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	confirm    confirm.Loop
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps the request rate to the device. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithConfirm sets the policy used by UpdateDevice.
func WithConfirm(loop confirm.Loop) Option {
	return func(c *Client) {
		c.confirm = loop
	}
}

// WithClock replaces the clock used for Updated stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client for the device at address ("192.168.1.20" or a
// full base URL).
func NewClient(address string, timeout time.Duration, opts ...Option) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	base := strings.TrimRight(address, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		confirm:    confirm.Loop{Op: "device update"},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Address returns the device base URL.
func (c *Client) Address() string {
	return c.baseURL
}

// endpoint reduces a path to a low-cardinality metric label.
func endpoint(path string) string {
	head, rest, _ := strings.Cut(path, "/")
	switch head {
	case "commands":
		proto, _, _ := strings.Cut(strings.TrimPrefix(rest, "ir/"), "/")
		return "commands/" + proto
	case "data":
		if rest == "" {
			return "data"
		}
		if strings.Contains(rest, "/") {
			return "data/function"
		}
		return "data/remote"
	default:
		return head
	}
}

// request performs one call. path must already be escaped.
func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	label := endpoint(path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.DeviceRequestDuration.WithLabelValues(method, label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DeviceRequestsTotal.WithLabelValues(method, label, "error").Inc()
		return nil, err
	}
	metrics.DeviceRequestsTotal.WithLabelValues(method, label, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("Device request")
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// do performs a call whose response body is ignored.
func (c *Client) do(ctx context.Context, method, path string, body any) error {
	resp, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) stamp() string {
	return strconv.FormatInt(c.now().Unix(), 10)
}

// Sensor reads sensors/<name>.
func (c *Client) Sensor(ctx context.Context, name string) (*SensorReading, error) {
	var r SensorReading
	if err := c.getJSON(ctx, "sensors/"+url.PathEscape(name), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SensorNames lists the sensors the device exposes.
func (c *Client) SensorNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, "sensors", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Device reads the device document.
func (c *Client) Device(ctx context.Context) (*Device, error) {
	var d Device
	if err := c.getJSON(ctx, "device", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDevice posts the settings and waits until the device reports them.
// The device applies settings slowly and sometimes drops them, so the post
// is repeated per the confirm policy.
func (c *Client) UpdateDevice(ctx context.Context, update DeviceUpdate) error {
	if len(update.fields()) == 0 {
		return nil
	}

	_, err := c.confirm.Run(ctx,
		func(ctx context.Context) error {
			return c.do(ctx, http.MethodPost, "device", update)
		},
		func(ctx context.Context) (bool, error) {
			d, err := c.Device(ctx)
			if err != nil {
				return false, err
			}
			return update.Applied(d), nil
		},
	)
	if err != nil {
		return fmt.Errorf("failed to set device parameters: %w", err)
	}

	log.Info().Interface("fields", update.fields()).Msg("Device parameters updated")
	return nil
}
