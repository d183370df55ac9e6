// Package switchbot is a client for the SwitchBot v1.1 cloud API: device
// discovery, hub sensor reads, and infrared command transmission.
package switchbot

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/lox/nightbreeze/internal/httputil"
	"github.com/lox/nightbreeze/internal/metrics"
)

const defaultBaseURL = "https://api.switch-bot.com/v1.1"

// statusOK is the API-level success code carried inside a 200 response.
const statusOK = 100

// ErrStatusUnavailable marks a device that cannot report state. Infrared-only
// remotes routinely hit this; callers must treat it as a normal outcome.
var ErrStatusUnavailable = errors.New("switchbot: device status unavailable")

type Client struct {
	token   string
	secret  string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func New(token, secret string) *Client {
	return &Client{
		token:   token,
		secret:  secret,
		baseURL: defaultBaseURL,
		client:  httputil.NewClient(),
		now:     time.Now,
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// Configured reports whether credentials are present.
func (c *Client) Configured() bool { return c.token != "" && c.secret != "" }

// Token returns the configured API token (for diagnostics output).
func (c *Client) Token() string { return c.token }

// Secret returns the configured API secret (for diagnostics output).
func (c *Client) Secret() string { return c.secret }

// sign produces the v1.1 request signature: base64(HMAC-SHA256(secret,
// token+t+nonce)) with t in epoch milliseconds.
func (c *Client) sign(nonce string, t int64) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(c.token + strconv.FormatInt(t, 10) + nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) headers() http.Header {
	nonce := uuid.NewString()
	t := c.now().UnixMilli()

	h := http.Header{}
	h.Set("Authorization", c.token)
	h.Set("sign", c.sign(nonce, t))
	h.Set("nonce", nonce)
	h.Set("t", strconv.FormatInt(t, 10))
	h.Set("Content-Type", "application/json")
	return h
}

// envelope is the fixed response wrapper on every endpoint.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

// get performs a signed GET with retry on transient failures. Reads are
// idempotent, so backoff is safe here; command posts never retry.
func (c *Client) get(ctx context.Context, path string) (*envelope, error) {
	var env *envelope

	operation := func() error {
		e, err := c.doOnce(ctx, http.MethodGet, path, nil)
		if err != nil {
			var he *httpError
			if errors.As(err, &he) && he.retryable() {
				return err
			}
			return backoff.Permanent(err)
		}
		env = e
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 45 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return env, nil
}

// post performs a signed POST exactly once. Commands are side effects with no
// rollback, so a failure is reported rather than retried.
func (c *Client) post(ctx context.Context, path string, body any) (*envelope, error) {
	return c.doOnce(ctx, http.MethodPost, path, body)
}

type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("switchbot: status %d: %s", e.status, e.body)
}

func (e *httpError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any) (*envelope, error) {
	start := time.Now()

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = c.headers()

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.SwitchBotAPICallsTotal.WithLabelValues(path, "error").Inc()
		return nil, fmt.Errorf("switchbot: %w", err)
	}
	defer resp.Body.Close()

	metrics.SwitchBotAPILatency.WithLabelValues(path).Observe(time.Since(start).Seconds())

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.SwitchBotAPICallsTotal.WithLabelValues(path, "error").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.SwitchBotAPICallsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()
		return nil, &httpError{status: resp.StatusCode, body: string(data)}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		metrics.SwitchBotAPICallsTotal.WithLabelValues(path, "error").Inc()
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	metrics.SwitchBotAPICallsTotal.WithLabelValues(path, "ok").Inc()
	return &env, nil
}

// Device is a physical SwitchBot device (hubs, meters).
type Device struct {
	DeviceID    string `json:"deviceId"`
	DeviceName  string `json:"deviceName"`
	DeviceType  string `json:"deviceType"`
	HubDeviceID string `json:"hubDeviceId"`
}

// InfraredRemote is a learned IR remote relayed through a hub.
type InfraredRemote struct {
	DeviceID    string `json:"deviceId"`
	DeviceName  string `json:"deviceName"`
	RemoteType  string `json:"remoteType"`
	HubDeviceID string `json:"hubDeviceId"`
}

// DeviceList is the account's device inventory.
type DeviceList struct {
	DeviceList         []Device         `json:"deviceList"`
	InfraredRemoteList []InfraredRemote `json:"infraredRemoteList"`
}

// Devices returns all devices on the account, including infrared remotes.
func (c *Client) Devices(ctx context.Context) (*DeviceList, error) {
	env, err := c.get(ctx, "/devices")
	if err != nil {
		return nil, err
	}
	if env.StatusCode != statusOK {
		return nil, fmt.Errorf("switchbot: list devices: %s (code %d)", env.Message, env.StatusCode)
	}

	var list DeviceList
	if err := json.Unmarshal(env.Body, &list); err != nil {
		return nil, fmt.Errorf("unmarshal device list: %w", err)
	}
	return &list, nil
}

// DeviceStatus fetches raw status for a device. ErrStatusUnavailable is
// returned when the API answers without a usable body.
func (c *Client) DeviceStatus(ctx context.Context, deviceID string) (json.RawMessage, error) {
	env, err := c.get(ctx, "/devices/"+deviceID+"/status")
	if err != nil {
		return nil, err
	}
	if env.StatusCode != statusOK {
		return nil, fmt.Errorf("%w: %s (code %d)", ErrStatusUnavailable, env.Message, env.StatusCode)
	}
	if len(env.Body) == 0 || string(env.Body) == "{}" || string(env.Body) == "null" {
		return nil, ErrStatusUnavailable
	}
	return env.Body, nil
}

// SendCommand transmits one command to a device. At most one IR transmission
// results; there is no retry and no rollback.
func (c *Client) SendCommand(ctx context.Context, deviceID, command, parameter string) error {
	if parameter == "" {
		parameter = "default"
	}
	env, err := c.post(ctx, "/devices/"+deviceID+"/commands", map[string]string{
		"command":     command,
		"parameter":   parameter,
		"commandType": "command",
	})
	if err != nil {
		return err
	}
	if env.StatusCode != statusOK {
		return fmt.Errorf("switchbot: command %s: %s (code %d)", command, env.Message, env.StatusCode)
	}
	return nil
}
