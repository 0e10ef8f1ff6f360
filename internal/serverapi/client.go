package serverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smdworks/smdagent/internal/deviceconfig"
	"github.com/smdworks/smdagent/internal/logging"
)

const (
	// ConfigTimeout bounds configuration endpoint requests.
	ConfigTimeout = 5 * time.Second

	// HeartbeatTimeout bounds heartbeat requests.
	HeartbeatTimeout = 5 * time.Second

	// ContentTimeout bounds content requests. Content payloads are
	// larger and the server may render them on demand, so this is
	// deliberately longer than the config timeouts.
	ContentTimeout = 10 * time.Second
)

// UnknownConfigVersion is the sentinel a heartbeat yields when the
// server's config version could not be determined. Callers must treat it
// as "unknown, do not act".
const UnknownConfigVersion = -1

// ErrNotAssigned is returned by FetchContent when the server knows no
// assignment for this device (HTTP 404).
var ErrNotAssigned = NewHTTPError(http.StatusNotFound, "device not registered or not assigned")

// Client is the HTTP client for the ESL management server. All calls are
// synchronous and blocking; a call runs to completion or its fixed
// timeout. There is no retry here; the heartbeat loop's schedule is the
// retry cadence.
type Client struct {
	// BaseURL is the server base URL (e.g. "http://192.168.1.100:3001")
	BaseURL string

	// HTTPClient is the underlying HTTP client. Per-call timeouts are
	// applied via request contexts, not a client-wide deadline.
	HTTPClient *http.Client
}

// NewClient creates a client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// FetchDeviceConfig retrieves the config envelope for a device. It
// implements deviceconfig.Fetcher.
func (c *Client) FetchDeviceConfig(mac string) (*deviceconfig.Envelope, error) {
	url := fmt.Sprintf("%s/api/devices/mac/%s/config", c.BaseURL, mac)
	logging.Debug("Fetching device config", zap.String("url", url))

	body, err := c.get(url, ConfigTimeout)
	if err != nil {
		return nil, err
	}

	env, err := deviceconfig.ParseEnvelope(body)
	if err != nil {
		return nil, NewParseError("invalid config response", err)
	}
	return env, nil
}

// heartbeatResponse is the subset of the heartbeat reply the device
// cares about.
type heartbeatResponse struct {
	ConfigVersion *int `json:"config_version"`
}

// SendHeartbeat posts a device health report and returns the server's
// current config version. When the request fails or the response omits
// config_version, UnknownConfigVersion is returned.
func (c *Client) SendHeartbeat(report *HeartbeatReport) (int, error) {
	url := c.BaseURL + "/api/devices/heartbeat"

	payload, err := json.Marshal(report)
	if err != nil {
		return UnknownConfigVersion, NewParseError("failed to marshal heartbeat", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), HeartbeatTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return UnknownConfigVersion, NewNetworkError("failed to create heartbeat request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return UnknownConfigVersion, NewNetworkError("heartbeat request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return UnknownConfigVersion, NewHTTPError(resp.StatusCode, "heartbeat rejected")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return UnknownConfigVersion, NewNetworkError("failed to read heartbeat response", err)
	}

	var hr heartbeatResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return UnknownConfigVersion, NewParseError("invalid heartbeat response", err)
	}

	if hr.ConfigVersion == nil {
		logging.Debug("Heartbeat response carried no config_version")
		return UnknownConfigVersion, nil
	}
	return *hr.ConfigVersion, nil
}

// FetchContent retrieves the display content record for a device.
// Returns ErrNotAssigned when the server has no assignment for it.
func (c *Client) FetchContent(mac string) (*ContentData, error) {
	url := fmt.Sprintf("%s/api/smartprinter/mac/%s/data", c.BaseURL, mac)
	logging.Debug("Fetching display content", zap.String("url", url))

	body, err := c.get(url, ContentTimeout)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotAssigned
		}
		return nil, err
	}

	return ParseContentData(body)
}

// get performs a GET with the given timeout and returns the body of a
// 200 response. Non-200 statuses become HTTP errors.
func (c *Client) get(url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewNetworkError("failed to create request", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError("request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status for %s", url))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}
	return body, nil
}
