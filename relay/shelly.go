package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Shelly drives one switch of a Shelly Gen2 device through its HTTP RPC API.
type Shelly struct {
	httpClient *http.Client
	baseURL    string
	switchID   int
}

// SwitchStatus is the part of the Switch.GetStatus response we use
type SwitchStatus struct {
	ID     int    `json:"id"`
	Source string `json:"source"`
	Output bool   `json:"output"`
}

// switchSetResponse is the Switch.Set response
type switchSetResponse struct {
	WasOn bool `json:"was_on"`
}

// NewShelly creates a client for the device at address (host[:port] or a
// full http URL).
func NewShelly(address string, switchID int) *Shelly {
	return NewShellyWithHTTPClient(&http.Client{Timeout: 10 * time.Second}, address, switchID)
}

// NewShellyWithHTTPClient creates a client with a custom HTTP client
func NewShellyWithHTTPClient(httpClient *http.Client, address string, switchID int) *Shelly {
	return &Shelly{
		httpClient: httpClient,
		baseURL:    baseURL(address),
		switchID:   switchID,
	}
}

// SetBaseURL sets the base URL of the device (useful for testing)
func (s *Shelly) SetBaseURL(baseURL string) {
	s.baseURL = baseURL
}

// Name describes the relay for logs
func (s *Shelly) Name() string {
	return fmt.Sprintf("shelly %s switch %d", s.baseURL, s.switchID)
}

// Status returns the full switch status
func (s *Shelly) Status(ctx context.Context) (*SwitchStatus, error) {
	var status SwitchStatus
	if err := s.call(ctx, "Switch.GetStatus", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// State reports whether the switch output is on
func (s *Shelly) State(ctx context.Context) (bool, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Output, nil
}

// Set switches the output on or off
func (s *Shelly) Set(ctx context.Context, on bool) error {
	var resp switchSetResponse
	return s.call(ctx, "Switch.Set", url.Values{"on": {strconv.FormatBool(on)}}, &resp)
}

// call performs an RPC method over HTTP GET and decodes the JSON result
func (s *Shelly) call(ctx context.Context, method string, params url.Values, out any) error {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	u.Path = fmt.Sprintf("%s/rpc/%s", u.Path, method)

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("id", strconv.Itoa(s.switchID))
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func baseURL(address string) string {
	if u, err := url.Parse(address); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return address
	}
	return "http://" + address
}

// Close releases idle connections
func (s *Shelly) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
