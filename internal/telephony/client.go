package telephony

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

	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

const (
	// Dial requests block server-side until the remote party answers, so
	// the HTTP timeout must cover ringing.
	dialTimeout    = 2 * time.Minute
	requestTimeout = 15 * time.Second
)

// APIClient talks to the call-control provider's HTTP API. It implements
// Dialer, RoomClient (together with the room event stream in
// room_events.go), and Transferer.
type APIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	dialClient *http.Client
	logger     *logging.Logger
}

// APIClientConfig configures the provider client.
type APIClientConfig struct {
	// APIKey is the provider API key (Bearer token).
	APIKey string
	// BaseURL is the provider API base URL.
	BaseURL string
	// HTTPClient overrides the default HTTP client (for testing).
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewAPIClient creates a call-control API client.
func NewAPIClient(cfg APIClientConfig) (*APIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("telephony: API key required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("telephony: base URL required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	dialClient := cfg.HTTPClient
	if dialClient == nil {
		dialClient = &http.Client{Timeout: dialTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &APIClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		dialClient: dialClient,
		logger:     logger,
	}, nil
}

// providerErrorBody is the provider's error envelope for dial/transfer failures.
type providerErrorBody struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	SIPStatusCode int    `json:"sip_status_code"`
	SIPStatus     string `json:"sip_status"`
}

// CreateOutboundCall dials req.SIPCallTo into req.RoomName and blocks
// until answered or definitively failed. A provider-reported failure is
// returned as *ProviderError.
func (c *APIClient) CreateOutboundCall(ctx context.Context, req OutboundCallRequest) (*Participant, error) {
	if req.SIPCallTo == "" {
		return nil, fmt.Errorf("telephony: dial destination required")
	}
	if req.RoomName == "" {
		return nil, fmt.Errorf("telephony: room name required")
	}
	req.WaitUntilAnswered = true

	url := fmt.Sprintf("%s/v1/sip/participants", c.baseURL)

	c.logger.Info("dialing outbound call",
		"room", req.RoomName,
		"to", maskPhone(req.SIPCallTo),
		"trunk", req.SIPTrunkID,
	)

	var out struct {
		Data Participant `json:"data"`
	}
	if err := c.do(ctx, c.dialClient, http.MethodPost, url, req, &out); err != nil {
		return nil, err
	}

	c.logger.Info("outbound call answered",
		"room", req.RoomName,
		"participant", out.Data.Identity,
	)
	return &out.Data, nil
}

// DeleteRoom tears the room down. A room that no longer exists counts as
// deleted.
func (c *APIClient) DeleteRoom(ctx context.Context, room string) error {
	if room == "" {
		return fmt.Errorf("telephony: room name required")
	}

	url := fmt.Sprintf("%s/v1/rooms/%s", c.baseURL, room)
	err := c.do(ctx, c.httpClient, http.MethodDelete, url, nil, nil)

	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.StatusCode == http.StatusNotFound {
		c.logger.Info("room already deleted", "room", room)
		return nil
	}
	if err != nil {
		return err
	}

	c.logger.Info("room deleted", "room", room)
	return nil
}

// TransferParticipant hands the identified leg to transferTo (a tel: URI
// or SIP address).
func (c *APIClient) TransferParticipant(ctx context.Context, room, identity, transferTo string) error {
	if room == "" || identity == "" {
		return fmt.Errorf("telephony: room and participant identity required")
	}
	if transferTo == "" {
		return fmt.Errorf("telephony: transfer destination required")
	}

	url := fmt.Sprintf("%s/v1/sip/participants/%s/%s/transfer", c.baseURL, room, identity)
	body := map[string]string{"transfer_to": transferTo}

	if err := c.do(ctx, c.httpClient, http.MethodPost, url, body, nil); err != nil {
		return err
	}

	c.logger.Info("participant transferred",
		"room", room,
		"participant", identity,
		"transfer_to", maskPhone(transferTo),
	)
	return nil
}

func (c *APIClient) do(ctx context.Context, client *http.Client, method, url string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("telephony: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("telephony: create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("telephony: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telephony: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.providerError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("telephony: decode response: %w", err)
		}
	}
	return nil
}

// providerError maps a non-2xx response to *ProviderError, preferring the
// SIP status pair when the provider reports one.
func (c *APIClient) providerError(httpStatus int, body []byte) error {
	var envelope providerErrorBody
	_ = json.Unmarshal(body, &envelope)

	code := envelope.SIPStatusCode
	message := envelope.SIPStatus
	if code == 0 {
		code = envelope.StatusCode
		message = envelope.StatusMessage
	}
	if code == 0 {
		code = httpStatus
		message = strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(httpStatus)
		}
	}

	c.logger.Error("provider API error",
		"http_status", httpStatus,
		"status_code", code,
		"status_message", message,
	)
	return &ProviderError{StatusCode: code, StatusMessage: message}
}

// maskPhone returns the last 4 digits of a phone number for logging.
func maskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return "****"
	}
	return "***" + phone[len(phone)-4:]
}
