// Package client is the REST API client for the chat backend: channel
// resolution, history snapshot fetch and the message send endpoint. The
// live connection is not established here; see internal/transport.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/domain"
)

// ErrConversationClosed is returned by Send when the backend rejects the
// message because the conversation is locked or completed. This is the
// one failure the UI must surface as a blocking notice.
var ErrConversationClosed = errors.New("conversation is closed and no longer accepts messages")

const statusConversationClosed = "conversation_closed"

// Client talks to the chat REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sf         singleflight.Group
}

// New creates a client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiResponse is the common response envelope.
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type resolveChannelRequest struct {
	ParticipantA string `json:"participantA"`
	ParticipantB string `json:"participantB"`
}

// ResolveChannel returns the channel for a pair of identities, creating
// it lazily on first access. Resolution is idempotent; concurrent calls
// for the same pair collapse into one request.
func (c *Client) ResolveChannel(ctx context.Context, localID, partnerID string) (domain.Channel, error) {
	key := pairKey(localID, partnerID)
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		req := resolveChannelRequest{ParticipantA: localID, ParticipantB: partnerID}
		var ch domain.Channel
		if err := c.do(ctx, http.MethodPost, "/api/v1/channels", req, &ch); err != nil {
			return domain.Channel{}, err
		}
		return ch, nil
	})
	if err != nil {
		return domain.Channel{}, fmt.Errorf("failed to resolve channel: %w", err)
	}
	return result.(domain.Channel), nil
}

type historyData struct {
	Messages []domain.Message `json:"messages"`
}

// FetchHistory returns the snapshot of prior messages between the two
// identities, optionally scoped to a channel. Order is not guaranteed;
// the timeline engine sorts.
func (c *Client) FetchHistory(ctx context.Context, localID, partnerID, channelID string) ([]domain.Message, error) {
	q := url.Values{}
	q.Set("user", localID)
	q.Set("partner", partnerID)
	if channelID != "" {
		q.Set("channel", channelID)
	}

	var data historyData
	if err := c.do(ctx, http.MethodGet, "/api/v1/messages?"+q.Encode(), nil, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return data.Messages, nil
}

// SendRequest is the request body for the send endpoint.
type SendRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	ChannelID  string `json:"channelId,omitempty"`
	Text       string `json:"text"`
}

type sendData struct {
	Status string `json:"status"`
}

// Send submits a message over the request channel. Delivery to both
// parties happens via the live connection's inbound echo, not via the
// response. A rejection marker maps to ErrConversationClosed.
func (c *Client) Send(ctx context.Context, req SendRequest) error {
	var data sendData
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", req, &data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if data.Status == statusConversationClosed {
		return ErrConversationClosed
	}
	return nil
}

// do performs a request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("invalid response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !envelope.Success {
		return fmt.Errorf("api error %d: %s", resp.StatusCode, envelope.Error)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return err
		}
	}
	return nil
}

// pairKey is direction-independent so A→B and B→A share one flight.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
