package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Transport delivers a packed request to a peer service
type Transport interface {
	// Send delivers body to route and returns the response body, if the
	// transport has one
	Send(ctx context.Context, route string, headers map[string]string, body []byte) ([]byte, error)
}

// HTTPTransport posts requests to a peer's HTTP API
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport rooted at baseURL
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts body to the path for route. Dotted routes such as
// "census.save-vote" map to "/census/save-vote".
func (t *HTTPTransport) Send(ctx context.Context, route string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+routePath(route), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s responded %d: %s", route, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func routePath(route string) string {
	if strings.HasPrefix(route, "/") {
		return route
	}
	return "/" + strings.ReplaceAll(route, ".", "/")
}

// MessageTransport publishes requests on a message broker, one topic per
// route. It is fire-and-forget and never returns a response body.
type MessageTransport struct {
	publisher message.Publisher
}

// NewMessageTransport creates a transport publishing through publisher
func NewMessageTransport(publisher message.Publisher) *MessageTransport {
	return &MessageTransport{publisher: publisher}
}

// Send publishes body to the topic named route with headers as metadata
func (t *MessageTransport) Send(ctx context.Context, route string, headers map[string]string, body []byte) ([]byte, error) {
	msg := message.NewMessage(uuid.NewString(), body)
	msg.SetContext(ctx)
	for k, v := range headers {
		msg.Metadata.Set(k, v)
	}

	if err := t.publisher.Publish(route, msg); err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", route, err)
	}
	return nil, nil
}
