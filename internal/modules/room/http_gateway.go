package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	requestTimeout = 10 * time.Second
	maxRetries     = 3
)

// HTTPGateway talks to the messaging platform's room API over JSON HTTP.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff; 4xx responses are not retried.
type HTTPGateway struct {
	baseURL *url.URL
	token   string
	client  *http.Client
}

func NewHTTPGateway(baseURL *url.URL, token string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type createRoomRequest struct {
	Members []uuid.UUID `json:"members"`
}

type createRoomResponse struct {
	RoomID string `json:"roomId"`
}

func (g *HTTPGateway) CreateRoom(ctx context.Context, members []uuid.UUID) (string, error) {
	var response createRoomResponse
	err := g.send(ctx, http.MethodPost, "/rooms", createRoomRequest{Members: members}, &response)
	if err != nil {
		return "", err
	}

	if response.RoomID == "" {
		return "", fmt.Errorf("%w: create room returned empty room id", ErrUnavailable)
	}

	return response.RoomID, nil
}

type memberRequest struct {
	UserID uuid.UUID `json:"userId"`
}

func (g *HTTPGateway) AddMember(ctx context.Context, roomID string, userID uuid.UUID) error {
	path := fmt.Sprintf("/rooms/%s/members", url.PathEscape(roomID))
	return g.send(ctx, http.MethodPost, path, memberRequest{UserID: userID}, nil)
}

func (g *HTTPGateway) RemoveMember(ctx context.Context, roomID string, userID uuid.UUID) error {
	path := fmt.Sprintf("/rooms/%s/members/%s", url.PathEscape(roomID), userID)
	return g.send(ctx, http.MethodDelete, path, nil, nil)
}

type systemMessageRequest struct {
	Text   string `json:"text"`
	System bool   `json:"system"`
}

func (g *HTTPGateway) PostSystemMessage(ctx context.Context, roomID, text string) error {
	path := fmt.Sprintf("/rooms/%s/messages", url.PathEscape(roomID))
	return g.send(ctx, http.MethodPost, path, systemMessageRequest{Text: text, System: true}, nil)
}

func (g *HTTPGateway) ArchiveRoom(ctx context.Context, roomID string) error {
	path := fmt.Sprintf("/rooms/%s/archive", url.PathEscape(roomID))
	return g.send(ctx, http.MethodPost, path, nil, nil)
}

func (g *HTTPGateway) send(ctx context.Context, method, path string, body, response any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	operation := func() error {
		request, err := http.NewRequestWithContext(
			ctx,
			method,
			g.baseURL.JoinPath(path).String(),
			bytes.NewReader(payload),
		)
		if err != nil {
			return backoff.Permanent(err)
		}

		request.Header.Set("Content-Type", "application/json")
		if g.token != "" {
			request.Header.Set("Authorization", "Bearer "+g.token)
		}

		httpResponse, err := g.client.Do(request)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %s", ErrUnavailable, method, path, err)
		}
		defer func() {
			_ = httpResponse.Body.Close()
		}()

		switch {
		case httpResponse.StatusCode >= 500:
			return fmt.Errorf("%w: %s %s: status %d", ErrUnavailable, method, path, httpResponse.StatusCode)
		case httpResponse.StatusCode >= 400:
			return backoff.Permanent(
				fmt.Errorf("room gateway rejected %s %s: status %d", method, path, httpResponse.StatusCode),
			)
		}

		if response == nil {
			return nil
		}

		if err := json.NewDecoder(httpResponse.Body).Decode(response); err != nil {
			return fmt.Errorf("%w: %s %s: %s", ErrUnavailable, method, path, err)
		}

		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries),
		ctx,
	)

	return backoff.Retry(operation, policy)
}
