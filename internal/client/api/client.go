package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/boardsync/pkg/api"
)

// ErrNotFound сервер ответил 404
var ErrNotFound = errors.New("not found")

//go:generate moq -out clientapi_mock.go . ClientAPI

// ClientAPI REST API relay-сервера
type ClientAPI interface {
	// Health проверяет доступность сервера
	Health(ctx context.Context) (*api.HealthResponse, error)

	// RoomInfo возвращает сведения о комнате. ErrNotFound - комнаты нет.
	RoomInfo(ctx context.Context, room string) (*api.RoomInfo, error)

	// Rooms возвращает загруженные и сохраненные комнаты сервера
	Rooms(ctx context.Context) (*api.RoomList, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ ClientAPI = (*Client)(nil)

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// RoomInfo возвращает сведения о комнате
func (c *Client) RoomInfo(ctx context.Context, room string) (*api.RoomInfo, error) {
	var resp api.RoomInfo
	path := "/api/v1/rooms/" + url.PathEscape(room)
	if err := c.doRequest(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, fmt.Errorf("room info request failed: %w", err)
	}
	return &resp, nil
}

// Rooms возвращает список комнат
func (c *Client) Rooms(ctx context.Context) (*api.RoomList, error) {
	var resp api.RoomList
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/rooms", &resp); err != nil {
		return nil, fmt.Errorf("rooms request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		message := string(respBody)
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			message = errResp.Message
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, message)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, message)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
