package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBody bounds how much of a response the client will read.
const maxBody = 1 << 20

// ServerError is a non-200 response from the message server.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// API is a minimal client for the message server's HTTP endpoints.
type API struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPI creates a client for baseURL. A zero timeout disables the per-request
// deadline.
func NewAPI(baseURL string, timeout time.Duration) *API {
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address the client talks to.
func (a *API) BaseURL() string {
	return a.baseURL
}

// CreateUser registers username.
func (a *API) CreateUser(ctx context.Context, username string) error {
	resp, err := a.postForm(ctx, "/create_user", url.Values{"username": {username}})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// ListUsers returns the registered usernames.
func (a *API) ListUsers(ctx context.Context) ([]string, error) {
	resp, err := a.get(ctx, "/users", nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var payload struct {
		Users []string `json:"users"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return payload.Users, nil
}

// SendMessage delivers body to the recipient as given. "all" broadcasts.
func (a *API) SendMessage(ctx context.Context, to, body string) error {
	resp, err := a.postForm(ctx, "/send_message", url.Values{"sendto": {to}, "message": {body}})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// LatestMessage returns the current message for username. JSON responses are
// read from the "message" field; any other content type is taken as the raw
// message text. An empty string means there is no message.
func (a *API) LatestMessage(ctx context.Context, username string) (string, error) {
	resp, err := a.get(ctx, "/latest_message", url.Values{"username": {username}})
	if err != nil {
		return "", fmt.Errorf("latest message: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("read latest message: %w", err)
	}
	if !isJSON(resp) {
		return string(data), nil
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode latest message: %w", err)
	}
	return payload.Message, nil
}

func (a *API) get(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	return a.httpClient.Do(req)
}

func (a *API) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.httpClient.Do(req)
}

func isJSON(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// checkStatus turns a non-200 response into a *ServerError, using the JSON
// "error" field when the server sends one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	msg := "Unknown error"
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: msg}
}
