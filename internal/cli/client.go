package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// SubmitResponse — результат создания task.
type SubmitResponse struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// StatusResponse — состояние task из API.
type StatusResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	IsActive     bool   `json:"is_active"`
	IsCompleted  bool   `json:"is_completed"`
	IsSuccessful bool   `json:"is_successful"`
	Message      string `json:"message,omitempty"`
	Result       []byte `json:"result"`
}

// ArchivedTaskResponse — архивная запись task из API.
type ArchivedTaskResponse struct {
	ID             string            `json:"id"`
	WorkerID       string            `json:"worker_id"`
	Executor       string            `json:"executor"`
	MaxRunningTime int               `json:"max_running_time"`
	Properties     map[string]string `json:"properties,omitempty"`
	Status         string            `json:"status"`
	Message        string            `json:"message,omitempty"`
	Result         []byte            `json:"result,omitempty"`
	StartedAt      string            `json:"started_at"`
	FinishedAt     string            `json:"finished_at"`
	DurationMs     int64             `json:"duration_ms"`
}

// --- Request types ---

// SubmitRequest — создание task.
type SubmitRequest struct {
	APIKey         string            `json:"api_key,omitempty"`
	MaxRunningTime int               `json:"max_running_time"`
	Properties     map[string]string `json:"properties,omitempty"`
	Body           []byte            `json:"body,omitempty"`
}

// ListArchiveOpts — параметры фильтрации архива.
type ListArchiveOpts struct {
	Status   string
	WorkerID string
	Limit    int
	Offset   int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRejected сообщает, что task отклонена worker'ом.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "REJECTED"
}

// --- Client ---

// Client — HTTP-клиент для TaskMiner API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. apiKey передаётся в X-Api-Key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Tasks ---

// Submit создаёт task.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if req.APIKey == "" {
		req.APIKey = c.apiKey
	}
	var resp SubmitResponse
	err := c.post(ctx, "/api/v1/tasks", req, &resp)
	return &resp, err
}

// Status возвращает состояние task.
func (c *Client) Status(ctx context.Context, id string) (*StatusResponse, error) {
	var resp StatusResponse
	err := c.get(ctx, "/api/v1/tasks/"+url.PathEscape(id), &resp)
	return &resp, err
}

// Wait опрашивает task с интервалом interval, пока она не завершится.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (*StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if status.IsCompleted || status.Status == "NOT_FOUND" {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// --- Archive ---

// ListArchive возвращает архив завершённых tasks.
func (c *Client) ListArchive(ctx context.Context, opts ListArchiveOpts) ([]ArchivedTaskResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.WorkerID != "" {
		params.Set("worker_id", opts.WorkerID)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var tasks []ArchivedTaskResponse
	err := c.list(ctx, "/api/v1/archive/tasks", params, &tasks)
	return tasks, err
}

// GetArchived возвращает архивную запись task.
func (c *Client) GetArchived(ctx context.Context, id string) (*ArchivedTaskResponse, error) {
	var task ArchivedTaskResponse
	err := c.get(ctx, "/api/v1/archive/tasks/"+url.PathEscape(id), &task)
	return &task, err
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPost, path, body, result)
}

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
