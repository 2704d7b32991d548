package miner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const defaultHTTPTimeout = 30 * time.Second

// defaultMaxResponseSize — предел тела ответа backend'а.
const defaultMaxResponseSize = 10 << 20

// Заголовки, которые HTTPExecutor передаёт mining backend'у.
const (
	HeaderAPIKey         = "X-Api-Key"
	HeaderTaskID         = "X-Task-Id"
	HeaderPropertyPrefix = "X-Task-Property-"
)

// Служебные свойства HTTPExecutor'а — не передаются как X-Task-Property-*.
var httpReservedProperties = map[string]bool{
	PropertyExecutor: true,
	"url":            true,
	"method":         true,
	"timeout_sec":    true,
}

// HTTPExecutor передаёт тело task внешнему mining backend'у по HTTP.
//
// API-ключ пользователя не интерпретируется: он пробрасывается
// в заголовке X-Api-Key, по нему backend получает датасеты.
//
// Properties:
//   - url: адрес backend'а (обязательно)
//   - method: HTTP-метод. Default: POST
//   - timeout_sec: таймаут запроса в секундах. Default: 30
//   - остальные свойства передаются как заголовки X-Task-Property-<key>
//
// Результат — тело ответа 2xx. Ответ >= 400 — ошибка выполнения.
type HTTPExecutor struct {
	// Client — HTTP-клиент (default: новый http.Client).
	Client *http.Client

	// MaxResponseSize — предел тела ответа в байтах (default: 10 MiB).
	// Более длинный ответ — ошибка выполнения.
	MaxResponseSize int64
}

// Execute выполняет HTTP-запрос.
func (e *HTTPExecutor) Execute(ctx context.Context, job *Job) ([]byte, error) {
	url := job.Properties["url"]
	if url == "" {
		return nil, fmt.Errorf("%w: url property is required", ErrHTTPRequest)
	}

	method := job.Properties["method"]
	if method == "" {
		method = http.MethodPost
	}

	// Таймаут запроса (внешний ctx ограничивает его MaxRunningTime)
	ctx, cancel := context.WithTimeout(ctx, getTimeout(job.Properties))
	defer cancel()

	var bodyReader io.Reader
	if len(job.Body) > 0 {
		bodyReader = bytes.NewReader(job.Body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}

	setHeaders(req, job)

	client := e.Client
	if client == nil {
		client = &http.Client{}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	limit := e.MaxResponseSize
	if limit <= 0 {
		limit = defaultMaxResponseSize
	}

	// Читаем на байт больше предела, чтобы отличить ответ ровно в предел
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}

	if resp.StatusCode >= 400 {
		if int64(len(respBody)) > limit {
			respBody = respBody[:limit]
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrHTTPRequest, resp.StatusCode, truncate(string(respBody), 200))
	}

	if int64(len(respBody)) > limit {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrHTTPRequest, limit)
	}

	return respBody, nil
}

// setHeaders устанавливает заголовки запроса из job.
func setHeaders(req *http.Request, job *Job) {
	req.Header.Set(HeaderAPIKey, job.APIKey)
	req.Header.Set(HeaderTaskID, job.ID.String())

	if len(job.Body) > 0 {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	for key, val := range job.Properties {
		if httpReservedProperties[key] {
			continue
		}
		req.Header.Set(HeaderPropertyPrefix+key, val)
	}
}

// getTimeout извлекает таймаут из properties.
func getTimeout(props map[string]string) time.Duration {
	if val, ok := props["timeout_sec"]; ok {
		if v, err := strconv.ParseFloat(val, 64); err == nil && v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	}
	return defaultHTTPTimeout
}

// truncate обрезает строку до maxLen байт, не разрывая UTF-8 символ.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	n := maxLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
