// Package httprequest provides the built-in HTTP request action, used
// by steps that notify or query external services during a run.
package httprequest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/conveyor/pkg/protocol"
)

const defaultTimeoutSeconds = 30

// NewActionFactory creates the http-request action factory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string {
	return "http-request"
}

func (*ActionFactory) Name() string {
	return "HTTP Request"
}

func (*ActionFactory) Description() string {
	return "Perform an HTTP request and expose status and body as step outputs"
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Request URL",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "GET",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers",
			},
		},
		"required": []string{"url"},
	}
}

func (*ActionFactory) Create() (protocol.Action, error) {
	return &Action{client: &http.Client{Timeout: defaultTimeoutSeconds * time.Second}}, nil
}

type Action struct {
	client *http.Client
}

func (a *Action) Execute(ctx context.Context, input protocol.ActionInput) (map[string]string, error) {
	url, _ := input.With["url"].(string)

	method, _ := input.With["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := input.With["body"].(string)

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if headers, ok := input.With["headers"].(map[string]any); ok {
		for name, value := range headers {
			req.Header.Set(name, fmt.Sprintf("%v", value))
		}
	}

	input.Logger.InfoContext(ctx, "Executing HTTP request", "method", req.Method, "url", url)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	outputs := map[string]string{
		"status": strconv.Itoa(resp.StatusCode),
		"body":   string(responseBody),
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return outputs, fmt.Errorf("request returned status %d", resp.StatusCode)
	}

	return outputs, nil
}
