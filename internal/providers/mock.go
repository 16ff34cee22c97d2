package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for tests and offline dry runs.
//
// Response precedence: Respond, then the Responses queue, then ResponseText.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	Responses    []string
	Respond      func(req *ChatRequest) (string, error)

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []ChatRequest
}

// NewMockClient creates a mock that answers plan requests with a well-formed
// chapter plan and everything else with placeholder prose.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
		Respond:      DemoResponder,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}
	fail := func(errType string, err error) (*ChatResult, error) {
		result.ErrorType = errType
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		return result, err
	}

	if c.ShouldFail {
		return fail("mock_failure", fmt.Errorf("mock client configured to fail"))
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return fail("mock_failure", fmt.Errorf("mock client failed after %d requests", c.FailAfter))
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return fail("context_cancelled", ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return fail("context_cancelled", err)
	}

	content, err := c.next(req, int(count))
	if err != nil {
		return fail("mock_failure", err)
	}

	result.Success = true
	result.Content = content
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	// Rough token estimate
	for _, m := range req.Messages {
		result.PromptTokens += len(m.Content) / 4
	}
	result.CompletionTokens = len(content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	return result, nil
}

func (c *MockClient) next(req *ChatRequest, count int) (string, error) {
	if c.Respond != nil {
		return c.Respond(req)
	}
	if count <= len(c.Responses) {
		return c.Responses[count-1], nil
	}
	return c.ResponseText, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every request received, in order.
func (c *MockClient) Requests() []ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset clears the request counter and log.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

var chapterCountPattern = regexp.MustCompile(`(?i)(?:write|exactly)\s+(\d+)\s+chapter`)

// DemoResponder answers chapter plan requests with a valid plan sized from
// the prompt and all other prompts with a short paragraph.
func DemoResponder(req *ChatRequest) (string, error) {
	prompt := ""
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}
	if !strings.Contains(prompt, `"chapters"`) {
		return "The wind moved over the quiet hull while something old stirred in the dark.", nil
	}

	n := 10
	if m := chapterCountPattern.FindStringSubmatch(prompt); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			n = v
		}
	}

	type entry struct {
		Chapter int    `json:"chapter"`
		Title   string `json:"title"`
		Prompt  string `json:"prompt"`
	}
	chapters := make([]entry, n)
	for i := range chapters {
		chapters[i] = entry{
			Chapter: i + 1,
			Title:   fmt.Sprintf("Chapter %d", i+1),
			Prompt:  fmt.Sprintf("Events of part %d of the story.", i+1),
		}
	}
	b, err := json.Marshal(map[string]any{"chapters": chapters})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
