package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mcp-weather/backend/internal/service/gateway"
)

const (
	mcpPath          = "/v1/mcp"
	handshakeTimeout = 30 * time.Second
	streamTimeout    = 60 * time.Second
)

var (
	forecastFor  = regexp.MustCompile(`(?i)forecast for ([^?.,]+)`)
	endpointLine = regexp.MustCompile(`(?m)^data: (.*)$`)

	errNoEndpoint = errors.New("server did not return an SSE endpoint, make sure streaming is enabled on the server")
)

// normalizeURL turns host[:port] or a base URL into the full /v1/mcp URL.
func normalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasPrefix(u, "http") {
		u = "http://" + u
	}
	if !strings.HasSuffix(u, mcpPath) {
		u += mcpPath
	}
	return u
}

// buildQuery phrases user input the way the server's interpreter expects.
func buildQuery(input string) string {
	input = strings.TrimSpace(input)
	if strings.Contains(strings.ToLower(input), "forecast") {
		if m := forecastFor.FindStringSubmatch(input); m != nil {
			return fmt.Sprintf("What is the weather forecast for %s?", strings.TrimSpace(m[1]))
		}
	}
	return fmt.Sprintf("What is the weather like in %s?", input)
}

type mcpClient struct {
	url        string
	httpClient *http.Client
	log        logrus.FieldLogger
}

func newClient(rawURL string, log logrus.FieldLogger) *mcpClient {
	return &mcpClient{
		url:        normalizeURL(rawURL),
		httpClient: &http.Client{},
		log:        log,
	}
}

func newRequest(query string, stream bool) gateway.Request {
	maxTokens := 1000
	temperature := float32(0.7)
	return gateway.Request{
		Model:       "test-model",
		Messages:    []*schema.Message{schema.UserMessage(query)},
		Stream:      &stream,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}
}

// Ask performs a single non-streaming exchange.
func (c *mcpClient) Ask(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	resp, err := c.post(ctx, c.url, newRequest(query, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var completion gateway.Completion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message == nil {
		return "", errors.New("response carried no message")
	}
	return completion.Choices[0].Message.Content, nil
}

// Stream runs the two-phase exchange and copies deltas to out as they arrive.
func (c *mcpClient) Stream(ctx context.Context, query string, out io.Writer) (string, error) {
	req := newRequest(query, true)

	handshakeCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	resp, err := c.post(handshakeCtx, c.url, req)
	if err != nil {
		return "", err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("read handshake: %w", err)
	}

	endpoint, err := parseEndpoint(string(body))
	if err != nil {
		return "", err
	}
	endpoint = resolveEndpoint(c.url, endpoint)
	c.log.WithField("endpoint", endpoint).Info("connecting to SSE endpoint")

	streamCtx, cancelStream := context.WithTimeout(ctx, streamTimeout)
	defer cancelStream()

	resp, err = c.post(streamCtx, endpoint, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return readFrames(resp.Body, out)
}

func (c *mcpClient) post(ctx context.Context, url string, payload gateway.Request) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%s returned %s: %s", url, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func parseEndpoint(body string) (string, error) {
	if !strings.Contains(body, "event: endpoint") {
		return "", errNoEndpoint
	}
	m := endpointLine.FindStringSubmatch(body)
	if m == nil {
		return "", errNoEndpoint
	}
	return strings.TrimSpace(m[1]), nil
}

// resolveEndpoint prefixes a relative endpoint with the server origin.
func resolveEndpoint(mcpURL, endpoint string) string {
	if strings.HasPrefix(endpoint, "http") {
		return endpoint
	}
	base, _, _ := strings.Cut(mcpURL, mcpPath)
	return base + endpoint
}

// readFrames consumes SSE data lines until the stop frame or EOF.
func readFrames(r io.Reader, out io.Writer) (string, error) {
	var full strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok || line == "" {
			continue
		}

		var frame gateway.Completion
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			fmt.Fprintf(out, "could not parse event data: %s\n", line)
			continue
		}
		if len(frame.Choices) == 0 {
			continue
		}

		choice := frame.Choices[0]
		if choice.Delta != nil {
			full.WriteString(choice.Delta.Content)
			fmt.Fprint(out, choice.Delta.Content)
		}
		if choice.FinishReason == "stop" {
			fmt.Fprint(out, "\n\nStream completed.\n")
			return full.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("read stream: %w", err)
	}
	return full.String(), nil
}
