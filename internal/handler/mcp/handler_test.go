package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mcp-weather/backend/internal/service/gateway"
	sessionsvc "github.com/zhouzirui/mcp-weather/backend/internal/service/session"
	"github.com/zhouzirui/mcp-weather/backend/internal/service/weather"
	"github.com/zhouzirui/mcp-weather/backend/pkg/logger"
)

var endpointPattern = regexp.MustCompile(`^event: endpoint\ndata: (/v1/mcp/messages/\?session_id=[0-9a-f]{32})\n\n$`)

type stubProvider struct {
	err error
}

func (p stubProvider) CurrentWeather(_ context.Context, q weather.Query) (*weather.CurrentConditions, error) {
	if p.err != nil {
		return nil, p.err
	}
	data := &weather.CurrentConditions{Name: q.City}
	data.Sys.Country = "XX"
	data.Main.Temp = 21.5
	return data, nil
}

func (p stubProvider) Forecast(_ context.Context, q weather.Query) (*weather.ForecastData, error) {
	if p.err != nil {
		return nil, p.err
	}
	data := &weather.ForecastData{}
	data.City.Name = q.City
	return data, nil
}

func newTestRouter(provider weather.Provider) http.Handler {
	store := sessionsvc.NewStore(sessionsvc.Config{})
	gw := gateway.New(store, provider, weather.Metric, logger.Discard())

	r := chi.NewRouter()
	r.Route("/v1", func(v1 chi.Router) {
		New(gw, logger.Discard()).RegisterRoutes(v1)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func openSession(t *testing.T, h http.Handler, query string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/mcp",
		`{"model":"weather","messages":[{"role":"user","content":"`+query+`"}],"stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	match := endpointPattern.FindStringSubmatch(rec.Body.String())
	require.NotNil(t, match, "unexpected body %q", rec.Body.String())
	return match[1]
}

func dataFrames(body string) []string {
	var frames []string
	for _, block := range strings.Split(body, "\n\n") {
		if strings.HasPrefix(block, "data: ") {
			frames = append(frames, strings.TrimPrefix(block, "data: "))
		}
	}
	return frames
}

func TestInitialRequestDirectAnswer(t *testing.T) {
	h := newTestRouter(stubProvider{})

	rec := do(t, h, http.MethodPost, "/v1/mcp",
		`{"model":"weather","messages":[{"role":"user","content":"What is the weather like in Tokyo?"}],"stream":false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got gateway.Completion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Choices, 1)
	assert.Equal(t, "stop", got.Choices[0].FinishReason)
	assert.Contains(t, got.Choices[0].Message.Content, "Current weather in Tokyo, XX")
}

func TestInitialRequestDirectProviderTimeout(t *testing.T) {
	h := newTestRouter(stubProvider{err: weather.ErrTimeout})

	rec := do(t, h, http.MethodPost, "/v1/mcp",
		`{"messages":[{"role":"user","content":"What is the weather like in Nowhereville?"}],"stream":false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var got gateway.Completion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t,
		"Error: Timeout while getting weather data for Nowhereville. Please try again later.",
		got.Choices[0].Message.Content)
}

func TestInitialRequestAnnouncesEndpoint(t *testing.T) {
	h := newTestRouter(stubProvider{})

	rec := do(t, h, http.MethodPost, "/v1/mcp",
		`{"messages":[{"role":"user","content":"forecast for Paris"}],"stream":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Regexp(t, endpointPattern, rec.Body.String())
}

func TestInitialRequestStreamsByDefault(t *testing.T) {
	h := newTestRouter(stubProvider{})

	rec := do(t, h, http.MethodPost, "/v1/mcp", `{"messages":[{"role":"user","content":"hello"}]}`)

	assert.Regexp(t, endpointPattern, rec.Body.String())
}

func TestInitialRequestMalformedBody(t *testing.T) {
	h := newTestRouter(stubProvider{})

	rec := do(t, h, http.MethodPost, "/v1/mcp", `{"messages":`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestStreamRequiresSessionID(t *testing.T) {
	h := newTestRouter(stubProvider{})

	rec := do(t, h, http.MethodPost, "/v1/mcp/messages/", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"session_id is required"}`, rec.Body.String())
}

func TestStreamUnknownSession(t *testing.T) {
	h := newTestRouter(stubProvider{})

	rec := do(t, h, http.MethodPost, "/v1/mcp/messages/?session_id=0123456789abcdef0123456789abcdef", `{}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Session not found or expired"}`, rec.Body.String())
}

func TestStreamDeliversTwoFrames(t *testing.T) {
	h := newTestRouter(stubProvider{})
	endpoint := openSession(t, h, "What is the weather like in Tokyo?")

	rec := do(t, h, http.MethodPost, endpoint, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))

	frames := dataFrames(rec.Body.String())
	require.Len(t, frames, 2)

	var first gateway.Completion
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &first))
	require.NotNil(t, first.Choices[0].Delta)
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)
	assert.Contains(t, first.Choices[0].Delta.Content, "Current weather in Tokyo")
	assert.JSONEq(t, `{"choices":[{"finish_reason":"stop"}]}`, frames[1])
}

func TestStreamWithoutTrailingSlashAndOverride(t *testing.T) {
	h := newTestRouter(stubProvider{})
	endpoint := openSession(t, h, "What is the weather like in Tokyo?")
	target := strings.Replace(endpoint, "/messages/?", "/messages?", 1)

	rec := do(t, h, http.MethodPost, target,
		`{"messages":[{"role":"user","content":"What is the weather like in Madrid?"}]}`)

	frames := dataFrames(rec.Body.String())
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], "Current weather in Madrid")
}

func TestStreamSessionIsReusable(t *testing.T) {
	h := newTestRouter(stubProvider{})
	endpoint := openSession(t, h, "What is the weather like in Lima?")

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, endpoint, `{}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, dataFrames(rec.Body.String()), 2)
	}
}

func TestStreamMalformedBody(t *testing.T) {
	h := newTestRouter(stubProvider{})
	endpoint := openSession(t, h, "hello")

	rec := do(t, h, http.MethodPost, endpoint, `not json`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebSocketStream(t *testing.T) {
	h := newTestRouter(stubProvider{})
	endpoint := openSession(t, h, "What is the weather like in Tokyo?")
	sessionID := strings.TrimPrefix(endpoint, "/v1/mcp/messages/?session_id=")

	server := httptest.NewServer(h)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/mcp/messages/ws?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first, second gateway.Completion
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Contains(t, first.Choices[0].Delta.Content, "Current weather in Tokyo")
	assert.Equal(t, "stop", second.Choices[0].FinishReason)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWebSocketUnknownSession(t *testing.T) {
	server := httptest.NewServer(newTestRouter(stubProvider{}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/mcp/messages/ws?session_id=missing"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamUnknownSessionWinsOverMalformedBody(t *testing.T) {
	h := newTestRouter(stubProvider{})

	rec := do(t, h, http.MethodPost, "/v1/mcp/messages/?session_id=deadbeef", `{not json`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Session not found or expired"}`, rec.Body.String())
}

func TestStreamEmptyContentOverridesStoredQuery(t *testing.T) {
	h := newTestRouter(stubProvider{})
	endpoint := openSession(t, h, "What is the weather like in Tokyo?")

	rec := do(t, h, http.MethodPost, endpoint, `{"messages":[{"content":""}]}`)

	frames := dataFrames(rec.Body.String())
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], "Current weather in London")
}
