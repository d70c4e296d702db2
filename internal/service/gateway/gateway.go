package gateway

import (
	"context"
	"errors"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mcp-weather/backend/internal/analysis/query"
	"github.com/zhouzirui/mcp-weather/backend/internal/metrics"
	"github.com/zhouzirui/mcp-weather/backend/internal/model/session"
	"github.com/zhouzirui/mcp-weather/backend/internal/service/ai"
	sessionsvc "github.com/zhouzirui/mcp-weather/backend/internal/service/session"
	"github.com/zhouzirui/mcp-weather/backend/internal/service/weather"
)

var (
	ErrSessionIDRequired = errors.New("session_id is required")
	ErrSessionNotFound   = sessionsvc.ErrSessionNotFound
)

// Narrator rephrases a formatted weather report.
type Narrator interface {
	Narrate(ctx context.Context, question, report string, opts ai.Options) (string, error)
}

// Gateway drives both phases of the relay protocol.
type Gateway struct {
	sessions *sessionsvc.Store
	provider weather.Provider
	narrator Narrator
	units    weather.Units
	log      logrus.FieldLogger
}

// New creates a gateway around an injected session store and provider.
func New(sessions *sessionsvc.Store, provider weather.Provider, units weather.Units, log logrus.FieldLogger) *Gateway {
	if units == "" {
		units = weather.Metric
	}
	return &Gateway{
		sessions: sessions,
		provider: provider,
		units:    units,
		log:      log.WithField("component", "gateway"),
	}
}

// SetNarrator enables rephrasing of successful reports.
func (g *Gateway) SetNarrator(n Narrator) {
	g.narrator = n
}

// Complete answers a non-streaming request in a single payload. Provider
// failures are returned as message content.
func (g *Gateway) Complete(ctx context.Context, req Request) Completion {
	text, err := g.answer(ctx, req.Query(), req.Options())
	metrics.Requests.WithLabelValues("direct", outcome(err)).Inc()
	return answerCompletion(text)
}

// Open registers the query of a streaming request and returns the session
// together with the endpoint the client must call next.
func (g *Gateway) Open(req Request) (session.Session, string) {
	record := g.sessions.Create(req.Query())
	metrics.Requests.WithLabelValues("open", "ok").Inc()
	g.log.WithField("session_id", record.ID).Debug("session opened")
	return record, EndpointFor(record.ID)
}

// Resolve sweeps expired sessions and looks sessionID up. It must succeed
// before the request body is consulted.
func (g *Gateway) Resolve(sessionID string) (session.Session, error) {
	if sessionID == "" {
		metrics.Requests.WithLabelValues("stream", "bad_request").Inc()
		return session.Session{}, ErrSessionIDRequired
	}

	if removed := g.sessions.SweepExpired(g.sessions.Now(), g.sessions.TTL()); removed > 0 {
		g.log.WithField("removed", removed).Debug("swept expired sessions")
	}

	record, err := g.sessions.Get(sessionID)
	if err != nil {
		metrics.Requests.WithLabelValues("stream", "not_found").Inc()
		return session.Session{}, err
	}
	return record, nil
}

// Frames returns the two answer frames for a resolved session. The provider
// is called when the sequence is first pulled, and the session is refreshed
// only once both frames have been consumed.
func (g *Gateway) Frames(ctx context.Context, record session.Session, req Request) iter.Seq[Completion] {
	text := record.Query
	if override, ok := req.Override(); ok {
		text = override
	}
	opts := req.Options()
	log := g.log.WithField("session_id", record.ID)

	return func(yield func(Completion) bool) {
		answer, err := g.answer(ctx, text, opts)
		metrics.Requests.WithLabelValues("stream", outcome(err)).Inc()

		if !yield(deltaFrame(answer)) {
			log.Debug("stream abandoned before first frame was delivered")
			return
		}
		metrics.StreamFrames.Inc()
		if !yield(stopFrame()) {
			log.Debug("stream abandoned before stop frame was delivered")
			return
		}
		metrics.StreamFrames.Inc()

		if _, err := g.sessions.Touch(record.ID); err != nil {
			log.WithError(err).Warn("session expired while streaming")
		}
	}
}

// Stream is Resolve followed by Frames.
func (g *Gateway) Stream(ctx context.Context, sessionID string, req Request) (iter.Seq[Completion], error) {
	record, err := g.Resolve(sessionID)
	if err != nil {
		return nil, err
	}
	return g.Frames(ctx, record, req), nil
}

// Answer runs interpret, provider and formatting for text. The returned
// string is always suitable for the client, even when the provider failed.
func (g *Gateway) Answer(ctx context.Context, text string, opts ai.Options) string {
	answer, _ := g.answer(ctx, text, opts)
	return answer
}

func (g *Gateway) answer(ctx context.Context, text string, opts ai.Options) (string, error) {
	parsed := query.Interpret(text)
	q := weather.Query{City: parsed.City, Units: g.units}
	forecast := parsed.Intent == query.Forecast
	log := g.log.WithFields(logrus.Fields{"city": parsed.City, "intent": parsed.Intent})

	var report string
	if forecast {
		data, err := g.provider.Forecast(ctx, q)
		if err != nil {
			log.WithError(err).Warn("forecast lookup failed")
			return weather.FailureMessage(err, parsed.City, true), err
		}
		report = weather.FormatForecast(data, g.units)
	} else {
		data, err := g.provider.CurrentWeather(ctx, q)
		if err != nil {
			log.WithError(err).Warn("current weather lookup failed")
			return weather.FailureMessage(err, parsed.City, false), err
		}
		report = weather.FormatCurrent(data, g.units)
	}

	if g.narrator == nil {
		return report, nil
	}
	narrated, err := g.narrator.Narrate(ctx, text, report, opts)
	if err != nil {
		log.WithError(err).Warn("narration failed, returning plain report")
		return report, nil
	}
	return narrated, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "provider_" + weather.Kind(err)
}
