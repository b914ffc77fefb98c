package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hearken-ai/hearken/internal/capture"
	"github.com/hearken-ai/hearken/internal/session"
	"github.com/hearken-ai/hearken/pkg/provider/llm"
)

// SessionObserver bridges session lifecycle callbacks to metric updates.
// It times the Thinking and Speaking phases by watching state transitions
// and records capture outcomes as they arrive. Callbacks run on the session
// goroutine, so all recording is synchronous and cheap.
//
// Observer callbacks carry no context; recordings use context.Background().
type SessionObserver struct {
	metrics *Metrics

	// lastState/lastChange track the previous transition so phase
	// durations can be derived. Sessions run one at a time per driver,
	// so no locking is needed.
	lastState  session.State
	lastChange time.Time
}

var _ session.Observer = (*SessionObserver)(nil)

// NewSessionObserver returns a SessionObserver recording into m. A nil m
// uses [DefaultMetrics].
func NewSessionObserver(m *Metrics) *SessionObserver {
	if m == nil {
		m = DefaultMetrics()
	}
	return &SessionObserver{metrics: m, lastState: session.StateIdle}
}

func (o *SessionObserver) SessionStarted(id string) {
	o.lastState = session.StateIdle
	o.metrics.ActiveSessions.Add(context.Background(), 1)
}

func (o *SessionObserver) StateChanged(state session.State, turn int) {
	now := time.Now()
	elapsed := now.Sub(o.lastChange).Seconds()

	// A phase's duration is the time between entering it and entering its
	// successor. Thinking ends when Speaking (or Idle) begins; Speaking
	// ends when AwaitFollowup (or Idle) begins.
	switch o.lastState {
	case session.StateThinking:
		o.metrics.ThinkDuration.Record(context.Background(), elapsed)
	case session.StateSpeaking:
		o.metrics.SpeakDuration.Record(context.Background(), elapsed)
	}

	o.lastState = state
	o.lastChange = now
}

func (o *SessionObserver) TranscriptReady(turn int, result *capture.Result) {
	ctx := context.Background()
	reason := attribute.String("stop_reason", result.StopReason.String())
	o.metrics.CaptureDuration.Record(ctx, result.AudioDuration.Seconds(),
		metric.WithAttributes(reason),
	)
	o.metrics.StopReasons.Add(ctx, 1, metric.WithAttributes(reason))
}

func (o *SessionObserver) ResponseReady(turn int, text string, resp *llm.CompletionResponse) {
	if resp == nil {
		return
	}
	ctx := context.Background()
	o.metrics.LLMTokens.Add(ctx, int64(resp.Usage.PromptTokens),
		metric.WithAttributes(attribute.String("kind", "prompt")),
	)
	o.metrics.LLMTokens.Add(ctx, int64(resp.Usage.CompletionTokens),
		metric.WithAttributes(attribute.String("kind", "completion")),
	)
}

func (o *SessionObserver) SessionFinished(id string, reason session.EndReason, turns int) {
	ctx := context.Background()
	o.metrics.ActiveSessions.Add(ctx, -1)
	o.metrics.SessionsFinished.Add(ctx, 1,
		metric.WithAttributes(attribute.String("end_reason", reason.String())),
	)
}

func (o *SessionObserver) Error(msg string, err error) {
	o.metrics.SessionErrors.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("stage", msg)),
	)
}
