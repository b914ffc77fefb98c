package observe

import (
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/hearken-ai/hearken/internal/capture"
	"github.com/hearken-ai/hearken/internal/session"
	"github.com/hearken-ai/hearken/pkg/provider/llm"
)

func TestSessionObserver_SessionLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	obs := NewSessionObserver(m)

	obs.SessionStarted("s1")
	obs.SessionFinished("s1", session.EndByePhrase, 2)

	rm := collect(t, reader)

	active := findMetric(rm, "hearken.active_sessions")
	if active == nil {
		t.Fatal("active_sessions metric not found")
	}
	if sum := active.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 0 {
		t.Errorf("active sessions after finish = %d, want 0", sum.DataPoints[0].Value)
	}

	finished := findMetric(rm, "hearken.sessions.finished")
	if finished == nil {
		t.Fatal("sessions.finished metric not found")
	}
	sum := finished.Data.(metricdata.Sum[int64])
	if got := counterValue(sum, "end_reason", "bye_phrase"); got != 1 {
		t.Errorf("finished{bye_phrase} = %d, want 1", got)
	}
}

func TestSessionObserver_PhaseDurations(t *testing.T) {
	m, reader := newTestMetrics(t)
	obs := NewSessionObserver(m)

	obs.SessionStarted("s1")
	obs.StateChanged(session.StateRecording, 0)
	obs.StateChanged(session.StateThinking, 0)
	time.Sleep(10 * time.Millisecond)
	obs.StateChanged(session.StateSpeaking, 0)
	time.Sleep(10 * time.Millisecond)
	obs.StateChanged(session.StateAwaitFollowup, 0)
	obs.StateChanged(session.StateIdle, 0)

	rm := collect(t, reader)

	for _, name := range []string{
		"hearken.session.think.duration",
		"hearken.session.speak.duration",
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatalf("metric %q is not a histogram", name)
		}
		if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
			t.Errorf("metric %q should have exactly one sample", name)
		}
		if hist.DataPoints[0].Sum <= 0 {
			t.Errorf("metric %q recorded a non-positive duration", name)
		}
	}
}

func TestSessionObserver_TranscriptReady(t *testing.T) {
	m, reader := newTestMetrics(t)
	obs := NewSessionObserver(m)

	obs.TranscriptReady(0, &capture.Result{
		Transcript:    "what time is it",
		StopReason:    capture.StopSilence,
		AudioDuration: 1200 * time.Millisecond,
	})

	rm := collect(t, reader)

	dur := findMetric(rm, "hearken.capture.duration")
	if dur == nil {
		t.Fatal("capture.duration metric not found")
	}
	hist := dur.Data.(metricdata.Histogram[float64])
	if hist.DataPoints[0].Sum != 1.2 {
		t.Errorf("capture duration sum = %v, want 1.2", hist.DataPoints[0].Sum)
	}

	stops := findMetric(rm, "hearken.capture.stops")
	if stops == nil {
		t.Fatal("capture.stops metric not found")
	}
	sum := stops.Data.(metricdata.Sum[int64])
	if got := counterValue(sum, "stop_reason", "silence"); got != 1 {
		t.Errorf("stops{silence} = %d, want 1", got)
	}
}

func TestSessionObserver_ResponseReady(t *testing.T) {
	m, reader := newTestMetrics(t)
	obs := NewSessionObserver(m)

	obs.ResponseReady(0, "it is noon", &llm.CompletionResponse{
		Content: "it is noon",
		Usage:   llm.Usage{PromptTokens: 42, CompletionTokens: 7, TotalTokens: 49},
	})

	rm := collect(t, reader)
	met := findMetric(rm, "hearken.llm.tokens")
	if met == nil {
		t.Fatal("llm.tokens metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if got := counterValue(sum, "kind", "prompt"); got != 42 {
		t.Errorf("tokens{prompt} = %d, want 42", got)
	}
	if got := counterValue(sum, "kind", "completion"); got != 7 {
		t.Errorf("tokens{completion} = %d, want 7", got)
	}
}

func TestSessionObserver_Error(t *testing.T) {
	m, reader := newTestMetrics(t)
	obs := NewSessionObserver(m)

	obs.Error("capture", errors.New("stream closed"))
	obs.Error("capture", errors.New("stream closed"))

	rm := collect(t, reader)
	met := findMetric(rm, "hearken.session.errors")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if got := counterValue(sum, "stage", "capture"); got != 2 {
		t.Errorf("errors{capture} = %d, want 2", got)
	}
}
