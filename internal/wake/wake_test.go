package wake

import (
	"context"
	"testing"
	"time"

	"github.com/hearken-ai/hearken/pkg/audio"
	audiomock "github.com/hearken-ai/hearken/pkg/audio/mock"
	kwmock "github.com/hearken-ai/hearken/pkg/provider/keyword/mock"
	sttmock "github.com/hearken-ai/hearken/pkg/provider/stt/mock"
)

// pacedDevice wraps a mock device so each Read takes delay wall-clock time,
// letting debounce-window tests observe real elapsed time.
type pacedDevice struct {
	inner *audiomock.Device
	delay time.Duration
}

func (d *pacedDevice) OpenCapture(cfg audio.StreamConfig) (audio.Stream, error) {
	s, err := d.inner.OpenCapture(cfg)
	if err != nil {
		return nil, err
	}
	return &pacedStream{inner: s, delay: d.delay}, nil
}

func (d *pacedDevice) OpenPlayback(cfg audio.StreamConfig) (audio.Output, error) {
	return d.inner.OpenPlayback(cfg)
}

func (d *pacedDevice) Close() error { return d.inner.Close() }

type pacedStream struct {
	inner audio.Stream
	delay time.Duration
}

func (s *pacedStream) Read() (audio.AudioFrame, error) {
	time.Sleep(s.delay)
	return s.inner.Read()
}

func (s *pacedStream) Close() error { return s.inner.Close() }

// script builds n frames of the given byte length.
func script(n, frameBytes int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = make([]byte, frameBytes)
	}
	return frames
}

// runAndCollect runs the detector until its stream script is exhausted and
// returns every detection delivered.
func runAndCollect(t *testing.T, d *Detector) []Detection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	var events []Detection
	for {
		select {
		case ev := <-d.Events():
			events = append(events, ev)
		case err := <-done:
			select {
			case ev := <-d.Events():
				events = append(events, ev)
			default:
			}
			if err == nil {
				t.Error("Run should return an error when the stream ends")
			}
			return events
		case <-ctx.Done():
			t.Fatal("detector did not finish in time")
		}
	}
}

func TestNewDetector_Validation(t *testing.T) {
	if _, err := NewDetector(nil, Config{Phrase: "computer"}, nil, &sttmock.Provider{}, nil); err == nil {
		t.Error("nil device should be rejected")
	}
	if _, err := NewDetector(&audiomock.Device{}, Config{}, nil, &sttmock.Provider{}, nil); err == nil {
		t.Error("empty phrase should be rejected")
	}
	if _, err := NewDetector(&audiomock.Device{}, Config{Phrase: "hey glasses"}, nil, nil, nil); err == nil {
		t.Error("no usable strategy should be rejected")
	}
}

func TestAcousticDetection(t *testing.T) {
	spotter := &kwmock.Spotter{Samples: 512, Rate: 16000, FireAt: []int{3}}
	engine := &kwmock.Engine{Spottable: []string{"computer"}, Spotter: spotter}
	device := &audiomock.Device{Script: script(10, 512*2)}

	d, err := NewDetector(device, Config{Phrase: "computer", PreRoll: 200 * time.Millisecond}, engine, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	events := runAndCollect(t, d)
	if len(events) != 1 {
		t.Fatalf("got %d detections, want 1", len(events))
	}
	ev := events[0]
	if ev.Phrase != "computer" {
		t.Errorf("Phrase = %q", ev.Phrase)
	}
	if ev.Confidence != 1.0 {
		t.Errorf("acoustic Confidence = %v, want 1.0", ev.Confidence)
	}
	if len(ev.PreRoll) == 0 {
		t.Error("detection should carry pre-roll frames")
	}
	// Spotter mandates 512 samples @ 16 kHz = 32 ms frames; a 200 ms ring
	// holds at most 7 frames, and only 4 frames were read before the fire.
	if len(ev.PreRoll) > 4 {
		t.Errorf("pre-roll has %d frames, want at most 4", len(ev.PreRoll))
	}
}

func TestDebounce_SuppressesSustainedTrigger(t *testing.T) {
	spotter := &kwmock.Spotter{Samples: 512, Rate: 16000, FireAt: []int{2, 3, 4, 5}}
	engine := &kwmock.Engine{Spottable: []string{"computer"}, Spotter: spotter}
	device := &audiomock.Device{Script: script(10, 512*2)}

	d, err := NewDetector(device, Config{Phrase: "computer"}, engine, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	events := runAndCollect(t, d)
	if len(events) != 1 {
		t.Errorf("sustained trigger produced %d detections, want 1", len(events))
	}
}

func TestDebounce_HonorsTriggerAfterWindow(t *testing.T) {
	spotter := &kwmock.Spotter{Samples: 512, Rate: 16000, FireAt: []int{0, 3}}
	engine := &kwmock.Engine{Spottable: []string{"computer"}, Spotter: spotter}
	device := &pacedDevice{
		inner: &audiomock.Device{Script: script(6, 512*2)},
		delay: 30 * time.Millisecond,
	}

	d, err := NewDetector(device, Config{Phrase: "computer", Debounce: 50 * time.Millisecond}, engine, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Triggers at frames 0 and 3 are ~90 ms apart, past the 50 ms window.
	events := runAndCollect(t, d)
	if len(events) != 2 {
		t.Errorf("got %d detections, want 2", len(events))
	}
}

func TestTranscriptionFallback(t *testing.T) {
	session := &sttmock.Session{Partials: map[int]string{4: "hey glasses"}}
	provider := &sttmock.Provider{Session: session}
	device := &audiomock.Device{Script: script(8, 640)}

	// No keyword engine: the transcription strategy is selected.
	d, err := NewDetector(device, Config{Phrase: "hey glasses"}, nil, provider, nil)
	if err != nil {
		t.Fatal(err)
	}

	events := runAndCollect(t, d)
	if len(events) != 1 {
		t.Fatalf("got %d detections, want 1", len(events))
	}
	if events[0].Confidence < defaultMatchThreshold {
		t.Errorf("Confidence = %v, want >= %v", events[0].Confidence, defaultMatchThreshold)
	}
	// The rolling transcript is cleared after a match so the same utterance
	// cannot retrigger.
	if session.ResetCount() != 1 {
		t.Errorf("session ResetCount = %d, want 1", session.ResetCount())
	}
	if len(provider.StartStreamCalls) != 1 {
		t.Errorf("StartStream called %d times, want 1", len(provider.StartStreamCalls))
	}
}

func TestTranscriptionNotSpottable_FallsBack(t *testing.T) {
	// Engine present but cannot spot this phrase: transcription wins.
	engine := &kwmock.Engine{Spottable: []string{"computer"}}
	session := &sttmock.Session{Partials: map[int]string{2: "hey glasses"}}
	device := &audiomock.Device{Script: script(5, 640)}

	d, err := NewDetector(device, Config{Phrase: "hey glasses"}, engine, &sttmock.Provider{Session: session}, nil)
	if err != nil {
		t.Fatal(err)
	}
	events := runAndCollect(t, d)
	if len(events) != 1 {
		t.Errorf("got %d detections, want 1", len(events))
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	device := &pacedDevice{
		inner: &audiomock.Device{Script: script(1000, 640)},
		delay: 5 * time.Millisecond,
	}
	d, err := NewDetector(device, Config{Phrase: "hey glasses"}, nil, &sttmock.Provider{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
