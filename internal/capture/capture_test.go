package capture

import (
	"context"
	"testing"
	"time"

	"github.com/hearken-ai/hearken/pkg/audio"
	audiomock "github.com/hearken-ai/hearken/pkg/audio/mock"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
	sttmock "github.com/hearken-ai/hearken/pkg/provider/stt/mock"
	vadmock "github.com/hearken-ai/hearken/pkg/provider/vad/mock"
)

const (
	frameSamples = 320 // 20 ms at 16 kHz
	frameBytes   = frameSamples * 2
)

var streamCfg = audio.StreamConfig{SampleRate: 16000, Channels: 1, FrameSamples: frameSamples}

func frames(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, frameBytes)
	}
	return out
}

// vadScript builds a per-frame speech script: silent for pre frames, speech
// for speech frames, silent afterwards.
func vadScript(pre, speech int) []bool {
	script := make([]bool, pre+speech)
	for i := pre; i < pre+speech; i++ {
		script[i] = true
	}
	return script
}

func newCapturer(t *testing.T, cfg Config, classifier *vadmock.Classifier) *Capturer {
	t.Helper()
	c, err := New(cfg, audio.NewNormalizer(audio.DefaultGainConfig()), classifier, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// testConfig uses short, frame-aligned timeouts: grace 5 frames, silence gap
// 10 frames, tail 5 frames.
func testConfig() Config {
	return Config{
		GracePeriod:      100 * time.Millisecond,
		SilenceThreshold: 200 * time.Millisecond,
		MinSpeechFrames:  3,
		MaxDuration:      10 * time.Second,
		TailPadding:      100 * time.Millisecond,
		ByeVariants:      []string{"bye glasses"},
		DoneVariants:     []string{"done"},
	}
}

func TestNew_Validation(t *testing.T) {
	gain := audio.NewNormalizer(audio.DefaultGainConfig())
	if _, err := New(Config{}, nil, &vadmock.Classifier{}, nil); err == nil {
		t.Error("nil gain should be rejected")
	}
	if _, err := New(Config{}, gain, nil, nil); err == nil {
		t.Error("nil classifier should be rejected")
	}
}

func TestCapture_SilenceStopWithTailPadding(t *testing.T) {
	// Speech on frames 2..9, silence after. The silence gap (10 frames)
	// elapses at frame 19, then 5 tail frames are appended: 25 frames total.
	classifier := &vadmock.Classifier{Script: vadScript(2, 8)}
	session := &sttmock.Session{Final: stt.Transcript{Text: "turn on the lights", Confidence: 0.92}}
	stream := audiomock.NewStream(streamCfg, frames(40))

	c := newCapturer(t, testConfig(), classifier)
	res, err := c.Capture(context.Background(), stream, session, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if res.StopReason != StopSilence {
		t.Errorf("StopReason = %v, want silence", res.StopReason)
	}
	if got, want := len(res.Audio), 25*frameBytes; got != want {
		t.Errorf("captured %d bytes, want %d (20 listening + 5 tail frames)", got, want)
	}
	if res.AudioDuration != 25*20*time.Millisecond {
		t.Errorf("AudioDuration = %v", res.AudioDuration)
	}
	if res.Transcript != "turn on the lights" {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	if res.CleanTranscript != res.Transcript {
		t.Errorf("no stopword was spoken, CleanTranscript should equal Transcript, got %q", res.CleanTranscript)
	}
	if res.Confidence != 0.92 {
		t.Errorf("Confidence = %v", res.Confidence)
	}
}

func TestCapture_ByePhraseEndsSegmentAndSession(t *testing.T) {
	classifier := &vadmock.Classifier{Script: vadScript(2, 20)}
	session := &sttmock.Session{
		Partials: map[int]string{8: "thanks bye glasses"},
		Final:    stt.Transcript{Text: "thanks bye glasses", Confidence: 0.9},
	}
	stream := audiomock.NewStream(streamCfg, frames(40))

	c := newCapturer(t, testConfig(), classifier)
	res, err := c.Capture(context.Background(), stream, session, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if res.StopReason != StopByePhrase {
		t.Fatalf("StopReason = %v, want bye_phrase", res.StopReason)
	}
	if !res.StopReason.EndsSession() {
		t.Error("bye phrase should end the session")
	}
	if res.CleanTranscript != "thanks" {
		t.Errorf("CleanTranscript = %q, want %q (bye tokens consumed)", res.CleanTranscript, "thanks")
	}
	if res.Transcript != "thanks bye glasses" {
		t.Errorf("Transcript = %q, verbatim text should be kept", res.Transcript)
	}
	// Non-forced stop after speech: tail padding applies. 9 listening
	// frames + 5 tail frames.
	if got, want := len(res.Audio), 14*frameBytes; got != want {
		t.Errorf("captured %d bytes, want %d", got, want)
	}
}

func TestCapture_DoneWordEndsOnlySegment(t *testing.T) {
	classifier := &vadmock.Classifier{Script: vadScript(2, 20)}
	session := &sttmock.Session{
		Partials: map[int]string{6: "turn off the lights done"},
		Final:    stt.Transcript{Text: "turn off the lights done", Confidence: 0.88},
	}
	stream := audiomock.NewStream(streamCfg, frames(40))

	c := newCapturer(t, testConfig(), classifier)
	res, err := c.Capture(context.Background(), stream, session, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if res.StopReason != StopDoneWord {
		t.Fatalf("StopReason = %v, want done_word", res.StopReason)
	}
	if res.StopReason.EndsSession() {
		t.Error("done word should not end the session")
	}
	if res.CleanTranscript != "turn off the lights" {
		t.Errorf("CleanTranscript = %q", res.CleanTranscript)
	}
}

func TestCapture_NoSpeechTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.NoSpeechTimeout = 200 * time.Millisecond

	classifier := &vadmock.Classifier{} // never speech
	session := &sttmock.Session{Final: stt.Transcript{Text: "should not appear"}}
	stream := audiomock.NewStream(streamCfg, frames(40))

	c := newCapturer(t, cfg, classifier)
	res, err := c.Capture(context.Background(), stream, session, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if res.StopReason != StopNoSpeechTimeout {
		t.Fatalf("StopReason = %v, want no_speech_timeout", res.StopReason)
	}
	if res.Transcript != "" {
		t.Errorf("Transcript = %q, want empty when speech never started", res.Transcript)
	}
	// Forced stop: exactly the 10 frames up to the timeout, no tail.
	if got, want := len(res.Audio), 10*frameBytes; got != want {
		t.Errorf("captured %d bytes, want %d", got, want)
	}
}

func TestCapture_HardCapSkipsTail(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDuration = 200 * time.Millisecond

	classifier := &vadmock.Classifier{Default: true} // constant speech
	session := &sttmock.Session{Final: stt.Transcript{Text: "still talking"}}
	stream := audiomock.NewStream(streamCfg, frames(40))

	c := newCapturer(t, cfg, classifier)
	res, err := c.Capture(context.Background(), stream, session, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if res.StopReason != StopCap {
		t.Fatalf("StopReason = %v, want cap", res.StopReason)
	}
	if got, want := len(res.Audio), 10*frameBytes; got != want {
		t.Errorf("captured %d bytes, want %d (no tail on forced stop)", got, want)
	}
}

func TestCapture_ManualStop(t *testing.T) {
	stopCh := make(chan struct{})
	close(stopCh)

	classifier := &vadmock.Classifier{}
	session := &sttmock.Session{}
	stream := audiomock.NewStream(streamCfg, frames(40))

	c := newCapturer(t, testConfig(), classifier)
	res, err := c.Capture(context.Background(), stream, session, Options{Stop: stopCh})
	if err != nil {
		t.Fatal(err)
	}

	if res.StopReason != StopManual {
		t.Fatalf("StopReason = %v, want manual_stop", res.StopReason)
	}
	if len(res.Audio) != 0 {
		t.Errorf("pre-armed stop should capture no audio, got %d bytes", len(res.Audio))
	}
}

func TestCapture_PreRollSeedsSpeechAndAudio(t *testing.T) {
	// Speech is present in the seeded frames only.
	classifier := &vadmock.Classifier{Script: vadScript(0, 5)}
	session := &sttmock.Session{}

	preRoll := make([]audio.AudioFrame, 5)
	for i := range preRoll {
		preRoll[i] = audio.AudioFrame{Data: make([]byte, frameBytes), SampleRate: 16000, Channels: 1}
	}

	stopCh := make(chan struct{})
	close(stopCh)
	stream := audiomock.NewStream(streamCfg, frames(10))

	c := newCapturer(t, testConfig(), classifier)
	res, err := c.Capture(context.Background(), stream, session, Options{PreRoll: preRoll, Stop: stopCh})
	if err != nil {
		t.Fatal(err)
	}

	if got, want := len(res.Audio), 5*frameBytes; got != want {
		t.Errorf("captured %d bytes, want %d (seeded pre-roll only)", got, want)
	}
	// Seeded frames were fed to the engine too.
	if session.FedCount() != 5 {
		t.Errorf("engine saw %d frames, want 5", session.FedCount())
	}
}

func TestCapture_ContextCancelled(t *testing.T) {
	classifier := &vadmock.Classifier{}
	session := &sttmock.Session{}
	stream := audiomock.NewStream(streamCfg, frames(40))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newCapturer(t, testConfig(), classifier)
	if _, err := c.Capture(ctx, stream, session, Options{}); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCapture_ResetsTranscriptionPerSegment(t *testing.T) {
	classifier := &vadmock.Classifier{}
	session := &sttmock.Session{}

	cfg := testConfig()
	cfg.NoSpeechTimeout = 60 * time.Millisecond

	c := newCapturer(t, cfg, classifier)
	for i := 1; i <= 2; i++ {
		stream := audiomock.NewStream(streamCfg, frames(5))
		if _, err := c.Capture(context.Background(), stream, session, Options{}); err != nil {
			t.Fatal(err)
		}
		if session.ResetCount() != i {
			t.Errorf("session ResetCount = %d after capture %d, want %d", session.ResetCount(), i, i)
		}
	}
	// Gain and VAD state are session-scoped, not segment-scoped: only an
	// explicit Reset recalibrates.
	if classifier.ResetCount() != 0 {
		t.Errorf("vad ResetCount = %d after two captures, want 0", classifier.ResetCount())
	}
	c.Reset()
	if classifier.ResetCount() != 1 {
		t.Errorf("vad ResetCount = %d after capturer reset, want 1", classifier.ResetCount())
	}
}
