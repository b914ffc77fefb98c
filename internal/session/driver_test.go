package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hearken-ai/hearken/internal/capture"
	"github.com/hearken-ai/hearken/internal/wake"
	"github.com/hearken-ai/hearken/pkg/audio"
	audiomock "github.com/hearken-ai/hearken/pkg/audio/mock"
	"github.com/hearken-ai/hearken/pkg/provider/llm"
	llmmock "github.com/hearken-ai/hearken/pkg/provider/llm/mock"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
	sttmock "github.com/hearken-ai/hearken/pkg/provider/stt/mock"
	"github.com/hearken-ai/hearken/pkg/provider/tts"
	ttsmock "github.com/hearken-ai/hearken/pkg/provider/tts/mock"
	vadmock "github.com/hearken-ai/hearken/pkg/provider/vad/mock"
)

const (
	frameSamples = 320 // 20 ms at 16 kHz
	frameBytes   = frameSamples * 2
)

// recordingObserver records every callback for assertion.
type recordingObserver struct {
	mu        sync.Mutex
	states    []State
	turns     []Turn
	started   int
	finished  int
	endReason EndReason
	errs      []error
}

func (o *recordingObserver) SessionStarted(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) StateChanged(s State, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordingObserver) TranscriptReady(int, *capture.Result)               {}
func (o *recordingObserver) ResponseReady(int, string, *llm.CompletionResponse) {}

func (o *recordingObserver) SessionFinished(_ string, reason EndReason, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished++
	o.endReason = reason
}

func (o *recordingObserver) Error(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) stateSequence() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]State, len(o.states))
	copy(out, o.states)
	return out
}

// onceVAD fires on its first classification only. Used as the driver's
// follow-up VAD so the first follow-up window finds speech and later ones
// time out. It deliberately does not implement vad.Resetter.
type onceVAD struct {
	mu    sync.Mutex
	fired bool
}

func (v *onceVAD) IsSpeech([]byte, int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fired {
		return false
	}
	v.fired = true
	return true
}

func frames(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, frameBytes)
	}
	return out
}

// captureVAD is a classifier script spanning two captures. The first sees 8
// speech frames after 2 silent ones and stops on silence at frame 19, then
// pads 5 tail frames (25 classifications). A follow-up capture starts at
// index 25 with its 2 seeded pre-roll frames and sees 8 more speech frames.
func captureVAD() *vadmock.Classifier {
	script := make([]bool, 35)
	for i := 2; i < 10; i++ {
		script[i] = true
	}
	for i := 27; i < 35; i++ {
		script[i] = true
	}
	return &vadmock.Classifier{Script: script}
}

func newCapturer(t *testing.T, classifier *vadmock.Classifier, byeVariants []string) *capture.Capturer {
	t.Helper()
	c, err := capture.New(capture.Config{
		GracePeriod:      100 * time.Millisecond,
		SilenceThreshold: 200 * time.Millisecond,
		MinSpeechFrames:  3,
		MaxDuration:      10 * time.Second,
		TailPadding:      100 * time.Millisecond,
		ByeVariants:      byeVariants,
	}, audio.NewNormalizer(audio.DefaultGainConfig()), classifier, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

type fixture struct {
	device   *audiomock.Device
	llm      *llmmock.Provider
	tts      *ttsmock.Provider
	session  *sttmock.Session
	observer *recordingObserver
	driver   *Driver
}

func newFixture(t *testing.T, sttSession *sttmock.Session, followupVAD *onceVAD, byeVariants []string) *fixture {
	t.Helper()
	f := &fixture{
		device:   &audiomock.Device{Script: frames(60)},
		llm:      &llmmock.Provider{Replies: []string{"it is noon", "you are welcome"}},
		tts:      &ttsmock.Provider{},
		session:  sttSession,
		observer: &recordingObserver{},
	}

	driver, err := New(Config{
		SystemPrompt:   "be brief",
		FollowupWindow: 200 * time.Millisecond,
		EchoCooldown:   40 * time.Millisecond,
		SettleDelay:    time.Millisecond,
		PreRoll:        100 * time.Millisecond,
	}, Deps{
		Device:   f.device,
		Gate:     audio.NewGate(),
		Capturer: newCapturer(t, captureVAD(), byeVariants),
		VAD:      followupVAD,
		STT:      &sttmock.Provider{Session: sttSession},
		LLM:      f.llm,
		TTS:      f.tts,
		Observer: f.observer,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.driver = driver
	return f
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Error("missing deps should be rejected")
	}
}

func TestRun_SingleTurnThenFollowupTimeout(t *testing.T) {
	sttSession := &sttmock.Session{Final: stt.Transcript{Text: "what time is it", Confidence: 0.9}}
	f := newFixture(t, sttSession, &onceVAD{fired: true}, nil) // follow-up VAD never fires

	reason, err := f.driver.Run(context.Background(), wake.Detection{Phrase: "hey glasses"})
	if err != nil {
		t.Fatal(err)
	}
	if reason != EndFollowupTimeout {
		t.Errorf("end reason = %v, want followup_timeout", reason)
	}
	if f.driver.State() != StateIdle {
		t.Errorf("final state = %v, want idle", f.driver.State())
	}

	want := []State{StateRecording, StateThinking, StateSpeaking, StateAwaitFollowup, StateIdle}
	got := f.observer.stateSequence()
	if len(got) != len(want) {
		t.Fatalf("state sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("state sequence = %v, want %v", got, want)
		}
	}

	if len(f.device.Played()) != 1 {
		t.Errorf("played %d replies, want 1", len(f.device.Played()))
	}
	if texts := f.tts.SynthesizedTexts(); len(texts) != 1 || texts[0] != "it is noon" {
		t.Errorf("synthesized %v, want [it is noon]", texts)
	}
	if f.observer.started != 1 || f.observer.finished != 1 {
		t.Errorf("started/finished = %d/%d, want 1/1", f.observer.started, f.observer.finished)
	}
}

func TestRun_MultiTurnViaFollowup(t *testing.T) {
	sttSession := &sttmock.Session{Final: stt.Transcript{Text: "thanks a lot", Confidence: 0.9}}
	f := newFixture(t, sttSession, &onceVAD{}, nil) // fires once: one follow-up turn

	reason, err := f.driver.Run(context.Background(), wake.Detection{Phrase: "hey glasses"})
	if err != nil {
		t.Fatal(err)
	}
	if reason != EndFollowupTimeout {
		t.Errorf("end reason = %v, want followup_timeout", reason)
	}
	if got := f.llm.CallCount(); got != 2 {
		t.Errorf("reasoning called %d times, want 2", got)
	}
	if len(f.device.Played()) != 2 {
		t.Errorf("played %d replies, want 2", len(f.device.Played()))
	}

	// AwaitFollowup must precede the second Recording.
	seq := f.observer.stateSequence()
	firstFollowup, secondRecording := -1, -1
	recordings := 0
	for i, s := range seq {
		switch s {
		case StateAwaitFollowup:
			if firstFollowup < 0 {
				firstFollowup = i
			}
		case StateRecording:
			recordings++
			if recordings == 2 {
				secondRecording = i
			}
		}
	}
	if recordings != 2 {
		t.Fatalf("state sequence %v should contain two Recording phases", seq)
	}
	if firstFollowup < 0 || firstFollowup > secondRecording {
		t.Errorf("state sequence %v: AwaitFollowup must precede the second Recording", seq)
	}
}

func TestRun_ByePhraseEndsSession(t *testing.T) {
	sttSession := &sttmock.Session{
		Partials: map[int]string{8: "thanks bye glasses"},
		Final:    stt.Transcript{Text: "thanks bye glasses", Confidence: 0.9},
	}
	f := newFixture(t, sttSession, &onceVAD{fired: true}, []string{"bye glasses"})

	reason, err := f.driver.Run(context.Background(), wake.Detection{Phrase: "hey glasses"})
	if err != nil {
		t.Fatal(err)
	}
	if reason != EndByePhrase {
		t.Errorf("end reason = %v, want bye_phrase", reason)
	}
	// The bye turn is still answered and spoken before the session ends.
	if len(f.device.Played()) != 1 {
		t.Errorf("played %d replies, want 1", len(f.device.Played()))
	}
	// The reasoning call sees the cleaned transcript.
	if calls := f.llm.Calls; len(calls) == 1 {
		msgs := calls[0].Req.Messages
		if msgs[len(msgs)-1].Content != "thanks" {
			t.Errorf("reasoning saw %q, want %q (bye tokens consumed)", msgs[len(msgs)-1].Content, "thanks")
		}
	} else {
		t.Errorf("reasoning called %d times, want 1", len(calls))
	}
}

func TestRun_Cancelled(t *testing.T) {
	sttSession := &sttmock.Session{}
	f := newFixture(t, sttSession, &onceVAD{fired: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reason, err := f.driver.Run(ctx, wake.Detection{})
	if reason != EndCancelled {
		t.Errorf("end reason = %v, want cancelled", reason)
	}
	if err == nil {
		t.Error("cancelled run should return an error")
	}
}

func TestSpeak_GateHeldAndReleased(t *testing.T) {
	gate := audio.NewGate()
	device := &audiomock.Device{}

	gateChecker := &gateCheckTTS{gate: gate}
	driver, err := New(Config{SettleDelay: time.Millisecond}, Deps{
		Device:   device,
		Gate:     gate,
		Capturer: newCapturer(t, &vadmock.Classifier{}, nil),
		VAD:      &onceVAD{},
		STT:      &sttmock.Provider{},
		LLM:      &llmmock.Provider{},
		TTS:      gateChecker,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := driver.Speak(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if !gateChecker.pausedDuringSynthesis {
		t.Error("gate should be paused while speaking")
	}
	if gate.Paused() {
		t.Error("gate must be released after speaking")
	}
}

// gateCheckTTS records whether the gate was paused at synthesis time.
type gateCheckTTS struct {
	gate                  *audio.Gate
	pausedDuringSynthesis bool
}

func (g *gateCheckTTS) Synthesize(context.Context, string, tts.VoiceProfile) ([]byte, error) {
	g.pausedDuringSynthesis = g.gate.Paused()
	return make([]byte, 320), nil
}

func (g *gateCheckTTS) SampleRate() int { return 22050 }

func (g *gateCheckTTS) ListVoices(context.Context) ([]tts.VoiceProfile, error) { return nil, nil }
