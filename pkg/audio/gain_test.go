package audio

import (
	"math"
	"testing"
)

// pcmConst builds a mono int16 PCM block of n samples at a fixed amplitude.
func pcmConst(amplitude int16, n int) []byte {
	out := make([]byte, n*2)
	for i := range n {
		out[i*2] = byte(amplitude)
		out[i*2+1] = byte(amplitude >> 8)
	}
	return out
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name string
		pcm  []byte
		want float64
	}{
		{name: "empty", pcm: nil, want: 0},
		{name: "silence", pcm: pcmConst(0, 160), want: 0},
		{name: "full scale", pcm: pcmConst(32767, 160), want: 0.99997},
		{name: "half scale", pcm: pcmConst(16384, 160), want: 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RMS(tt.pcm)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("RMS() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestNormalizer_GainStaysClamped(t *testing.T) {
	cfg := DefaultGainConfig()
	n := NewNormalizer(cfg)

	// Alternate very quiet and very loud frames; the clamp invariant must
	// hold after every single Process call.
	quiet := pcmConst(300, 320)
	loud := pcmConst(30000, 320)
	for i := range 200 {
		frame := AudioFrame{Data: quiet, SampleRate: 16000, Channels: 1}
		if i%2 == 1 {
			frame.Data = loud
		}
		n.Process(frame)
		if g := n.Gain(); g < cfg.MinGain || g > cfg.MaxGain {
			t.Fatalf("frame %d: gain %f outside [%f, %f]", i, g, cfg.MinGain, cfg.MaxGain)
		}
	}
}

func TestNormalizer_NearSilencePassesThrough(t *testing.T) {
	n := NewNormalizer(DefaultGainConfig())
	frame := AudioFrame{Data: pcmConst(10, 320), SampleRate: 16000, Channels: 1}

	out := n.Process(frame)
	if &out.Data[0] != &frame.Data[0] {
		t.Error("near-silent frame should be passed through without copying")
	}
	if n.Gain() != 1.0 {
		t.Errorf("gain moved on near-silent input: %f", n.Gain())
	}
}

func TestNormalizer_BoostsQuietSpeech(t *testing.T) {
	n := NewNormalizer(DefaultGainConfig())
	// Quiet but clearly above the silence floor (~0.03 RMS).
	frame := AudioFrame{Data: pcmConst(1000, 320), SampleRate: 16000, Channels: 1}

	var out AudioFrame
	for range 20 {
		out = n.Process(frame)
	}
	if n.Gain() <= 1.0 {
		t.Fatalf("expected boost gain > 1.0, got %f", n.Gain())
	}
	if RMS(out.Data) <= RMS(frame.Data) {
		t.Error("expected boosted output to be louder than input")
	}
}

func TestNormalizer_AttackFasterThanRelease(t *testing.T) {
	n := NewNormalizer(DefaultGainConfig())
	quiet := AudioFrame{Data: pcmConst(1000, 320), SampleRate: 16000, Channels: 1}
	loud := AudioFrame{Data: pcmConst(20000, 320), SampleRate: 16000, Channels: 1}

	// Drive gain up with quiet input.
	for range 50 {
		n.Process(quiet)
	}
	raised := n.Gain()
	if raised <= 1.0 {
		t.Fatalf("setup: expected raised gain, got %f", raised)
	}

	// One loud frame: release is slow, so gain barely moves.
	n.Process(loud)
	if drop := raised - n.Gain(); drop > raised*0.05 {
		t.Errorf("release too fast: gain dropped %f of %f in one frame", drop, raised)
	}
}

func TestNormalizer_ClipsToInt16(t *testing.T) {
	// MinGain forces a 4x boost on an already loud signal, so every scaled
	// sample lands beyond full scale and must clip rather than wrap.
	n := NewNormalizer(GainConfig{MinGain: 4.0, MaxGain: 8.0})
	frame := AudioFrame{Data: pcmConst(20000, 320), SampleRate: 16000, Channels: 1}

	var out AudioFrame
	for range 10 {
		out = n.Process(frame)
	}
	for i := 0; i+1 < len(out.Data); i += 2 {
		s := int16(out.Data[i]) | int16(out.Data[i+1])<<8
		if s != 32767 {
			t.Fatalf("sample %d = %d, want clipped to 32767", i/2, s)
		}
	}
}

func TestNormalizer_Reset(t *testing.T) {
	n := NewNormalizer(DefaultGainConfig())
	for range 20 {
		n.Process(AudioFrame{Data: pcmConst(1000, 320), SampleRate: 16000, Channels: 1})
	}
	n.Reset()
	if n.Gain() != 1.0 || n.RunningRMS() != 0 || n.FrameCount() != 0 {
		t.Errorf("Reset did not clear state: gain=%f rms=%f frames=%d",
			n.Gain(), n.RunningRMS(), n.FrameCount())
	}
}
