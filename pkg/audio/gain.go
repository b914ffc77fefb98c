package audio

// GainConfig holds the tunables for the automatic gain control stage.
// All RMS values are normalised to [0.0, 1.0] full scale.
type GainConfig struct {
	// TargetRMS is the loudness the normalizer steers towards. Typical: 0.10.
	TargetRMS float64

	// MinGain and MaxGain clamp the computed gain. The normalizer guarantees
	// MinGain ≤ current gain ≤ MaxGain after every Process call.
	MinGain float64
	MaxGain float64

	// RMSSmoothing is the EMA factor applied to the per-frame RMS when
	// updating the running average. Typical: 0.1.
	RMSSmoothing float64

	// AttackWeight is the fraction moved towards the desired gain per frame
	// when the gain needs to increase. High (0.9) so soft speech is boosted
	// within a frame or two.
	AttackWeight float64

	// ReleaseWeight is the fraction moved towards the desired gain per frame
	// when the gain needs to decrease. Low (0.001) to avoid audible pumping
	// when a loud passage ends.
	ReleaseWeight float64

	// SilenceFloor is the running-RMS level below which the frame is treated
	// as near-silence and passed through unchanged, so pure noise is never
	// amplified towards the target.
	SilenceFloor float64
}

// DefaultGainConfig returns the gain settings used when the configuration
// file does not override them.
func DefaultGainConfig() GainConfig {
	return GainConfig{
		TargetRMS:     0.10,
		MinGain:       0.5,
		MaxGain:       8.0,
		RMSSmoothing:  0.1,
		AttackWeight:  0.9,
		ReleaseWeight: 0.001,
		SilenceFloor:  0.004,
	}
}

// Normalizer is the automatic gain control stage. It tracks a running RMS
// of the input and scales each frame towards the target loudness, with fast
// attack and slow release smoothing.
//
// A Normalizer belongs to a single capture session and is not safe for
// concurrent use. Create a fresh one (or call Reset) per session.
type Normalizer struct {
	cfg GainConfig

	currentGain float64
	runningRMS  float64
	frameCount  int
}

// NewNormalizer creates a Normalizer with unity gain and no RMS history.
// Zero-valued fields in cfg fall back to DefaultGainConfig values.
func NewNormalizer(cfg GainConfig) *Normalizer {
	def := DefaultGainConfig()
	if cfg.TargetRMS <= 0 {
		cfg.TargetRMS = def.TargetRMS
	}
	if cfg.MinGain <= 0 {
		cfg.MinGain = def.MinGain
	}
	if cfg.MaxGain <= 0 {
		cfg.MaxGain = def.MaxGain
	}
	if cfg.RMSSmoothing <= 0 {
		cfg.RMSSmoothing = def.RMSSmoothing
	}
	if cfg.AttackWeight <= 0 {
		cfg.AttackWeight = def.AttackWeight
	}
	if cfg.ReleaseWeight <= 0 {
		cfg.ReleaseWeight = def.ReleaseWeight
	}
	if cfg.SilenceFloor <= 0 {
		cfg.SilenceFloor = def.SilenceFloor
	}
	return &Normalizer{cfg: cfg, currentGain: 1.0}
}

// Process applies gain control to one frame and returns the adjusted frame.
// The input frame is not modified. Near-silent input (running RMS below the
// silence floor) is passed through unchanged.
func (n *Normalizer) Process(frame AudioFrame) AudioFrame {
	rms := RMS(frame.Data)
	n.frameCount++

	if n.runningRMS == 0 {
		n.runningRMS = rms
	} else {
		a := n.cfg.RMSSmoothing
		n.runningRMS = n.runningRMS*(1-a) + rms*a
	}

	if n.runningRMS < n.cfg.SilenceFloor {
		return frame
	}

	desired := n.cfg.TargetRMS / n.runningRMS
	if desired < n.cfg.MinGain {
		desired = n.cfg.MinGain
	} else if desired > n.cfg.MaxGain {
		desired = n.cfg.MaxGain
	}

	// Fast attack, slow release.
	w := n.cfg.ReleaseWeight
	if desired > n.currentGain {
		w = n.cfg.AttackWeight
	}
	n.currentGain += (desired - n.currentGain) * w

	// The smoothing above interpolates between two in-range values, but
	// guard the invariant explicitly against configuration edge cases.
	if n.currentGain < n.cfg.MinGain {
		n.currentGain = n.cfg.MinGain
	} else if n.currentGain > n.cfg.MaxGain {
		n.currentGain = n.cfg.MaxGain
	}

	if n.currentGain == 1.0 {
		return frame
	}

	out := make([]byte, len(frame.Data))
	for i := 0; i+1 < len(frame.Data); i += 2 {
		s := float64(int16(frame.Data[i]) | int16(frame.Data[i+1])<<8)
		v := clampInt16(s * n.currentGain)
		out[i] = byte(v)
		out[i+1] = byte(v >> 8)
	}
	frame.Data = out
	return frame
}

// Gain returns the current smoothed gain value.
func (n *Normalizer) Gain() float64 { return n.currentGain }

// RunningRMS returns the exponential moving average of the input RMS.
func (n *Normalizer) RunningRMS() float64 { return n.runningRMS }

// FrameCount returns how many frames have been processed since creation or
// the last Reset.
func (n *Normalizer) FrameCount() int { return n.frameCount }

// Reset restores unity gain and clears the RMS history. Called at the start
// of each capture session.
func (n *Normalizer) Reset() {
	n.currentGain = 1.0
	n.runningRMS = 0
	n.frameCount = 0
}
