package audio

import "math"

// RMS computes the root-mean-square amplitude of little-endian int16 PCM,
// normalised to [0.0, 1.0] where 1.0 is full scale. It is the loudness
// proxy used by the gain normalizer and the energy VAD.
//
// A trailing odd byte is ignored.
func RMS(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples*2; i += 2 {
		s := float64(int16(pcm[i]) | int16(pcm[i+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum/float64(samples)) / 32768.0
}

// clampInt16 clips v to the int16 range. Shared by the gain normalizer and
// the channel downmix.
func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
