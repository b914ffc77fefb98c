package whisper

// samplesFloat32 converts interleaved 16-bit little-endian PCM into the
// normalised mono float32 samples whisper.cpp consumes. Multi-channel input
// is down-mixed by averaging the channels of each frame. A trailing partial
// frame is dropped.
func samplesFloat32(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	mono := make([]float32, frames)
	for i := range frames {
		base := i * channels * 2
		var sum int32
		for ch := range channels {
			off := base + ch*2
			sum += int32(int16(pcm[off]) | int16(pcm[off+1])<<8)
		}
		mono[i] = float32(sum) / float32(channels) / 32768
	}
	return mono
}
