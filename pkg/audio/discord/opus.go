package discord

import (
	"fmt"

	"layeh.com/gopus"
)

// Discord voice uses 48 kHz stereo Opus at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
	// opusFrameBytes is the PCM byte size of one Opus frame:
	// 960 samples/channel × 2 channels × 2 bytes/sample.
	opusFrameBytes = opusFrameSize * opusChannels * 2
)

// decoderPool decodes inbound packets with one gopus decoder per SSRC, so
// each speaker's decoder state stays consistent across consecutive frames.
// Not safe for concurrent use; the capture stream owns it.
type decoderPool struct {
	decoders map[uint32]*gopus.Decoder
}

func newDecoderPool() *decoderPool {
	return &decoderPool{decoders: make(map[uint32]*gopus.Decoder)}
}

// decode decodes one Opus packet from the given speaker into little-endian
// int16 PCM bytes. The speaker's decoder is created on first sight.
func (p *decoderPool) decode(ssrc uint32, packet []byte) ([]byte, error) {
	dec, ok := p.decoders[ssrc]
	if !ok {
		var err error
		dec, err = gopus.NewDecoder(opusSampleRate, opusChannels)
		if err != nil {
			return nil, fmt.Errorf("discord: create opus decoder: %w", err)
		}
		p.decoders[ssrc] = dec
	}
	pcm, err := dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("discord: opus decode: %w", err)
	}
	return samplesToBytes(pcm), nil
}

// opusEncoder wraps a gopus encoder for the playback stream.
type opusEncoder struct {
	enc *gopus.Encoder
}

func newOpusEncoder() (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

// encodeFrame encodes up to opusFrameBytes of little-endian int16 PCM into
// one Opus packet. A short chunk (the tail of a reply) is zero-padded to the
// full frame size first; Opus only accepts whole frames.
func (e *opusEncoder) encodeFrame(pcmBytes []byte) ([]byte, error) {
	if len(pcmBytes) > opusFrameBytes {
		return nil, fmt.Errorf("discord: chunk of %d bytes exceeds one opus frame", len(pcmBytes))
	}
	if len(pcmBytes) < opusFrameBytes {
		padded := make([]byte, opusFrameBytes)
		copy(padded, pcmBytes)
		pcmBytes = padded
	}
	opus, err := e.enc.Encode(bytesToSamples(pcmBytes), opusFrameSize, opusFrameBytes)
	if err != nil {
		return nil, fmt.Errorf("discord: opus encode: %w", err)
	}
	return opus, nil
}

func samplesToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

func bytesToSamples(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
