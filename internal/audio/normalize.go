package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-audio/wav"
)

// Canonical transport format expected by the assessment engine.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	TargetBitDepth   = 16
)

// headroom keeps full-scale samples away from the int16 boundary so a +1.0
// input cannot quantize out of range.
const headroom = 0.8

// ErrDecode marks input the normalizer could not decode. The caller must
// then send the original recording bytes unchanged under their original
// mime type; a partially processed result is never emitted.
var ErrDecode = errors.New("undecodable audio input")

// Normalized is mono 16-bit little-endian PCM at 16 kHz.
type Normalized struct {
	PCM []byte
}

// Duration-preserving invariant: len(PCM) == 2 * ceil(seconds * 16000).
func (n Normalized) SampleCount() int { return len(n.PCM) / 2 }

// WAV wraps the PCM payload in the fixed 44-byte RIFF/WAVE header the
// recognizer expects for uploads.
func (n Normalized) WAV() []byte {
	dataSize := len(n.PCM)
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	byteRate := TargetSampleRate * TargetChannels * TargetBitDepth / 8
	blockAlign := TargetChannels * TargetBitDepth / 8

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM format tag
	binary.Write(buf, binary.LittleEndian, uint16(TargetChannels))
	binary.Write(buf, binary.LittleEndian, uint32(TargetSampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(TargetBitDepth))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(n.PCM)
	return buf.Bytes()
}

// Normalize decodes a recording into float PCM, downmixes to mono,
// resamples to 16 kHz and quantizes to 16-bit signed samples.
func Normalize(rec Recording) (Normalized, error) {
	if len(rec.Bytes) == 0 {
		return Normalized{}, fmt.Errorf("%w: empty recording", ErrDecode)
	}

	decoder := wav.NewDecoder(bytes.NewReader(rec.Bytes))
	if !decoder.IsValidFile() {
		return Normalized{}, fmt.Errorf("%w: not a RIFF/WAVE container (%s)", ErrDecode, rec.MimeType)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Normalized{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return Normalized{}, fmt.Errorf("%w: empty PCM payload", ErrDecode)
	}
	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	if channels <= 0 || sampleRate <= 0 {
		return Normalized{}, fmt.Errorf("%w: invalid format %d ch @ %d Hz", ErrDecode, channels, sampleRate)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / scale
	}

	mono := downmix(samples, channels)
	resampled := resample(mono, sampleRate, TargetSampleRate)
	return Normalized{PCM: quantize(resampled)}, nil
}

// downmix averages all channels sample-for-sample rather than selecting one.
func downmix(interleaved []float64, channels int) []float64 {
	if channels == 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// resample converts between sample rates by linear interpolation. Output
// length is ceil(duration * toRate) so signal duration is preserved.
func resample(in []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(in) == 0 {
		out := make([]float64, len(in))
		copy(out, in)
		return out
	}
	outLen := (len(in)*toRate + fromRate - 1) / fromRate
	out := make([]float64, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

// quantize converts float samples to 16-bit signed little-endian PCM,
// applying the headroom factor and clamping before scaling so clipped
// input cannot wrap around.
func quantize(samples []float64) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s * headroom
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		var n int16
		if v < 0 {
			n = int16(v * 0x8000)
		} else {
			n = int16(v * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(n))
	}
	return pcm
}
