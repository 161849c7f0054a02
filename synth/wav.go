package synth

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Minimal RIFF/WAVE handling: the service emits mono 16-bit PCM and
// accepts 8/16/32-bit PCM sample files, averaging stereo to mono.

// EncodeWAV wraps a mono float buffer as 16-bit PCM WAV bytes.
func EncodeWAV(buf []float32, sampleRate int) []byte {
	dataSize := len(buf) * 2
	out := make([]byte, 0, 44+dataSize)

	out = append(out, []byte("RIFF")...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+dataSize))
	out = append(out, []byte("WAVE")...)

	out = append(out, []byte("fmt ")...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1) // PCM
	out = binary.LittleEndian.AppendUint16(out, 1) // mono
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*2))
	out = binary.LittleEndian.AppendUint16(out, 2)
	out = binary.LittleEndian.AppendUint16(out, 16)

	out = append(out, []byte("data")...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))
	for _, v := range buf {
		f := float64(v)
		if f > 1 {
			f = 1
		}
		if f < -1 {
			f = -1
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(f*32767)))
	}
	return out
}

// DecodeWAV parses PCM WAV bytes into a mono float buffer and its
// sample rate. Multi-channel audio is averaged down.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a WAV file")
	}

	var (
		channels   int
		sampleRate int
		bits       int
		pcm        []byte
		haveFmt    bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("unsupported WAV format %d (PCM only)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word aligned
		}
	}

	if !haveFmt || pcm == nil {
		return nil, 0, fmt.Errorf("missing fmt or data chunk")
	}
	if channels < 1 {
		return nil, 0, fmt.Errorf("bad channel count %d", channels)
	}

	bytesPer := bits / 8
	if bytesPer != 1 && bytesPer != 2 && bytesPer != 4 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d", bits)
	}
	frames := len(pcm) / (bytesPer * channels)
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * bytesPer
			var v float64
			switch bytesPer {
			case 1:
				v = (float64(pcm[off]) - 128) / 128
			case 2:
				v = float64(int16(binary.LittleEndian.Uint16(pcm[off:]))) / 32767
			case 4:
				v = float64(int32(binary.LittleEndian.Uint32(pcm[off:]))) / float64(math.MaxInt32)
			}
			sum += v
		}
		out[f] = float32(sum / float64(channels))
	}
	return out, sampleRate, nil
}

// LoadWAV reads and decodes a sample file.
func LoadWAV(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return DecodeWAV(data)
}
