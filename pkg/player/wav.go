package player

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	wavHeaderSize = 44
	renderBlock   = 1024
)

// WriteWAV renders frames of audio from r and writes them to w as a 16-bit
// stereo PCM WAV file.
func WriteWAV(w io.Writer, r Renderer, sampleRate, frames int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if frames < 0 {
		return fmt.Errorf("invalid frame count: %d", frames)
	}

	dataLen := uint32(frames * bytesPerFrame)
	if _, err := w.Write(wavHeader(sampleRate, dataLen)); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	left := make([]float32, renderBlock)
	right := make([]float32, renderBlock)
	pcm := make([]byte, renderBlock*bytesPerFrame)

	for done := 0; done < frames; {
		n := min(renderBlock, frames-done)
		clear(left[:n])
		clear(right[:n])
		r.Process(n, left[:n], right[:n])

		encodePCM(pcm, left[:n], right[:n])
		if _, err := w.Write(pcm[:n*bytesPerFrame]); err != nil {
			return fmt.Errorf("write wav data: %w", err)
		}
		done += n
	}
	return nil
}

func wavHeader(sampleRate int, dataLen uint32) []byte {
	header := make([]byte, wavHeaderSize)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], 36+dataLen)
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:], 2)
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*bytesPerFrame))
	binary.LittleEndian.PutUint16(header[32:], bytesPerFrame)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], dataLen)
	return header
}
