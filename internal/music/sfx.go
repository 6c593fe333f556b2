package music

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// GenerateBeepWAV synthesizes a short sine beep as a complete 16-bit mono
// RIFF/WAVE file. Used for UI sounds (the card-deal tick) so no asset is
// required.
func GenerateBeepWAV(freq float64, duration float64, sampleRate int) []byte {
	samples := int(duration * float64(sampleRate))
	const (
		numChannels    = 1
		bytesPerSample = 2
	)
	blockAlign := numChannels * bytesPerSample
	byteRate := sampleRate * blockAlign
	dataSize := samples * blockAlign

	buf := make([]byte, 44+dataSize)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataSize))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(buf[20:], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:], numChannels)
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:], 16) // bits per sample
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataSize))

	const amp = 0.3
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(sampleRate)
		sample := math.Sin(2*math.Pi*freq*t) * amp
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		var v int16
		if sample < 0 {
			v = int16(sample * 0x8000)
		} else {
			v = int16(sample * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(v))
	}
	return buf
}

var (
	dealBeepOnce sync.Once
	dealBeepPath string
	dealBeepErr  error
)

// DealBeepPath materializes the generated deal beep as a temp file once per
// process and returns its path, playable through any Factory.
func DealBeepPath() (string, error) {
	dealBeepOnce.Do(func() {
		data := GenerateBeepWAV(880, 0.12, 44100)
		path := filepath.Join(os.TempDir(), "autofighter-deal-beep.wav")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			dealBeepErr = err
			return
		}
		dealBeepPath = path
	})
	return dealBeepPath, dealBeepErr
}
