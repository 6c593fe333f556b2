package music

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBeepWAVHeader(t *testing.T) {
	wav := GenerateBeepWAV(880, 0.1, 44100)
	samples := int(0.1 * 44100)
	require.Len(t, wav, 44+samples*2)

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))

	assert.EqualValues(t, 1, binary.LittleEndian.Uint16(wav[20:22]), "PCM format")
	assert.EqualValues(t, 1, binary.LittleEndian.Uint16(wav[22:24]), "mono")
	assert.EqualValues(t, 44100, binary.LittleEndian.Uint32(wav[24:28]))
	assert.EqualValues(t, 16, binary.LittleEndian.Uint16(wav[34:36]), "bit depth")
	assert.EqualValues(t, samples*2, binary.LittleEndian.Uint32(wav[40:44]))
}

func TestGenerateBeepWAVStartsAtZeroCrossing(t *testing.T) {
	wav := GenerateBeepWAV(440, 0.01, 44100)
	first := int16(binary.LittleEndian.Uint16(wav[44:46]))
	assert.Zero(t, first, "sine starts at zero amplitude")

	// The waveform must actually contain signal past the first sample.
	var peak int16
	for i := 44; i+1 < len(wav); i += 2 {
		v := int16(binary.LittleEndian.Uint16(wav[i : i+2]))
		if v > peak {
			peak = v
		}
	}
	assert.Greater(t, peak, int16(5000))
}

func TestDealBeepPathIsStable(t *testing.T) {
	p1, err := DealBeepPath()
	require.NoError(t, err)
	require.NotEmpty(t, p1)

	p2, err := DealBeepPath()
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}
