package playback

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"github.com/saker-ai/chiku/internal/media"
)

// assumedMP3Bitrate is used for compressed audio where only the byte size is known.
const assumedMP3Bitrate = 128_000

// ProbeDuration returns the playing time of an audio payload, or zero when
// it cannot be determined. WAV headers are read exactly; other formats are
// estimated from their size.
func ProbeDuration(p media.Payload) time.Duration {
	if p.Kind != media.KindAudio {
		return 0
	}
	_, data, err := media.DecodeDataURI(p.DataURI)
	if err != nil || len(data) == 0 {
		return 0
	}
	if d, ok := wavDuration(data); ok {
		return d
	}
	if strings.Contains(p.MimeType, "wav") {
		return 0
	}
	return time.Duration(float64(len(data)*8) / assumedMP3Bitrate * float64(time.Second))
}

func wavDuration(data []byte) (time.Duration, bool) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return 0, false
	}
	var byteRate uint32
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, false
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, false
			}
			if remaining := len(data) - body; size > remaining || size < 0 {
				size = remaining
			}
			return time.Duration(float64(size) / float64(byteRate) * float64(time.Second)), true
		}
		offset = body + size + size%2
	}
	return 0, false
}
