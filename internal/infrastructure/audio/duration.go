// Package audio probes MP3 clips and optionally plays them on the local
// output device.
package audio

import (
	"bytes"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always decodes to 16-bit stereo.
const bytesPerFrame = 4

// Duration decodes the MP3 header stream and returns the clip length.
func Duration(data []byte) (time.Duration, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("audio: mp3 decoder: %w", err)
	}
	length := dec.Length()
	if length <= 0 || dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("audio: unknown mp3 length")
	}
	frames := length / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(dec.SampleRate()), nil
}

const (
	msPerRune   = 70 * time.Millisecond
	minEstimate = time.Second
)

// EstimateDuration guesses how long text takes to speak at speed when the
// audio cannot be probed.
func EstimateDuration(text string, speed float64) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * msPerRune
	if speed > 0 {
		d = time.Duration(float64(d) / speed)
	}
	return max(d, minEstimate)
}

// ProbeOrEstimate prefers the decoded length and falls back to the text
// estimate.
func ProbeOrEstimate(data []byte, text string, speed float64) time.Duration {
	if d, err := Duration(data); err == nil {
		return d
	}
	return EstimateDuration(text, speed)
}
