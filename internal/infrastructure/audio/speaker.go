package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/go-mp3"
	"github.com/hajimehoshi/oto/v2"

	"liveTTS/internal/domain"
)

const DefaultSampleRate = 44100

// Speaker plays queue items on the default output device. oto allows a
// single context per process, so every clip is resampled to its rate.
type Speaker struct {
	sampleRate int
	logger     *log.Logger

	once    sync.Once
	ctx     *oto.Context
	initErr error

	mu sync.Mutex
}

func NewSpeaker(sampleRate int, logger *log.Logger) *Speaker {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Speaker{sampleRate: sampleRate, logger: logger.WithPrefix("speaker")}
}

func (s *Speaker) init() error {
	s.once.Do(func() {
		ctx, ready, err := oto.NewContext(s.sampleRate, 2, 2)
		if err != nil {
			s.initErr = fmt.Errorf("audio: oto context: %w", err)
			return
		}
		<-ready
		s.ctx = ctx
	})
	return s.initErr
}

// Play blocks until the clip finished or ctx is cancelled.
func (s *Speaker) Play(ctx context.Context, item *domain.QueueItem) error {
	if item == nil || len(item.AudioData) == 0 {
		return fmt.Errorf("audio: empty clip")
	}
	if err := s.init(); err != nil {
		return err
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(item.AudioData))
	if err != nil {
		return fmt.Errorf("audio: mp3 decoder: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return fmt.Errorf("audio: decode: %w", err)
	}
	if dec.SampleRate() != s.sampleRate {
		pcm = resample(pcm, dec.SampleRate(), s.sampleRate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player := s.ctx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.SetVolume(min(max(item.Volume, 0), 1))
	player.Play()

	ticker := time.NewTicker(15 * time.Millisecond)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// resample converts 16-bit little endian stereo PCM between sample rates
// with linear interpolation.
func resample(pcm []byte, from, to int) []byte {
	if from <= 0 || to <= 0 || from == to {
		return pcm
	}
	inFrames := len(pcm) / bytesPerFrame
	if inFrames < 2 {
		return pcm
	}
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	out := make([]byte, outFrames*bytesPerFrame)

	sample := func(frame, ch int) float64 {
		off := frame*bytesPerFrame + ch*2
		return float64(int16(binary.LittleEndian.Uint16(pcm[off:])))
	}
	ratio := float64(from) / float64(to)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= inFrames-1 {
			j = inFrames - 2
		}
		frac := pos - float64(j)
		for ch := 0; ch < 2; ch++ {
			v := sample(j, ch)*(1-frac) + sample(j+1, ch)*frac
			binary.LittleEndian.PutUint16(out[i*bytesPerFrame+ch*2:], uint16(int16(v)))
		}
	}
	return out
}
