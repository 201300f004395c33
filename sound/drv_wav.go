// drv_wav renders beeps into a WAV file.
//
// Audio is buffered in memory in its entirety and written to disk
// when the driver is closed, which keeps the per-beep cost trivial.

package sound

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavSampleRate is the rate we render beeps at.
const wavSampleRate = 44100

// WavPlayer accumulates rendered beeps and encodes them as a WAV file
// on Close.
type WavPlayer struct {

	// path is where the WAV file is written.
	path string

	// samples holds the rendered 8-bit audio.
	samples []int
}

// GetName returns the name of this driver.
func (wp *WavPlayer) GetName() string {
	return "wav"
}

// SetPath chooses the output file.
func (wp *WavPlayer) SetPath(path string) {
	wp.path = path
}

// Beep renders a square wave of the given period, volume and duration
// into the sample buffer.
func (wp *WavPlayer) Beep(period uint16, volume uint8, duration time.Duration) error {
	if period == 0 || volume == 0 {
		return nil
	}

	// The guest programs the tone as a period in microseconds.
	freq := 1000000.0 / float64(period)
	samplesPerHalfWave := int(float64(wavSampleRate) / freq / 2)
	if samplesPerHalfWave < 1 {
		samplesPerHalfWave = 1
	}

	amplitude := int(volume) / 2
	total := int(duration.Seconds() * wavSampleRate)

	high := true
	run := 0
	for i := 0; i < total; i++ {
		v := 128 - amplitude
		if high {
			v = 128 + amplitude
		}
		wp.samples = append(wp.samples, v)

		run++
		if run >= samplesPerHalfWave {
			run = 0
			high = !high
		}
	}
	return nil
}

// Close encodes the buffered samples and writes the WAV file.  With
// no beeps recorded no file is produced.
func (wp *WavPlayer) Close() error {
	if len(wp.samples) == 0 {
		return nil
	}
	if wp.path == "" {
		return fmt.Errorf("no output path set for wav driver")
	}

	f, err := os.Create(wp.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %s", wp.path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, wavSampleRate, 8, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  wavSampleRate,
		},
		Data:           wp.samples,
		SourceBitDepth: 8,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode %s: %s", wp.path, err)
	}
	return enc.Close()
}

// init registers our driver, by name.
func init() {
	Register("wav", func() Player {
		return &WavPlayer{}
	})
}
