// Package sonify renders numeric data series as audio. Each data point
// becomes a short tone whose pitch (or volume) tracks the normalized
// value, and the tones are concatenated into a single PCM stream.
package sonify

import (
	"fmt"
	"math"
)

// Defaults mirror the web player's tuning.
const (
	DefaultSampleRate = 44100
	DefaultTimeBase   = 0.09 // seconds per data point
	DefaultMinFreq    = 500.0
	DefaultMaxFreq    = 5000.0
	DefaultFixedFreq  = 440.0
	DefaultVolume     = 0.8
)

// Waveform selects the harmonic profile of the generated tones.
type Waveform string

const (
	WaveSine      Waveform = "sine"
	WaveSynthwave Waveform = "synthwave"
	WaveFlute     Waveform = "flute"
	WavePiano     Waveform = "piano"
	WaveCelesta   Waveform = "celesta"
	WavePipeOrgan Waveform = "pipe organ"
)

// Waveforms lists the available waveforms in presentation order.
func Waveforms() []Waveform {
	return []Waveform{WaveSine, WaveSynthwave, WaveFlute, WavePiano, WaveCelesta, WavePipeOrgan}
}

// harmonic is one partial of an instrument profile: a frequency multiple
// and its relative amplitude.
type harmonic struct {
	mult float64
	amp  float64
}

var harmonicProfiles = map[Waveform][]harmonic{
	WaveSine:      {{1, 1}},
	WaveSynthwave: {{1, 1}, {2, 0.25}},
	WaveFlute:     {{1, 0.6}, {2.02, 0.06}, {3, 0.02}, {4, 0.006}, {5, 0.004}},
	WavePiano: {
		{1, 0.1884}, {2.05, 0.0596}, {3.04, 0.0473}, {3.97, 0.0631},
		{5.05, 0.0018}, {6, 0.0112}, {7, 0.02}, {8, 0.005}, {9, 0.005},
		{10, 0.0032}, {12, 0.0032}, {13, 0.001}, {14, 0.001}, {15, 0.0018},
	},
	WaveCelesta: {{1, 0.316}, {4, 0.040}},
	WavePipeOrgan: {
		{0.5, 0.05}, {1, 0.05}, {2, 0.05}, {4, 0.05}, {6, 0.014},
		{0.25, 0.014}, {0.75, 0.014}, {1.25, 0.006}, {1.5, 0.006},
	},
}

// Partials above this frequency are dropped to stay under the audible
// ceiling regardless of the data's pitch range.
const maxPartialHz = 16000.0

// Mapping selects which tone parameter follows the data.
type Mapping string

const (
	// MapFrequency varies pitch between MinFreq and MinFreq+MaxFreq while
	// volume stays fixed.
	MapFrequency Mapping = "frequency"

	// MapVolume varies loudness while pitch stays at the fixed frequency.
	MapVolume Mapping = "volume"
)

// Envelope is an ADSR amplitude envelope. Attack, Decay, and Release are
// fractions of the note duration; Sustain is the held level in [0,1].
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// DiscreteEnvelope is the default envelope: clearly separated notes.
func DiscreteEnvelope() Envelope {
	return Envelope{Attack: 0.01, Decay: 0.15, Sustain: 0.25, Release: 0.5}
}

// ContinuousEnvelope runs notes together for smooth, glissando-like output.
func ContinuousEnvelope() Envelope {
	return Envelope{Attack: 0.1, Decay: 0.15, Sustain: 0.95, Release: 0.1}
}

// Synth converts normalized series values into PCM samples.
type Synth struct {
	sampleRate int
	timeBase   float64
	minFreq    float64
	maxFreq    float64
	fixedFreq  float64
	volume     float64
	logScale   bool
	waveform   Waveform
	mapping    Mapping
	env        Envelope
}

// Option configures a Synth.
type Option func(*Synth)

// WithSampleRate sets the output sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(s *Synth) { s.sampleRate = rate }
}

// WithTimeBase sets the duration of each data point's tone in seconds.
func WithTimeBase(seconds float64) Option {
	return func(s *Synth) { s.timeBase = seconds }
}

// WithFrequencySpan sets the pitch mapping range. A normalized value v
// maps to min + span*v Hz.
func WithFrequencySpan(min, span float64) Option {
	return func(s *Synth) {
		s.minFreq = min
		s.maxFreq = span
	}
}

// WithFixedFreq sets the pitch used by volume mapping.
func WithFixedFreq(freq float64) Option {
	return func(s *Synth) { s.fixedFreq = freq }
}

// WithVolume sets the output volume in [0,1].
func WithVolume(volume float64) Option {
	return func(s *Synth) { s.volume = volume }
}

// WithLogScale compresses values logarithmically before mapping, which
// lifts small variations in data dominated by a few large peaks.
func WithLogScale(enabled bool) Option {
	return func(s *Synth) { s.logScale = enabled }
}

// WithWaveform selects the harmonic profile.
func WithWaveform(w Waveform) Option {
	return func(s *Synth) { s.waveform = w }
}

// WithMapping selects frequency or volume mapping.
func WithMapping(m Mapping) Option {
	return func(s *Synth) { s.mapping = m }
}

// WithEnvelope replaces the ADSR envelope.
func WithEnvelope(env Envelope) Option {
	return func(s *Synth) { s.env = env }
}

// New creates a Synth with the given options applied over the defaults.
func New(opts ...Option) (*Synth, error) {
	s := &Synth{
		sampleRate: DefaultSampleRate,
		timeBase:   DefaultTimeBase,
		minFreq:    DefaultMinFreq,
		maxFreq:    DefaultMaxFreq,
		fixedFreq:  DefaultFixedFreq,
		volume:     DefaultVolume,
		waveform:   WaveSine,
		mapping:    MapFrequency,
		env:        DiscreteEnvelope(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0: %d", s.sampleRate)
	}
	if s.timeBase <= 0 {
		return nil, fmt.Errorf("time base must be > 0: %f", s.timeBase)
	}
	if s.minFreq <= 0 || s.maxFreq <= 0 {
		return nil, fmt.Errorf("frequency span must be positive: min %f span %f", s.minFreq, s.maxFreq)
	}
	if s.volume < 0 || s.volume > 1 {
		return nil, fmt.Errorf("volume must be in [0,1]: %f", s.volume)
	}
	if s.mapping != MapFrequency && s.mapping != MapVolume {
		return nil, fmt.Errorf("unknown mapping: %q", s.mapping)
	}
	if _, ok := harmonicProfiles[s.waveform]; !ok {
		return nil, fmt.Errorf("unknown waveform: %q", s.waveform)
	}
	return s, nil
}

// SampleRate returns the configured output sample rate.
func (s *Synth) SampleRate() int {
	return s.sampleRate
}

// NoteSamples returns the number of samples in a single data point's tone.
func (s *Synth) NoteSamples() int {
	return int(s.timeBase * float64(s.sampleRate))
}

// Render converts a series of normalized values in [0,1] into PCM samples
// in [-1,1]. NaN values produce silence of one note length, so gaps in
// the data remain audible as gaps.
func (s *Synth) Render(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("render input must not be empty")
	}

	noteLen := s.NoteSamples()
	env := s.envelope(noteLen)
	out := make([]float64, 0, noteLen*len(values))

	for _, v := range values {
		if math.IsNaN(v) {
			out = append(out, make([]float64, noteLen)...)
			continue
		}
		out = append(out, s.note(clamp01(v), env)...)
	}
	return out, nil
}

// note synthesizes one tone for a normalized value.
func (s *Synth) note(v float64, env []float64) []float64 {
	if s.logScale {
		v = math.Log10(100*v+1) / 2
	}

	freq := s.fixedFreq
	vol := s.volume
	if s.mapping == MapFrequency {
		freq = s.maxFreq*v + s.minFreq
	} else {
		vol = s.volume * v
	}

	partials := harmonicProfiles[s.waveform]
	step := 2 * math.Pi * freq / float64(s.sampleRate)

	samples := make([]float64, len(env))
	for i := range samples {
		x := step * float64(i)
		var tone float64
		for _, h := range partials {
			if freq*h.mult < maxPartialHz {
				tone += h.amp * math.Sin(h.mult*x)
			}
		}
		samples[i] = env[i] * vol * tone
	}
	return samples
}

// envelope builds the ADSR amplitude curve for a note of n samples.
func (s *Synth) envelope(n int) []float64 {
	a := int(float64(n) * s.env.Attack)
	d := int(float64(n) * s.env.Decay)
	r := int(float64(n) * s.env.Release)
	sustain := s.env.Sustain

	env := make([]float64, n)
	for i := 0; i < a && i < n; i++ {
		env[i] = float64(i) / float64(a)
	}
	for i := 0; i < d && a+i < n; i++ {
		env[a+i] = 1 - (1-sustain)*float64(i)/float64(d)
	}
	for i := a + d; i < n-r; i++ {
		env[i] = sustain
	}
	for i := 0; i < r && n-r+i >= 0 && n-r+i < n; i++ {
		env[n-r+i] = sustain * (1 - float64(i)/float64(r))
	}
	return env
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
