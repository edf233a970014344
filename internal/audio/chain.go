package audio

import "time"

// Voice chain tuning. The chain removes rumble below speech, hiss above
// it, and evens out level swings before encoding.
const (
	highPassCutoffHz = 85
	lowPassCutoffHz  = 10000
	filterQ          = 0.707

	compressorThresholdDB = -24
	compressorKneeDB      = 30
	compressorRatio       = 12
	compressorAttack      = 3 * time.Millisecond
	compressorRelease     = 250 * time.Millisecond

	analyserWindow = 256
)

// Chain is the fixed voice processing graph applied to captured frames:
// high-pass → low-pass → compressor → analyser.
type Chain struct {
	hp       *Biquad
	lp       *Biquad
	comp     *Compressor
	analyser *Analyser
}

// NewVoiceChain builds the voice-optimized chain for a sample rate.
func NewVoiceChain(sampleRate int) *Chain {
	return &Chain{
		hp:       NewHighPass(sampleRate, highPassCutoffHz, filterQ),
		lp:       NewLowPass(sampleRate, lowPassCutoffHz, filterQ),
		comp:     NewCompressor(sampleRate, compressorThresholdDB, compressorKneeDB, compressorRatio, compressorAttack, compressorRelease),
		analyser: NewAnalyser(analyserWindow),
	}
}

// Process runs a frame through every stage in order, in place.
func (c *Chain) Process(frame []float32) {
	c.hp.Process(frame)
	c.lp.Process(frame)
	c.comp.Process(frame)
	c.analyser.Push(frame)
}

// Level returns the analyser's current signal level in [0, 1].
func (c *Chain) Level() float64 { return c.analyser.Level() }

// Reset clears all stage state, e.g. when the graph is suspended.
func (c *Chain) Reset() {
	c.hp.Reset()
	c.lp.Reset()
	c.comp.Reset()
	c.analyser.Reset()
}
