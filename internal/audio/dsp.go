package audio

import (
	"math"
	"time"
)

// Biquad is a second-order IIR filter section (RBJ cookbook coefficients).
type Biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

// NewHighPass creates a high-pass biquad at the given cutoff.
func NewHighPass(sampleRate int, cutoffHz, q float64) *Biquad {
	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)

	a0 := 1 + alpha
	f := &Biquad{
		b0: (1 + cosw) / 2,
		b1: -(1 + cosw),
		b2: (1 + cosw) / 2,
		a1: -2 * cosw,
		a2: 1 - alpha,
	}
	f.scale(a0)
	return f
}

// NewLowPass creates a low-pass biquad at the given cutoff.
func NewLowPass(sampleRate int, cutoffHz, q float64) *Biquad {
	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)

	a0 := 1 + alpha
	f := &Biquad{
		b0: (1 - cosw) / 2,
		b1: 1 - cosw,
		b2: (1 - cosw) / 2,
		a1: -2 * cosw,
		a2: 1 - alpha,
	}
	f.scale(a0)
	return f
}

func (f *Biquad) scale(a0 float64) {
	f.b0 /= a0
	f.b1 /= a0
	f.b2 /= a0
	f.a1 /= a0
	f.a2 /= a0
}

// Process filters a frame in place.
func (f *Biquad) Process(frame []float32) {
	for i, s := range frame {
		x := float64(s)
		y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
		f.x2, f.x1 = f.x1, x
		f.y2, f.y1 = f.y1, y
		frame[i] = float32(y)
	}
}

// Reset clears the filter's delay state.
func (f *Biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// Compressor is a feed-forward dynamics compressor with a soft knee and
// exponential attack/release envelope smoothing.
type Compressor struct {
	thresholdDB float64
	kneeDB      float64
	ratio       float64
	attackCoef  float64
	releaseCoef float64
	envDB       float64
}

// NewCompressor creates a compressor for the given sample rate.
func NewCompressor(sampleRate int, thresholdDB, kneeDB, ratio float64, attack, release time.Duration) *Compressor {
	return &Compressor{
		thresholdDB: thresholdDB,
		kneeDB:      kneeDB,
		ratio:       ratio,
		attackCoef:  smoothingCoef(sampleRate, attack),
		releaseCoef: smoothingCoef(sampleRate, release),
		envDB:       -120,
	}
}

func smoothingCoef(sampleRate int, tc time.Duration) float64 {
	if tc <= 0 {
		return 0
	}
	return math.Exp(-1 / (float64(sampleRate) * tc.Seconds()))
}

// Process compresses a frame in place.
func (c *Compressor) Process(frame []float32) {
	for i, s := range frame {
		x := float64(s)
		levelDB := -120.0
		if a := math.Abs(x); a > 0 {
			levelDB = 20 * math.Log10(a)
		}
		coef := c.releaseCoef
		if levelDB > c.envDB {
			coef = c.attackCoef
		}
		c.envDB = coef*c.envDB + (1-coef)*levelDB
		frame[i] = float32(x * math.Pow(10, c.gainDB(c.envDB)/20))
	}
}

// gainDB computes the soft-knee gain reduction for an envelope level.
func (c *Compressor) gainDB(levelDB float64) float64 {
	over := levelDB - c.thresholdDB
	switch {
	case 2*over < -c.kneeDB:
		return 0
	case 2*math.Abs(over) <= c.kneeDB:
		d := over + c.kneeDB/2
		return (1/c.ratio - 1) * d * d / (2 * c.kneeDB)
	default:
		return (1/c.ratio - 1) * over
	}
}

// Reset clears the envelope state.
func (c *Compressor) Reset() { c.envDB = -120 }
