package audio

import (
	"math"
	"math/cmplx"
	"sync"
)

// Analyser keeps a sliding window of recent samples and reports the
// current signal level as the root mean of the frequency-bin magnitudes,
// normalized into [0, 1].
type Analyser struct {
	mu     sync.Mutex
	window []float64
	pos    int
	filled bool
}

// NewAnalyser creates an analyser with the given window size, which must
// be a power of two.
func NewAnalyser(windowSize int) *Analyser {
	return &Analyser{window: make([]float64, windowSize)}
}

// Push appends samples to the sliding window.
func (a *Analyser) Push(frame []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range frame {
		a.window[a.pos] = float64(s)
		a.pos++
		if a.pos == len(a.window) {
			a.pos = 0
			a.filled = true
		}
	}
}

// Level computes the current level from the window's magnitude spectrum.
// Returns 0 until the window has filled once.
func (a *Analyser) Level() float64 {
	a.mu.Lock()
	if !a.filled {
		a.mu.Unlock()
		return 0
	}
	buf := make([]complex128, len(a.window))
	// Oldest sample first so the spectrum reflects the window in order.
	for i := range buf {
		buf[i] = complex(a.window[(a.pos+i)%len(a.window)], 0)
	}
	a.mu.Unlock()

	fft(buf)

	n := len(buf)
	half := n / 2
	var sum float64
	for i := 0; i < half; i++ {
		m := cmplx.Abs(buf[i]) / float64(half)
		sum += m * m
	}
	level := math.Sqrt(sum / float64(half))
	if level > 1 {
		level = 1
	}
	return level
}

// Reset clears the window.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.window {
		a.window[i] = 0
	}
	a.pos = 0
	a.filled = false
}

// fft performs an in-place iterative radix-2 FFT. len(buf) must be a
// power of two.
func fft(buf []complex128) {
	n := len(buf)

	// Bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wl := cmplx.Rect(1, ang)
		for i := 0; i < n; i += length {
			w := complex(1, 0)
			for j := 0; j < length/2; j++ {
				u := buf[i+j]
				v := buf[i+j+length/2] * w
				buf[i+j] = u + v
				buf[i+j+length/2] = u - v
				w *= wl
			}
		}
	}
}
