// Package streampreview computes a windowed FFT magnitude preview of a
// captured buffer's decoded samples, the way GoSDR's internal/dsp package
// previews ADC captures: a Hamming window, a DC-centered FFT shift, and
// magnitude expressed in dBFS against the channel's full-scale range. It
// operates purely on internal/codec primitives, with no responder or
// buffer lifetime dependency, so a caller supplies raw captured bytes and a
// format/cursor pair.
package streampreview

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/analogdevicesinc/libiio-sub000/internal/codec"
)

// Previewer caches the Hamming window and FFT plan for a fixed sample
// count, avoiding the per-call allocation a fresh window/plan would cost on
// every captured block (grounded on GoSDR's internal/dsp.CachedDSP).
type Previewer struct {
	mu        sync.Mutex
	size      int
	window    []float64
	windowSum float64
	fft       *fourier.CmplxFFT
}

// New builds a Previewer for exactly size samples per preview call.
func New(size int) (*Previewer, error) {
	if size <= 1 {
		return nil, fmt.Errorf("streampreview: size must be > 1, got %d", size)
	}
	win := hamming(size)
	sum := 0.0
	for _, v := range win {
		sum += v
	}
	return &Previewer{size: size, window: win, windowSum: sum, fft: fourier.NewCmplxFFT(size)}, nil
}

// Resize recreates the cached window and FFT plan for a new sample count.
func (p *Previewer) Resize(size int) error {
	if size <= 1 {
		return fmt.Errorf("streampreview: size must be > 1, got %d", size)
	}
	win := hamming(size)
	sum := 0.0
	for _, v := range win {
		sum += v
	}
	p.mu.Lock()
	p.size = size
	p.window = win
	p.windowSum = sum
	p.fft = fourier.NewCmplxFFT(size)
	p.mu.Unlock()
	return nil
}

// Size reports the sample count this Previewer is sized for.
func (p *Previewer) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Real decodes exactly p.Size() scalar samples for one channel out of
// cursor and returns their windowed, DC-centered FFT magnitude in dBFS,
// scaled against the channel's full-scale range (2^(Bits-1) for a signed
// format). Use this for a single real-valued channel (e.g. a lone ADC
// input with no paired quadrature channel).
func (p *Previewer) Real(cursor *codec.StreamCursor, format codec.Format) ([]float64, error) {
	samples, err := decodeScalars(cursor, format, p.Size())
	if err != nil {
		return nil, err
	}
	cs := make([]complex128, len(samples))
	for i, v := range samples {
		cs[i] = complex(v, 0)
	}
	_, dbfs := p.transform(cs, fullScale(format))
	return dbfs, nil
}

// Complex is the I/Q counterpart of Real: it decodes p.Size() samples from
// each of iCursor and qCursor, pairs them into complex128 in-phase/
// quadrature samples, and returns the windowed, DC-centered FFT magnitude
// in dBFS. Both cursors must share the same format.
func (p *Previewer) Complex(iCursor, qCursor *codec.StreamCursor, format codec.Format) ([]float64, error) {
	is, err := decodeScalars(iCursor, format, p.Size())
	if err != nil {
		return nil, err
	}
	qs, err := decodeScalars(qCursor, format, p.Size())
	if err != nil {
		return nil, err
	}
	if len(is) != len(qs) {
		return nil, fmt.Errorf("streampreview: I/Q length mismatch: %d vs %d", len(is), len(qs))
	}
	cs := make([]complex128, len(is))
	for i := range cs {
		cs[i] = complex(is[i], qs[i])
	}
	_, dbfs := p.transform(cs, fullScale(format))
	return dbfs, nil
}

// transform applies the cached window, runs the cached FFT plan, normalizes
// by the window's sum, DC-centers the spectrum, and converts magnitude to
// dBFS against scale. It mirrors GoSDR's internal/dsp.FFTAndDBFS, but
// reuses cached window/plan state rather than recomputing them per call.
func (p *Previewer) transform(samples []complex128, scale float64) ([]complex128, []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(samples) != p.size {
		// Mismatched capture length: fall back to an uncached one-shot
		// transform rather than feeding the wrong-length plan.
		return oneShot(samples, scale)
	}

	windowed := make([]complex128, p.size)
	for i, v := range samples {
		windowed[i] = complex(real(v)*p.window[i], imag(v)*p.window[i])
	}
	coeffs := p.fft.Coefficients(nil, windowed)
	for i := range coeffs {
		coeffs[i] /= complex(p.windowSum, 0)
	}
	shifted := fftShift(coeffs)
	return shifted, toDBFS(shifted, scale)
}

func oneShot(samples []complex128, scale float64) ([]complex128, []float64) {
	if len(samples) == 0 {
		return nil, nil
	}
	win := hamming(len(samples))
	sum := 0.0
	for _, v := range win {
		sum += v
	}
	windowed := make([]complex128, len(samples))
	for i, v := range samples {
		windowed[i] = complex(real(v)*win[i], imag(v)*win[i])
	}
	coeffs := fourier.NewCmplxFFT(len(samples)).Coefficients(nil, windowed)
	for i := range coeffs {
		coeffs[i] /= complex(sum, 0)
	}
	shifted := fftShift(coeffs)
	return shifted, toDBFS(shifted, scale)
}

func toDBFS(data []complex128, scale float64) []float64 {
	dbfs := make([]float64, len(data))
	for i, v := range data {
		mag := cmplx.Abs(v)
		if mag == 0 {
			dbfs[i] = math.Inf(-1)
			continue
		}
		dbfs[i] = 20 * math.Log10(mag/scale)
	}
	return dbfs
}

// fftShift rotates the spectrum so that DC sits at the center index,
// matching the teacher's FFTShift.
func fftShift(data []complex128) []complex128 {
	n := len(data)
	if n == 0 {
		return data
	}
	half := n / 2
	out := make([]complex128, n)
	copy(out, data[half:])
	copy(out[n-half:], data[:half])
	return out
}

// hamming returns a Hamming window of length n.
func hamming(n int) []float64 {
	if n <= 0 {
		return nil
	}
	win := make([]float64, n)
	for i := 0; i < n; i++ {
		win[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return win
}

// fullScale returns the channel's nominal full-scale magnitude, used to
// normalize the FFT output to dBFS.
func fullScale(f codec.Format) float64 {
	if f.Bits == 0 {
		return 1
	}
	bits := f.Bits
	if f.IsSigned {
		bits--
	}
	if bits >= 63 {
		return math.MaxInt64
	}
	return float64(int64(1) << bits)
}

// decodeScalars walks cursor for exactly n sample groups of format,
// decoding each group's single element (Repeat must be 1 for a preview
// channel; groups with Repeat>1 decode only the first element) into a
// float64 host value.
func decodeScalars(cursor *codec.StreamCursor, format codec.Format, n int) ([]float64, error) {
	w := int(format.Length / 8)
	out := make([]float64, 0, n)
	pos := cursor.Entry
	for len(out) < n && pos+w <= len(cursor.Buf) {
		v, err := format.DecodeSample(cursor.Buf[pos : pos+w])
		if err != nil {
			return nil, err
		}
		out = append(out, float64(v))
		pos += cursor.Step
	}
	if len(out) < n {
		return nil, fmt.Errorf("streampreview: buffer only yielded %d of %d requested samples", len(out), n)
	}
	return out, nil
}
