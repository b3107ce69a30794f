package ir

// Default tolerances for repeated presses of the same button.
const (
	// DefaultSampleTolerance is the relative drift allowed per sample.
	DefaultSampleTolerance = 0.10
	// DefaultSignalTolerance is the fraction of differing samples allowed per signal.
	DefaultSignalTolerance = 0.02
	// DefaultMinMatches is the smallest group size kept by GroupSimilar.
	DefaultMinMatches = 2
)

// Matcher decides whether two captures are the same logical signal.
type Matcher struct {
	SampleTolerance float64
	SignalTolerance float64
}

// DefaultMatcher uses the default tolerances.
var DefaultMatcher = Matcher{
	SampleTolerance: DefaultSampleTolerance,
	SignalTolerance: DefaultSignalTolerance,
}

// Similar reports whether a and b match with DefaultMatcher.
func Similar(a, b RawSignal) bool {
	return DefaultMatcher.Similar(a, b)
}

// Similar reports whether a and b are the same signal up to jitter.
//
// Samples whose magnitudes differ by more than SampleTolerance (relative to
// their sum) count as differing, as does every sample of length difference.
// The signals match only when their lengths are equal and the differing
// fraction stays within SignalTolerance.
func (m Matcher) Similar(a, b RawSignal) bool {
	if Identical(a, b) {
		return true
	}

	diff := absInt(len(a.samples) - len(b.samples))
	n := min(len(a.samples), len(b.samples))
	for i := 0; i < n; i++ {
		if sampleDiff(a.samples[i], b.samples[i]) > m.SampleTolerance {
			diff++
		}
	}

	longest := max(len(a.samples), len(b.samples))
	ratio := float64(diff) / float64(longest)

	return len(a.samples) == len(b.samples) && ratio <= m.SignalTolerance
}

// sampleDiff is ||x| - |y|| / (|x| + |y|), zero when both are zero.
func sampleDiff(x, y int) float64 {
	ax, ay := absInt(x), absInt(y)
	sum := ax + ay
	if sum == 0 {
		return 0
	}
	return float64(absInt(ax-ay)) / float64(sum)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
