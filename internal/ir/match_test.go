package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pulseTrain returns n alternating mark/space samples.
func pulseTrain(n int) []int {
	seq := make([]int, n)
	for i := range seq {
		if i%2 == 0 {
			seq[i] = 1000
		} else {
			seq[i] = -500
		}
	}
	return seq
}

// withOutliers returns a copy of seq with the first k samples doubled.
func withOutliers(seq []int, k int) []int {
	out := make([]int, len(seq))
	copy(out, seq)
	for i := 0; i < k; i++ {
		out[i] *= 2
	}
	return out
}

// jittered scales every sample by pct percent.
func jittered(seq []int, pct int) []int {
	out := make([]int, len(seq))
	for i, v := range seq {
		out[i] = v + v*pct/100
	}
	return out
}

func TestParseRawSignal(t *testing.T) {
	sig, err := ParseRawSignal("8000 -4500  560 -560\n", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{8000, -4500, 560, -560}, sig.Samples())
	assert.Equal(t, DefaultCarrierHz, sig.CarrierHz())
	assert.Equal(t, "8000 -4500 560 -560", sig.String())

	sig, err = ParseRawSignal("100 -100", 40000)
	require.NoError(t, err)
	assert.Equal(t, 40000, sig.CarrierHz())

	_, err = ParseRawSignal("   ", 0)
	assert.Error(t, err)

	_, err = ParseRawSignal("100 abc", 0)
	assert.Error(t, err)
}

func TestRawSignal_Immutable(t *testing.T) {
	in := []int{1, -2, 3}
	sig := NewRawSignal(in, 0)
	in[0] = 99

	out := sig.Samples()
	out[1] = 99

	assert.Equal(t, []int{1, -2, 3}, sig.Samples())
}

func TestIdentical(t *testing.T) {
	a := NewRawSignal([]int{100, -200, 300}, 0)
	b := NewRawSignal([]int{100, -200, 300}, 36000)
	c := NewRawSignal([]int{100, -200, 301}, 0)

	assert.True(t, Identical(a, b))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.False(t, Identical(a, c))
	assert.False(t, Identical(a, NewRawSignal([]int{100, -200}, 0)))
}

func TestSimilar_Reflexive(t *testing.T) {
	for _, n := range []int{1, 2, 17, 100} {
		sig := NewRawSignal(pulseTrain(n), 0)
		assert.True(t, Similar(sig, sig), "length %d", n)
	}
}

func TestSimilar_LengthMismatchNeverMatches(t *testing.T) {
	base := pulseTrain(200)
	a := NewRawSignal(base, 0)
	b := NewRawSignal(base[:199], 0)

	// 1 missing sample of 200 is within 2%, but lengths must match.
	assert.False(t, Similar(a, b))
	assert.False(t, Similar(b, a))
}

func TestSimilar_OutlierBoundary(t *testing.T) {
	base := pulseTrain(100)
	a := NewRawSignal(base, 0)

	tests := []struct {
		name     string
		outliers int
		want     bool
	}{
		{"no outliers", 0, true},
		{"one outlier", 1, true},
		{"two outliers at 2 percent", 2, true},
		{"three outliers at 3 percent", 3, false},
		{"many outliers", 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewRawSignal(withOutliers(base, tt.outliers), 0)
			assert.Equal(t, tt.want, Similar(a, b))
		})
	}
}

func TestSimilar_JitterWithinTolerance(t *testing.T) {
	base := pulseTrain(64)
	a := NewRawSignal(base, 0)

	// 5% drift => per-sample diff of about 2.4%, well under 10%.
	assert.True(t, Similar(a, NewRawSignal(jittered(base, 5), 0)))
	// 30% drift => about 13% per sample, every sample differs.
	assert.False(t, Similar(a, NewRawSignal(jittered(base, 30), 0)))
}

func TestMatcher_CustomTolerance(t *testing.T) {
	base := pulseTrain(100)
	a := NewRawSignal(base, 0)
	b := NewRawSignal(withOutliers(base, 5), 0)

	assert.False(t, DefaultMatcher.Similar(a, b))

	loose := Matcher{SampleTolerance: DefaultSampleTolerance, SignalTolerance: 0.05}
	assert.True(t, loose.Similar(a, b))
}

func TestSampleDiff_Zeroes(t *testing.T) {
	assert.Equal(t, 0.0, sampleDiff(0, 0))
	assert.Equal(t, 1.0, sampleDiff(0, 10))
	assert.InDelta(t, 1.0/3.0, sampleDiff(-1000, 2000), 1e-9)
}
