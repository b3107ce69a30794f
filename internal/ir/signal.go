// Package ir models raw infrared timing sequences and the commands and
// functions built from them.
//
// A raw signal is the demodulated waveform reported by the device's IR sensor:
// alternating mark/space durations in microseconds (the sign tells which is
// which) plus the carrier frequency it was modulated on.
package ir

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultCarrierHz is the carrier used when none is given.
const DefaultCarrierHz = 38000

// RawSignal is an immutable raw timing sequence.
type RawSignal struct {
	samples     []int
	carrierHz   int
	fingerprint uint64
}

// NewRawSignal copies samples into a new RawSignal. A non-positive carrier
// selects DefaultCarrierHz.
func NewRawSignal(samples []int, carrierHz int) RawSignal {
	if carrierHz <= 0 {
		carrierHz = DefaultCarrierHz
	}
	seq := make([]int, len(samples))
	copy(seq, samples)
	return RawSignal{
		samples:     seq,
		carrierHz:   carrierHz,
		fingerprint: fingerprint(seq),
	}
}

// ParseRawSignal parses the device's wire form: space separated signed
// integers, e.g. "8000 -4500 560 -560".
func ParseRawSignal(s string, carrierHz int) (RawSignal, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return RawSignal{}, fmt.Errorf("empty raw signal")
	}
	samples := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return RawSignal{}, fmt.Errorf("invalid sample %d (%q): %w", i, f, err)
		}
		samples[i] = v
	}
	return NewRawSignal(samples, carrierHz), nil
}

func fingerprint(samples []int) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(s)))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Len returns the number of samples.
func (s RawSignal) Len() int {
	return len(s.samples)
}

// Samples returns a copy of the timing sequence.
func (s RawSignal) Samples() []int {
	out := make([]int, len(s.samples))
	copy(out, s.samples)
	return out
}

// CarrierHz returns the carrier frequency.
func (s RawSignal) CarrierHz() int {
	if s.carrierHz <= 0 {
		return DefaultCarrierHz
	}
	return s.carrierHz
}

// Fingerprint returns a hash of the sequence. Identical sequences always
// share a fingerprint; the carrier is not part of it.
func (s RawSignal) Fingerprint() uint64 {
	return s.fingerprint
}

// String returns the wire form of the sequence.
func (s RawSignal) String() string {
	var b strings.Builder
	for i, v := range s.samples {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// IsZero reports whether the signal has no samples.
func (s RawSignal) IsZero() bool {
	return len(s.samples) == 0
}

// Identical reports whether a and b have element-wise equal sequences.
func Identical(a, b RawSignal) bool {
	if len(a.samples) != len(b.samples) || a.fingerprint != b.fingerprint {
		return false
	}
	for i := range a.samples {
		if a.samples[i] != b.samples[i] {
			return false
		}
	}
	return true
}
