// Package pace derives speaking pace and filler-word usage from a segment.
// Everything here is a pure function of its input.
package pace

import (
	"errors"
	"math"
	"strings"

	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

// ErrDegenerateSegment marks a segment with no usable duration or text.
// Recoverable: the caller logs it and keeps the segment in the pipeline.
var ErrDegenerateSegment = errors.New("degenerate segment")

type Pace struct {
	WPM          int
	FillerCounts map[string]int
}

// Compute returns words-per-minute and per-filler counts for one segment.
// A zero or negative duration, or empty text, yields WPM 0 together with
// ErrDegenerateSegment. Filler counts are still reported; division by a
// non-positive duration never happens.
func Compute(seg models.Segment, fillerWords []string) (Pace, error) {
	words := tokenize(seg.Text)
	p := Pace{FillerCounts: countFillers(words, fillerWords)}

	duration := seg.Duration()
	if duration <= 0 || len(words) == 0 {
		return p, ErrDegenerateSegment
	}

	p.WPM = int(math.Round(float64(len(words)) / (duration / 60)))
	return p, nil
}

// tokenize lowercases, splits on whitespace, and strips surrounding
// punctuation so "Um," still counts as the filler "um".
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := strings.Trim(f, ".,!?;:\"'()"); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// countFillers matches each filler against the token stream. Multi-word
// fillers ("you know") match only as contiguous word sequences; matches do
// not overlap.
func countFillers(words, fillerWords []string) map[string]int {
	counts := make(map[string]int)
	for _, filler := range fillerWords {
		parts := strings.Fields(strings.ToLower(filler))
		if len(parts) == 0 {
			continue
		}
		n := 0
		for i := 0; i+len(parts) <= len(words); {
			if matchesAt(words, parts, i) {
				n++
				i += len(parts)
			} else {
				i++
			}
		}
		if n > 0 {
			counts[filler] = n
		}
	}
	return counts
}

func matchesAt(words, parts []string, i int) bool {
	for j, p := range parts {
		if words[i+j] != p {
			return false
		}
	}
	return true
}
