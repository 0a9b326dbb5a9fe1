// Package analyzer implements the three synchronous, deterministic
// decision functions the dispatch runtime consults after classifying
// each agent message: repetition/ping-pong, non-retryable error, and
// stall. None of them perform I/O.
package analyzer

import "time"

// VerdictLevel is the severity of an analyzer's verdict.
type VerdictLevel string

const (
	VerdictNone    VerdictLevel = ""
	VerdictWarning VerdictLevel = "warning"
	VerdictKill    VerdictLevel = "kill"
)

// RepetitionKind distinguishes a flat repeat from an alternating
// ping-pong pattern.
type RepetitionKind string

const (
	KindRepeat   RepetitionKind = "repeat"
	KindPingPong RepetitionKind = "pingPong"
)

// ToolCallPair identifies a (tool, target) pair — the unit the
// repetition detector counts occurrences of.
type ToolCallPair struct {
	Tool   string
	Target string
}

// ToolCall is one entry in the repetition analyzer's sliding window.
type ToolCall struct {
	Tool      string
	Target    string
	Timestamp time.Time
}

func (c ToolCall) pair() ToolCallPair {
	return ToolCallPair{Tool: c.Tool, Target: c.Target}
}

// RepetitionVerdict is the result of AnalyzeRepetition.
type RepetitionVerdict struct {
	Level VerdictLevel
	Kind  RepetitionKind
	Pair  ToolCallPair  // the repeating pair (KindRepeat), or the most recent pair (KindPingPong)
	Pair2 ToolCallPair  // the second alternating pair, set only for KindPingPong
}

// IsNone reports whether v represents "no verdict" (the zero value).
func (v RepetitionVerdict) IsNone() bool {
	return v.Level == VerdictNone
}

// AnalyzeRepetition inspects a window of tool calls (oldest first) and
// returns a verdict, or a zero-value RepetitionVerdict (Level ==
// VerdictNone) if nothing is wrong.
//
// Three tiers, checked in this order:
//  1. flat repeat kill: >=5 occurrences of any pair. Checked first so a
//     window that is both a flat repeat and a trailing alternation (a
//     full-window alternation gives each of the two pairs a count of
//     len(window)/2) is reported as the generic repeat it is, not a
//     ping-pong.
//  2. ping-pong: a trailing run alternating between exactly two
//     distinct pairs, >=8 calls is a kill, >=6 is a warning. Only
//     reached once tier 1 has ruled out a pair hammered five or more
//     times.
//  3. flat repeat warning: >=3 occurrences of any pair.
func AnalyzeRepetition(window []ToolCall) RepetitionVerdict {
	counts := make(map[ToolCallPair]int, len(window))
	for _, c := range window {
		counts[c.pair()]++
	}

	var maxPair ToolCallPair
	maxCount := 0
	for p, n := range counts {
		if n > maxCount {
			maxCount = n
			maxPair = p
		}
	}

	if maxCount >= 5 {
		return RepetitionVerdict{Level: VerdictKill, Kind: KindRepeat, Pair: maxPair}
	}

	if k, a, b := alternatingSuffixLength(window); k >= 6 {
		level := VerdictWarning
		if k >= 8 {
			level = VerdictKill
		}
		return RepetitionVerdict{Level: level, Kind: KindPingPong, Pair: a, Pair2: b}
	}

	if maxCount >= 3 {
		return RepetitionVerdict{Level: VerdictWarning, Kind: KindRepeat, Pair: maxPair}
	}

	return RepetitionVerdict{}
}

// alternatingSuffixLength returns the length of the longest trailing
// run of window that alternates between exactly two distinct pairs, and
// the two pairs involved (a is the pair of the last element).
func alternatingSuffixLength(window []ToolCall) (int, ToolCallPair, ToolCallPair) {
	n := len(window)
	if n < 2 {
		return 0, ToolCallPair{}, ToolCallPair{}
	}

	a := window[n-1].pair()
	b := window[n-2].pair()
	if a == b {
		return 0, ToolCallPair{}, ToolCallPair{}
	}

	k := 2
	for i := n - 3; i >= 0; i-- {
		expected := a
		if (n-1-i)%2 == 1 {
			expected = b
		}
		if window[i].pair() != expected {
			break
		}
		k++
	}
	return k, a, b
}
