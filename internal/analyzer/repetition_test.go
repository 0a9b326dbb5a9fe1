package analyzer

import (
	"testing"
	"time"
)

func calls(pairs ...string) []ToolCall {
	now := time.Now()
	out := make([]ToolCall, len(pairs))
	for i, p := range pairs {
		out[i] = ToolCall{Tool: "Bash", Target: p, Timestamp: now.Add(time.Duration(i) * time.Second)}
	}
	return out
}

func TestAnalyzeRepetitionAllBelowThreshold(t *testing.T) {
	w := calls("a", "b", "c", "a", "b", "c")
	v := AnalyzeRepetition(w)
	if !v.IsNone() {
		t.Fatalf("expected no verdict, got %+v", v)
	}
}

func TestAnalyzeRepetitionWarningAtThree(t *testing.T) {
	w := calls("x", "x", "x", "y")
	v := AnalyzeRepetition(w)
	if v.Level != VerdictWarning || v.Kind != KindRepeat {
		t.Fatalf("expected warning/repeat, got %+v", v)
	}
}

func TestAnalyzeRepetitionKillAtFive(t *testing.T) {
	w := calls("dotnet build", "dotnet build", "dotnet build", "dotnet build", "dotnet build")
	v := AnalyzeRepetition(w)
	if v.Level != VerdictKill || v.Kind != KindRepeat {
		t.Fatalf("expected kill/repeat, got %+v", v)
	}
}

func TestAnalyzeRepetitionLoopKillScenario(t *testing.T) {
	// Six consecutive identical calls: after the third, warning; after
	// the fifth, kill. Verify incrementally as the runtime would.
	var w []ToolCall
	var last RepetitionVerdict
	for i := 1; i <= 6; i++ {
		w = append(w, calls("dotnet build")[0])
		last = AnalyzeRepetition(w)
		switch i {
		case 3:
			if last.Level != VerdictWarning {
				t.Fatalf("call %d: expected warning, got %+v", i, last)
			}
		case 5:
			if last.Level != VerdictKill {
				t.Fatalf("call %d: expected kill, got %+v", i, last)
			}
		}
	}
	if last.Level != VerdictKill {
		t.Fatalf("expected final verdict kill, got %+v", last)
	}
}

func TestAnalyzeRepetitionPingPongWarningAtSix(t *testing.T) {
	w := calls("A", "B", "A", "B", "A", "B")
	v := AnalyzeRepetition(w)
	if v.Level != VerdictWarning || v.Kind != KindPingPong {
		t.Fatalf("expected warning/pingPong, got %+v", v)
	}
}

func TestAnalyzeRepetitionPingPongKillAtEight(t *testing.T) {
	w := calls("A", "B", "A", "B", "A", "B", "A", "B")
	v := AnalyzeRepetition(w)
	if v.Level != VerdictKill || v.Kind != KindPingPong {
		t.Fatalf("expected kill/pingPong, got %+v", v)
	}
}

func TestAnalyzeRepetitionPingPongBreaksAlternation(t *testing.T) {
	w := calls("A", "B", "A", "B", "A", "B", "A", "C")
	v := AnalyzeRepetition(w)
	if v.Kind == KindPingPong {
		t.Fatalf("expected no ping-pong verdict once alternation breaks, got %+v", v)
	}
}

func TestAnalyzeRepetitionRepeatTakesPrecedenceOverPingPong(t *testing.T) {
	// A appears 5 times total even though the tail also alternates.
	w := calls("A", "A", "A", "A", "A", "B")
	v := AnalyzeRepetition(w)
	if v.Kind != KindRepeat || v.Level != VerdictKill {
		t.Fatalf("expected repeat to take precedence, got %+v", v)
	}
}

func TestAnalyzeRepetitionFullWindowAlternationIsRepeatNotPingPong(t *testing.T) {
	// A full ten-call alternation gives each pair a count of 5, which
	// must be reported as the generic repeat-kill, not a ping-pong,
	// since the flat-repeat tier has top precedence.
	w := calls("A", "B", "A", "B", "A", "B", "A", "B", "A", "B")
	v := AnalyzeRepetition(w)
	if v.Kind != KindRepeat || v.Level != VerdictKill {
		t.Fatalf("expected repeat/kill to take precedence over ping-pong, got %+v", v)
	}
}
