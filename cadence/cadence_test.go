package cadence

import (
	"testing"
	"time"
)

func fptr(v float64) *float64 { return &v }

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantActive  bool
		wantNow     bool
		wantSuggest *float64
		wantDisplay string
	}{
		{
			name:        "fenced control block",
			reply:       "Great! ```json\n{\"active\":true,\"now\":true,\"suggested_interval\":2}\n```",
			wantActive:  true,
			wantNow:     true,
			wantSuggest: fptr(2),
			wantDisplay: "Great!",
		},
		{
			name:        "plain chat passes through",
			reply:       "just chatting, nothing special",
			wantDisplay: "just chatting, nothing special",
		},
		{
			name:        "fence without language tag",
			reply:       "Watch that boss.\n```\n{\"active\": true, \"now\": false}\n```",
			wantActive:  true,
			wantDisplay: "Watch that boss.",
		},
		{
			name:        "bare object without fence",
			reply:       "On it. {\"active\": false, \"now\": true}",
			wantNow:     true,
			wantDisplay: "On it.",
		},
		{
			name:        "json without active key is chat",
			reply:       "try this: {\"combo\": [\"jump\", \"dash\"]}",
			wantDisplay: "try this: {\"combo\": [\"jump\", \"dash\"]}",
		},
		{
			name:        "malformed block falls back to full text",
			reply:       "hmm ```json\n{\"active\": tru\n```",
			wantDisplay: "hmm ```json\n{\"active\": tru\n```",
		},
		{
			name:        "block only, empty display",
			reply:       "```json\n{\"active\":true,\"now\":false}\n```",
			wantActive:  true,
			wantDisplay: "",
		},
		{
			name:        "braces inside strings do not confuse matching",
			reply:       "ok {\"active\": true, \"note\": \"use the } key\"} done",
			wantActive:  true,
			wantDisplay: "ok  done",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, display := Parse(tt.reply)
			if d.Active != tt.wantActive {
				t.Errorf("Active = %v, want %v", d.Active, tt.wantActive)
			}
			if d.Now != tt.wantNow {
				t.Errorf("Now = %v, want %v", d.Now, tt.wantNow)
			}
			switch {
			case tt.wantSuggest == nil && d.SuggestedInterval != nil:
				t.Errorf("SuggestedInterval = %v, want nil", *d.SuggestedInterval)
			case tt.wantSuggest != nil && d.SuggestedInterval == nil:
				t.Errorf("SuggestedInterval = nil, want %v", *tt.wantSuggest)
			case tt.wantSuggest != nil && *d.SuggestedInterval != *tt.wantSuggest:
				t.Errorf("SuggestedInterval = %v, want %v", *d.SuggestedInterval, *tt.wantSuggest)
			}
			if display != tt.wantDisplay {
				t.Errorf("display = %q, want %q", display, tt.wantDisplay)
			}
		})
	}
}

func TestApply(t *testing.T) {
	s := DefaultStrategy()

	Apply(Directive{Active: true, Now: true, SuggestedInterval: fptr(2)}, &s)
	if !s.IsActive || !s.NeedImmediateCapture {
		t.Errorf("strategy = %+v, want active with immediate capture", s)
	}
	if s.ActiveInterval != 2*time.Second {
		t.Errorf("ActiveInterval = %v, want 2s", s.ActiveInterval)
	}
	if s.IdleInterval != 15*time.Second {
		t.Errorf("IdleInterval = %v, must never be overridden", s.IdleInterval)
	}

	// A suggestion while inactive must not touch the active interval.
	Apply(Directive{Active: false, SuggestedInterval: fptr(9)}, &s)
	if s.ActiveInterval != 2*time.Second {
		t.Errorf("ActiveInterval = %v, want unchanged 2s", s.ActiveInterval)
	}
	if s.IsActive {
		t.Error("IsActive = true, want false")
	}

	// Nonsense suggestions are ignored.
	Apply(Directive{Active: true, SuggestedInterval: fptr(-3)}, &s)
	if s.ActiveInterval != 2*time.Second {
		t.Errorf("ActiveInterval = %v after negative suggestion", s.ActiveInterval)
	}
}

func TestStrategy_NextDelay(t *testing.T) {
	s := Strategy{
		ActiveInterval: 4 * time.Second,
		IdleInterval:   20 * time.Second,
	}

	if d := s.NextDelay(); d != 20*time.Second {
		t.Errorf("idle NextDelay() = %v, want 20s", d)
	}

	s.IsActive = true
	if d := s.NextDelay(); d != 4*time.Second {
		t.Errorf("active NextDelay() = %v, want 4s", d)
	}

	s.NeedImmediateCapture = true
	if d := s.NextDelay(); d != 0 {
		t.Errorf("immediate NextDelay() = %v, want 0", d)
	}
	// The immediate request is one-shot.
	if d := s.NextDelay(); d != 4*time.Second {
		t.Errorf("NextDelay() after immediate = %v, want 4s", d)
	}
}
