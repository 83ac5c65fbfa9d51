// Package cadence parses the capture control block out of AI replies and
// derives the next screenshot schedule from it.
package cadence

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Directive is the structured control payload the model appends to a reply.
// Zero value means "nothing notable on screen": stay idle, no immediate
// capture.
type Directive struct {
	Active            bool     `json:"active"`
	Now               bool     `json:"now"`
	SuggestedInterval *float64 `json:"suggested_interval"` // seconds
}

// Strategy is the capture schedule for one listening session. Mutated only
// through Apply; the session's capture loop reads it.
type Strategy struct {
	ActiveInterval       time.Duration
	IdleInterval         time.Duration
	IsActive             bool
	NeedImmediateCapture bool
}

// DefaultStrategy returns the schedule a fresh listening session starts with.
func DefaultStrategy() Strategy {
	return Strategy{
		ActiveInterval: 5 * time.Second,
		IdleInterval:   15 * time.Second,
	}
}

// NextDelay returns how long to wait before the next periodic capture and
// consumes a pending immediate-capture request.
func (s *Strategy) NextDelay() time.Duration {
	if s.NeedImmediateCapture {
		s.NeedImmediateCapture = false
		return 0
	}
	if s.IsActive {
		return s.ActiveInterval
	}
	return s.IdleInterval
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Parse extracts the control directive from a reply and returns it together
// with the text to display, which has the control block stripped. When no
// well-formed block with an `active` key is found, the default directive is
// returned and the reply passes through untouched.
func Parse(reply string) (Directive, string) {
	if block := fencedBlock.FindStringSubmatchIndex(reply); block != nil {
		raw := reply[block[2]:block[3]]
		if d, ok := decodeDirective(raw); ok {
			display := strings.TrimSpace(reply[:block[0]] + reply[block[1]:])
			return d, display
		}
	}

	// The model sometimes emits the object bare, without a fence.
	if start := strings.Index(reply, "{"); start >= 0 {
		if end := matchBrace(reply, start); end > start {
			raw := reply[start : end+1]
			if d, ok := decodeDirective(raw); ok {
				display := strings.TrimSpace(reply[:start] + reply[end+1:])
				return d, display
			}
		}
	}

	return Directive{}, reply
}

// decodeDirective parses raw JSON and requires the `active` key; arbitrary
// JSON in a reply must not be mistaken for a control block.
func decodeDirective(raw string) (Directive, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return Directive{}, false
	}
	if _, ok := keys["active"]; !ok {
		return Directive{}, false
	}

	var d Directive
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Directive{}, false
	}
	return d, true
}

// matchBrace returns the index of the brace closing the one at start, or -1.
// String contents are skipped so braces inside values do not miscount.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Apply folds a directive into the strategy. A suggested interval adjusts
// the active cadence only; the idle interval is never overridden.
func Apply(d Directive, s *Strategy) {
	s.IsActive = d.Active
	s.NeedImmediateCapture = d.Now
	if d.Active && d.SuggestedInterval != nil && *d.SuggestedInterval > 0 {
		s.ActiveInterval = time.Duration(*d.SuggestedInterval * float64(time.Second))
	}
}
