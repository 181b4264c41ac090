package asn2ip

import (
	"regexp"
	"strings"
)

// Parser states. A frame starts with an acknowledgment line, continues with
// zero or more data lines and is closed by a single-letter terminator.
type parserState int

const (
	awaitStart parserState = iota // expecting the start-of-record marker
	inBody                        // accumulating data tokens
	frameDone                     // terminator seen, parser must not be fed again
)

func (s parserState) String() string {
	switch s {
	case awaitStart:
		return "await-start"
	case inBody:
		return "in-body"
	default:
		return "done"
	}
}

// Start-of-record acknowledgment, a letter tag followed by digits.
var reFrameStart = regexp.MustCompile(`^[Aa]\d+$`)

// frameParser consumes the response lines for exactly one registry query.
// The caller must have issued exactly one command before feeding lines and
// must stop feeding once a terminator completes the frame.
type frameParser struct {
	state  parserState
	tokens []string
}

// feed advances the state machine by one line. It returns true once the
// frame is complete. A line that violates the response grammar returns a
// ProtocolError carrying the line and the state it was received in.
func (p *frameParser) feed(line string) (bool, error) {
	// "D" terminates the frame in any state: the registry has no data for
	// this query. Distinct from a successful frame with no tokens.
	if line == "D" {
		p.state = frameDone
		p.tokens = nil
		return true, nil
	}

	switch p.state {
	case awaitStart:
		if !reFrameStart.MatchString(line) {
			return false, ProtocolError{Line: line, State: p.state.String()}
		}
		p.state = inBody
		p.tokens = []string{}
		return false, nil
	case inBody:
		if line == "C" {
			p.state = frameDone
			return true, nil
		}
		p.tokens = append(p.tokens, strings.Fields(line)...)
		return false, nil
	default:
		return false, ProtocolError{Line: line, State: p.state.String()}
	}
}

// result returns the accumulated tokens. It is nil for a "no data" frame and
// a non-nil (possibly empty) slice for a successful one.
func (p *frameParser) result() []string {
	return p.tokens
}
