package runtime

import "fmt"

type outcomeKind uint8

const (
	outcomeContinue outcomeKind = iota
	outcomeChange
	outcomeFail
)

// Outcome is the result of dispatching one action. A ChangeTo outcome
// unwinds the current state like a failure does, but is never a failure.
type Outcome struct {
	kind  outcomeKind
	state string
	err   error
}

// Continue advances to the next action of the current state.
func Continue() Outcome { return Outcome{kind: outcomeContinue} }

// ChangeTo abandons the current state and enters state at its first action.
func ChangeTo(state string) Outcome { return Outcome{kind: outcomeChange, state: state} }

// Fail ends the iteration with err.
func Fail(err error) Outcome { return Outcome{kind: outcomeFail, err: err} }

// IsContinue reports whether o advances within the current state.
func (o Outcome) IsContinue() bool { return o.kind == outcomeContinue }

// Target returns the state entered by a ChangeTo outcome.
func (o Outcome) Target() (string, bool) {
	return o.state, o.kind == outcomeChange
}

// Err returns the failure of a Fail outcome, nil otherwise.
func (o Outcome) Err() error {
	if o.kind != outcomeFail {
		return nil
	}
	return o.err
}

func (o Outcome) String() string {
	switch o.kind {
	case outcomeChange:
		return "change:" + o.state
	case outcomeFail:
		return fmt.Sprintf("fail: %v", o.err)
	default:
		return "continue"
	}
}
