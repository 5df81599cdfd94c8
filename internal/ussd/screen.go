// Package ussd evaluates the USSD menu from the accumulated input path of a session.
package ussd

// Kind tells the gateway whether the session stays open.
type Kind int

const (
	Continue Kind = iota
	Terminate
)

func (k Kind) String() string {
	if k == Continue {
		return "continue"
	}
	return "terminate"
}

// Screen is one USSD response. Text carries no CON/END prefix.
type Screen struct {
	Kind Kind
	Text string
}

func continueScreen(text string) Screen {
	return Screen{Kind: Continue, Text: text}
}

func terminateScreen(text string) Screen {
	return Screen{Kind: Terminate, Text: text}
}

// String renders the screen in the gateway wire format.
func (s Screen) String() string {
	if s.Kind == Continue {
		return "CON " + s.Text
	}
	return "END " + s.Text
}
