package protocol

// TurnError is a server-reported error frame that aborted the turn in
// progress. It is surfaced to event handlers and never written to history.
type TurnError struct {
	Message string
}

func (e *TurnError) Error() string {
	if e.Message == "" {
		return "agent turn failed"
	}
	return e.Message
}
