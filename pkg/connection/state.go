package connection

import "fmt"

type State int

const (
	StateUnknown State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// TransitionTo validates a state change. There is no way back from
// disconnected; a new connection must be made.
func (s State) TransitionTo(next State) (State, error) {
	switch s {
	case StateUnknown:
		if next == StateConnecting {
			return next, nil
		}
	case StateConnecting:
		switch next {
		case StateConnected, StateDisconnected:
			return next, nil
		}
	case StateConnected:
		switch next {
		case StateDisconnecting, StateDisconnected:
			return next, nil
		}
	case StateDisconnecting:
		if next == StateDisconnected {
			return next, nil
		}
	}
	return s, fmt.Errorf("invalid connection state transition from %s to %s", s, next)
}
