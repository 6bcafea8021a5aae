package navigation

import "errors"

var (
	// ErrUnknownFlow is returned when starting a flow type that was never registered.
	ErrUnknownFlow = errors.New("unknown flow type")
	// ErrUnknownStep is returned for a starting step the flow does not have.
	ErrUnknownStep = errors.New("unknown flow step")
	// ErrInvalidFlow is returned for a malformed FlowDefinition.
	ErrInvalidFlow = errors.New("invalid flow definition")
	// ErrBlocked is returned when a flow's entry step requires a missing entitlement.
	ErrBlocked = errors.New("entitlement required")
)
