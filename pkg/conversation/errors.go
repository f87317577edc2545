package conversation

import "errors"

// Sentinel errors for the conversation package.
var (
	// ErrInvalidHistoryLimit indicates a non-positive history cap.
	ErrInvalidHistoryLimit = errors.New("conversation: history limit must be positive")

	// ErrNoDispatcher indicates the session was built without a dispatcher.
	ErrNoDispatcher = errors.New("conversation: dispatcher is required")
)
