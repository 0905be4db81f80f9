package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brokerconnect/service-booking/pkg/apperror"
	"github.com/brokerconnect/service-booking/pkg/response"
)

var (
	// ErrNoSession is returned when a call needs credentials and none are set.
	ErrNoSession = errors.New("booking client: no session")
	// ErrInvalidResponse is returned for bodies the client cannot decode.
	ErrInvalidResponse = errors.New("booking client: invalid response")
	// ErrTimeout is returned when the server gives up on a request.
	ErrTimeout = errors.New("booking client: request timed out")
)

// NetworkError wraps transport failures: the request may or may not have
// reached the server.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("booking client: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

type transitionDetails struct {
	Action string `json:"action"`
	Status string `json:"status"`
	Role   string `json:"role"`
}

// decodeError turns an error body back into the server's typed error, so
// callers can use errors.Is with the apperror sentinels.
func decodeError(status int, body []byte) error {
	var eb struct {
		response.ErrorBody
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error == "" {
		return fmt.Errorf("%w: status %d: %s", ErrInvalidResponse, status, string(body))
	}

	kind := apperror.Kind(eb.Error)
	switch kind {
	case apperror.KindInvalidTransition:
		var d transitionDetails
		if len(eb.Details) > 0 && json.Unmarshal(eb.Details, &d) == nil && d.Action != "" {
			return apperror.NewInvalidTransitionError(d.Action, d.Status, d.Role)
		}
		return &apperror.Error{Kind: kind, Message: eb.Message}
	case apperror.KindValidation, apperror.KindNotFound, apperror.KindForbidden,
		apperror.KindConflict, apperror.KindStaleState, apperror.KindUnauthorized:
		return &apperror.Error{Kind: kind, Message: eb.Message}
	case "TIMEOUT":
		return ErrTimeout
	default:
		return fmt.Errorf("booking client: status %d: %s: %s", status, eb.Error, eb.Message)
	}
}
