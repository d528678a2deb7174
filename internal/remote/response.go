package remote

import (
	"encoding/json"
	"fmt"
)

// Kind tags which shape a coordination server response had.
type Kind int

const (
	KindSuccess Kind = iota
	KindServerError
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindServerError:
		return "server error"
	default:
		return "unrecognized"
	}
}

// Response is a decoded server reply: either a value, a message the server
// sent in its "error" field, or a payload matching neither shape.
type Response[T any] struct {
	Kind       Kind
	Value      T
	Message    string
	Raw        string
	StatusCode int
}

// Err converts a non-success response into an error for op.
func (r Response[T]) Err(op string) error {
	switch r.Kind {
	case KindSuccess:
		return nil
	case KindServerError:
		return &ServerError{Op: op, Message: r.Message}
	default:
		return &UnrecognizedResponseError{Op: op, StatusCode: r.StatusCode, Raw: r.Raw}
	}
}

// ServerError carries the server's own error text, unmodified.
type ServerError struct {
	Op      string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: message from server: %s", e.Op, e.Message)
}

// UnrecognizedResponseError is returned when a reply matches neither the
// success nor the error shape.
type UnrecognizedResponseError struct {
	Op         string
	StatusCode int
	Raw        string
}

func (e *UnrecognizedResponseError) Error() string {
	return fmt.Sprintf("%s: unknown response from server (HTTP %d): %s", e.Op, e.StatusCode, e.Raw)
}

// decode classifies body. successKey names the field whose presence marks a
// successful reply; build turns the fields into the success value. A reply
// that fails to build is classified by its "error" field, if any.
func decode[T any](status int, body []byte, successKey string, build func(map[string]json.RawMessage) (T, error)) Response[T] {
	res := Response[T]{Kind: KindUnrecognized, Raw: string(body), StatusCode: status}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return res
	}

	// A success key whose value cannot be used, e.g. {"task_id": null}, does
	// not hide a message in "error".
	if _, ok := fields[successKey]; ok {
		if v, err := build(fields); err == nil {
			res.Kind = KindSuccess
			res.Value = v
			return res
		}
	}

	if raw, ok := fields["error"]; ok {
		res.Kind = KindServerError
		res.Message = textOf(raw)
		return res
	}
	return res
}

// textOf renders a JSON value as text: strings unquoted, anything else as-is.
func textOf(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// numeric ids are accepted and kept in their textual form
		var n json.Number
		if err2 := json.Unmarshal(raw, &n); err2 != nil {
			return "", fmt.Errorf("field %s: %w", key, err)
		}
		return n.String(), nil
	}
	return s, nil
}
