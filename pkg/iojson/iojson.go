// Package iojson holds helpers for commands that read and write JSON.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Error is the JSON shape written for command failures.
type Error struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func jsonError(msg string, jsonErr error) string {
	msgBytes, _ := json.Marshal(msg)
	errBytes, _ := json.Marshal(jsonErr.Error())
	return fmt.Sprintf(`{"message":%s,"data":{"json_error":%s}}`, msgBytes, errBytes)
}

// MarshalError renders an Error. If marshaling fails the result is still
// valid JSON carrying the marshal error.
func MarshalError(msg string, data map[string]any) string {
	bits, err := json.MarshalIndent(Error{Message: msg, Data: data}, "", "  ")
	if err != nil {
		return jsonError(msg, err)
	}
	return string(bits)
}

// WriteErrorTo writes an Error to w and returns err so callers can
// `return iojson.WriteErrorTo(...)` and still exit non-zero.
func WriteErrorTo(w io.Writer, err error, data map[string]any) error {
	_, _ = fmt.Fprintln(w, MarshalError(err.Error(), data))
	return err
}

// WriteError writes an Error to stderr.
func WriteError(err error, data map[string]any) error {
	return WriteErrorTo(os.Stderr, err, data)
}

// WriteWith writes obj as indented JSON to w. Marshal failures are reported on ew.
func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintln(ew, jsonError("error marshaling in iojson.WriteWith", err))
		return err
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// WriteLine writes obj as a single JSON line.
func WriteLine(w io.Writer, obj any) error {
	return json.NewEncoder(w).Encode(obj)
}
