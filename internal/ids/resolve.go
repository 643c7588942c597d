// Package ids generates session identifiers and resolves user input to them.
// Resolution accepts an exact id or a unique prefix.
package ids

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// ErrNotFound indicates no matching session id (exact or prefix).
type ErrNotFound struct {
	Input string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("session not found: %q", e.Input)
}

// ErrAmbiguous indicates a prefix matched multiple session ids.
type ErrAmbiguous struct {
	Input      string
	Candidates []string // sorted ascending
}

func (e *ErrAmbiguous) Error() string {
	return fmt.Sprintf("ambiguous session id %q matches: %s", e.Input, strings.Join(e.Candidates, ", "))
}

// ResolveSessionID resolves input against known session ids.
//
// Resolution rules:
//  1. Exact match wins.
//  2. Otherwise input is a prefix: 0 matches is not found, 1 match resolves,
//     more than one is ambiguous.
//  3. Input is trimmed; empty input is not found.
func ResolveSessionID(input string, known []string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", &ErrNotFound{Input: ""}
	}

	var matches []string
	for _, id := range known {
		if id == input {
			return id, nil
		}
		if strings.HasPrefix(id, input) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", &ErrNotFound{Input: input}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &ErrAmbiguous{Input: input, Candidates: matches}
	}
}

// Resolve is ResolveSessionID with errors mapped to stable error codes.
func Resolve(input string, known []string) (string, error) {
	id, err := ResolveSessionID(input, known)
	if err == nil {
		return id, nil
	}
	switch e := err.(type) {
	case *ErrAmbiguous:
		return "", errors.NewWithDetails(errors.ESessionIDAmbiguous, e.Error(),
			map[string]string{"input": e.Input, "candidates": strings.Join(e.Candidates, ", ")})
	case *ErrNotFound:
		return "", errors.NewWithDetails(errors.ESessionNotFound, e.Error(),
			map[string]string{"input": e.Input})
	}
	return "", err
}

// Short returns the first 8 characters of id for display.
func Short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
