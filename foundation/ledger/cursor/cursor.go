// Package cursor describes a window into the ledger data partition and
// encodes it for exchange between a local replica and the canonical ledger.
package cursor

import (
	"fmt"
	"strconv"
	"strings"
)

// FetchSizeBytes is the largest number of bytes moved by a single fetch or
// push call.
const FetchSizeBytes uint64 = 1024 * 1024

// BytesBeforeLen is the number of bytes preceding a fetch position that a
// replica sends so the remote side can detect a diverged history.
const BytesBeforeLen = 16

// =============================================================================

// Direction represents the direction a cursor walks the data partition.
type Direction int

// Set of known directions.
const (
	Forward Direction = iota
	Backward
)

// String implements the fmt.Stringer interface.
func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// ParseDirection converts the string form back to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	}

	return Forward, fmt.Errorf("invalid direction %q", s)
}

// =============================================================================

// Cursor describes how much of the log exists on one side of a transfer
// and where the next transfer resumes.
type Cursor struct {
	DataBeginPosition uint64
	Position          uint64
	DataEndPosition   uint64
	ResponseBytes     uint64
	Direction         Direction
	More              bool
}

// New constructs a cursor from its parts.
func New(begin uint64, position uint64, end uint64, responseBytes uint64, dir Direction, more bool) Cursor {
	return Cursor{
		DataBeginPosition: begin,
		Position:          position,
		DataEndPosition:   end,
		ResponseBytes:     responseBytes,
		Direction:         dir,
		More:              more,
	}
}

// FromData computes the cursor for a request starting at requested against
// a partition that begins at dataStart, has capacity bytes of storage and
// has been written up to nextWrite.
func FromData(dataStart uint64, capacity uint64, nextWrite uint64, requested uint64) Cursor {
	respStart := max(dataStart, requested)
	next := min(nextWrite, capacity)
	respEnd := min(respStart+FetchSizeBytes, next)

	if respStart >= capacity || respStart >= respEnd {
		return New(dataStart, next, next, 0, Forward, false)
	}

	return New(dataStart, respStart, next, respEnd-respStart, Forward, respEnd < next)
}

// String encodes the full cursor as a single url encoded token. The result
// round trips through Parse.
func (c Cursor) String() string {
	return fmt.Sprintf("data_begin_position=%d&position=%d&data_end_position=%d&response_bytes=%d&direction=%s&more=%t",
		c.DataBeginPosition, c.Position, c.DataEndPosition, c.ResponseBytes, c.Direction, c.More)
}

// RequestString encodes only the parts a fetch request needs.
func (c Cursor) RequestString() string {
	return fmt.Sprintf("position=%d", c.Position)
}

// ResponseEnd returns the position just past the bytes described by the
// cursor.
func (c Cursor) ResponseEnd() uint64 {
	return c.Position + c.ResponseBytes
}

// Parse decodes a cursor token. Missing keys default to zero values and
// parts without a value are ignored. Unknown keys are an error.
func Parse(s string) (Cursor, error) {
	var c Cursor

	for _, part := range strings.Split(strings.TrimSpace(s), "&") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}

		var err error
		switch key {
		case "data_begin_position":
			c.DataBeginPosition, err = strconv.ParseUint(value, 10, 64)
		case "position":
			c.Position, err = strconv.ParseUint(value, 10, 64)
		case "data_end_position":
			c.DataEndPosition, err = strconv.ParseUint(value, 10, 64)
		case "response_bytes":
			c.ResponseBytes, err = strconv.ParseUint(value, 10, 64)
		case "direction":
			c.Direction, err = ParseDirection(value)
		case "more":
			c.More, err = strconv.ParseBool(value)
		default:
			return Cursor{}, fmt.Errorf("unexpected cursor key %q", key)
		}

		if err != nil {
			return Cursor{}, fmt.Errorf("parsing cursor key %q: %w", key, err)
		}
	}

	return c, nil
}
