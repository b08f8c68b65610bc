package httputil

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrMultipleRanges is returned for multi-range requests, which a
// stream can't honour
var ErrMultipleRanges = fmt.Errorf("multiple ranges are not supported")

// ParseRangeStart parses the start of an open-ended Range header
// ("bytes=N-"). An empty header yields 0. Bounded ranges ("bytes=N-M")
// only contribute their start; suffix ranges ("bytes=-N") need a known
// length and are rejected.
func ParseRangeStart(rangeHeader string) (uint64, error) {
	if rangeHeader == "" {
		return 0, nil
	}

	// Must start with "bytes="
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return 0, fmt.Errorf("invalid range header format")
	}

	spec := strings.TrimSpace(strings.TrimPrefix(rangeHeader, "bytes="))
	if strings.Contains(spec, ",") {
		return 0, ErrMultipleRanges
	}

	parts := strings.Split(spec, "-")
	if len(parts) != 2 || parts[0] == "" {
		return 0, fmt.Errorf("invalid range spec: %s", spec)
	}

	start, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid start position: %s", spec)
	}
	if parts[1] != "" {
		end, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil || end < start {
			return 0, fmt.Errorf("invalid range: %s", spec)
		}
	}
	return start, nil
}

// ParseOffset resolves a stream start offset from a Range header or an
// offset query value. Setting both to different values is an error.
func ParseOffset(rangeHeader, offsetQuery string) (uint64, error) {
	fromRange, err := ParseRangeStart(rangeHeader)
	if err != nil {
		return 0, err
	}
	if offsetQuery == "" {
		return fromRange, nil
	}

	fromQuery, err := strconv.ParseUint(offsetQuery, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset: %s", offsetQuery)
	}
	if rangeHeader != "" && fromQuery != fromRange {
		return 0, fmt.Errorf("offset %d conflicts with range start %d", fromQuery, fromRange)
	}
	return fromQuery, nil
}

// ContentRangeHeader generates an open-ended Content-Range value for a
// stream of unknown length. Format: "bytes start-*/*"
func ContentRangeHeader(start uint64) string {
	return fmt.Sprintf("bytes %d-*/*", start)
}
