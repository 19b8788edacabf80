// SPDX-License-Identifier: MIT

package delay

import (
	"math"
	"strconv"
	"strings"
)

// Format describes how a reply line of a ping result looks like.
type Format struct {
	// Marker must be contained in a line for it to count as a reply.
	Marker string
	// Token introduces the delay field.
	Token string
	// Unit terminates the delay field.
	Unit string
	// Below introduces an upper bound like `time<1ms` which the Windows ping
	// utility reports instead of a delay for replies faster than a milli.
	// Such a reply counts as a delay of 0. Empty if the format has none.
	Below string
	// Fractional allows values like 12.3 which are rounded to whole millis.
	Fractional bool
}

var (
	// WindowsFormat matches `Reply from 1.1.1.1: bytes=32 time=37ms TTL=57`.
	WindowsFormat = Format{Marker: "Reply", Token: "time=", Unit: "ms", Below: "time<"}

	// UnixFormat matches `64 bytes from 1.1.1.1: icmp_seq=1 ttl=57 time=12.3 ms`.
	UnixFormat = Format{Marker: "bytes from", Token: "time=", Unit: " ms", Fractional: true}
)

// Parse returns the delay in millis of the first reply line in raw.
// The second return value is false if there is no reply line or its delay
// field is malformed.
func (f Format) Parse(raw string) (uint32, bool) {
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(line, f.Marker) {
			continue
		}

		return f.parseLine(line)
	}

	return 0, false
}

func (f Format) parseLine(line string) (uint32, bool) {
	field, ok := f.field(line, f.Token)
	if !ok {
		if f.Below == "" {
			return 0, false
		}
		if bound, ok := f.field(line, f.Below); ok {
			_, err := strconv.ParseUint(bound, 10, 32)
			return 0, err == nil
		}
		return 0, false
	}

	if v, err := strconv.ParseUint(field, 10, 32); err == nil {
		return uint32(v), true
	}

	if !f.Fractional {
		return 0, false
	}

	v, err := strconv.ParseFloat(field, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > math.MaxUint32 {
		return 0, false
	}

	return uint32(math.Round(v)), true
}

// field returns the text between token and the next unit in line.
func (f Format) field(line, token string) (string, bool) {
	p := strings.Index(line, token)
	if p < 0 {
		return "", false
	}
	rest := line[p+len(token):]

	u := strings.Index(rest, f.Unit)
	if u < 0 {
		return "", false
	}

	return rest[:u], true
}
