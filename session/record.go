// Copyright 2018 The Cacophony Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session reads and writes recorded camera sessions: a
// directory of payload files listed, in playback order, by INDEX.txt.
package session

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// IndexFile lists the payload files of a session in playback order.
const IndexFile = "INDEX.txt"

// Kind tags the stream a record belongs to.
type Kind byte

const (
	Depth         Kind = 'd'
	Video         Kind = 'r'
	Accelerometer Kind = 'a'
)

func (k Kind) String() string {
	switch k {
	case Depth:
		return "depth"
	case Video:
		return "video"
	case Accelerometer:
		return "accelerometer"
	}
	return fmt.Sprintf("unknown(%q)", byte(k))
}

// Record is one entry of a session.
type Record struct {
	Kind Kind
	// Time is when the record was captured, relative to the epoch the
	// recorder used.
	Time time.Duration
	// Timestamp is the device timestamp delivered with frames.
	Timestamp uint32
	Data      []byte
}

// ParseIndexLine extracts the kind, capture time and device timestamp
// from a payload file name such as "d-1294783442.338429-31549284.pgm".
func ParseIndexLine(line string) (Kind, time.Duration, uint32, error) {
	parts := strings.SplitN(line, "-", 3)
	if len(parts) != 3 || len(parts[0]) != 1 {
		return 0, 0, 0, errors.Errorf("malformed index line %q", line)
	}
	secs, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || secs < 0 || math.IsInf(secs, 0) {
		return 0, 0, 0, errors.Errorf("bad capture time in index line %q", line)
	}
	digits := parts[2]
	if end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); end >= 0 {
		digits = digits[:end]
	}
	ts, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, 0, 0, errors.Errorf("bad timestamp in index line %q", line)
	}
	return Kind(parts[0][0]), secondsToDuration(secs), uint32(ts), nil
}

// FrameData returns the frame payload with its one-line PGM/PPM header
// removed.
func FrameData(data []byte) ([]byte, error) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return nil, errors.New("frame has no header line")
	}
	return data[i+1:], nil
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(math.Round(secs * float64(time.Second)))
}

func durationToSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
