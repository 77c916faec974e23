// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package kinectframe

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// CountsPerG is the accelerometer resolution (KXSD9: 819 counts/g).
	CountsPerG = 819
	Gravity    = 9.80665

	// TiltStateSize is the size of an accelerometer record on disk.
	TiltStateSize = 12
)

// TiltStatus reports what the tilt motor is doing.
type TiltStatus int32

const (
	TiltStatusStopped TiltStatus = 0x00
	TiltStatusLimit   TiltStatus = 0x01
	TiltStatusMoving  TiltStatus = 0x04
)

// TiltState is the raw accelerometer and tilt motor reading.
type TiltState struct {
	AccelX     int16
	AccelY     int16
	AccelZ     int16
	TiltAngle  int8
	_          uint8
	TiltStatus TiltStatus
}

// UnmarshalBinary decodes an accelerometer record. The record must be
// exactly TiltStateSize bytes.
func (s *TiltState) UnmarshalBinary(data []byte) error {
	if len(data) != TiltStateSize {
		return errors.Errorf("tilt state is %d bytes, expected %d", len(data), TiltStateSize)
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, s)
}

// MarshalBinary encodes the state in the on-disk record layout.
func (s TiltState) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(TiltStateSize)
	if err := binary.Write(buf, binary.LittleEndian, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TiltDegs returns the tilt angle in degrees. The motor reports
// half-degree steps.
func (s *TiltState) TiltDegs() float64 {
	return float64(s.TiltAngle) / 2
}

// MKSAccel returns the acceleration on each axis in m/s^2.
func (s *TiltState) MKSAccel() (x, y, z float64) {
	x = float64(s.AccelX) / CountsPerG * Gravity
	y = float64(s.AccelY) / CountsPerG * Gravity
	z = float64(s.AccelZ) / CountsPerG * Gravity
	return x, y, z
}
