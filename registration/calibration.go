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

// Package registration aligns raw depth frames to the color camera using
// calibration tables dumped from a real device.
package registration

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/TheCacophonyProject/go-fakenect/kinectframe"
)

const (
	DepthXRes = kinectframe.Width
	DepthYRes = kinectframe.Height

	// DepthMaxMetricValue is one past the largest depth, in mm, that
	// can be registered.
	DepthMaxMetricValue = 10000
	// DepthNoMMValue marks a pixel without depth data.
	DepthNoMMValue = 0
	// DepthMaxRawValue is the number of distinct raw samples.
	DepthMaxRawValue = 2048
	// DepthNoRawValue is the raw sample the sensor reports for no data.
	DepthNoRawValue = 2047

	// RegXValScale is the fixed-point scale of x shifts.
	RegXValScale = 256

	headerSize = 29*4 + 3*2 + 4*4 + 8

	// Size is the length in bytes of a calibration dump.
	Size = headerSize + DepthMaxRawValue*2 + DepthMaxMetricValue*4 + DepthXRes*DepthYRes*2*4
)

// RegInfo holds the device registration coefficients.
type RegInfo struct {
	DxCenter     int32
	Ax           int32
	Bx           int32
	Cx           int32
	Dx           int32
	DxStart      int32
	Ay           int32
	By           int32
	Cy           int32
	Dy           int32
	DyStart      int32
	DxBetaStart  int32
	DyBetaStart  int32
	RolloutBlank int32
	RolloutSize  int32
	DxBetaInc    int32
	DyBetaInc    int32
	DxdxStart    int32
	DxdyStart    int32
	DydxStart    int32
	DydyStart    int32
	DxdxdxStart  int32
	DydxdxStart  int32
	DxdxdyStart  int32
	DydxdyStart  int32
	BackComp1    int32
	DydydxStart  int32
	BackComp2    int32
	DydydyStart  int32
}

// RegPadInfo describes the rows the depth sensor pads or crops.
type RegPadInfo struct {
	StartLines    uint16
	EndLines      uint16
	CroppingLines uint16
}

// ZeroPlaneInfo describes the sensor geometry.
type ZeroPlaneInfo struct {
	DcmosEmitterDist   float32
	DcmosRcmosDist     float32
	ReferenceDistance  float32
	ReferencePixelSize float32
}

// Calibration is the registration data for one device. It is never
// modified after it is read so it can be shared freely.
type Calibration struct {
	RegInfo       RegInfo
	RegPadInfo    RegPadInfo
	ZeroPlaneInfo ZeroPlaneInfo
	ConstShift    float64

	// RawToMM maps a raw depth sample to millimetres.
	RawToMM [DepthMaxRawValue]uint16
	// DepthToRGBShift maps a depth in mm to an x shift in 1/RegXValScale
	// pixels.
	DepthToRGBShift [DepthMaxMetricValue]int32
	// RegistrationTable holds the rectified (x, y) of each raw depth
	// pixel, in raster order.
	RegistrationTable [DepthXRes * DepthYRes][2]int32
}

// Read decodes a calibration dump. Anything short of a full dump is an
// error.
func Read(r io.Reader) (*Calibration, error) {
	br := bufio.NewReader(r)
	c := new(Calibration)
	for _, field := range []struct {
		name string
		data interface{}
	}{
		{"reg info", &c.RegInfo},
		{"reg pad info", &c.RegPadInfo},
		{"zero plane info", &c.ZeroPlaneInfo},
		{"const shift", &c.ConstShift},
		{"raw to mm table", c.RawToMM[:]},
		{"depth to rgb shift table", c.DepthToRGBShift[:]},
	} {
		if err := binary.Read(br, binary.LittleEndian, field.data); err != nil {
			return nil, errors.Wrapf(shortRead(err), "reading %s", field.name)
		}
	}

	table := make([]int32, len(c.RegistrationTable)*2)
	if err := binary.Read(br, binary.LittleEndian, table); err != nil {
		return nil, errors.Wrap(shortRead(err), "reading registration table")
	}
	for i := range c.RegistrationTable {
		c.RegistrationTable[i][0] = table[i*2]
		c.RegistrationTable[i][1] = table[i*2+1]
	}
	return c, nil
}

// Write encodes a calibration in the layout Read expects.
func Write(w io.Writer, c *Calibration) error {
	bw := bufio.NewWriter(w)
	table := make([]int32, len(c.RegistrationTable)*2)
	for i, xy := range c.RegistrationTable {
		table[i*2] = xy[0]
		table[i*2+1] = xy[1]
	}
	for _, data := range []interface{}{
		&c.RegInfo,
		&c.RegPadInfo,
		&c.ZeroPlaneInfo,
		c.ConstShift,
		c.RawToMM[:],
		c.DepthToRGBShift[:],
		table,
	} {
		if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads the calibration dump at path.
func Load(fs afero.Fs, path string) (*Calibration, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening registration data")
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading registration data from %s", path)
	}
	return c, nil
}

// Dump writes c to path, replacing any existing file.
func Dump(fs afero.Fs, path string, c *Calibration) error {
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating registration dump")
	}
	if err := Write(f, c); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing registration dump to %s", path)
	}
	return f.Close()
}

// A dump that ends between fields is just as truncated as one that
// ends inside a field.
func shortRead(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
