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

package registration

import (
	"github.com/pkg/errors"
)

// NewRemapper returns a Remapper for the calibration given. When dense
// is set each registered pixel also fills the cells to its left, above
// and above-left, closing the gaps the scatter leaves at the cost of
// some blur on edges.
func NewRemapper(c *Calibration, dense bool) *Remapper {
	return &Remapper{
		calib: c,
		Dense: dense,
	}
}

// Remapper converts raw depth frames into millimetre depth frames on
// the color camera's pixel grid.
type Remapper struct {
	calib *Calibration
	Dense bool
}

// Apply registers the raw depth frame in into out. Both must hold
// DepthXRes*DepthYRes samples. Pixels without depth, beyond the
// metric range, or landing outside the frame are dropped. Where several
// pixels land on the same cell the nearest one wins.
func (m *Remapper) Apply(in, out []uint16) error {
	const pixels = DepthXRes * DepthYRes
	if len(in) != pixels || len(out) != pixels {
		return errors.Errorf("registration needs %d pixel frames, got %d in and %d out", pixels, len(in), len(out))
	}
	for i := range out {
		out[i] = DepthNoMMValue
	}

	c := m.calib
	startLines := int64(c.RegPadInfo.StartLines)
	for y := 0; y < DepthYRes; y++ {
		for x := 0; x < DepthXRes; x++ {
			i := y*DepthXRes + x
			raw := in[i]
			if raw >= DepthMaxRawValue {
				continue
			}
			metric := c.RawToMM[raw]
			if metric == DepthNoMMValue || metric >= DepthMaxMetricValue {
				continue
			}

			reg := c.RegistrationTable[i]
			wx := (int64(reg[0])*RegXValScale + int64(c.DepthToRGBShift[metric])) / RegXValScale
			if wx < 0 || wx >= DepthXRes {
				continue
			}
			wy := int64(reg[1]) - startLines
			if wy < 0 || wy >= DepthYRes {
				continue
			}
			nx, ty := int(wx), int(wy)

			target := ty*DepthXRes + nx
			if current := out[target]; current != DepthNoMMValue && current <= metric {
				continue
			}
			out[target] = metric

			if !m.Dense {
				continue
			}
			if ty > 0 {
				out[target-DepthXRes] = metric
			}
			if nx > 0 {
				out[target-1] = metric
			}
			if nx > 0 && ty > 0 {
				out[target-DepthXRes-1] = metric
			}
		}
	}
	return nil
}
