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

package fakenect

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/TheCacophonyProject/go-fakenect/kinectframe"
	"github.com/TheCacophonyProject/go-fakenect/session"
)

// ProcessEvents plays the next record of the session. Depth and video
// frames go to the device callbacks, accelerometer records update the
// tilt state. The call sleeps first if needed so records arrive with
// the spacing they were recorded with, less however long the caller
// took between calls.
//
// At the end of the session an io.EOF error will be returned; the
// caller should stop its loop. Any other error means the session is
// corrupt.
func (c *Context) ProcessEvents() error {
	if c.state == Exhausted {
		return io.EOF
	}
	rec, err := c.reader.Next()
	if err == io.EOF {
		c.state = Exhausted
		c.log.Info("no more records in session")
		return io.EOF
	} else if err != nil {
		return errors.Wrap(err, "reading session")
	}

	if c.state == Steady {
		if d := c.delay(rec.Time); d > 0 {
			c.clock.Sleep(d)
		}
	}
	c.recordPrev = rec.Time

	if err := c.dispatch(rec); err != nil {
		return errors.Wrapf(err, "playing %s record", rec.Kind)
	}

	c.playbackPrev = c.clock.Now()
	c.state = Steady
	return nil
}

// Run calls ProcessEvents until the session ends, an error occurs or
// ctx is cancelled. Reaching the end of the session is not an error.
func (c *Context) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.ProcessEvents(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// delay is how long to wait before playing a record captured at t:
// the recorded gap from the previous record minus the time already
// spent since it was played.
func (c *Context) delay(t time.Duration) time.Duration {
	recorded := t - c.recordPrev
	elapsed := c.clock.Since(c.playbackPrev)
	if d := recorded - elapsed; d > 0 {
		return d
	}
	return 0
}

func (c *Context) dispatch(rec *session.Record) error {
	dev := c.dev
	switch rec.Kind {
	case session.Depth:
		if dev.depthCB == nil || !dev.depthRunning {
			return nil
		}
		data, err := session.FrameData(rec.Data)
		if err != nil {
			return err
		}
		depth := c.depthFrame
		if dev.depthBuf != nil {
			depth = kinectframe.DepthFrame(dev.depthBuf[:kinectframe.Pixels])
		}
		if err := depth.Decode(data); err != nil {
			return err
		}
		if dev.depthMode.DepthFormat == kinectframe.DepthRegistered {
			if err := c.remapper.Apply(depth, c.registered); err != nil {
				return err
			}
			depth = c.registered
		}
		dev.depthCB(dev, depth, rec.Timestamp)

	case session.Video:
		if dev.videoCB == nil || !dev.videoRunning {
			return nil
		}
		rgb, err := session.FrameData(rec.Data)
		if err != nil {
			return err
		}
		if len(rgb) < dev.videoMode.Bytes {
			return errors.Errorf("video frame needs %d bytes, got %d", dev.videoMode.Bytes, len(rgb))
		}
		rgb = rgb[:dev.videoMode.Bytes]
		if dev.videoBuf != nil {
			rgb = dev.videoBuf[:copy(dev.videoBuf, rgb)]
		}
		dev.videoCB(dev, rgb, rec.Timestamp)

	case session.Accelerometer:
		if len(rec.Data) == kinectframe.TiltStateSize {
			return c.tilt.UnmarshalBinary(rec.Data)
		}
		if !c.accelWarned {
			c.accelWarned = true
			c.log.Warn("accelerometer data has an unexpected size, tilt and acceleration will keep their previous values;"+
				" the session was probably made with an older recorder",
				zap.Int("size", len(rec.Data)),
				zap.Int("expected", kinectframe.TiltStateSize))
		}

	default:
		c.log.Debug("skipping record of unknown kind", zap.Stringer("kind", rec.Kind))
	}
	return nil
}
