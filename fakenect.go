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

// Package fakenect replays a recorded Kinect session as if it were a
// live device. The caller drives playback by calling ProcessEvents in a
// loop; each call delivers one record, paced to match the recording.
package fakenect

import (
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/TheCacophonyProject/go-fakenect/kinectframe"
	"github.com/TheCacophonyProject/go-fakenect/registration"
	"github.com/TheCacophonyProject/go-fakenect/session"
)

// RecordReader supplies session records in playback order, returning
// io.EOF once they run out.
type RecordReader interface {
	Next() (*session.Record, error)
}

// State is the playback progress of a Context.
type State int

const (
	// Idle means no record has been read yet.
	Idle State = iota
	// Steady means at least one record was played and pacing is active.
	Steady
	// Exhausted means the session has no more records.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Steady:
		return "steady"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		c.log = logger
	}
}

// WithClock sets the clock used to pace playback.
func WithClock(clk clock.Clock) Option {
	return func(c *Context) {
		c.clock = clk
	}
}

// WithDenseRegistration makes registered depth frames fill the gaps
// between registered pixels.
func WithDenseRegistration(dense bool) Option {
	return func(c *Context) {
		c.dense = dense
	}
}

// Context holds all playback state for the single fake device.
type Context struct {
	reader   RecordReader
	remapper *registration.Remapper
	clock    clock.Clock
	log      *zap.Logger
	dense    bool
	dev      *Device

	state        State
	recordPrev   time.Duration
	playbackPrev time.Time
	tilt         kinectframe.TiltState
	accelWarned  bool
	depthFrame   kinectframe.DepthFrame
	registered   kinectframe.DepthFrame
}

// New returns a Context replaying the records from reader. calib may be
// nil, in which case registered depth mode is unavailable.
func New(reader RecordReader, calib *registration.Calibration, opts ...Option) *Context {
	c := &Context{
		reader: reader,
		clock:  clock.New(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dev = newDevice(c)
	c.depthFrame = kinectframe.NewDepthFrame(c.dev.depthMode)
	if calib != nil {
		c.remapper = registration.NewRemapper(calib, c.dense)
		c.registered = kinectframe.NewDepthFrame(c.dev.depthMode)
	}
	return c
}

// Init loads the registration data and opens the session named by cfg.
// Playback can't work without registration data so a missing or
// truncated dump is an error.
func Init(fs afero.Fs, cfg Config, opts ...Option) (*Context, error) {
	calib, err := registration.Load(fs, cfg.RegistrationPath)
	if err != nil {
		return nil, err
	}
	reader, err := session.NewReader(fs, cfg.SessionPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening session %s (set FAKENECT_PATH to a recorded session)", cfg.SessionPath)
	}
	opts = append([]Option{WithDenseRegistration(cfg.DenseRegistration)}, opts...)
	return New(reader, calib, opts...), nil
}

// NumDevices always reports the single fake device.
func (c *Context) NumDevices() int {
	return 1
}

// OpenDevice returns the fake device. Only index 0 exists.
func (c *Context) OpenDevice(index int) (*Device, error) {
	if index != 0 {
		return nil, errors.Errorf("no device at index %d", index)
	}
	return c.dev, nil
}

// SelectSubdevices is a no-op; all recorded data is always played.
func (c *Context) SelectSubdevices(flags int) {}

// State returns the playback progress.
func (c *Context) State() State {
	return c.state
}

// Shutdown releases the session.
func (c *Context) Shutdown() error {
	if closer, ok := c.reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
