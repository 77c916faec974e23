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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/TheCacophonyProject/go-fakenect/kinectframe"
	"github.com/TheCacophonyProject/go-fakenect/registration"
	"github.com/TheCacophonyProject/go-fakenect/session"
)

type sliceReader struct {
	records []*session.Record
	err     error
	calls   int
}

func (r *sliceReader) Next() (*session.Record, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if len(r.records) == 0 {
		return nil, io.EOF
	}
	rec := r.records[0]
	r.records = r.records[1:]
	return rec, nil
}

func accelRecord(t time.Duration, data []byte) *session.Record {
	return &session.Record{Kind: session.Accelerometer, Time: t, Data: data}
}

func writeSession(t *testing.T, write func(w *session.Writer)) *session.Reader {
	afs := afero.NewMemMapFs()
	w, err := session.NewWriter(afs, "/rec")
	require.NoError(t, err)
	write(w)
	require.NoError(t, w.Close())
	r, err := session.NewReader(afs, "/rec")
	require.NoError(t, err)
	return r
}

func filledDepth(v uint16) kinectframe.DepthFrame {
	mode, _ := kinectframe.FindDepthMode(kinectframe.ResolutionMedium, kinectframe.Depth11Bit)
	f := kinectframe.NewDepthFrame(mode)
	for i := range f {
		f[i] = v
	}
	return f
}

func testRGB() []byte {
	rgb := make([]byte, kinectframe.VideoBytes)
	for i := range rgb {
		rgb[i] = byte(i)
	}
	return rgb
}

// identityCalibration registers raw sample v as v mm at the same pixel.
func identityCalibration() *registration.Calibration {
	c := new(registration.Calibration)
	for i := range c.RawToMM {
		c.RawToMM[i] = uint16(i)
	}
	c.RawToMM[registration.DepthNoRawValue] = registration.DepthNoMMValue
	for i := range c.RegistrationTable {
		c.RegistrationTable[i] = [2]int32{int32(i % kinectframe.Width), int32(i / kinectframe.Width)}
	}
	return c
}

type delivery struct {
	kind      session.Kind
	depth     []uint16
	rgb       []byte
	timestamp uint32
	at        time.Time
}

func record(c *Context) (*Device, *[]delivery) {
	var got []delivery
	dev, _ := c.OpenDevice(0)
	dev.SetDepthCallback(func(d *Device, depth []uint16, ts uint32) {
		got = append(got, delivery{
			kind:      session.Depth,
			depth:     append([]uint16(nil), depth...),
			timestamp: ts,
			at:        time.Now(),
		})
	})
	dev.SetVideoCallback(func(d *Device, rgb []byte, ts uint32) {
		got = append(got, delivery{
			kind:      session.Video,
			rgb:       append([]byte(nil), rgb...),
			timestamp: ts,
			at:        time.Now(),
		})
	})
	return dev, &got
}

func TestPlaybackUnregistered(t *testing.T) {
	depth := filledDepth(registration.DepthNoRawValue)
	rgb := testRGB()
	r := writeSession(t, func(w *session.Writer) {
		require.NoError(t, w.WriteDepth(time.Second, 11, depth))
		require.NoError(t, w.WriteVideo(time.Second+time.Millisecond, 22, rgb))
	})
	c := New(r, identityCalibration())
	defer c.Shutdown()
	dev, got := record(c)
	require.NoError(t, dev.StartDepth())
	require.NoError(t, dev.StartVideo())

	assert.Equal(t, Idle, c.State())
	require.NoError(t, c.ProcessEvents())
	assert.Equal(t, Steady, c.State())
	require.NoError(t, c.ProcessEvents())
	assert.Equal(t, io.EOF, c.ProcessEvents())
	assert.Equal(t, Exhausted, c.State())

	require.Len(t, *got, 2)
	assert.Equal(t, session.Depth, (*got)[0].kind)
	assert.Equal(t, []uint16(depth), (*got)[0].depth)
	assert.Equal(t, uint32(11), (*got)[0].timestamp)
	assert.Equal(t, session.Video, (*got)[1].kind)
	assert.Equal(t, rgb, (*got)[1].rgb)
	assert.Equal(t, uint32(22), (*got)[1].timestamp)
}

func TestPlaybackRegistered(t *testing.T) {
	r := writeSession(t, func(w *session.Writer) {
		require.NoError(t, w.WriteDepth(time.Second, 1, filledDepth(registration.DepthNoRawValue)))
		frame := filledDepth(registration.DepthNoRawValue)
		frame.Set(10, 20, 900)
		require.NoError(t, w.WriteDepth(time.Second, 2, frame))
	})
	c := New(r, identityCalibration())
	dev, got := record(c)
	mode, err := kinectframe.FindDepthMode(kinectframe.ResolutionMedium, kinectframe.DepthRegistered)
	require.NoError(t, err)
	require.NoError(t, dev.SetDepthMode(mode))
	assert.Equal(t, kinectframe.DepthRegistered, dev.DepthMode().DepthFormat)
	require.NoError(t, dev.StartDepth())

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, *got, 2)
	assert.Equal(t, []uint16(filledDepth(registration.DepthNoMMValue)), (*got)[0].depth)

	expected := filledDepth(registration.DepthNoMMValue)
	expected.Set(10, 20, 900)
	assert.Equal(t, []uint16(expected), (*got)[1].depth)
}

func TestPlaybackStoppedStreams(t *testing.T) {
	r := &sliceReader{records: []*session.Record{
		{Kind: session.Depth, Time: time.Second, Data: []byte("no header")},
		{Kind: session.Video, Time: time.Second, Data: []byte("no header")},
		{Kind: session.Kind('x'), Time: time.Second},
	}}
	c := New(r, nil)
	_, got := record(c)

	// frames of streams that aren't running are read but not decoded
	require.NoError(t, c.ProcessEvents())
	require.NoError(t, c.ProcessEvents())
	require.NoError(t, c.ProcessEvents())
	assert.Empty(t, *got)
	assert.Equal(t, io.EOF, c.ProcessEvents())
	assert.Equal(t, 4, r.calls)
}

func TestPlaybackBuffers(t *testing.T) {
	depth := filledDepth(5)
	rgb := testRGB()
	r := writeSession(t, func(w *session.Writer) {
		require.NoError(t, w.WriteDepth(time.Second, 1, depth))
		require.NoError(t, w.WriteVideo(time.Second, 2, rgb))
	})
	c := New(r, nil)
	dev, err := c.OpenDevice(0)
	require.NoError(t, err)

	depthBuf := make([]uint16, kinectframe.Pixels)
	videoBuf := make([]byte, kinectframe.VideoBytes)
	require.NoError(t, dev.SetDepthBuffer(depthBuf))
	require.NoError(t, dev.SetVideoBuffer(videoBuf))
	assert.Error(t, dev.SetDepthBuffer(make([]uint16, 10)))
	assert.Error(t, dev.SetVideoBuffer(make([]byte, 10)))

	dev.SetDepthCallback(func(d *Device, got []uint16, ts uint32) {
		assert.Same(t, &depthBuf[0], &got[0])
	})
	dev.SetVideoCallback(func(d *Device, got []byte, ts uint32) {
		assert.Same(t, &videoBuf[0], &got[0])
	})
	require.NoError(t, dev.StartDepth())
	require.NoError(t, dev.StartVideo())
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []uint16(depth), depthBuf)
	assert.Equal(t, rgb, videoBuf)
}

func TestPlaybackCorruptFrame(t *testing.T) {
	r := &sliceReader{records: []*session.Record{
		{Kind: session.Depth, Time: time.Second, Data: []byte("P5 640 480 65535\nshort")},
	}}
	c := New(r, nil)
	dev, _ := record(c)
	require.NoError(t, dev.StartDepth())
	err := c.ProcessEvents()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestPlaybackShortVideoFrame(t *testing.T) {
	r := writeSession(t, func(w *session.Writer) {
		require.NoError(t, w.WriteVideo(time.Second, 1, testRGB()))
		require.NoError(t, w.WriteRaw(session.Video, time.Second, 2, "ppm", []byte("P6 640 480 255\nabc")))
	})
	c := New(r, nil, WithClock(clock.NewMock()))
	dev, got := record(c)
	require.NoError(t, dev.SetVideoBuffer(make([]byte, kinectframe.VideoBytes)))
	require.NoError(t, dev.StartVideo())

	require.NoError(t, c.ProcessEvents())
	err := c.ProcessEvents()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)

	// the stale first frame is not handed out again
	require.Len(t, *got, 1)
	assert.Len(t, (*got)[0].rgb, kinectframe.VideoBytes)
}

func TestPlaybackReaderError(t *testing.T) {
	readErr := errors.New("corrupt")
	c := New(&sliceReader{err: readErr}, nil)
	err := c.ProcessEvents()
	assert.Equal(t, readErr, errors.Cause(err))
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, readErr, errors.Cause(c.Run(context.Background())))
}

func TestExhaustedStopsReading(t *testing.T) {
	r := &sliceReader{}
	c := New(r, nil)
	assert.Equal(t, io.EOF, c.ProcessEvents())
	assert.Equal(t, io.EOF, c.ProcessEvents())
	assert.Equal(t, 1, r.calls)
	assert.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, r.calls)
}

func TestRunCancelled(t *testing.T) {
	r := &sliceReader{records: []*session.Record{accelRecord(time.Second, nil)}}
	c := New(r, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, c.Run(ctx))
	assert.Equal(t, 0, r.calls)
}

func TestAccelerometer(t *testing.T) {
	state := kinectframe.TiltState{AccelX: 1, AccelY: 819, AccelZ: 3, TiltAngle: 20}
	data, err := state.MarshalBinary()
	require.NoError(t, err)
	r := &sliceReader{records: []*session.Record{
		accelRecord(time.Second, data),
		accelRecord(time.Second, []byte{1, 2, 3}),
		accelRecord(time.Second, make([]byte, 20)),
	}}
	core, logs := observer.New(zap.WarnLevel)
	c := New(r, nil, WithLogger(zap.New(core)))
	dev, err := c.OpenDevice(0)
	require.NoError(t, err)

	tilt := dev.TiltState()
	assert.Equal(t, kinectframe.TiltState{}, *tilt)
	require.NoError(t, c.ProcessEvents())
	assert.Equal(t, state, *tilt)
	assert.Equal(t, 10.0, tilt.TiltDegs())
	_, y, _ := tilt.MKSAccel()
	assert.InDelta(t, kinectframe.Gravity, y, 1e-9)

	require.NoError(t, c.ProcessEvents())
	require.NoError(t, c.ProcessEvents())
	assert.Equal(t, state, *dev.TiltState())
	assert.Equal(t, 1, logs.FilterMessageSnippet("unexpected size").Len())
}

func TestFirstRecordDoesNotSleep(t *testing.T) {
	mock := clock.NewMock()
	r := &sliceReader{records: []*session.Record{accelRecord(time.Hour, nil)}}
	c := New(r, nil, WithClock(mock))

	done := make(chan error, 1)
	go func() { done <- c.ProcessEvents() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first record waited for the clock")
	}
	assert.Equal(t, mock.Now(), c.playbackPrev)
}

func TestDelay(t *testing.T) {
	mock := clock.NewMock()
	r := &sliceReader{records: []*session.Record{
		accelRecord(time.Second, nil),
		accelRecord(1100*time.Millisecond, nil),
	}}
	c := New(r, nil, WithClock(mock))
	require.NoError(t, c.ProcessEvents())
	start := mock.Now()

	mock.Add(30 * time.Millisecond)
	assert.Equal(t, 70*time.Millisecond, c.delay(1100*time.Millisecond))
	assert.Equal(t, time.Duration(0), c.delay(1020*time.Millisecond))
	assert.Equal(t, time.Duration(0), c.delay(900*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- c.ProcessEvents() }()
	for i := 0; ; i++ {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.True(t, c.playbackPrev.Sub(start) >= 100*time.Millisecond)
			assert.Equal(t, 1100*time.Millisecond, c.recordPrev)
			return
		default:
		}
		require.Less(t, i, 10000, "playback never woke up")
		mock.Add(time.Millisecond)
		time.Sleep(100 * time.Microsecond)
	}
}

func TestRealTimePacing(t *testing.T) {
	const gap = 100 * time.Millisecond
	r := writeSession(t, func(w *session.Writer) {
		require.NoError(t, w.WriteVideo(time.Second, 1, testRGB()))
		require.NoError(t, w.WriteVideo(time.Second+gap, 2, testRGB()))
		require.NoError(t, w.WriteVideo(time.Second+gap, 3, testRGB()))
	})
	c := New(r, nil)
	dev, got := record(c)
	require.NoError(t, dev.StartVideo())

	start := time.Now()
	require.NoError(t, c.Run(context.Background()))
	require.Len(t, *got, 3)
	assert.True(t, (*got)[0].at.Sub(start) < gap/2, "first record was delayed")
	between := (*got)[1].at.Sub((*got)[0].at)
	assert.InDelta(t, float64(gap), float64(between), float64(40*time.Millisecond))
	assert.True(t, (*got)[2].at.Sub((*got)[1].at) < gap/2)
}
