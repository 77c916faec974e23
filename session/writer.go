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

package session

import (
	"bufio"
	"fmt"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/TheCacophonyProject/go-fakenect/kinectframe"
)

const (
	depthHeader = "P5 640 480 65535\n"
	videoHeader = "P6 640 480 255\n"
)

// NewWriter creates a session in dir, creating the directory if needed.
func NewWriter(fs afero.Fs, dir string) (*Writer, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating session directory")
	}
	index, err := fs.Create(path.Join(dir, IndexFile))
	if err != nil {
		return nil, errors.Wrap(err, "creating session index")
	}
	return &Writer{
		fs:    fs,
		dir:   dir,
		index: index,
		w:     bufio.NewWriter(index),
	}, nil
}

// Writer lays out a session that Reader can play back.
type Writer struct {
	fs    afero.Fs
	dir   string
	index afero.File
	w     *bufio.Writer
}

// WriteDepth writes a depth frame record.
func (w *Writer) WriteDepth(t time.Duration, timestamp uint32, frame kinectframe.DepthFrame) error {
	data := append([]byte(depthHeader), frame.Encode()...)
	return w.WriteRaw(Depth, t, timestamp, "pgm", data)
}

// WriteVideo writes an RGB frame record.
func (w *Writer) WriteVideo(t time.Duration, timestamp uint32, rgb []byte) error {
	data := make([]byte, 0, len(videoHeader)+len(rgb))
	data = append(data, videoHeader...)
	data = append(data, rgb...)
	return w.WriteRaw(Video, t, timestamp, "ppm", data)
}

// WriteAccel writes an accelerometer record.
func (w *Writer) WriteAccel(t time.Duration, timestamp uint32, state kinectframe.TiltState) error {
	data, err := state.MarshalBinary()
	if err != nil {
		return err
	}
	return w.WriteRaw(Accelerometer, t, timestamp, "dump", data)
}

// WriteRaw writes a payload file verbatim and appends it to the index.
func (w *Writer) WriteRaw(kind Kind, t time.Duration, timestamp uint32, ext string, data []byte) error {
	name := fmt.Sprintf("%c-%s-%d.%s", byte(kind), durationToSeconds(t), timestamp, ext)
	if err := afero.WriteFile(w.fs, path.Join(w.dir, name), data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", name)
	}
	_, err := w.w.WriteString(name + "\n")
	return err
}

// Close flushes and closes the index.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.index.Close()
		return err
	}
	return w.index.Close()
}
