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
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// NewReader opens the session recorded in dir.
func NewReader(fs afero.Fs, dir string) (*Reader, error) {
	index, err := fs.Open(path.Join(dir, IndexFile))
	if err != nil {
		return nil, errors.Wrap(err, "opening session index")
	}
	return &Reader{
		fs:    fs,
		dir:   dir,
		index: index,
		lines: bufio.NewScanner(index),
	}, nil
}

// Reader returns the records of a session in order.
type Reader struct {
	fs    afero.Fs
	dir   string
	index afero.File
	lines *bufio.Scanner
	count int
}

// Dir returns the session directory.
func (r *Reader) Dir() string {
	return r.dir
}

// Count returns the number of records read so far.
func (r *Reader) Count() int {
	return r.count
}

// Next reads the next record and its payload. At the end of the
// session an io.EOF error will be returned. Any other error means the
// session is corrupt.
func (r *Reader) Next() (*Record, error) {
	line, err := r.nextLine()
	if err != nil {
		return nil, err
	}
	kind, t, ts, err := ParseIndexLine(line)
	if err != nil {
		return nil, err
	}
	data, err := r.readPayload(line)
	if err != nil {
		return nil, err
	}
	r.count++
	return &Record{
		Kind:      kind,
		Time:      t,
		Timestamp: ts,
		Data:      data,
	}, nil
}

// Close closes the session index.
func (r *Reader) Close() error {
	return r.index.Close()
}

func (r *Reader) nextLine() (string, error) {
	for r.lines.Scan() {
		line := strings.TrimSpace(r.lines.Text())
		if line != "" {
			return line, nil
		}
	}
	if err := r.lines.Err(); err != nil {
		return "", errors.Wrap(err, "reading session index")
	}
	return "", io.EOF
}

func (r *Reader) readPayload(name string) ([]byte, error) {
	p := path.Join(r.dir, name)
	f, err := r.fs.Open(p)
	if err != nil {
		return nil, errors.Wrap(err, "opening record")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", p)
	}
	data := make([]byte, info.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, errors.Wrapf(err, "couldn't read entire file %s", p)
	}
	return data, nil
}
