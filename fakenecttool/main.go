package main

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

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	fakenect "github.com/TheCacophonyProject/go-fakenect"
	"github.com/TheCacophonyProject/go-fakenect/kinectframe"
	"github.com/TheCacophonyProject/go-fakenect/registration"
	"github.com/TheCacophonyProject/go-fakenect/session"
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "fakenecttool",
		Usage: "inspect and replay recorded Kinect sessions",
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "summarise the records of a session",
				ArgsUsage: "<session dir>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("usage: fakenecttool info <session dir>")
					}
					return printInfo(c.App.Writer, afero.NewOsFs(), c.Args().First())
				},
			},
			{
				Name:      "regdump",
				Usage:     "print the contents of a registration dump",
				ArgsUsage: "[registration file]",
				Action: func(c *cli.Context) error {
					path := fakenect.DefaultRegistrationPath
					if c.NArg() > 0 {
						path = c.Args().First()
					}
					return printRegistration(c.App.Writer, afero.NewOsFs(), path)
				},
			},
			{
				Name:      "play",
				Usage:     "replay a session in real time, logging each frame",
				ArgsUsage: "[session dir, defaults to $FAKENECT_PATH]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "registration",
						Usage: "registration dump `FILE`",
					},
					&cli.BoolFlag{
						Name:  "registered",
						Usage: "register depth frames to the color camera",
					},
					&cli.BoolFlag{
						Name:  "dense",
						Usage: "fill gaps in registered depth frames",
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "enable debug logging",
					},
				},
				Action: playAction,
			},
		},
	}
}

func printInfo(w io.Writer, fs afero.Fs, dir string) error {
	r, err := session.NewReader(fs, dir)
	if err != nil {
		return err
	}
	defer r.Close()

	counts := make(map[session.Kind]int)
	var first, last time.Duration
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		if r.Count() == 1 {
			first = rec.Time
		}
		last = rec.Time
		counts[rec.Kind]++
	}

	fmt.Fprintln(w, "Session:      ", dir)
	fmt.Fprintln(w, "Records:      ", r.Count())
	fmt.Fprintln(w, "Depth frames: ", counts[session.Depth])
	fmt.Fprintln(w, "Video frames: ", counts[session.Video])
	fmt.Fprintln(w, "Accelerometer:", counts[session.Accelerometer])
	fmt.Fprintln(w, "Duration:     ", last-first)
	return nil
}

func printRegistration(w io.Writer, fs afero.Fs, path string) error {
	c, err := registration.Load(fs, path)
	if err != nil {
		return err
	}
	minShift, maxShift := c.DepthToRGBShift[0], c.DepthToRGBShift[0]
	for _, s := range c.DepthToRGBShift {
		if s < minShift {
			minShift = s
		}
		if s > maxShift {
			maxShift = s
		}
	}
	fmt.Fprintln(w, "Start lines:   ", c.RegPadInfo.StartLines)
	fmt.Fprintln(w, "End lines:     ", c.RegPadInfo.EndLines)
	fmt.Fprintln(w, "Cropping lines:", c.RegPadInfo.CroppingLines)
	fmt.Fprintln(w, "Const shift:   ", c.ConstShift)
	fmt.Fprintf(w, "Zero plane:     %+v\n", c.ZeroPlaneInfo)
	fmt.Fprintln(w, "Raw 2046 in mm:", c.RawToMM[registration.DepthNoRawValue-1])
	fmt.Fprintf(w, "Shift range:    %d..%d (1/%d px)\n", minShift, maxShift, registration.RegXValScale)
	return nil
}

func playAction(c *cli.Context) error {
	var cfg fakenect.Config
	if c.NArg() > 0 {
		cfg = fakenect.Config{
			SessionPath:      c.Args().First(),
			RegistrationPath: fakenect.DefaultRegistrationPath,
			LogLevel:         "info",
		}
	} else {
		var err error
		if cfg, err = fakenect.LoadConfig(); err != nil {
			return err
		}
	}
	if c.IsSet("registration") {
		cfg.RegistrationPath = c.String("registration")
	}
	if c.Bool("dense") {
		cfg.DenseRegistration = true
	}
	if c.Bool("debug") {
		cfg.LogLevel = "debug"
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	fn, err := fakenect.Init(afero.NewOsFs(), cfg, fakenect.WithLogger(logger))
	if err != nil {
		return err
	}
	defer fn.Shutdown()

	dev, err := fn.OpenDevice(0)
	if err != nil {
		return err
	}
	if c.Bool("registered") {
		mode, err := kinectframe.FindDepthMode(kinectframe.ResolutionMedium, kinectframe.DepthRegistered)
		if err != nil {
			return err
		}
		if err := dev.SetDepthMode(mode); err != nil {
			return err
		}
	}

	var depthFrames, videoFrames int
	dev.SetDepthCallback(func(_ *fakenect.Device, depth []uint16, timestamp uint32) {
		depthFrames++
		var valid int
		for _, v := range depth {
			if v != registration.DepthNoMMValue && v != registration.DepthNoRawValue {
				valid++
			}
		}
		logger.Info("depth frame",
			zap.Uint32("timestamp", timestamp),
			zap.Int("validPixels", valid))
	})
	dev.SetVideoCallback(func(_ *fakenect.Device, rgb []byte, timestamp uint32) {
		videoFrames++
		logger.Info("video frame",
			zap.Uint32("timestamp", timestamp),
			zap.Int("bytes", len(rgb)))
	})
	if err := dev.StartDepth(); err != nil {
		return err
	}
	if err := dev.StartVideo(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = fn.Run(ctx)
	tilt := dev.TiltState()
	ax, ay, az := tilt.MKSAccel()
	logger.Info("playback finished",
		zap.Int("depthFrames", depthFrames),
		zap.Int("videoFrames", videoFrames),
		zap.Float64("tiltDegs", tilt.TiltDegs()),
		zap.Float64s("accel", []float64{ax, ay, az}))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
