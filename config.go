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
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultRegistrationPath is where registration dumps are read from
// unless FAKENECT_REGISTRATION says otherwise. It must match the
// envDefault of Config.RegistrationPath.
const DefaultRegistrationPath = "/tmp/fakenect_registration_data"

// Config locates the session to replay and the registration data of the
// device that recorded it.
type Config struct {
	SessionPath       string `env:"FAKENECT_PATH,required,notEmpty"`
	RegistrationPath  string `env:"FAKENECT_REGISTRATION" envDefault:"/tmp/fakenect_registration_data"`
	DenseRegistration bool   `env:"FAKENECT_DENSE_REGISTRATION"`
	LogLevel          string `env:"FAKENECT_LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Wrap(err, "parse env")
	}
	return cfg, nil
}

// NewLogger builds a console logger at the configured level.
func (cfg Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "FAKENECT_LOG_LEVEL")
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}
