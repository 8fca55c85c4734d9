// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	// Logger contains the config items for logger
	Logger struct {
		// Stdout sends the output to standard out, it takes precedence over OutputFile.
		// Without both the output goes to standard error
		Stdout bool `yaml:"stdout"`
		// Level is one of debug, info, warn, error and fatal. Default is info
		Level string `yaml:"level"`
		// OutputFile is the path to the log output file
		OutputFile string `yaml:"outputFile"`
		// LevelKey is the key of the level in an entry, defaults to "level"
		LevelKey string `yaml:"levelKey"`
		// Encoding is "json" or "console", default is "json"
		Encoding string `yaml:"encoding"`
		// Sampling drops repeated entries of a busy engine, nil logs everything
		Sampling *LogSampling `yaml:"sampling"`
	}

	// LogSampling keeps the first Initial entries with the same level and message
	// every second, and every Thereafter-th entry after that
	LogSampling struct {
		Initial    int `yaml:"initial"`
		Thereafter int `yaml:"thereafter"`
	}
)

// NewZapLogger builds the zap logger of this configuration
func (cfg *Logger) NewZapLogger() (*zap.Logger, error) {
	zapCfg, err := cfg.zapConfig()
	if err != nil {
		return nil, err
	}
	return zapCfg.Build()
}

func (cfg *Logger) zapConfig() (zap.Config, error) {
	levelKey := cfg.LevelKey
	if levelKey == "" {
		levelKey = "level"
	}
	level, err := parseZapLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, err
	}

	encoding := "json"
	switch cfg.Encoding {
	case "", "json":
	case "console":
		encoding = cfg.Encoding
	default:
		return zap.Config{}, fmt.Errorf("invalid log encoding %q, only json and console are supported", cfg.Encoding)
	}

	outputPath := "stderr"
	switch {
	case cfg.Stdout:
		outputPath = "stdout"
	case cfg.OutputFile != "":
		outputPath = cfg.OutputFile
	}

	var sampling *zap.SamplingConfig
	if cfg.Sampling != nil {
		if cfg.Sampling.Initial <= 0 || cfg.Sampling.Thereafter <= 0 {
			return zap.Config{}, fmt.Errorf("log sampling needs positive initial and thereafter")
		}
		sampling = &zap.SamplingConfig{Initial: cfg.Sampling.Initial, Thereafter: cfg.Sampling.Thereafter}
	}

	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Sampling: sampling,
		Encoding: encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       levelKey,
			NameKey:        "logger",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
		},
		OutputPaths:      []string{outputPath},
		ErrorOutputPaths: []string{outputPath},
	}, nil
}

func parseZapLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zap.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
