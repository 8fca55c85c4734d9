// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggerOutputPath(t *testing.T) {
	cases := map[string]struct {
		cfg  Logger
		want string
	}{
		"default":        {Logger{}, "stderr"},
		"stdout":         {Logger{Stdout: true}, "stdout"},
		"file":           {Logger{OutputFile: "/tmp/xflow.log"}, "/tmp/xflow.log"},
		"stdout wins":    {Logger{Stdout: true, OutputFile: "/tmp/xflow.log"}, "stdout"},
		"console stderr": {Logger{Encoding: "console"}, "stderr"},
	}
	for name, c := range cases {
		zapCfg, err := c.cfg.zapConfig()
		require.NoError(t, err, name)
		assert.Equal(t, []string{c.want}, zapCfg.OutputPaths, name)
	}
}

func TestLoggerLevelAndSampling(t *testing.T) {
	zapCfg, err := (&Logger{Level: "WARN", Sampling: &LogSampling{Initial: 10, Thereafter: 100}}).zapConfig()
	require.NoError(t, err)
	assert.Equal(t, zap.WarnLevel, zapCfg.Level.Level())
	assert.Equal(t, &zap.SamplingConfig{Initial: 10, Thereafter: 100}, zapCfg.Sampling)

	zapCfg, err = (&Logger{}).zapConfig()
	require.NoError(t, err)
	assert.Equal(t, zap.InfoLevel, zapCfg.Level.Level())
	assert.Nil(t, zapCfg.Sampling)

	for name, cfg := range map[string]Logger{
		"level":    {Level: "loud"},
		"encoding": {Encoding: "xml"},
		"sampling": {Sampling: &LogSampling{Initial: 10}},
	} {
		_, err := cfg.NewZapLogger()
		assert.Error(t, err, name)
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xflow.log")
	logger, err := (&Logger{OutputFile: path, LevelKey: "severity"}).NewZapLogger()
	require.NoError(t, err)
	logger.Info("instance ended", zap.String("instanceId", "i1"))
	_ = logger.Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"severity":"info"`)
	assert.Contains(t, string(content), `"instanceId":"i1"`)
}
