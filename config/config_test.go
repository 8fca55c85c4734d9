// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentConfig(t *testing.T) {
	cfg, err := NewConfig("./development.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateAndSetDefaults())

	require.NotNil(t, cfg.Database.Bolt)
	assert.Equal(t, 5*time.Second, cfg.Database.Bolt.OpenTimeout)
	assert.Equal(t, "0.0.0.0:8801", cfg.ApiService.HttpServer.Address)
	assert.Equal(t, "http://localhost:8802", cfg.AsyncService.ClientAddress)

	sched := cfg.AsyncService.Scheduler
	assert.Equal(t, 10*time.Second, sched.MaxPollInterval)
	assert.Equal(t, int32(1000), sched.PollPageSize)
	assert.Equal(t, 100*time.Millisecond, sched.InstanceLockRetryInterval)
	assert.Equal(t, float32(2), sched.JobRetryPolicy.BackoffCoefficient)
	assert.Equal(t, 30*time.Second, sched.JobRetryPolicy.MaximumInterval)

	assert.Equal(t, PartnerConfig{BaseUrl: "http://localhost:8803/shipping", InvokeTimeout: 5 * time.Second},
		cfg.Partners["shipping"])
	assert.Nil(t, cfg.Pulsar)
}

func TestLoadPostgresConfig(t *testing.T) {
	cfg, err := NewConfig("./development-postgres.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateAndSetDefaults())

	require.NotNil(t, cfg.Database.SQL)
	assert.Equal(t, "postgres", cfg.Database.SQL.DBExtensionName)
	assert.Equal(t, "http://0.0.0.0:8802", cfg.AsyncService.ClientAddress)
	assert.Equal(t, 10*time.Second, cfg.Partners["shipping"].InvokeTimeout)

	require.NotNil(t, cfg.Pulsar)
	assert.Equal(t, "processType", cfg.Pulsar.ProcessTypeProperty)
	assert.Equal(t, "operation", cfg.Pulsar.OperationProperty)
}

func TestValidateRejectsAmbiguousDatabase(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Memory: true, Bolt: &Bolt{Path: "x.db"}},
		AsyncService: AsyncServiceConfig{
			InternalHttpServer: HttpServerConfig{Address: "localhost:8802"},
		},
	}
	assert.Error(t, cfg.ValidateAndSetDefaults())

	cfg.Database.Bolt = nil
	assert.NoError(t, cfg.ValidateAndSetDefaults())

	cfg.Database.Memory = false
	assert.Error(t, cfg.ValidateAndSetDefaults())
}

func TestValidateRequiresPartnerBaseUrl(t *testing.T) {
	cfg := &Config{
		Database:     DatabaseConfig{Memory: true},
		AsyncService: AsyncServiceConfig{ClientAddress: "http://localhost:8802"},
		Partners:     map[string]PartnerConfig{"billing": {}},
	}
	assert.Error(t, cfg.ValidateAndSetDefaults())
}
