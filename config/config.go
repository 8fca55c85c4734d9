// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		// Log is the logging config
		Log Logger `yaml:"log"`

		// Database is the store that instances, jobs and correlation routes are kept in.
		// Exactly one of sql, bolt or memory is needed
		Database DatabaseConfig `yaml:"database"`

		// ApiService is the API service config
		ApiService ApiServiceConfig `yaml:"apiService"`

		// AsyncService is config for async service, which runs the scheduler and the engine
		AsyncService AsyncServiceConfig `yaml:"asyncService"`

		// Definitions is where process templates are loaded from
		Definitions DefinitionsConfig `yaml:"definitions"`

		// Partners maps a partner name used by invoke activities to its endpoint
		Partners map[string]PartnerConfig `yaml:"partners"`

		// Pulsar is optional. When present, inbound messages are also consumed from pulsar
		Pulsar *PulsarConfig `yaml:"pulsar"`
	}

	DatabaseConfig struct {
		// SQL is the SQL database config
		SQL *SQL `yaml:"sql"`
		// Bolt is the embedded database config, for a single node deployment
		Bolt *Bolt `yaml:"bolt"`
		// Memory keeps everything in memory. Nothing survives a restart, only for development
		Memory bool `yaml:"memory"`
	}

	ApiServiceConfig struct {
		// HttpServer is the config for starting http.Server
		HttpServer HttpServerConfig `yaml:"httpServer"`
	}

	AsyncServiceConfig struct {
		// Scheduler is the config for the transactional job scheduler
		Scheduler SchedulerConfig `yaml:"scheduler"`
		// InternalHttpServer is the config for starting a http.Server
		// to serve some internal APIs
		InternalHttpServer HttpServerConfig `yaml:"internalHttpServer"`
		// ClientAddress is the address for API service to call AsyncService's internal API
		ClientAddress string `yaml:"clientAddress"`
	}

	// HttpServerConfig is the config that will be mapped into http.Server
	HttpServerConfig struct {
		// Address optionally specifies the TCP address for the server to listen on,
		// in the form "host:port". If empty, ":http" (port 80) is used.
		// For more details, see https://blog.cloudflare.com/the-complete-guide-to-golang-net-http-timeouts/
		Address string `yaml:"address"`
		// ReadTimeout is the maximum duration for reading the entire
		// request, including the body.
		ReadTimeout time.Duration `yaml:"readTimeout"`
		// WriteTimeout is the maximum duration before timing out
		// writes of the response.
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		// TLSConfig optionally provides a TLS configuration for use
		// by ServeTLS and ListenAndServeTLS
		TLSConfig *tls.Config `yaml:"tlsConfig"`
		// the rest are less frequently used
		ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
		IdleTimeout       time.Duration `yaml:"idleTimeout"`
		MaxHeaderBytes    int           `yaml:"maxHeaderBytes"`
	}

	SchedulerConfig struct {
		// MaxPollInterval is the maximum interval that the job queue will wait between
		// polls. The queue always polls immediately when it is notified of new jobs.
		// But there is no atomicity/transaction guarantee for the notification,
		// so polling with this interval is to ensure not missing any jobs, including
		// the jobs left behind by a crashed node.
		// If not specified then the default value of 1 minute is used.
		MaxPollInterval time.Duration `yaml:"maxPollInterval"`
		// IntervalJitter is the jitter for the poll interval.
		// Default value is 5 seconds.
		IntervalJitter time.Duration `yaml:"intervalJitter"`
		// PreloadLookAhead defines how far in the future the queue will load jobs.
		// Jobs loaded ahead of their scheduled time are kept in memory and fired by a timer gate.
		// Default value is 1 minute.
		PreloadLookAhead time.Duration `yaml:"preloadLookAhead"`
		// PollPageSize is the page size used by the poller to fetch jobs from the database.
		// If not specified then the default value of 1000 is used.
		PollPageSize int32 `yaml:"pollPageSize"`
		// ProcessorConcurrency is the number of goroutines that will be created to process
		// jobs. If not specified then the default value of 10 is used.
		ProcessorConcurrency int `yaml:"processorConcurrency"`
		// ProcessorBufferSize is the size of the buffer of due jobs waiting for a processor goroutine.
		// If not specified then the default value of 1000 is used.
		ProcessorBufferSize int `yaml:"processorBufferSize"`
		// DefaultTransactionTimeout is used by ExecTransaction when a caller passes zero.
		// Default value is 30 seconds.
		DefaultTransactionTimeout time.Duration `yaml:"defaultTransactionTimeout"`
		// JobRetryPolicy is the backoff applied when a job's transaction rolls back
		JobRetryPolicy RetryPolicy `yaml:"jobRetryPolicy"`
		// InstanceLockRetryInterval is how long a job waits before retrying
		// when its instance is locked by another transaction.
		// Default value is 100 milliseconds.
		InstanceLockRetryInterval time.Duration `yaml:"instanceLockRetryInterval"`
	}

	RetryPolicy struct {
		// InitialInterval is the first backoff. Default value is 1 second.
		InitialInterval time.Duration `yaml:"initialInterval"`
		// BackoffCoefficient is the multiplier of the backoff. Default value is 2.
		BackoffCoefficient float32 `yaml:"backoffCoefficient"`
		// MaximumInterval caps the backoff. Default value is 1 minute.
		MaximumInterval time.Duration `yaml:"maximumInterval"`
		// MaximumAttempts is zero for unlimited attempts
		MaximumAttempts int32 `yaml:"maximumAttempts"`
		// MaximumAttemptsDuration is zero for no limit
		MaximumAttemptsDuration time.Duration `yaml:"maximumAttemptsDuration"`
	}

	DefinitionsConfig struct {
		// Directory is scanned for *.yaml and *.yml process templates at startup
		Directory string `yaml:"directory"`
	}

	PartnerConfig struct {
		// BaseUrl is joined with the operation name of an invoke
		BaseUrl string `yaml:"baseUrl"`
		// InvokeTimeout is the timeout of a single invocation. Default value is 10 seconds.
		InvokeTimeout time.Duration `yaml:"invokeTimeout"`
	}

	PulsarConfig struct {
		// URL is the pulsar service url, e.g. pulsar://localhost:6650
		URL string `yaml:"url"`
		// TopicsPattern is the regex of topics to consume inbound messages from
		TopicsPattern string `yaml:"topicsPattern"`
		// SubscriptionName is the shared subscription used by all nodes
		SubscriptionName string `yaml:"subscriptionName"`
		// ProcessTypeProperty is the message property carrying the process type.
		// Default value is "processType"
		ProcessTypeProperty string `yaml:"processTypeProperty"`
		// OperationProperty is the message property carrying the operation.
		// Default value is "operation"
		OperationProperty string `yaml:"operationProperty"`
	}
)

func NewConfig(configPath string) (*Config, error) {
	log.Printf("Loading configFile=%v\n", configPath)

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)

	if err := d.Decode(&config); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) ValidateAndSetDefaults() error {
	if err := c.Database.validate(); err != nil {
		return err
	}

	c.AsyncService.Scheduler.SetDefaults()

	if c.AsyncService.ClientAddress == "" {
		if c.AsyncService.InternalHttpServer.Address == "" {
			return fmt.Errorf("AsyncService.InternalHttpServer.Address cannot be empty")
		}
		c.AsyncService.ClientAddress = "http://" + c.AsyncService.InternalHttpServer.Address
	}

	for name, partner := range c.Partners {
		if partner.BaseUrl == "" {
			return fmt.Errorf("partner %v must have a baseUrl", name)
		}
		if partner.InvokeTimeout == 0 {
			partner.InvokeTimeout = 10 * time.Second
			c.Partners[name] = partner
		}
	}

	if c.Pulsar != nil {
		if anyAbsent(c.Pulsar.URL, c.Pulsar.TopicsPattern, c.Pulsar.SubscriptionName) {
			return fmt.Errorf("some required configs are missing: pulsar.url, pulsar.topicsPattern, pulsar.subscriptionName")
		}
		if c.Pulsar.ProcessTypeProperty == "" {
			c.Pulsar.ProcessTypeProperty = "processType"
		}
		if c.Pulsar.OperationProperty == "" {
			c.Pulsar.OperationProperty = "operation"
		}
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	configured := 0
	if d.SQL != nil {
		configured++
		sql := d.SQL
		if anyAbsent(sql.DatabaseName, sql.DBExtensionName, sql.ConnectAddr, sql.User) {
			return fmt.Errorf("some required configs are missing: sql.DatabaseName, sql.DBExtensionName, sql.ConnectAddr, sql.User")
		}
	}
	if d.Bolt != nil {
		configured++
		if d.Bolt.Path == "" {
			return fmt.Errorf("bolt.path is required")
		}
		if d.Bolt.OpenTimeout == 0 {
			d.Bolt.OpenTimeout = 5 * time.Second
		}
	}
	if d.Memory {
		configured++
	}
	if configured != 1 {
		return fmt.Errorf("exactly one of database.sql, database.bolt or database.memory is required")
	}
	return nil
}

// SetDefaults fills in the zero fields with their default values
func (s *SchedulerConfig) SetDefaults() {
	if s.MaxPollInterval == 0 {
		s.MaxPollInterval = time.Minute
	}
	if s.IntervalJitter == 0 {
		s.IntervalJitter = time.Second * 5
	}
	if s.PreloadLookAhead == 0 {
		s.PreloadLookAhead = time.Minute
	}
	if s.PollPageSize == 0 {
		s.PollPageSize = 1000
	}
	if s.ProcessorConcurrency == 0 {
		s.ProcessorConcurrency = 10
	}
	if s.ProcessorBufferSize == 0 {
		s.ProcessorBufferSize = 1000
	}
	if s.DefaultTransactionTimeout == 0 {
		s.DefaultTransactionTimeout = 30 * time.Second
	}
	if s.InstanceLockRetryInterval == 0 {
		s.InstanceLockRetryInterval = 100 * time.Millisecond
	}
	s.JobRetryPolicy.setDefaults()
}

func (p *RetryPolicy) setDefaults() {
	if p.InitialInterval == 0 {
		p.InitialInterval = time.Second
	}
	if p.BackoffCoefficient == 0 {
		p.BackoffCoefficient = 2
	}
	if p.MaximumInterval == 0 {
		p.MaximumInterval = time.Minute
	}
}

func anyAbsent(strs ...string) bool {
	for _, s := range strs {
		if s == "" {
			return true
		}
	}
	return false
}

func (c *Config) String() string {
	out, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		panic(err)
	}
	return string(out)
}
