// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"fmt"
	rawLog "log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/engine"
	"github.com/xcherryio/xflow/partner"
	"github.com/xcherryio/xflow/persistence"
	"github.com/xcherryio/xflow/persistence/bolt"
	"github.com/xcherryio/xflow/persistence/memory"
	"github.com/xcherryio/xflow/persistence/sql"
	"github.com/xcherryio/xflow/scheduler"
	"github.com/xcherryio/xflow/service/api"
	"github.com/xcherryio/xflow/service/async"
	"github.com/xcherryio/xflow/service/mq"
	"go.uber.org/multierr"
)

const ApiServiceName = "api"
const AsyncServiceName = "async"

const FlagConfig = "config"
const FlagService = "service"

func StartXFlowServerCli(c *cli.Context) {
	// register interrupt signal for graceful shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := c.String(FlagConfig)
	services := getServices(c)

	cfg, err := config.NewConfig(configPath)
	if err != nil {
		rawLog.Fatalf("Unable to load config for path %v because of error %v", configPath, err)
	}
	shutdownFunc := StartXFlowServer(rootCtx, cfg, services)
	// wait for os signals
	<-rootCtx.Done()

	ctx, cancF := context.WithTimeout(context.Background(), time.Second*10)
	defer cancF()
	err = shutdownFunc(ctx)
	if err != nil {
		fmt.Println("shutdown error:", err)
	}
}

type GracefulShutdown func(ctx context.Context) error

func StartXFlowServer(rootCtx context.Context, cfg *config.Config, services map[string]bool) GracefulShutdown {
	if len(services) == 0 {
		services = map[string]bool{ApiServiceName: true, AsyncServiceName: true}
	}

	zapLogger, err := cfg.Log.NewZapLogger()
	if err != nil {
		rawLog.Fatalf("Unable to create a new zap logger %v", err)
	}
	logger := log.NewLogger(zapLogger)
	err = cfg.ValidateAndSetDefaults()
	if err != nil {
		logger.Fatal("config is invalid", tag.Error(err))
	}
	logger.Info("config is loaded", tag.Value(cfg.String()))

	store, err := newStore(cfg.Database, logger)
	if err != nil {
		logger.Fatal("error on persistence setup", tag.Error(err))
	}

	templates, err := loadTemplates(cfg.Definitions, logger)
	if err != nil {
		logger.Fatal("error on loading process templates", tag.Error(err))
	}

	sched := scheduler.NewScheduler(cfg.AsyncService.Scheduler, store, logger.WithTags(tag.Service("scheduler")))
	eng := engine.NewEngine(store, sched, templates, partner.NewHTTPInvoker(cfg.Partners, logger), nil, logger)

	var asyncServer async.Server
	var asyncSvc async.Service
	var consumer mq.Consumer
	if services[AsyncServiceName] {
		asyncLogger := logger.WithTags(tag.Service(AsyncServiceName))
		asyncSvc = async.NewAsyncServiceImpl(sched, eng, asyncLogger)
		asyncServer = async.NewDefaultAsyncServerWithGin(rootCtx, *cfg, asyncSvc, asyncLogger)
		err = asyncServer.Start()
		if err != nil {
			logger.Fatal("Failed to start async server", tag.Error(err))
		}

		if cfg.Pulsar != nil {
			consumer = mq.NewPulsarConsumer(*cfg.Pulsar, eng, asyncLogger)
			if err := consumer.Start(); err != nil {
				logger.Fatal("Failed to start pulsar consumer", tag.Error(err))
			}
		}
	}

	var apiServer api.Server
	if services[ApiServiceName] {
		apiLogger := logger.WithTags(tag.Service(ApiServiceName))
		var notifier api.JobNotifier = asyncSvc
		if asyncSvc == nil {
			notifier = api.NewRemoteJobNotifier(*cfg, apiLogger)
		}
		apiServer = api.NewDefaultAPIServerWithGin(rootCtx, *cfg, eng, notifier, apiLogger)
		err = apiServer.Start()
		if err != nil {
			logger.Fatal("Failed to start api server", tag.Error(err))
		}
	}

	return func(ctx context.Context) error {
		// graceful shutdown
		var errs error
		// first stop accepting requests and messages
		if apiServer != nil {
			errs = multierr.Append(errs, apiServer.Stop(ctx))
		}
		if consumer != nil {
			errs = multierr.Append(errs, consumer.Stop(ctx))
		}
		if asyncServer != nil {
			errs = multierr.Append(errs, asyncServer.Stop(ctx))
		}
		errs = multierr.Append(errs, store.Close())
		return errs
	}
}

func newStore(cfg config.DatabaseConfig, logger log.Logger) (persistence.Store, error) {
	switch {
	case cfg.SQL != nil:
		return sql.NewSQLStore(*cfg.SQL, logger)
	case cfg.Bolt != nil:
		return bolt.NewStore(cfg.Bolt)
	case cfg.Memory:
		logger.Warn("using the memory store, nothing survives a restart")
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("no database is configured")
}

func loadTemplates(cfg config.DefinitionsConfig, logger log.Logger) (definition.Store, error) {
	if cfg.Directory == "" {
		logger.Warn("no definitions directory is configured, no process can be started")
		return definition.NewStore()
	}
	templates, err := definition.LoadDirectory(cfg.Directory)
	if err != nil {
		return nil, err
	}
	logger.Info("process templates are loaded", tag.Value(templates.ListTypes()))
	return templates, nil
}

func getServices(c *cli.Context) map[string]bool {
	val := strings.TrimSpace(c.String(FlagService))
	tokens := strings.Split(val, ",")

	if len(tokens) == 0 {
		rawLog.Fatal("No services specified for starting")
	}

	services := map[string]bool{}
	for _, token := range tokens {
		t := strings.TrimSpace(token)
		if t != "" {
			services[t] = true
		}
	}

	return services
}
