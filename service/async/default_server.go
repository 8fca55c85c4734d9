// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/config"
	"go.uber.org/multierr"
)

const PathNotifyJobs = "/internal/api/v1/xflow/notify-jobs"

type defaultSever struct {
	rootCtx context.Context
	cfg     config.Config
	logger  log.Logger

	httpServer *http.Server
	svc        Service
}

// NewGinRouter routes the internal paths to svc
func NewGinRouter(svc Service, logger log.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handler := newGinHandler(svc, logger)
	router.POST(PathNotifyJobs, handler.NotifyJobs)
	return router
}

func NewDefaultAsyncServerWithGin(
	rootCtx context.Context, cfg config.Config, svc Service, logger log.Logger,
) Server {
	svrCfg := cfg.AsyncService.InternalHttpServer
	httpServer := &http.Server{
		Addr:              svrCfg.Address,
		ReadTimeout:       svrCfg.ReadTimeout,
		WriteTimeout:      svrCfg.WriteTimeout,
		ReadHeaderTimeout: svrCfg.ReadHeaderTimeout,
		IdleTimeout:       svrCfg.IdleTimeout,
		MaxHeaderBytes:    svrCfg.MaxHeaderBytes,
		TLSConfig:         svrCfg.TLSConfig,
		Handler:           NewGinRouter(svc, logger),
		BaseContext: func(listener net.Listener) context.Context {
			// for graceful shutdown
			return rootCtx
		},
	}

	return &defaultSever{
		rootCtx:    rootCtx,
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		svc:        svc,
	}
}

func (s defaultSever) Start() error {
	go func() {
		err := s.httpServer.ListenAndServe()
		s.logger.Info("Internal Http Server for Async service is closed", tag.Error(err))
	}()

	return s.svc.Start()
}

func (s defaultSever) Stop(ctx context.Context) error {
	err1 := s.httpServer.Shutdown(ctx)
	err2 := s.svc.Stop(ctx)
	return multierr.Combine(err1, err2)
}
