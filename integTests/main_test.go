// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package integTests

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/xcherryio/xflow/cmd/server/bootstrap"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/extensions"
	"github.com/xcherryio/xflow/extensions/postgres"
	"github.com/xcherryio/xflow/extensions/postgres/postgrestool"
)

const (
	apiAddress     = "localhost:18801"
	asyncAddress   = "localhost:18802"
	partnerAddress = "localhost:18803"
)

var shipping = newShippingPartner()

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(runIntegTests(m))
}

func runIntegTests(m *testing.M) int {
	testDBName := fmt.Sprintf("test%v", time.Now().UnixNano())
	fmt.Printf("start running integ test, "+
		"testDBName: %v, useLocalServer:%v, createServerWithPostgres: %v \n",
		testDBName, *useLocalServer, *createServerWithPostgres)

	partnerServer := &http.Server{Addr: partnerAddress, Handler: shipping.router()}
	go func() {
		if err := partnerServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	var shutdownFunc bootstrap.GracefulShutdown
	rootCtx, rootCtxCancelFunc := context.WithCancel(context.Background())

	if !*useLocalServer {
		cfg := config.Config{
			Log: config.Logger{
				Level: "debug",
			},
			ApiService: config.ApiServiceConfig{
				HttpServer: config.HttpServerConfig{
					Address:      apiAddress,
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 60 * time.Second,
				},
			},
			AsyncService: config.AsyncServiceConfig{
				InternalHttpServer: config.HttpServerConfig{
					Address: asyncAddress,
				},
				ClientAddress: "http://" + asyncAddress,
				Scheduler: config.SchedulerConfig{
					MaxPollInterval: time.Second,
				},
			},
			Definitions: config.DefinitionsConfig{
				Directory: "../config/definitions",
			},
			Partners: map[string]config.PartnerConfig{
				"shipping": {BaseUrl: "http://" + partnerAddress + "/shipping", InvokeTimeout: 5 * time.Second},
			},
		}

		if *createServerWithPostgres {
			sqlConfig := &config.SQL{
				ConnectAddr:     fmt.Sprintf("%v:%v", postgrestool.DefaultEndpoint, postgrestool.DefaultPort),
				User:            postgrestool.DefaultUserName,
				Password:        postgrestool.DefaultPassword,
				DBExtensionName: postgres.ExtensionName,
				DatabaseName:    testDBName,
			}
			err := extensions.CreateDatabase(*sqlConfig, testDBName)
			if err != nil {
				panic(err)
			}
			defer func() {
				err := extensions.DropDatabase(*sqlConfig, testDBName)
				if err != nil {
					fmt.Println("failed to drop database ", testDBName, err)
				} else {
					fmt.Println("testing database is deleted")
				}
			}()
			err = extensions.SetupSchema(sqlConfig, "../"+postgrestool.DefaultSchemaFilePath)
			if err != nil {
				panic(err)
			}
			cfg.Database.SQL = sqlConfig
		} else {
			cfg.Database.Memory = true
		}

		shutdownFunc = bootstrap.StartXFlowServer(rootCtx, &cfg, nil)
	}

	// looks like this wait can fix some flaky failure
	// where API call is made before Gin server is ready
	time.Sleep(time.Millisecond * 100)

	resultCode := m.Run()
	fmt.Println("finished running integ test with status code", resultCode)
	rootCtxCancelFunc()
	if shutdownFunc != nil {
		_ = shutdownFunc(context.Background())
	}
	_ = partnerServer.Close()
	return resultCode
}
