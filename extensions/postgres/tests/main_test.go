// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package tests

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/extensions"
	"github.com/xcherryio/xflow/extensions/postgres"
	"github.com/xcherryio/xflow/extensions/postgres/postgrestool"
	"github.com/xcherryio/xflow/persistence"
	"github.com/xcherryio/xflow/persistence/sql"
)

// the tests need a running postgres, see postgrestool for the default connection
const envPostgresTests = "XFLOW_POSTGRES_TESTS"

var store persistence.Store

func TestMain(m *testing.M) {
	if os.Getenv(envPostgresTests) == "" {
		fmt.Printf("skipping postgres tests, set %v to run them\n", envPostgresTests)
		os.Exit(0)
	}

	testDBName := fmt.Sprintf("test%v", time.Now().UnixNano())
	fmt.Println("using database name ", testDBName)

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

	err = extensions.SetupSchema(sqlConfig, "../../../"+postgrestool.DefaultSchemaFilePath)
	if err != nil {
		panic(err)
	}

	store, err = sql.NewSQLStore(*sqlConfig, log.NewDevelopmentLogger())
	if err != nil {
		panic(err)
	}

	resultCode := m.Run()
	fmt.Println("finished running persistence test with status code", resultCode)

	_ = store.Close()
	_ = extensions.DropDatabase(*sqlConfig, testDBName)
	fmt.Println("testing database deleted")
	os.Exit(resultCode)
}
