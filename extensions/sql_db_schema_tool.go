// Copyright (c) 2017 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package extensions

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/xcherryio/xflow/config"
)

// SetupSchemaByCli setup schema for a new database
func SetupSchemaByCli(cli *cli.Context, extensionName string) error {
	cfg, err := parseConnectConfig(cli, extensionName)
	if err != nil {
		return err
	}
	filePath := cli.String(CLIFlagFile)
	return SetupSchema(cfg, filePath)
}

func SetupSchema(cfg *config.SQL, filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("error reading contents of file %v:%v", filePath, err.Error())
	}

	adminSession, err := NewSQLAdminSession(cfg)
	if err != nil {
		return err
	}
	defer adminSession.Close()

	return adminSession.ExecuteSchemaDDL(context.Background(), string(content))
}

// CreateDatabaseByCli creates a sql database
func CreateDatabaseByCli(cli *cli.Context, extensionName string) error {
	cfg, err := parseConnectConfig(cli, extensionName)
	if err != nil {
		return err
	}
	database := cli.String(CLIFlagDatabase)
	return CreateDatabase(*cfg, database)
}

func CreateDatabase(cfg config.SQL, name string) error {
	// the database does not exist yet, the extension picks an admin database to connect to
	cfg.DatabaseName = ""

	adminSession, err := NewSQLAdminSession(&cfg)
	if err != nil {
		return err
	}
	defer adminSession.Close()
	return adminSession.CreateDatabase(context.Background(), name)
}

func DropDatabase(cfg config.SQL, name string) error {
	// postgres refuses to drop the database the session is connected to
	cfg.DatabaseName = ""
	adminSession, err := NewSQLAdminSession(&cfg)
	if err != nil {
		return err
	}
	defer adminSession.Close()
	return adminSession.DropDatabase(context.Background(), name)
}

func parseConnectConfig(cli *cli.Context, extensionName string) (*config.SQL, error) {
	cfg := new(config.SQL)

	host := cli.String(CLIFlagEndpoint)
	port := cli.Int(CLIFlagPort)
	cfg.ConnectAddr = fmt.Sprintf("%s:%v", host, port)
	cfg.User = cli.String(CLIFlagUser)
	cfg.Password = cli.String(CLIFlagPassword)
	cfg.DatabaseName = cli.String(CLIFlagDatabase)
	cfg.DBExtensionName = extensionName

	if err := ValidateConnectConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateConnectConfig validates params
func ValidateConnectConfig(cfg *config.SQL) error {
	host, _, err := net.SplitHostPort(cfg.ConnectAddr)
	if err != nil {
		return fmt.Errorf("invalid host and port %v", cfg.ConnectAddr)
	}
	if len(host) == 0 {
		return fmt.Errorf("missing sql endpoint argument %v", flag(CLIFlagEndpoint))
	}
	if cfg.DatabaseName == "" {
		return fmt.Errorf("missing %v argument", flag(CLIFlagDatabase))
	}
	return nil
}

func flag(opt string) string {
	return "(-" + opt + ")"
}
