// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package config

import "time"

type (
	// SQL is the configuration for connecting to a SQL backed datastore
	SQL struct {
		// User is the username to be used for connecting to database
		User string `yaml:"user"`
		// Password is the password corresponding to the username
		Password string `yaml:"password"`
		// DatabaseName is the name of SQL database to connect to
		DatabaseName string `yaml:"databaseName"`
		// ConnectAddr is the remote addr of the database
		ConnectAddr string `yaml:"connectAddr"`
		// DBExtensionName is the name of the extension
		DBExtensionName string `yaml:"dbExtensionName"`
	}

	// Bolt is the configuration of the embedded bbolt datastore
	Bolt struct {
		// Path is the database file, created when absent
		Path string `yaml:"path"`
		// OpenTimeout is how long to wait for the file lock held by another process
		OpenTimeout time.Duration `yaml:"openTimeout"`
	}
)
