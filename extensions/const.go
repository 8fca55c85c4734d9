// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package extensions

const (
	// CLIFlagEndpoint is the cli flag for endpoint
	CLIFlagEndpoint = "endpoint"
	// CLIFlagPort is the cli flag for port
	CLIFlagPort = "port"
	// CLIFlagUser is the cli flag for user
	CLIFlagUser = "user"
	// CLIFlagPassword is the cli flag for password
	CLIFlagPassword = "password"
	CLIFlagDatabase = "database"
	// CLIFlagFile is the cli flag for the schema file
	CLIFlagFile = "file"
)
