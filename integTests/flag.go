// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package integTests

import "flag"

var useLocalServer = flag.Bool("useLocalServer", false,
	"run integ test against local server")

var createServerWithPostgres = flag.Bool("createServerWithPostgres", false,
	"when not useLocalServer, create a server with postgres instead of the memory store and run integ test against it")
