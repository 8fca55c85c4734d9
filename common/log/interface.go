// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"github.com/xcherryio/xflow/common/log/tag"
)

// Logger is our abstraction for logging
// Usage examples:
//
//
//	 1) logger = logger.WithTags(
//	         tag.InstanceId("8f0c..."),
//	         tag.JobType("TIMER"))
//	    logger.Info("job fired")
//	 2) logger.Info("activity entered recovery",
//	         tag.InstanceId("8f0c..."),
//	         tag.ActivityId("charge"))
//	 Note: msg should be static, it is not recommended to use fmt.Sprintf() for msg.
//	       Anything dynamic should be tagged.
type Logger interface {
	Debug(msg string, tags ...tag.Tag)
	Info(msg string, tags ...tag.Tag)
	Warn(msg string, tags ...tag.Tag)
	Error(msg string, tags ...tag.Tag)
	Fatal(msg string, tags ...tag.Tag)
	WithTags(tags ...tag.Tag) Logger
}
