// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// error codes, see http://www.postgresql.org/docs/current/static/errcodes-appendix.html
const (
	// ErrDupEntry indicates a duplicate primary key i.e. the row already exists
	ErrDupEntry              = "23505"
	ErrInsufficientResources = "53000"
	ErrTooManyConnections    = "53300"
	// ErrLockNotAvailable is raised by FOR UPDATE NOWAIT
	ErrLockNotAvailable = "55P03"
)

func (d dbSession) IsDupEntryError(err error) bool {
	return hasCode(err, ErrDupEntry)
}

func (d dbSession) IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (d dbSession) IsTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (d dbSession) IsThrottlingError(err error) bool {
	return hasCode(err, ErrTooManyConnections) || hasCode(err, ErrInsufficientResources)
}

func (d dbSession) IsLockNotAvailableError(err error) bool {
	return hasCode(err, ErrLockNotAvailable)
}

func hasCode(err error, code pq.ErrorCode) bool {
	var sqlErr *pq.Error
	return errors.As(err, &sqlErr) && sqlErr.Code == code
}
