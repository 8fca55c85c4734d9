// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

// Package sql is a Store over a SQL database extension such as postgres.
package sql

import (
	"context"
	"fmt"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/extensions"
	"github.com/xcherryio/xflow/persistence"
)

type sqlStoreImpl struct {
	session extensions.SQLDBSession
	logger  log.Logger
}

func NewSQLStore(sqlConfig config.SQL, logger log.Logger) (persistence.Store, error) {
	session, err := extensions.NewSQLSession(&sqlConfig)
	if err != nil {
		return nil, err
	}
	return &sqlStoreImpl{
		session: session,
		logger:  logger,
	}, nil
}

func (p sqlStoreImpl) Close() error {
	return p.session.Close()
}

func (p sqlStoreImpl) StartTransaction(ctx context.Context) (persistence.Transaction, error) {
	tx, err := p.session.StartTransaction(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTransaction{
		session: p.session,
		tx:      tx,
		logger:  p.logger,
	}, nil
}

func (p sqlStoreImpl) GetInstance(ctx context.Context, instanceId string) (*persistence.InstanceRecord, error) {
	row, err := p.session.SelectInstance(ctx, instanceId)
	if err != nil {
		if p.session.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: instance %v", persistence.ErrNotFound, instanceId)
		}
		return nil, err
	}
	rec := toInstanceRecord(*row)
	return &rec, nil
}

func (p sqlStoreImpl) GetJobs(ctx context.Context, request persistence.GetJobsRequest) (*persistence.GetJobsResponse, error) {
	pageSize := request.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	// one extra row tells whether there is another page
	rows, err := p.session.BatchSelectJobs(ctx, extensions.JobRangeSelectFilter{
		ScheduledBefore: request.ScheduledBefore,
		PageSize:        pageSize + 1,
	})
	if err != nil {
		p.logger.Error("failed to select jobs", tag.Error(err))
		return nil, err
	}

	resp := &persistence.GetJobsResponse{}
	if len(rows) > int(pageSize) {
		rows = rows[:pageSize]
		resp.HasMore = true
	}
	for _, row := range rows {
		resp.Jobs = append(resp.Jobs, toJobRecord(row))
	}
	return resp, nil
}

const defaultPageSize = 1000
