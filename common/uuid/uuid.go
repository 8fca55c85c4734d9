// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// NewString returns a time ordered (v7) uuid string, so that ids of
// instances and jobs sort roughly by creation time in storage indexes
func NewString() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Validate returns an error when s is not a uuid in canonical form
func Validate(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("invalid UUID string %q: %w", s, err)
	}
	return nil
}
