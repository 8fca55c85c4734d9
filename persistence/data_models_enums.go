// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package persistence

import "fmt"

type InstanceStatus int32

const (
	InstanceStatusUndefined          InstanceStatus = 0
	InstanceStatusNew                InstanceStatus = 1
	InstanceStatusReady              InstanceStatus = 2
	InstanceStatusActive             InstanceStatus = 3
	InstanceStatusCompletedOk        InstanceStatus = 4
	InstanceStatusCompletedWithFault InstanceStatus = 5
	InstanceStatusSuspended          InstanceStatus = 6
	InstanceStatusTerminated         InstanceStatus = 7
)

func (e InstanceStatus) String() string {
	switch e {
	case InstanceStatusNew:
		return "NEW"
	case InstanceStatusReady:
		return "READY"
	case InstanceStatusActive:
		return "ACTIVE"
	case InstanceStatusCompletedOk:
		return "COMPLETED_OK"
	case InstanceStatusCompletedWithFault:
		return "COMPLETED_WITH_FAULT"
	case InstanceStatusSuspended:
		return "SUSPENDED"
	case InstanceStatusTerminated:
		return "TERMINATED"
	case InstanceStatusUndefined:
		return "UNDEFINED"
	default:
		return fmt.Sprintf("InstanceStatus(%d)", int32(e))
	}
}

// IsTerminal is true for statuses an instance never leaves
func (e InstanceStatus) IsTerminal() bool {
	return e == InstanceStatusCompletedOk || e == InstanceStatusCompletedWithFault || e == InstanceStatusTerminated
}

func ParseInstanceStatus(s string) (InstanceStatus, error) {
	for st := InstanceStatusNew; st <= InstanceStatusTerminated; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return InstanceStatusUndefined, fmt.Errorf("unknown instance status %q", s)
}

type JobType int32

const (
	// JobTypeTimer fires a timer endpoint: waits, and the delay before an invoke retry
	JobTypeTimer JobType = 1
	// JobTypeResume steps an instance, optionally delivering a signal first
	JobTypeResume JobType = 2
	// JobTypePartnerResponse delivers the reply or failure of a partner invoke
	JobTypePartnerResponse JobType = 3
	// JobTypeMatcher matches queued messages against a newly registered receive
	JobTypeMatcher JobType = 4
	// JobTypeMyRoleInvoke routes an inbound message to an instance
	JobTypeMyRoleInvoke JobType = 5
	// JobTypePartnerInvoke calls a partner, outside of the instance lock
	JobTypePartnerInvoke JobType = 6
)

func (e JobType) String() string {
	switch e {
	case JobTypeTimer:
		return "TIMER"
	case JobTypeResume:
		return "RESUME"
	case JobTypePartnerResponse:
		return "PARTNER_RESPONSE"
	case JobTypeMatcher:
		return "MATCHER"
	case JobTypeMyRoleInvoke:
		return "MYROLE_INVOKE"
	case JobTypePartnerInvoke:
		return "PARTNER_INVOKE"
	default:
		return fmt.Sprintf("JobType(%d)", int32(e))
	}
}
