package domain

import (
	"time"
)

// ChangeEntity identifies the kind of entity a change event refers to
type ChangeEntity string

const (
	EntityInvestor     ChangeEntity = "investor"
	EntitySubscription ChangeEntity = "subscription"
	EntityAllocation   ChangeEntity = "allocation"
	EntityCapTable     ChangeEntity = "cap_table"
	EntityProject      ChangeEntity = "project"
)

// ChangeAction identifies what happened to the entity
type ChangeAction string

const (
	ActionCreated     ChangeAction = "created"
	ActionUpdated     ChangeAction = "updated"
	ActionDeleted     ChangeAction = "deleted"
	ActionConfirmed   ChangeAction = "confirmed"
	ActionAllocated   ChangeAction = "allocated"
	ActionDeallocated ChangeAction = "deallocated"
	ActionDistributed ChangeAction = "distributed"
	ActionKYCExpired  ChangeAction = "kyc_expired"
)

// ChangeEvent is published after a successful mutation so that clients can
// refetch their local view. The store itself stays passive: the API layer
// publishes events, it never owns a subscription mechanism.
type ChangeEvent struct {
	EventID   string       `json:"event_id"`
	Entity    ChangeEntity `json:"entity"`
	EntityID  string       `json:"entity_id"`
	Action    ChangeAction `json:"action"`
	Timestamp time.Time    `json:"timestamp"`
}
