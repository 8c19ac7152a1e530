package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is stored relative to the requester/requestee roles, never to the viewer.
type Status string

const (
	StatusPending                   Status = "PENDING"
	StatusFriends                   Status = "FRIENDS"
	StatusRequesterBlockedRequestee Status = "REQUESTER_BLOCKED_REQUESTEE"
	StatusRequesteeBlockedRequester Status = "REQUESTEE_BLOCKED_REQUESTER"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusFriends, StatusRequesterBlockedRequestee, StatusRequesteeBlockedRequester:
		return true
	}
	return false
}

// Blocked reports whether either party has blocked the other.
func (s Status) Blocked() bool {
	return s == StatusRequesterBlockedRequestee || s == StatusRequesteeBlockedRequester
}

// Action is the closed set of operations a user can apply to a relationship.
type Action string

const (
	ActionRequest  Action = "REQUEST"
	ActionAccept   Action = "ACCEPT"
	ActionReject   Action = "REJECT"
	ActionCancel   Action = "CANCEL"
	ActionUnfriend Action = "UNFRIEND"
	ActionBlock    Action = "BLOCK"
	ActionUnblock  Action = "UNBLOCK"
)

// Actions lists every action in a stable order.
var Actions = []Action{ActionRequest, ActionAccept, ActionReject, ActionCancel, ActionUnfriend, ActionBlock, ActionUnblock}

// ParseAction accepts any letter case.
func ParseAction(raw string) (Action, error) {
	candidate := Action(strings.ToUpper(strings.TrimSpace(raw)))
	for _, a := range Actions {
		if a == candidate {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown relationship action %q", raw)
}

// Relationship is the single directed record kept for an unordered pair of users.
type Relationship struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RequesterID int64     `db:"requester_id" json:"requester_id"`
	RequesteeID int64     `db:"requestee_id" json:"requestee_id"`
	Status      Status    `db:"status" json:"status"`
	Version     int64     `db:"version" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// NewRelationship builds an unsaved PENDING record.
func NewRelationship(requesterID, requesteeID int64) *Relationship {
	return &Relationship{
		ID:          uuid.New(),
		RequesterID: requesterID,
		RequesteeID: requesteeID,
		Status:      StatusPending,
	}
}

// BlockerOf reports which party's block produced the current status.
func (r *Relationship) BlockerOf() (int64, bool) {
	switch r.Status {
	case StatusRequesterBlockedRequestee:
		return r.RequesterID, true
	case StatusRequesteeBlockedRequester:
		return r.RequesteeID, true
	}
	return 0, false
}

func (r *Relationship) IsParty(userID int64) bool {
	return userID == r.RequesterID || userID == r.RequesteeID
}

// Counterparty returns the other user from userID's point of view.
// The result is meaningless when userID is not a party.
func (r *Relationship) Counterparty(userID int64) int64 {
	if userID == r.RequesterID {
		return r.RequesteeID
	}
	return r.RequesterID
}

// ViewerStatus translates the stored status into viewer's terms.
func (r *Relationship) ViewerStatus(viewerID int64) ViewerStatus {
	switch r.Status {
	case StatusFriends:
		return ViewerFriends
	case StatusPending:
		if viewerID == r.RequesterID {
			return ViewerPendingOutgoing
		}
		return ViewerPendingIncoming
	}
	if blocker, ok := r.BlockerOf(); ok && blocker == viewerID {
		return ViewerBlockedByMe
	}
	return ViewerBlockedMe
}

// CanonicalPair orders two ids so that the pair can be used as a map or index key.
func CanonicalPair(a, b int64) (int64, int64) {
	if a <= b {
		return a, b
	}
	return b, a
}

// ViewerStatus is a relationship status as seen by one of its parties.
type ViewerStatus string

const (
	ViewerStranger        ViewerStatus = "STRANGER"
	ViewerFriends         ViewerStatus = "FRIENDS"
	ViewerPendingOutgoing ViewerStatus = "PENDING_OUTGOING"
	ViewerPendingIncoming ViewerStatus = "PENDING_INCOMING"
	ViewerBlockedByMe     ViewerStatus = "BLOCKED_BY_ME"
	ViewerBlockedMe       ViewerStatus = "BLOCKED_ME"
)

// ListFilter selects one per-user projection from the store.
type ListFilter int

const (
	FilterSentPending ListFilter = iota
	FilterReceivedPending
	FilterFriends
	// FilterBlockedByUser: the user is the blocker.
	FilterBlockedByUser
	// FilterBlockingUser: the counterparty is the blocker.
	FilterBlockingUser
)

func (f ListFilter) String() string {
	switch f {
	case FilterSentPending:
		return "sent_pending"
	case FilterReceivedPending:
		return "received_pending"
	case FilterFriends:
		return "friends"
	case FilterBlockedByUser:
		return "blocked_by_user"
	case FilterBlockingUser:
		return "blocking_user"
	}
	return fmt.Sprintf("ListFilter(%d)", int(f))
}

// Matches reports whether rel belongs to userID's projection for the filter.
func (f ListFilter) Matches(rel *Relationship, userID int64) bool {
	switch f {
	case FilterSentPending:
		return rel.Status == StatusPending && rel.RequesterID == userID
	case FilterReceivedPending:
		return rel.Status == StatusPending && rel.RequesteeID == userID
	case FilterFriends:
		return rel.Status == StatusFriends && rel.IsParty(userID)
	case FilterBlockedByUser:
		blocker, ok := rel.BlockerOf()
		return ok && rel.IsParty(userID) && blocker == userID
	case FilterBlockingUser:
		blocker, ok := rel.BlockerOf()
		return ok && rel.IsParty(userID) && blocker != userID
	}
	return false
}

// RelatedUser is one entry of a per-user projection.
type RelatedUser struct {
	UserID         int64        `json:"user_id"`
	Username       string       `json:"username"`
	AvatarURL      string       `json:"avatar_url,omitempty"`
	RelationshipID uuid.UUID    `json:"relationship_id"`
	Status         ViewerStatus `json:"status"`
}

// RelationshipInfo summarises a pair from the viewer's side.
type RelationshipInfo struct {
	Status          ViewerStatus `json:"status"`
	RelationshipID  *uuid.UUID   `json:"relationship_id,omitempty"`
	AcceptsRequests *bool        `json:"accepts_requests,omitempty"`
	ProfileVisible  bool         `json:"profile_visible"`
}
