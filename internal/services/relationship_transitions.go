package services

import "relationship-service/internal/models"

// transition is the outcome of applying an action to a loaded record.
type transition struct {
	next    models.Status
	deleted bool
}

// applyTransition validates action against rel and returns what should be
// persisted. It has no side effects. REQUEST never reaches it because it
// operates on a pair without a record.
func applyTransition(rel *models.Relationship, actorID int64, action models.Action) (transition, error) {
	if action == models.ActionRequest {
		return transition{}, ErrInvalidAction
	}
	if !rel.IsParty(actorID) {
		return transition{}, ErrNotAuthorized
	}

	switch action {
	case models.ActionAccept:
		return accept(rel, actorID)
	case models.ActionReject:
		return reject(rel, actorID)
	case models.ActionCancel:
		return cancel(rel, actorID)
	case models.ActionUnfriend:
		return unfriend(rel)
	case models.ActionBlock:
		return block(rel, actorID)
	case models.ActionUnblock:
		return unblock(rel, actorID)
	}
	return transition{}, ErrInvalidAction
}

func accept(rel *models.Relationship, actorID int64) (transition, error) {
	if rel.Status != models.StatusPending {
		return transition{}, ErrInvalidTransition
	}
	if actorID != rel.RequesteeID {
		return transition{}, ErrNotAuthorized
	}
	return transition{next: models.StatusFriends}, nil
}

func reject(rel *models.Relationship, actorID int64) (transition, error) {
	if rel.Status != models.StatusPending {
		return transition{}, ErrInvalidTransition
	}
	if actorID != rel.RequesteeID {
		return transition{}, ErrNotAuthorized
	}
	return transition{next: rel.Status, deleted: true}, nil
}

func cancel(rel *models.Relationship, actorID int64) (transition, error) {
	if rel.Status != models.StatusPending {
		return transition{}, ErrInvalidTransition
	}
	if actorID != rel.RequesterID {
		return transition{}, ErrNotAuthorized
	}
	return transition{next: rel.Status, deleted: true}, nil
}

func unfriend(rel *models.Relationship) (transition, error) {
	if rel.Status != models.StatusFriends {
		return transition{}, ErrInvalidTransition
	}
	return transition{next: rel.Status, deleted: true}, nil
}

func block(rel *models.Relationship, actorID int64) (transition, error) {
	if blocker, ok := rel.BlockerOf(); ok {
		if blocker == actorID {
			return transition{}, ErrAlreadyBlocked
		}
		return transition{}, ErrRelationshipDenied
	}
	return transition{next: blockedBy(rel, actorID)}, nil
}

// unblock always lands in FRIENDS, whatever the status was before the block.
func unblock(rel *models.Relationship, actorID int64) (transition, error) {
	if !rel.Status.Blocked() {
		return transition{}, ErrNotBlocked
	}
	if blocker, _ := rel.BlockerOf(); blocker != actorID {
		return transition{}, ErrNotAuthorized
	}
	return transition{next: models.StatusFriends}, nil
}

// blockedBy returns the stored status that records actorID as the blocker.
func blockedBy(rel *models.Relationship, actorID int64) models.Status {
	if actorID == rel.RequesterID {
		return models.StatusRequesterBlockedRequestee
	}
	return models.StatusRequesteeBlockedRequester
}
