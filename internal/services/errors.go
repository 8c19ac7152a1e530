package services

import "errors"

var (
	ErrRelationshipNotFound      = errors.New("relationship not found")
	ErrRelationshipAlreadyExists = errors.New("relationship already exists")
	ErrRequestsNotAccepted       = errors.New("user doesn't accept relationship requests")
	ErrNotAuthorized             = errors.New("not authorized to perform this action")
	ErrInvalidTransition         = errors.New("action not allowed in the current relationship status")
	ErrAlreadyBlocked            = errors.New("user is already blocked")
	ErrNotBlocked                = errors.New("relationship is not blocked")
	ErrRelationshipDenied        = errors.New("relationship denied")
	ErrSelfRelationship          = errors.New("cannot create a relationship with yourself")
	ErrUserNotFound              = errors.New("user not found")
	ErrInvalidAction             = errors.New("invalid relationship action")
	ErrInvalidSearch             = errors.New("invalid search fragment")
)
