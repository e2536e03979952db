// internal/moderation/errors.go
package moderation

import "errors"

var (
	ErrForbidden        = errors.New("not allowed to perform this action")
	ErrNotMember        = errors.New("user not in lobby")
	ErrTargetIsOwner    = errors.New("cannot moderate the lobby owner")
	ErrAlreadyBanned    = errors.New("user already banned")
	ErrNotBanned        = errors.New("user not banned")
	ErrNotModerator     = errors.New("user is not a moderator")
	ErrOwnerCannotLeave = errors.New("owner cannot leave lobby, transfer ownership first")
	ErrAlreadyOwner     = errors.New("user already owns the lobby")
	ErrJoinDenied       = errors.New("cannot join lobby")
)
