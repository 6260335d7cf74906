package party

import (
	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
	"github.com/Abhiram-Kasu/CrowdCue/internal/errors"
)

// Permit decides whether a caller with the given role may submit an event of
// the given kind. The owner may send any variant; members are limited to
// votes and queue additions; everyone else is denied outright.
func Permit(role domain.Role, kind domain.EventKind) error {
	switch role {
	case domain.RoleOwner:
		return nil
	case domain.RoleMember:
		if kind == domain.KindSongVoteUpdate || kind == domain.KindSongQueueAddition {
			return nil
		}
		return errors.ForbiddenError("only the party owner can send this type of update").
			WithContext("event_type", string(kind))
	default:
		return errors.ForbiddenError("not a member of this party")
	}
}
