package performance

import "strings"

// ActorContext identifies who invokes a command. Every command takes it explicitly.
type ActorContext struct {
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

// SystemActor is used by background jobs that advance cycles on schedule.
var SystemActor = ActorContext{UserID: "system", Role: RoleSystem}

func (a ActorContext) IsHROrAdmin() bool {
	return a.Role == RoleHR || a.Role == RoleAdmin
}

func (a ActorContext) valid() bool {
	return strings.TrimSpace(a.UserID) != "" && strings.TrimSpace(a.Role) != ""
}

// canDecide reports whether the actor is listed on the level, either by user id or by role.
func (a ActorContext) canDecide(level ApprovalLevel) bool {
	if !a.valid() {
		return false
	}
	for _, approver := range level.Approvers {
		if approver == a.UserID || strings.EqualFold(approver, a.Role) {
			return true
		}
	}
	return false
}

func requireAuthor(actor ActorContext) error {
	if !actor.valid() || !actor.IsHROrAdmin() {
		return ErrForbidden
	}
	return nil
}
