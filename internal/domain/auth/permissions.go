package auth

import "context"

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
)

const (
	PermPerformanceRead    = "performance.read"
	PermPerformanceWrite   = "performance.write"
	PermPerformanceReview  = "performance.review"
	PermPerformanceApprove = "performance.approve"
	PermFormsManage        = "forms.manage"
	PermCyclesManage       = "cycles.manage"
	PermReportsRead        = "reports.read"
	PermAuditRead          = "audit.read"
)

var DefaultPermissions = []string{
	PermPerformanceRead,
	PermPerformanceWrite,
	PermPerformanceReview,
	PermPerformanceApprove,
	PermFormsManage,
	PermCyclesManage,
	PermReportsRead,
	PermAuditRead,
}

// RolePermissions gates routes coarsely. Whether an actor may decide a particular approval
// level is decided by the workflow engine against the level's approver list.
var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermPerformanceRead,
		PermPerformanceWrite,
	},
	RoleManager: {
		PermPerformanceRead,
		PermPerformanceWrite,
		PermPerformanceReview,
		PermPerformanceApprove,
	},
	RoleHR: {
		PermPerformanceRead,
		PermPerformanceWrite,
		PermPerformanceReview,
		PermPerformanceApprove,
		PermFormsManage,
		PermCyclesManage,
		PermReportsRead,
		PermAuditRead,
	},
	RoleAdmin: DefaultPermissions,
}

func KnownRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

// StaticPermissions answers permission checks from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(ctx context.Context, role, permission string) (bool, error) {
	for _, candidate := range RolePermissions[role] {
		if candidate == permission {
			return true, nil
		}
	}
	return false, nil
}
