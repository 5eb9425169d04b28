package model

import "time"

// Permission codes embedded in faculty JWTs and checked by the RBAC middleware.
type Permission string

const (
	PermissionTestsRead     Permission = "tests:read"
	PermissionTestsWrite    Permission = "tests:write"
	PermissionTestsPublish  Permission = "tests:publish"
	PermissionResultsRead   Permission = "results:read"
	PermissionMonitorRead   Permission = "monitor:read"
	PermissionLearnersRead  Permission = "learners:read"
	PermissionLearnersWrite Permission = "learners:write"
	PermissionFacultyRead   Permission = "faculty:read"
	PermissionFacultyWrite  Permission = "faculty:write"
	PermissionMediaUpload   Permission = "media:upload"
	PermissionSettingsWrite Permission = "settings:write"
)

// FacultyRole maps to a fixed permission set. Roles are static; per-faculty
// permission grants were deliberately left out of this portal.
type FacultyRole string

const (
	RoleInstructor FacultyRole = "INSTRUCTOR"
	RoleCoordinator FacultyRole = "COORDINATOR"
)

// RolePermissions returns the permission codes granted to a faculty role.
func RolePermissions(role FacultyRole) []string {
	instructor := []string{
		string(PermissionTestsRead), string(PermissionTestsWrite),
		string(PermissionTestsPublish), string(PermissionResultsRead),
		string(PermissionMonitorRead), string(PermissionMediaUpload),
	}
	switch role {
	case RoleCoordinator:
		return append(instructor,
			string(PermissionLearnersRead), string(PermissionLearnersWrite),
			string(PermissionFacultyRead), string(PermissionFacultyWrite),
			string(PermissionSettingsWrite),
		)
	default:
		return instructor
	}
}

// Faculty represents a faculty (test author / analyst) account.
type Faculty struct {
	ID           int         `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         FacultyRole `json:"role"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// FacultyLoginRequest is the payload for faculty authentication.
type FacultyLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// FacultyLoginResponse is returned after successful faculty login.
type FacultyLoginResponse struct {
	Token   string  `json:"token"`
	Faculty Faculty `json:"faculty"`
}

// CreateFacultyRequest is the payload for creating a faculty account.
type CreateFacultyRequest struct {
	Name     string      `json:"name" binding:"required,min=2,max=100"`
	Email    string      `json:"email" binding:"required,email,max=255"`
	Password string      `json:"password" binding:"required,min=6,max=128"`
	Role     FacultyRole `json:"role" binding:"required,oneof=INSTRUCTOR COORDINATOR"`
}

// UpdateFacultyRequest is the payload for updating a faculty account.
type UpdateFacultyRequest struct {
	Name     string      `json:"name" binding:"required,min=2,max=100"`
	Email    string      `json:"email" binding:"required,email,max=255"`
	Password string      `json:"password" binding:"omitempty,min=6,max=128"`
	Role     FacultyRole `json:"role" binding:"required,oneof=INSTRUCTOR COORDINATOR"`
}
