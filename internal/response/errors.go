package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrLearnerAccessOnly ErrCode = "LEARNER_ACCESS_ONLY"
	ErrFacultyAccessOnly ErrCode = "FACULTY_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidOption  ErrCode = "INVALID_OPTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"
	ErrActionForbidden  ErrCode = "ACTION_FORBIDDEN"

	// ─── Test / Session specific ───────────────────────────────────────
	ErrTestNotAvailable    ErrCode = "TEST_NOT_AVAILABLE"
	ErrTestNotPublished    ErrCode = "TEST_NOT_PUBLISHED"
	ErrNotTestAuthor       ErrCode = "NOT_TEST_AUTHOR"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrTestNotDraft        ErrCode = "TEST_NOT_DRAFT"
	ErrSessionCompleted    ErrCode = "SESSION_COMPLETED"
	ErrNoActiveSession     ErrCode = "NO_ACTIVE_SESSION"
	ErrSubmissionInFlight  ErrCode = "SUBMISSION_IN_FLIGHT"
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrSectionLocked       ErrCode = "SECTION_LOCKED"
	ErrJudgeUnavailable    ErrCode = "JUDGE_UNAVAILABLE"
	ErrNotACodingQuestion  ErrCode = "NOT_A_CODING_QUESTION"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email/roll number or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrLearnerAccessOnly:
		return "This resource is restricted to learners."
	case ErrFacultyAccessOnly:
		return "This resource is restricted to faculty."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidOption:
		return "Selected option must be one of A, B, C or D."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrDependencyExists:
		return "This record is still referenced by other data and cannot be deleted."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Test / Session specific ───────────────────────────────────────
	case ErrTestNotAvailable:
		return "This test is not currently available."
	case ErrTestNotPublished:
		return "This test has not been published."
	case ErrNotTestAuthor:
		return "You are not the author of this test."
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrTestNotDraft:
		return "This test is not in DRAFT status."
	case ErrSessionCompleted:
		return "This test attempt has already been submitted."
	case ErrNoActiveSession:
		return "No active attempt exists for this test."
	case ErrSubmissionInFlight:
		return "A submission is already in progress."
	case ErrAlreadySubmitted:
		return "This attempt has already been submitted."
	case ErrSectionLocked:
		return "A completed section cannot be revisited."
	case ErrJudgeUnavailable:
		return "The coding judge service is currently unavailable. Please retry."
	case ErrNotACodingQuestion:
		return "This question does not accept code submissions."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "File size exceeds the limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
