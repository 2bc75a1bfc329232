package apperrors

type Code string

const (
	CodeUnknown    Code = "UNKNOWN"
	CodeNotFound   Code = "NOT_FOUND"
	CodeConflict   Code = "CONFLICT"
	CodeForbidden  Code = "FORBIDDEN"
	CodeValidation Code = "VALIDATION"
	CodeInternal   Code = "INTERNAL"
)
