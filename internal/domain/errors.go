package domain

import (
	"errors"
	"fmt"
)

// Error codes carried by DomainError. The HTTP layer maps each to a status.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInvalidOperation  = "INVALID_OPERATION"
	ErrCodeContractViolation = "CONTRACT_VIOLATION"
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
)

// DomainError is an error with a stable machine-readable code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError returns a DomainError without a cause.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause returns a DomainError wrapping err.
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

var (
	ErrInvalidChunkType     = NewDomainError(ErrCodeValidation, "invalid chunk type")
	ErrEmptyChunkText       = NewDomainError(ErrCodeValidation, "chunk text cannot be empty")
	ErrEmptyChunkID         = NewDomainError(ErrCodeValidation, "chunk id is required")
	ErrInvalidPersonaID     = NewDomainError(ErrCodeValidation, "invalid persona id")
	ErrInvalidReindexStatus = NewDomainError(ErrCodeValidation, "invalid reindex job status")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyMessage         = NewDomainError(ErrCodeValidation, "message cannot be empty")
	ErrInvalidKnowledgeItem = NewDomainError(ErrCodeValidation, "invalid knowledge item")

	ErrPersonaNotFound       = NewDomainError(ErrCodeNotFound, "persona not found")
	ErrKnowledgeItemNotFound = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrCheckpointNotFound    = NewDomainError(ErrCodeNotFound, "checkpoint not found")
	ErrReindexJobNotFound    = NewDomainError(ErrCodeNotFound, "reindex job not found")

	ErrPersonaAlreadyExists       = NewDomainError(ErrCodeAlreadyExists, "persona already exists")
	ErrKnowledgeItemAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "knowledge item already exists")
	ErrDuplicateChunkID           = NewDomainError(ErrCodeAlreadyExists, "chunk id already indexed")

	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrMissingUserID = NewDomainError(ErrCodeUnauthorized, "X-User-Id header is required")

	ErrBuiltinPersonaReadOnly = NewDomainError(ErrCodeInvalidOperation, "built-in personas cannot be modified")
	ErrStorageOperationFail   = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// Contract violations mean a collaborator broke its promise. Retrying with
// the same input fails the same way.
var (
	ErrLengthMismatch         = NewDomainError(ErrCodeContractViolation, "vectors and metadata length mismatch")
	ErrDimensionMismatch      = NewDomainError(ErrCodeContractViolation, "vector dimension mismatch")
	ErrEmbeddingCountMismatch = NewDomainError(ErrCodeContractViolation, "embedding count mismatch")
)

// Configuration errors surface as service unavailable.
var (
	ErrCorruptStore       = NewDomainError(ErrCodeConfiguration, "persisted vector store is corrupt or mismatched")
	ErrMissingDimension   = NewDomainError(ErrCodeConfiguration, "embedding dimension must be positive")
	ErrProviderNotEnabled = NewDomainError(ErrCodeConfiguration, "provider not configured")
)
