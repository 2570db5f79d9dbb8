package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidSearchMode         = NewDomainError(ErrCodeValidation, "invalid search mode")
	ErrInvalidMessageType        = NewDomainError(ErrCodeValidation, "invalid message type")
	ErrInvalidEmbeddingJobStatus = NewDomainError(ErrCodeValidation, "invalid embedding job status")
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery                = NewDomainError(ErrCodeValidation, "query must not be empty")
)

// Not found errors
var (
	ErrPaperNotFound        = NewDomainError(ErrCodeNotFound, "paper not found")
	ErrChunkNotFound        = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
)

// Already exists errors
var (
	ErrPaperAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "paper already exists")
)

// Availability errors
var (
	ErrIndexNotInitialized = NewDomainError(ErrCodeUnavailable, "vector index not initialized")
	ErrVectorStoreOffline  = NewDomainError(ErrCodeUnavailable, "remote vector store unavailable")
	ErrLLMUnavailable      = NewDomainError(ErrCodeUnavailable, "language model unavailable")
)

// Operation errors
var (
	ErrDimensionMismatch    = NewDomainError(ErrCodeInvalidOperation, "embedding dimension mismatch")
	ErrIndexMetadataSkew    = NewDomainError(ErrCodeInvalidOperation, "index and metadata record counts disagree")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
