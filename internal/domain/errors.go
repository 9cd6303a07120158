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
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidIndexStatus    = NewDomainError(ErrCodeValidation, "invalid document index status")
	ErrInvalidIndexJobStatus = NewDomainError(ErrCodeValidation, "invalid index job status")
	ErrInvalidMessageRole    = NewDomainError(ErrCodeValidation, "invalid chat message role")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound      = NewDomainError(ErrCodeNotFound, "document not found")
	ErrKnowledgeBaseNotFound = NewDomainError(ErrCodeNotFound, "knowledge base not found")
	ErrChatSessionNotFound   = NewDomainError(ErrCodeNotFound, "chat session not found")
	ErrEmbeddingNotFound     = NewDomainError(ErrCodeNotFound, "document embedding not found")
)

// Already exists errors
var (
	ErrKnowledgeBaseAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "knowledge base already exists")
)

// Authorization errors
var (
	ErrInvalidToken          = NewDomainError(ErrCodeUnauthorized, "token invalid or expired")
	ErrNotDocumentOwner      = NewDomainError(ErrCodeForbidden, "user does not own this document's knowledge base")
	ErrNotKnowledgeBaseOwner = NewDomainError(ErrCodeForbidden, "knowledge base belongs to another user")
	ErrNotSessionOwner       = NewDomainError(ErrCodeForbidden, "chat session belongs to another user")
)

// Provider and storage errors. ErrEmbeddingProvider is the single error kind
// surfaced for every embedding failure (transport, auth, malformed response).
var (
	ErrEmbeddingProvider = NewDomainError(ErrCodeInternalError, "embedding provider failure")
	ErrVectorStore       = NewDomainError(ErrCodeInternalError, "vector store operation failed")
	ErrStorageOperation  = NewDomainError(ErrCodeInternalError, "blob storage operation failed")
	ErrDocumentNotText   = NewDomainError(ErrCodeValidation, "document content could not be extracted as text")
)
