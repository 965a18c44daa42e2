package shared

// DomainError is a domain-level error carrying a stable code for the HTTP
// boundary. The code is what clients switch on; the message is advisory.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Errors shared across aggregates. Per-aggregate sentinels (order not found,
// duplicate order, sync in flight) live in their own packages.
var (
	ErrInvalidInput   = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState   = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrTenantMismatch = NewDomainError("TENANT_MISMATCH", "Entity belongs to a different tenant")
)
