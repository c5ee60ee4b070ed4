package apihttp

// DefaultMessage is the body every successful endpoint answers with.
const DefaultMessage = "Ok"

// NotFoundMessage is reported for any unknown path or method.
const NotFoundMessage = "The requested resource does not exist on this server!"

// ValidationRequest is the body accepted by POST /api/v1/validation. A nil
// Message means the field was absent or null.
type ValidationRequest struct {
	Message *string `json:"message" validate:"required,min=1"`
}

// MessageResponse is the {"message": ...} envelope.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthCheckResponse is returned by the liveness endpoints.
type HealthCheckResponse = MessageResponse

// ValidationResponse is returned when a validation request is accepted.
type ValidationResponse = MessageResponse

func NewHealthCheckResponse() HealthCheckResponse { return HealthCheckResponse{Message: DefaultMessage} }
func NewValidationResponse() ValidationResponse   { return ValidationResponse{Message: DefaultMessage} }

// FieldErrors maps a field name to its failure messages.
type FieldErrors map[string][]string

// Add appends msg to field's messages.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// ErrorsResponse is the {"errors": {...}} envelope shared by validation
// failures and the not-found fallback.
type ErrorsResponse struct {
	Errors FieldErrors `json:"errors"`
}
