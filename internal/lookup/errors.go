package lookup

// User-facing failure messages.
const (
	SummaryFailureMessage  = "No se pudo obtener la información. Por favor, inténtelo de nuevo más tarde."
	DistanceFailureMessage = "No se pudo calcular la distancia."
)

// Error is a lookup failure carrying the message shown to the user. The
// underlying cause is kept for logs.
type Error struct {
	Kind    string
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

func userError(kind, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}
