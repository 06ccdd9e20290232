package sri

import (
	"errors"
	"fmt"
)

// Taxonomía de errores del flujo de emisión. Se comparan con errors.Is.
var (
	ErrInvalidField           = errors.New("campo inválido")
	ErrInconsistentTotals     = errors.New("totales inconsistentes")
	ErrCertificate            = errors.New("certificado inválido")
	ErrCertificateExpired     = errors.New("certificado caducado")
	ErrCertificateNotYetValid = errors.New("certificado aún no vigente")
	ErrSignatureComputation   = errors.New("error al calcular la firma")
	ErrTransportFailure       = errors.New("falla de transporte con el SRI")
	ErrUnrecognizedStatus     = errors.New("estado del SRI no reconocido")
)

// ErrPollExhausted indica que se agotaron los intentos de consulta con el
// comprobante aún en procesamiento. Es una falla de transporte: la misma
// consulta puede repetirse más tarde.
var ErrPollExhausted = fmt.Errorf("%w: intentos de autorización agotados", ErrTransportFailure)

// FieldError detalla qué campo de la clave de acceso o del comprobante falló.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidField.Error(), e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidField }

func invalidField(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
