package domain

import "github.com/jhoicas/sri-comprobantes/pkg/sri"

// Errores de dominio del flujo de emisión. Son los mismos valores de pkg/sri
// para que errors.Is funcione sin importar desde qué paquete se comparen.
var (
	ErrInvalidField           = sri.ErrInvalidField
	ErrInconsistentTotals     = sri.ErrInconsistentTotals
	ErrCertificate            = sri.ErrCertificate
	ErrCertificateExpired     = sri.ErrCertificateExpired
	ErrCertificateNotYetValid = sri.ErrCertificateNotYetValid
	ErrSignatureComputation   = sri.ErrSignatureComputation
	ErrTransportFailure       = sri.ErrTransportFailure
	ErrUnrecognizedStatus     = sri.ErrUnrecognizedStatus
	ErrPollExhausted          = sri.ErrPollExhausted
)
