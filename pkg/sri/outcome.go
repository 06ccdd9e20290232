package sri

import "time"

// SubmissionStatus resultado del servicio de recepción.
type SubmissionStatus string

const (
	SubmissionAccepted SubmissionStatus = "ACCEPTED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// AuthorizationStatus resultado de la consulta de autorización.
type AuthorizationStatus string

const (
	AuthorizationAuthorized AuthorizationStatus = "AUTHORIZED"
	AuthorizationDenied     AuthorizationStatus = "DENIED"
	AuthorizationPending    AuthorizationStatus = "PENDING"
)

// Terminal indica si la consulta ya no debe repetirse.
func (s AuthorizationStatus) Terminal() bool {
	return s == AuthorizationAuthorized || s == AuthorizationDenied
}

// Message mensaje devuelto por el SRI, se conserva tal cual.
type Message struct {
	Identifier     string `json:"identificador"`
	Message        string `json:"mensaje"`
	AdditionalInfo string `json:"informacionAdicional,omitempty"`
	Type           string `json:"tipo"`
}

// SubmissionOutcome respuesta de validarComprobante.
type SubmissionOutcome struct {
	Status    SubmissionStatus `json:"estado"`
	AccessKey AccessKey        `json:"claveAcceso"`
	Messages  []Message        `json:"mensajes,omitempty"`
}

// AuthorizationOutcome respuesta de autorizacionComprobante.
type AuthorizationOutcome struct {
	Status              AuthorizationStatus `json:"estado"`
	AccessKey           AccessKey           `json:"claveAcceso"`
	AuthorizationNumber string              `json:"numeroAutorizacion,omitempty"`
	AuthorizationDate   time.Time           `json:"fechaAutorizacion"`
	Environment         Environment         `json:"ambiente,omitempty"`
	AuthorizedXML       string              `json:"comprobante,omitempty"`
	Messages            []Message           `json:"mensajes,omitempty"`
}
