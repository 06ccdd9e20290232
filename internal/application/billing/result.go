package billing

import (
	"fmt"
	"time"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// EmissionStatus estado final de una emisión.
type EmissionStatus string

const (
	StatusAuthorized EmissionStatus = "AUTORIZADO"
	StatusRejected   EmissionStatus = "DEVUELTA"
	StatusDenied     EmissionStatus = "NO_AUTORIZADO"
	StatusTimedOut   EmissionStatus = "TIMEOUT"
	StatusFailed     EmissionStatus = "ERROR"
)

// Stage etapa del flujo de emisión. Se ejecutan en este orden y sin retroceso.
type Stage string

const (
	StageBuilding   Stage = "construccion"
	StageSigning    Stage = "firma"
	StageSubmitting Stage = "recepcion"
	StagePolling    Stage = "autorizacion"
)

// StageError falla de una etapa. Envuelve la causa para errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("etapa %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// EmissionResult resultado de Emit o Authorize.
type EmissionResult struct {
	RequestID           string          `json:"requestId"`
	Status              EmissionStatus  `json:"estado"`
	AccessKey           sri.AccessKey   `json:"claveAcceso,omitempty"`
	AuthorizationNumber string          `json:"numeroAutorizacion,omitempty"`
	AuthorizationDate   *time.Time      `json:"fechaAutorizacion,omitempty"`
	Environment         sri.Environment `json:"ambiente,omitempty"`
	SignedXML           string          `json:"xmlFirmado,omitempty"`
	AuthorizedXML       string          `json:"xmlAutorizado,omitempty"`
	Messages            []sri.Message   `json:"mensajes,omitempty"`

	// Solo para StatusFailed
	Stage Stage  `json:"etapa,omitempty"`
	Cause error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (r *EmissionResult) fail(stage Stage, err error) {
	r.Status = StatusFailed
	r.Stage = stage
	r.Cause = &StageError{Stage: stage, Err: err}
	r.Error = err.Error()
}

func (r *EmissionResult) applyAuthorization(out *sri.AuthorizationOutcome) {
	r.Messages = out.Messages
	switch out.Status {
	case sri.AuthorizationAuthorized:
		r.Status = StatusAuthorized
		r.AuthorizationNumber = out.AuthorizationNumber
		if !out.AuthorizationDate.IsZero() {
			d := out.AuthorizationDate
			r.AuthorizationDate = &d
		}
		if out.Environment != "" {
			r.Environment = out.Environment
		}
		r.AuthorizedXML = out.AuthorizedXML
	case sri.AuthorizationDenied:
		r.Status = StatusDenied
	}
}
