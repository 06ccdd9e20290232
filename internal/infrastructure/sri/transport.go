package sri

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Endpoints URLs de los WSDL de recepción y autorización de un ambiente.
type Endpoints struct {
	Reception     string
	Authorization string
}

// DefaultEndpoints URLs oficiales del SRI por ambiente.
func DefaultEndpoints() map[sri.Environment]Endpoints {
	return map[sri.Environment]Endpoints{
		sri.EnvironmentTest: {
			Reception:     "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline?wsdl",
			Authorization: "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline?wsdl",
		},
		sri.EnvironmentProduction: {
			Reception:     "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline?wsdl",
			Authorization: "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline?wsdl",
		},
	}
}

// Submitter envía un comprobante firmado al servicio de recepción.
type Submitter interface {
	Submit(ctx context.Context, env sri.Environment, signedXML []byte) (*sri.SubmissionOutcome, error)
}

// AuthorizationChecker consulta el estado de autorización de una clave de acceso.
type AuthorizationChecker interface {
	CheckAuthorization(ctx context.Context, env sri.Environment, key sri.AccessKey) (*sri.AuthorizationOutcome, error)
}

// Transport puerto completo hacia los servicios web del SRI.
type Transport interface {
	Submitter
	AuthorizationChecker
}

// PollUntilTerminal consulta la autorización hasta obtener un estado terminal.
// Hace como máximo maxAttempts consultas y espera interval entre una y otra,
// nunca antes de la primera ni después de la última. Las fallas de transporte
// cuentan como intento. Un estado no reconocido corta la consulta de inmediato.
// Si se agotan los intentos con al menos una respuesta pendiente devuelve la
// última junto con sri.ErrPollExhausted. Si todas las consultas fallaron no
// hay nada pendiente: devuelve la última falla de transporte, sin
// sri.ErrPollExhausted.
func PollUntilTerminal(
	ctx context.Context,
	checker AuthorizationChecker,
	env sri.Environment,
	key sri.AccessKey,
	maxAttempts int,
	interval time.Duration,
) (*sri.AuthorizationOutcome, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var (
		last    *sri.AuthorizationOutcome
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, interval); err != nil {
				return last, err
			}
		}
		out, err := checker.CheckAuthorization(ctx, env, key)
		switch {
		case err == nil && out.Status.Terminal():
			return out, nil
		case err == nil:
			last = out
		case errors.Is(err, sri.ErrUnrecognizedStatus):
			return nil, err
		case ctx.Err() != nil:
			return last, ctx.Err()
		default:
			lastErr = err
		}
	}
	if last == nil && lastErr != nil {
		return nil, fmt.Errorf("%d consultas fallidas: %w", maxAttempts, lastErr)
	}
	return last, sri.ErrPollExhausted
}

// sleep espera d o hasta que ctx termine.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
