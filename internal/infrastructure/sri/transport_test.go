package sri_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infrasri "github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// scriptedChecker devuelve las respuestas en orden; la última se repite.
type scriptedChecker struct {
	steps []func() (*sri.AuthorizationOutcome, error)
	calls int
}

func (s *scriptedChecker) CheckAuthorization(ctx context.Context, env sri.Environment, key sri.AccessKey) (*sri.AuthorizationOutcome, error) {
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i]()
}

func outcome(status sri.AuthorizationStatus) func() (*sri.AuthorizationOutcome, error) {
	return func() (*sri.AuthorizationOutcome, error) {
		return &sri.AuthorizationOutcome{Status: status, AccessKey: testKey}, nil
	}
}

func failure(err error) func() (*sri.AuthorizationOutcome, error) {
	return func() (*sri.AuthorizationOutcome, error) { return nil, err }
}

func TestPollUntilTerminal_AgotaExactamenteMaxIntentos(t *testing.T) {
	checker := &scriptedChecker{steps: []func() (*sri.AuthorizationOutcome, error){outcome(sri.AuthorizationPending)}}

	out, err := infrasri.PollUntilTerminal(context.Background(), checker, sri.EnvironmentTest, testKey, 4, time.Millisecond)
	require.ErrorIs(t, err, sri.ErrPollExhausted)
	assert.ErrorIs(t, err, sri.ErrTransportFailure)
	assert.Equal(t, 4, checker.calls)
	require.NotNil(t, out)
	assert.Equal(t, sri.AuthorizationPending, out.Status)
}

func TestPollUntilTerminal_TerminaAlAutorizar(t *testing.T) {
	checker := &scriptedChecker{steps: []func() (*sri.AuthorizationOutcome, error){
		outcome(sri.AuthorizationPending),
		outcome(sri.AuthorizationPending),
		outcome(sri.AuthorizationAuthorized),
	}}

	out, err := infrasri.PollUntilTerminal(context.Background(), checker, sri.EnvironmentTest, testKey, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, sri.AuthorizationAuthorized, out.Status)
	assert.Equal(t, 3, checker.calls)
}

func TestPollUntilTerminal_NoAutorizadoEsTerminal(t *testing.T) {
	checker := &scriptedChecker{steps: []func() (*sri.AuthorizationOutcome, error){outcome(sri.AuthorizationDenied)}}

	out, err := infrasri.PollUntilTerminal(context.Background(), checker, sri.EnvironmentTest, testKey, 5, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, sri.AuthorizationDenied, out.Status)
	assert.Equal(t, 1, checker.calls)
}

func TestPollUntilTerminal_FallaDeTransporteCuentaComoIntento(t *testing.T) {
	transportErr := fmt.Errorf("%w: conexión rechazada", sri.ErrTransportFailure)
	checker := &scriptedChecker{steps: []func() (*sri.AuthorizationOutcome, error){
		failure(transportErr),
		outcome(sri.AuthorizationAuthorized),
	}}

	out, err := infrasri.PollUntilTerminal(context.Background(), checker, sri.EnvironmentTest, testKey, 2, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, sri.AuthorizationAuthorized, out.Status)
	assert.Equal(t, 2, checker.calls)

}

func TestPollUntilTerminal_TodasLasConsultasFallan(t *testing.T) {
	transportErr := fmt.Errorf("%w: conexión rechazada", sri.ErrTransportFailure)
	checker := &scriptedChecker{steps: []func() (*sri.AuthorizationOutcome, error){failure(transportErr)}}

	out, err := infrasri.PollUntilTerminal(context.Background(), checker, sri.EnvironmentTest, testKey, 3, time.Millisecond)
	require.ErrorIs(t, err, sri.ErrTransportFailure)
	assert.False(t, errors.Is(err, sri.ErrPollExhausted), "sin respuesta pendiente no es agotamiento: %v", err)
	assert.Contains(t, err.Error(), "conexión rechazada")
	assert.Nil(t, out)
	assert.Equal(t, 3, checker.calls)
}

func TestPollUntilTerminal_PendienteYLuegoFallasEsAgotamiento(t *testing.T) {
	transportErr := fmt.Errorf("%w: conexión rechazada", sri.ErrTransportFailure)
	checker := &scriptedChecker{steps: []func() (*sri.AuthorizationOutcome, error){
		outcome(sri.AuthorizationPending),
		failure(transportErr),
	}}

	out, err := infrasri.PollUntilTerminal(context.Background(), checker, sri.EnvironmentTest, testKey, 3, time.Millisecond)
	assert.ErrorIs(t, err, sri.ErrPollExhausted)
	require.NotNil(t, out)
	assert.Equal(t, sri.AuthorizationPending, out.Status)
}

func TestPollUntilTerminal_EstadoDesconocidoCorta(t *testing.T) {
	unknown := fmt.Errorf("%w: ANULADO", sri.ErrUnrecognizedStatus)
	checker := &scriptedChecker{steps: []func() (*sri.AuthorizationOutcome, error){
		outcome(sri.AuthorizationPending),
		failure(unknown),
	}}

	_, err := infrasri.PollUntilTerminal(context.Background(), checker, sri.EnvironmentTest, testKey, 5, time.Millisecond)
	assert.ErrorIs(t, err, sri.ErrUnrecognizedStatus)
	assert.False(t, errors.Is(err, sri.ErrPollExhausted))
	assert.Equal(t, 2, checker.calls)
}

func TestPollUntilTerminal_Cancelacion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	checker := &scriptedChecker{steps: []func() (*sri.AuthorizationOutcome, error){
		func() (*sri.AuthorizationOutcome, error) {
			cancel()
			return &sri.AuthorizationOutcome{Status: sri.AuthorizationPending}, nil
		},
	}}

	start := time.Now()
	out, err := infrasri.PollUntilTerminal(ctx, checker, sri.EnvironmentTest, testKey, 5, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, checker.calls)
	assert.Less(t, time.Since(start), time.Minute)
	require.NotNil(t, out)
	assert.Equal(t, sri.AuthorizationPending, out.Status)
}

func TestPollUntilTerminal_NoEsperaAntesDeLaPrimeraConsulta(t *testing.T) {
	checker := &scriptedChecker{steps: []func() (*sri.AuthorizationOutcome, error){outcome(sri.AuthorizationAuthorized)}}

	start := time.Now()
	_, err := infrasri.PollUntilTerminal(context.Background(), checker, sri.EnvironmentTest, testKey, 5, time.Hour)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Minute)
}
