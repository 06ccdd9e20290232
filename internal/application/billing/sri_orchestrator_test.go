package billing_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jhoicas/sri-comprobantes/internal/application/billing"
	"github.com/jhoicas/sri-comprobantes/internal/domain/entity/entitytest"
	infrasri "github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

var signingNow = time.Date(2027, 1, 15, 10, 0, 0, 0, sri.Location)

// fakeTransport respuestas programadas de recepción y autorización.
type fakeTransport struct {
	mu          sync.Mutex
	submitCalls int
	checkCalls  int
	submitted   []byte

	submission func() (*sri.SubmissionOutcome, error)
	auth       []func(key sri.AccessKey) (*sri.AuthorizationOutcome, error)
}

func (f *fakeTransport) Submit(ctx context.Context, env sri.Environment, signedXML []byte) (*sri.SubmissionOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.submitted = signedXML
	return f.submission()
}

func (f *fakeTransport) CheckAuthorization(ctx context.Context, env sri.Environment, key sri.AccessKey) (*sri.AuthorizationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.checkCalls
	if i >= len(f.auth) {
		i = len(f.auth) - 1
	}
	f.checkCalls++
	return f.auth[i](key)
}

func accepted() (*sri.SubmissionOutcome, error) {
	return &sri.SubmissionOutcome{Status: sri.SubmissionAccepted}, nil
}

func authStatus(status sri.AuthorizationStatus, msgs ...sri.Message) func(sri.AccessKey) (*sri.AuthorizationOutcome, error) {
	return func(key sri.AccessKey) (*sri.AuthorizationOutcome, error) {
		out := &sri.AuthorizationOutcome{Status: status, AccessKey: key, Messages: msgs}
		if status == sri.AuthorizationAuthorized {
			out.AuthorizationNumber = key.String()
			out.AuthorizationDate = signingNow.Add(time.Minute)
			out.Environment = sri.EnvironmentTest
			out.AuthorizedXML = "<factura/>"
		}
		return out, nil
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []billing.StageEvent
}

func (r *recordingSink) StageCompleted(_ context.Context, ev billing.StageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) stages() []billing.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.Stage, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Stage)
	}
	return out
}

func loadCert(t *testing.T) *signer.Certificate {
	t.Helper()
	cert, err := signer.LoadFromP12File(filepath.Join("..", "..", "infrastructure", "sri", "signer", "testdata", "firma.p12"), "clave-prueba")
	require.NoError(t, err)
	return cert
}

func newOrchestrator(transport billing.SRITransport, now time.Time, opts ...billing.Option) *billing.SRIOrchestrator {
	return billing.NewSRIOrchestrator(
		infrasri.NewXMLBuilderService(),
		signer.NewService(signer.WithClock(func() time.Time { return now })),
		transport,
		billing.EmissionConfig{PollAttempts: 3, PollInterval: time.Millisecond},
		opts...,
	)
}

func TestEmit_AutorizadoConUnEnvioYUnaConsulta(t *testing.T) {
	transport := &fakeTransport{
		submission: accepted,
		auth:       []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){authStatus(sri.AuthorizationAuthorized)},
	}
	sink := &recordingSink{}
	o := newOrchestrator(transport, signingNow, billing.WithStageSink(sink))

	res := o.Emit(context.Background(), entitytest.Invoice(), loadCert(t), sri.EnvironmentTest)

	require.Equal(t, billing.StatusAuthorized, res.Status, res.Error)
	assert.Equal(t, 1, transport.submitCalls)
	assert.Equal(t, 1, transport.checkCalls)
	assert.True(t, res.AccessKey.Verify())
	assert.Equal(t, res.AccessKey.String(), res.AuthorizationNumber)
	require.NotNil(t, res.AuthorizationDate)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "<factura/>", res.AuthorizedXML)

	// Lo enviado es el XML firmado y verificable
	assert.Equal(t, res.SignedXML, string(transport.submitted))
	_, err := signer.Verify(transport.submitted)
	require.NoError(t, err)

	assert.Equal(t, []billing.Stage{
		billing.StageBuilding, billing.StageSigning, billing.StageSubmitting, billing.StagePolling,
	}, sink.stages())
	for _, ev := range sink.events {
		assert.NoError(t, ev.Err)
		assert.Equal(t, res.RequestID, ev.RequestID)
		assert.Equal(t, res.AccessKey, ev.AccessKey)
	}
	assert.Equal(t, string(sri.AuthorizationAuthorized), sink.events[3].Status)
}

func TestEmit_CertificadoVencidoNoLlegaAlTransporte(t *testing.T) {
	cert := loadCert(t)
	transport := &fakeTransport{submission: accepted}
	sink := &recordingSink{}
	o := newOrchestrator(transport, cert.NotAfter().Add(time.Hour), billing.WithStageSink(sink))

	res := o.Emit(context.Background(), entitytest.Invoice(), cert, sri.EnvironmentTest)

	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.Equal(t, billing.StageSigning, res.Stage)
	assert.ErrorIs(t, res.Cause, sri.ErrCertificateExpired)
	var stageErr *billing.StageError
	require.ErrorAs(t, res.Cause, &stageErr)
	assert.Equal(t, billing.StageSigning, stageErr.Stage)

	assert.Zero(t, transport.submitCalls)
	assert.Zero(t, transport.checkCalls)
	assert.Equal(t, []billing.Stage{billing.StageBuilding, billing.StageSigning}, sink.stages())
}

func TestEmit_Devuelta(t *testing.T) {
	msg := sri.Message{Identifier: "35", Message: "ARCHIVO NO CUMPLE ESTRUCTURA XML", Type: "ERROR"}
	transport := &fakeTransport{submission: func() (*sri.SubmissionOutcome, error) {
		return &sri.SubmissionOutcome{Status: sri.SubmissionRejected, Messages: []sri.Message{msg}}, nil
	}}

	res := newOrchestrator(transport, signingNow).Emit(context.Background(), entitytest.CreditNote(), loadCert(t), sri.EnvironmentTest)

	assert.Equal(t, billing.StatusRejected, res.Status)
	assert.Equal(t, []sri.Message{msg}, res.Messages)
	assert.Nil(t, res.Cause)
	assert.Zero(t, transport.checkCalls)
}

func TestEmit_NoAutorizado(t *testing.T) {
	msg := sri.Message{Identifier: "39", Message: "FIRMA INVALIDA", Type: "ERROR"}
	transport := &fakeTransport{
		submission: accepted,
		auth: []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){
			authStatus(sri.AuthorizationPending),
			authStatus(sri.AuthorizationDenied, msg),
		},
	}

	res := newOrchestrator(transport, signingNow).Emit(context.Background(), entitytest.DebitNote(), loadCert(t), sri.EnvironmentTest)

	assert.Equal(t, billing.StatusDenied, res.Status)
	assert.Equal(t, []sri.Message{msg}, res.Messages)
	assert.Equal(t, 2, transport.checkCalls)
}

func TestEmit_TimeoutAlAgotarIntentos(t *testing.T) {
	transport := &fakeTransport{
		submission: accepted,
		auth:       []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){authStatus(sri.AuthorizationPending)},
	}
	sink := &recordingSink{}

	res := newOrchestrator(transport, signingNow, billing.WithStageSink(sink)).
		Emit(context.Background(), entitytest.WithholdingReceipt(), loadCert(t), sri.EnvironmentTest)

	assert.Equal(t, billing.StatusTimedOut, res.Status)
	assert.True(t, res.AccessKey.Verify())
	assert.Equal(t, 3, transport.checkCalls)
	assert.Nil(t, res.Cause)
	require.Len(t, sink.events, 4)
	assert.Equal(t, string(billing.StatusTimedOut), sink.events[3].Status)
}

func TestEmit_TodasLasConsultasFallanEsError(t *testing.T) {
	transport := &fakeTransport{
		submission: accepted,
		auth: []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){
			func(sri.AccessKey) (*sri.AuthorizationOutcome, error) {
				return nil, fmt.Errorf("%w: conexión rechazada", sri.ErrTransportFailure)
			},
		},
	}
	sink := &recordingSink{}

	res := newOrchestrator(transport, signingNow, billing.WithStageSink(sink)).
		Emit(context.Background(), entitytest.Invoice(), loadCert(t), sri.EnvironmentTest)

	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.Equal(t, billing.StagePolling, res.Stage)
	assert.ErrorIs(t, res.Cause, sri.ErrTransportFailure)
	assert.False(t, errors.Is(res.Cause, sri.ErrPollExhausted))
	assert.True(t, res.AccessKey.Verify())
	assert.Equal(t, 3, transport.checkCalls)
	require.Len(t, sink.events, 4)
	assert.Equal(t, "error", sink.events[3].Status)
}

func TestEmit_GuiaRemisionAutorizada(t *testing.T) {
	transport := &fakeTransport{
		submission: accepted,
		auth:       []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){authStatus(sri.AuthorizationAuthorized)},
	}

	res := newOrchestrator(transport, signingNow).Emit(context.Background(), entitytest.Waybill(), loadCert(t), sri.EnvironmentTest)

	require.Equal(t, billing.StatusAuthorized, res.Status, res.Error)
	assert.Equal(t, string(sri.KindWaybill), res.AccessKey.String()[8:10])
	assert.Contains(t, string(transport.submitted), "<guiaRemision")
	_, err := signer.Verify(transport.submitted)
	assert.NoError(t, err)
}

func TestEmit_EstadoDesconocidoEsError(t *testing.T) {
	transport := &fakeTransport{
		submission: accepted,
		auth: []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){
			func(sri.AccessKey) (*sri.AuthorizationOutcome, error) {
				return nil, fmt.Errorf("%w: ANULADO", sri.ErrUnrecognizedStatus)
			},
		},
	}

	res := newOrchestrator(transport, signingNow).Emit(context.Background(), entitytest.Invoice(), loadCert(t), sri.EnvironmentTest)

	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.Equal(t, billing.StagePolling, res.Stage)
	assert.ErrorIs(t, res.Cause, sri.ErrUnrecognizedStatus)
	assert.Equal(t, 1, transport.checkCalls)
}

func TestEmit_FallaDeRecepcion(t *testing.T) {
	transport := &fakeTransport{submission: func() (*sri.SubmissionOutcome, error) {
		return nil, fmt.Errorf("%w: conexión rechazada", sri.ErrTransportFailure)
	}}

	res := newOrchestrator(transport, signingNow).Emit(context.Background(), entitytest.Invoice(), loadCert(t), sri.EnvironmentTest)

	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.Equal(t, billing.StageSubmitting, res.Stage)
	assert.ErrorIs(t, res.Cause, sri.ErrTransportFailure)
	assert.NotEmpty(t, res.SignedXML)
	assert.Zero(t, transport.checkCalls)
}

func TestEmit_TotalesInconsistentesNoFirma(t *testing.T) {
	inv := entitytest.Invoice()
	inv.Total = decimal.RequireFromString("99.99")
	cert := loadCert(t)
	transport := &fakeTransport{submission: accepted}

	res := newOrchestrator(transport, signingNow).Emit(context.Background(), inv, cert, sri.EnvironmentTest)

	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.Equal(t, billing.StageBuilding, res.Stage)
	assert.ErrorIs(t, res.Cause, sri.ErrInconsistentTotals)
	assert.Empty(t, res.SignedXML)
	assert.Zero(t, transport.submitCalls)

	// El certificado quedó liberado
	_, err := signer.NewService(signer.WithClock(func() time.Time { return signingNow })).Sign([]byte(`<factura id="comprobante"/>`), cert)
	assert.ErrorIs(t, err, sri.ErrCertificate)
}

func TestEmit_AmbienteInvalido(t *testing.T) {
	res := newOrchestrator(&fakeTransport{submission: accepted}, signingNow).
		Emit(context.Background(), entitytest.Invoice(), loadCert(t), sri.Environment("3"))

	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.Equal(t, billing.StageBuilding, res.Stage)
	assert.ErrorIs(t, res.Cause, sri.ErrInvalidField)
}

func TestEmit_Cancelado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &fakeTransport{
		submission: accepted,
		auth: []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){
			func(key sri.AccessKey) (*sri.AuthorizationOutcome, error) {
				cancel()
				return &sri.AuthorizationOutcome{Status: sri.AuthorizationPending, AccessKey: key}, nil
			},
		},
	}
	o := billing.NewSRIOrchestrator(
		infrasri.NewXMLBuilderService(),
		signer.NewService(signer.WithClock(func() time.Time { return signingNow })),
		transport,
		billing.EmissionConfig{PollAttempts: 5, PollInterval: time.Hour},
	)

	res := o.Emit(ctx, entitytest.Invoice(), loadCert(t), sri.EnvironmentTest)

	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.Equal(t, billing.StagePolling, res.Stage)
	assert.True(t, errors.Is(res.Cause, context.Canceled))
	assert.Equal(t, 1, transport.checkCalls)
}

func TestEmit_DocumentoNil(t *testing.T) {
	res := newOrchestrator(&fakeTransport{}, signingNow).Emit(context.Background(), nil, nil, sri.EnvironmentTest)

	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Cause, sri.ErrInvalidField)
}

func TestEmit_ClaveNuevaEnCadaEmision(t *testing.T) {
	transport := &fakeTransport{submission: accepted, auth: []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){authStatus(sri.AuthorizationAuthorized)}}
	o := newOrchestrator(transport, signingNow)

	a := o.Emit(context.Background(), entitytest.Invoice(), loadCert(t), sri.EnvironmentTest)
	b := o.Emit(context.Background(), entitytest.Invoice(), loadCert(t), sri.EnvironmentTest)

	require.Equal(t, billing.StatusAuthorized, a.Status)
	require.Equal(t, billing.StatusAuthorized, b.Status)
	assert.NotEqual(t, a.RequestID, b.RequestID)
	// Mismo comprobante, distinto código numérico
	assert.Equal(t, a.AccessKey.String()[:39], b.AccessKey.String()[:39])
}

func TestAuthorize_ReconsultaClave(t *testing.T) {
	transport := &fakeTransport{auth: []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){
		authStatus(sri.AuthorizationPending),
		authStatus(sri.AuthorizationAuthorized),
	}}
	key := sri.AccessKey("1501202401179214673900110010010000000011234567810")
	require.True(t, key.Verify())

	res := newOrchestrator(transport, signingNow).Authorize(context.Background(), sri.EnvironmentTest, key)

	assert.Equal(t, billing.StatusAuthorized, res.Status)
	assert.Equal(t, key, res.AccessKey)
	assert.Equal(t, 2, transport.checkCalls)
	assert.Zero(t, transport.submitCalls)
}

func TestAuthorize_ClaveInvalida(t *testing.T) {
	transport := &fakeTransport{}

	res := newOrchestrator(transport, signingNow).Authorize(context.Background(), sri.EnvironmentTest, "123")

	assert.Equal(t, billing.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Cause, sri.ErrInvalidField)
	assert.Zero(t, transport.checkCalls)
}

func TestEmit_SpansPorEtapa(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	transport := &fakeTransport{submission: accepted, auth: []func(sri.AccessKey) (*sri.AuthorizationOutcome, error){authStatus(sri.AuthorizationAuthorized)}}

	res := newOrchestrator(transport, signingNow, billing.WithTracerProvider(tp)).
		Emit(context.Background(), entitytest.Invoice(), loadCert(t), sri.EnvironmentTest)
	require.Equal(t, billing.StatusAuthorized, res.Status)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"sri.construccion", "sri.firma", "sri.recepcion", "sri.autorizacion", "sri.emitir"}, names)
}
