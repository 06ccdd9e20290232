package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	domainsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	infrasri "github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

const tracerName = "github.com/jhoicas/sri-comprobantes/internal/application/billing"

// EmissionConfig parámetros de la consulta de autorización.
type EmissionConfig struct {
	PollAttempts int
	PollInterval time.Duration
}

// DefaultEmissionConfig 5 consultas cada 3 segundos.
func DefaultEmissionConfig() EmissionConfig {
	return EmissionConfig{PollAttempts: 5, PollInterval: 3 * time.Second}
}

// SRIOrchestrator orquesta el ciclo completo de emisión electrónica SRI:
//
//	Clave de acceso → XML → Firma XAdES-BES → Recepción → Autorización
//
// Cada emisión es secuencial y no reintenta etapas; las emisiones concurrentes
// solo comparten la sesión del transporte.
type SRIOrchestrator struct {
	builder   DocumentBuilder
	signer    DocumentSigner
	transport SRITransport
	cfg       EmissionConfig

	newKey KeyGenerator
	sink   StageSink
	log    zerolog.Logger
	tracer trace.Tracer
}

// Option configura el orquestador.
type Option func(*SRIOrchestrator)

// WithStageSink registra el receptor de eventos por etapa.
func WithStageSink(s StageSink) Option {
	return func(o *SRIOrchestrator) { o.sink = s }
}

// WithLogger fija el logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *SRIOrchestrator) { o.log = l }
}

// WithTracerProvider fija el proveedor de trazas (por defecto el global).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *SRIOrchestrator) { o.tracer = tp.Tracer(tracerName) }
}

// WithKeyGenerator reemplaza la generación de la clave de acceso.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(o *SRIOrchestrator) { o.newKey = g }
}

// NewSRIOrchestrator construye el orquestador con todas sus dependencias.
func NewSRIOrchestrator(
	builder DocumentBuilder,
	sig DocumentSigner,
	transport SRITransport,
	cfg EmissionConfig,
	opts ...Option,
) *SRIOrchestrator {
	if cfg.PollAttempts < 1 {
		cfg.PollAttempts = DefaultEmissionConfig().PollAttempts
	}
	o := &SRIOrchestrator{
		builder:   builder,
		signer:    sig,
		transport: transport,
		cfg:       cfg,
		newKey:    domainsri.NewAccessKey,
		sink:      nopSink{},
		log:       zerolog.Nop(),
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Emit ejecuta el flujo completo para un comprobante. Nunca devuelve nil: los
// errores quedan en el resultado con Status ERROR, la etapa y la causa.
// El certificado se consume en la llamada aunque la emisión falle antes de firmar.
func (o *SRIOrchestrator) Emit(ctx context.Context, doc entity.Document, cert *signer.Certificate, env sri.Environment) *EmissionResult {
	res := &EmissionResult{RequestID: uuid.NewString(), Environment: env}
	if cert != nil {
		defer cert.Release()
	}
	ctx, span := o.tracer.Start(ctx, "sri.emitir", trace.WithAttributes(
		attribute.String("sri.request_id", res.RequestID),
		attribute.String("sri.ambiente", string(env)),
	))
	defer span.End()
	defer o.finish(span, res)

	if doc == nil {
		res.fail(StageBuilding, fmt.Errorf("%w: comprobante vacío", sri.ErrInvalidField))
		return res
	}
	span.SetAttributes(attribute.String("sri.tipo", string(doc.Kind())))
	o.log.Info().Str("request_id", res.RequestID).Str("tipo", doc.Kind().Name()).
		Str("ambiente", env.String()).Msg("inicio de emisión")

	// ═══════════════════════════════════════════════════════════════════════
	// 1. Clave de acceso + XML
	// ═══════════════════════════════════════════════════════════════════════
	var unsigned []byte
	err := o.runStage(ctx, res, StageBuilding, func(ctx context.Context) (string, []sri.Message, error) {
		if !env.Valid() {
			return "", nil, fmt.Errorf("%w: ambiente %q", sri.ErrInvalidField, string(env))
		}
		key, err := o.newKey(doc, env)
		if err != nil {
			return "", nil, err
		}
		res.AccessKey = key
		unsigned, err = o.builder.Build(doc, key, env)
		return "", nil, err
	})
	if err != nil {
		return res
	}

	// ═══════════════════════════════════════════════════════════════════════
	// 2. Firma XAdES-BES
	// ═══════════════════════════════════════════════════════════════════════
	var signed signer.SignedDocument
	err = o.runStage(ctx, res, StageSigning, func(ctx context.Context) (string, []sri.Message, error) {
		var err error
		signed, err = o.signer.Sign(unsigned, cert)
		return "", nil, err
	})
	if err != nil {
		return res
	}
	res.SignedXML = string(signed.XML)

	// ═══════════════════════════════════════════════════════════════════════
	// 3. Recepción
	// ═══════════════════════════════════════════════════════════════════════
	var submission *sri.SubmissionOutcome
	err = o.runStage(ctx, res, StageSubmitting, func(ctx context.Context) (string, []sri.Message, error) {
		var err error
		submission, err = o.transport.Submit(ctx, env, signed.XML)
		if err != nil {
			return "", nil, err
		}
		return string(submission.Status), submission.Messages, nil
	})
	if err != nil {
		return res
	}
	if submission.Status == sri.SubmissionRejected {
		res.Status = StatusRejected
		res.Messages = submission.Messages
		return res
	}

	// ═══════════════════════════════════════════════════════════════════════
	// 4. Autorización
	// ═══════════════════════════════════════════════════════════════════════
	o.poll(ctx, res, env, res.AccessKey)
	return res
}

// Authorize vuelve a consultar la autorización de un comprobante ya enviado,
// por ejemplo después de un TIMEOUT.
func (o *SRIOrchestrator) Authorize(ctx context.Context, env sri.Environment, key sri.AccessKey) *EmissionResult {
	res := &EmissionResult{RequestID: uuid.NewString(), AccessKey: key, Environment: env}
	ctx, span := o.tracer.Start(ctx, "sri.autorizar", trace.WithAttributes(
		attribute.String("sri.request_id", res.RequestID),
		attribute.String("sri.clave_acceso", key.String()),
	))
	defer span.End()
	defer o.finish(span, res)

	if !key.Verify() {
		res.fail(StagePolling, fmt.Errorf("%w: clave de acceso %q", sri.ErrInvalidField, key.String()))
		return res
	}
	if !env.Valid() {
		res.fail(StagePolling, fmt.Errorf("%w: ambiente %q", sri.ErrInvalidField, string(env)))
		return res
	}
	o.poll(ctx, res, env, key)
	return res
}

func (o *SRIOrchestrator) poll(ctx context.Context, res *EmissionResult, env sri.Environment, key sri.AccessKey) {
	var timedOut bool
	err := o.runStage(ctx, res, StagePolling, func(ctx context.Context) (string, []sri.Message, error) {
		out, err := infrasri.PollUntilTerminal(ctx, o.transport, env, key, o.cfg.PollAttempts, o.cfg.PollInterval)
		if err != nil {
			if errors.Is(err, sri.ErrPollExhausted) || errors.Is(err, context.DeadlineExceeded) {
				timedOut = true
				if out != nil {
					res.Messages = out.Messages
				}
				return string(StatusTimedOut), res.Messages, nil
			}
			return "", nil, err
		}
		res.applyAuthorization(out)
		return string(out.Status), out.Messages, nil
	})
	if err == nil && timedOut {
		res.Status = StatusTimedOut
	}
}

// runStage ejecuta una etapa dentro de su span, mide la duración y notifica al
// sink. Si la etapa falla el resultado queda en ERROR.
func (o *SRIOrchestrator) runStage(
	ctx context.Context,
	res *EmissionResult,
	stage Stage,
	fn func(ctx context.Context) (string, []sri.Message, error),
) error {
	ctx, span := o.tracer.Start(ctx, "sri."+string(stage))
	defer span.End()

	start := time.Now()
	status, msgs, err := fn(ctx)
	ev := StageEvent{
		RequestID: res.RequestID,
		AccessKey: res.AccessKey,
		Stage:     stage,
		Status:    status,
		Duration:  time.Since(start),
		Messages:  msgs,
		Err:       err,
	}
	if err != nil {
		ev.Status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.fail(stage, err)
	} else if ev.Status == "" {
		ev.Status = "ok"
	}
	span.SetAttributes(attribute.String("sri.estado", ev.Status))

	o.sink.StageCompleted(ctx, ev)
	return err
}

func (o *SRIOrchestrator) finish(span trace.Span, res *EmissionResult) {
	span.SetAttributes(
		attribute.String("sri.clave_acceso", res.AccessKey.String()),
		attribute.String("sri.resultado", string(res.Status)),
	)
	ev := o.log.Info()
	if res.Status == StatusFailed {
		ev = o.log.Error().Str("etapa", string(res.Stage)).Err(res.Cause)
	}
	ev.Str("request_id", res.RequestID).
		Str("clave_acceso", res.AccessKey.String()).
		Str("estado", string(res.Status)).
		Msg("fin de emisión")
}
