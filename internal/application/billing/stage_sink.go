package billing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// StageEvent registro de auditoría de una etapa terminada.
type StageEvent struct {
	RequestID string
	AccessKey sri.AccessKey
	Stage     Stage
	Status    string // "ok", "error" o el estado devuelto por el SRI
	Duration  time.Duration
	Messages  []sri.Message
	Err       error
}

type nopSink struct{}

func (nopSink) StageCompleted(context.Context, StageEvent) {}

// LogSink escribe cada evento en el logger.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(l zerolog.Logger) *LogSink {
	return &LogSink{log: l}
}

func (s *LogSink) StageCompleted(_ context.Context, ev StageEvent) {
	e := s.log.Info()
	if ev.Err != nil {
		e = s.log.Warn().Err(ev.Err)
	}
	e = e.Str("request_id", ev.RequestID).
		Str("clave_acceso", ev.AccessKey.String()).
		Str("etapa", string(ev.Stage)).
		Str("estado", ev.Status).
		Dur("duracion", ev.Duration)
	for _, m := range ev.Messages {
		e = e.Str("mensaje_"+m.Identifier, m.Message)
	}
	e.Msg("etapa completada")
}

// MultiSink reenvía cada evento a varios sinks en orden.
type MultiSink []StageSink

func (m MultiSink) StageCompleted(ctx context.Context, ev StageEvent) {
	for _, s := range m {
		if s != nil {
			s.StageCompleted(ctx, ev)
		}
	}
}
