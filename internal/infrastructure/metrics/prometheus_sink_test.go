package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-comprobantes/internal/application/billing"
)

func TestPrometheusSink_CuentaPorEtapaYEstado(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	sink.StageCompleted(ctx, billing.StageEvent{Stage: billing.StageBuilding, Status: "ok", Duration: 5 * time.Millisecond})
	sink.StageCompleted(ctx, billing.StageEvent{Stage: billing.StageSubmitting, Status: "ACCEPTED", Duration: time.Second})
	sink.StageCompleted(ctx, billing.StageEvent{Stage: billing.StageSubmitting, Status: "ACCEPTED", Duration: time.Second})
	sink.StageCompleted(ctx, billing.StageEvent{Stage: billing.StageSigning, Status: "error"})

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.stageCount.WithLabelValues("construccion", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.stageCount.WithLabelValues("recepcion", "ACCEPTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.stageCount.WithLabelValues("firma", "error")))
	assert.Equal(t, 3, testutil.CollectAndCount(sink.stageDuration))
}

func TestPrometheusSink_RegistroDuplicado(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	_, err = NewPrometheusSink(reg)
	assert.Error(t, err)
}
