package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.SRI.Environment)
	assert.Equal(t, 5, cfg.SRI.PollAttempts)
	assert.Equal(t, 3*time.Second, cfg.SRI.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.SRI.HTTPTimeout)
	assert.Equal(t, "info", cfg.App.LogLevel)
}

func TestLoad_VariablesDeEntorno(t *testing.T) {
	t.Setenv("SRI_AMBIENTE", "2")
	t.Setenv("SRI_POLL_INTENTOS", "8")
	t.Setenv("SRI_POLL_INTERVALO", "500ms")
	t.Setenv("SRI_HTTP_TIMEOUT", "30")
	t.Setenv("SRI_CERT_PATH", "/tmp/firma.p12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "2", cfg.SRI.Environment)
	assert.Equal(t, 8, cfg.SRI.PollAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.SRI.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.SRI.HTTPTimeout)
	assert.Equal(t, "/tmp/firma.p12", cfg.SRI.CertPath)
}

func TestLoad_ArchivoEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sri.env")
	require.NoError(t, os.WriteFile(path, []byte("SRI_WS_RECEPCION_PRUEBAS=http://localhost:9999/recepcion?wsdl\n"), 0o600))
	t.Setenv("SRI_WS_RECEPCION_PRUEBAS", "")
	os.Unsetenv("SRI_WS_RECEPCION_PRUEBAS")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/recepcion?wsdl", cfg.SRI.ReceptionTestURL)
}

func TestLoad_ArchivoInexistente(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-existe.env"))
	assert.Error(t, err)
}

func TestLoad_IntentosInvalidos(t *testing.T) {
	t.Setenv("SRI_POLL_INTENTOS", "0")

	_, err := Load()
	assert.Error(t, err)
}
