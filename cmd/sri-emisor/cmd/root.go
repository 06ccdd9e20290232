package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/internal/application/billing"
	"github.com/jhoicas/sri-comprobantes/internal/domain"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/metrics"
	infrasri "github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/tracing"
	"github.com/jhoicas/sri-comprobantes/pkg/config"
	"github.com/jhoicas/sri-comprobantes/pkg/logger"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

var (
	version = "1.0.0"

	// Global flags
	envFile      string
	environment  string
	logLevel     string
	metricsFile  string
	certPath     string
	certKeyPath  string
	certPassword string
)

var rootCmd = &cobra.Command{
	Use:   "sri-emisor",
	Short: "Emisión de comprobantes electrónicos SRI (Ecuador)",
	Long: `sri-emisor genera, firma (XAdES-BES) y envía comprobantes electrónicos al SRI
y consulta su autorización.

Comprobantes: factura (01), nota de crédito (04), nota de débito (05),
guía de remisión (06) y comprobante de retención (07).

Ejemplos:
  # Emitir una factura en pruebas
  sri-emisor emitir factura.json --cert firma.p12 --ambiente 1

  # Consultar de nuevo una clave que quedó en TIMEOUT
  sri-emisor autorizacion 1501202401179214673900110010010000000011234567810

  # Revisar un certificado
  sri-emisor certificado --cert firma.p12`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Archivo .env adicional a cargar")
	rootCmd.PersistentFlags().StringVarP(&environment, "ambiente", "a", "", "Ambiente SRI: 1=pruebas, 2=producción (env: SRI_AMBIENTE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Nivel de log (env: LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Escribe las métricas Prometheus en este archivo al terminar")
	rootCmd.PersistentFlags().StringVar(&certPath, "cert", "", "Certificado .p12/.pfx o .pem (env: SRI_CERT_PATH)")
	rootCmd.PersistentFlags().StringVar(&certKeyPath, "cert-key", "", "Llave privada .pem (env: SRI_CERT_KEY_PATH)")
	rootCmd.PersistentFlags().StringVar(&certPassword, "cert-password", "", "Contraseña del certificado (env: SRI_CERT_PASSWORD)")
}

// app dependencias armadas a partir de la configuración.
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	env          sri.Environment
	client       *infrasri.SOAPClient
	orchestrator *billing.SRIOrchestrator
	registry     *prometheus.Registry
	shutdown     func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	if environment != "" {
		cfg.SRI.Environment = environment
	}
	if certPath != "" {
		cfg.SRI.CertPath = certPath
	}
	if certKeyPath != "" {
		cfg.SRI.CertKeyPath = certKeyPath
	}
	if certPassword != "" {
		cfg.SRI.CertPassword = certPassword
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	env, err := sri.ParseEnvironment(cfg.SRI.Environment)
	if err != nil {
		return nil, err
	}

	shutdown, err := tracing.Init(ctx, cfg.App.Name, log.Zerolog())
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	promSink, err := metrics.NewPrometheusSink(registry)
	if err != nil {
		return nil, err
	}

	client := infrasri.NewSOAPClient(infrasri.WithTimeout(cfg.SRI.HTTPTimeout))
	overrideEndpoints(client, sri.EnvironmentTest, cfg.SRI.ReceptionTestURL, cfg.SRI.AuthorizationTestURL)
	overrideEndpoints(client, sri.EnvironmentProduction, cfg.SRI.ReceptionProductionURL, cfg.SRI.AuthorizationProductionURL)

	orchestrator := billing.NewSRIOrchestrator(
		infrasri.NewXMLBuilderService(),
		signer.NewService(),
		client,
		billing.EmissionConfig{PollAttempts: cfg.SRI.PollAttempts, PollInterval: cfg.SRI.PollInterval},
		billing.WithLogger(log.Zerolog()),
		billing.WithStageSink(billing.MultiSink{billing.NewLogSink(log.Zerolog()), promSink}),
	)

	return &app{
		cfg:          cfg,
		log:          log,
		env:          env,
		client:       client,
		orchestrator: orchestrator,
		registry:     registry,
		shutdown:     shutdown,
	}, nil
}

func overrideEndpoints(c *infrasri.SOAPClient, env sri.Environment, reception, authorization string) {
	if reception == "" && authorization == "" {
		return
	}
	e := infrasri.DefaultEndpoints()[env]
	if reception != "" {
		e.Reception = reception
	}
	if authorization != "" {
		e.Authorization = authorization
	}
	c.SetEndpoints(env, e)
}

// close vacía las trazas y escribe las métricas si se pidió.
func (a *app) close(ctx context.Context) {
	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, a.registry); err != nil {
			a.log.Warn().Err(err).Str("archivo", metricsFile).Msg("no se pudieron escribir las métricas")
		}
	}
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("no se pudieron exportar las trazas")
	}
}

// loadCertificate elige el cargador según la extensión del archivo.
func loadCertificate(cfg config.SRIConfig) (*signer.Certificate, error) {
	if cfg.CertPath == "" {
		return nil, fmt.Errorf("%w: SRI_CERT_PATH no configurado (usar --cert)", domain.ErrCertificate)
	}
	lower := strings.ToLower(cfg.CertPath)
	if strings.HasSuffix(lower, ".p12") || strings.HasSuffix(lower, ".pfx") {
		return signer.LoadFromP12File(cfg.CertPath, cfg.CertPassword)
	}
	return signer.LoadFromPEMFiles(cfg.CertPath, cfg.CertKeyPath, cfg.CertPassword)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusError emisión terminada sin autorización.
type statusError struct {
	status billing.EmissionStatus
}

func (e *statusError) Error() string {
	return fmt.Sprintf("el comprobante terminó en estado %s", e.status)
}

func resultError(res *billing.EmissionResult) error {
	switch res.Status {
	case billing.StatusAuthorized:
		return nil
	case billing.StatusFailed:
		return res.Cause
	default:
		return &statusError{status: res.Status}
	}
}

// ExitCode 0 autorizado; 2 devuelto o no autorizado; 3 timeout; 4 certificado;
// 5 datos del comprobante; 6 transporte; 1 cualquier otro error.
func ExitCode(err error) int {
	var se *statusError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &se) && se.status == billing.StatusTimedOut:
		return 3
	case errors.As(err, &se):
		return 2
	case errors.Is(err, domain.ErrCertificate),
		errors.Is(err, domain.ErrCertificateExpired),
		errors.Is(err, domain.ErrCertificateNotYetValid):
		return 4
	case errors.Is(err, domain.ErrInvalidField), errors.Is(err, domain.ErrInconsistentTotals):
		return 5
	case errors.Is(err, domain.ErrTransportFailure), errors.Is(err, domain.ErrUnrecognizedStatus):
		return 6
	default:
		return 1
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("leer %s: %w", path, err)
	}
	return data, nil
}
