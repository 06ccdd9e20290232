package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App AppConfig
	SRI SRIConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// SRIConfig configuración de emisión electrónica SRI (Ecuador).
type SRIConfig struct {
	Environment  string // "1" = Pruebas, "2" = Producción
	EmissionType string // "1" = Normal

	ReceptionTestURL           string
	AuthorizationTestURL       string
	ReceptionProductionURL     string
	AuthorizationProductionURL string

	PollAttempts int
	PollInterval time.Duration
	HTTPTimeout  time.Duration

	CertPath     string // Ruta al .p12/.pfx o al certificado .pem
	CertKeyPath  string // Ruta a la llave privada .pem (si CertPath es solo el certificado)
	CertPassword string // Contraseña del .p12 o de la llave PKCS#8 cifrada
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. envFiles se cargan con godotenv antes de leer;
// a diferencia de .env, un archivo indicado explícitamente debe existir.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config: cargar %s: %w", f, err)
		}
	}

	v := viper.New()

	// Opcional: archivo de configuración (.env o config.env)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "sri-emisor"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		SRI: SRIConfig{
			Environment:                getString(v, "SRI_AMBIENTE", "1"),
			EmissionType:               getString(v, "SRI_TIPO_EMISION", "1"),
			ReceptionTestURL:           getString(v, "SRI_WS_RECEPCION_PRUEBAS", ""),
			AuthorizationTestURL:       getString(v, "SRI_WS_AUTORIZACION_PRUEBAS", ""),
			ReceptionProductionURL:     getString(v, "SRI_WS_RECEPCION_PRODUCCION", ""),
			AuthorizationProductionURL: getString(v, "SRI_WS_AUTORIZACION_PRODUCCION", ""),
			PollAttempts:               getInt(v, "SRI_POLL_INTENTOS", 5),
			PollInterval:               getDuration(v, "SRI_POLL_INTERVALO", 3*time.Second),
			HTTPTimeout:                getDuration(v, "SRI_HTTP_TIMEOUT", 60*time.Second),
			CertPath:                   getString(v, "SRI_CERT_PATH", ""),
			CertKeyPath:                getString(v, "SRI_CERT_KEY_PATH", ""),
			CertPassword:               getString(v, "SRI_CERT_PASSWORD", ""),
		},
	}

	if cfg.SRI.PollAttempts < 1 {
		return nil, fmt.Errorf("config: SRI_POLL_INTENTOS debe ser mayor que cero")
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

// getDuration acepta "3s", "500ms" o un número entero de segundos.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return def
}
