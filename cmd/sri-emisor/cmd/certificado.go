package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	"github.com/jhoicas/sri-comprobantes/pkg/config"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

var certificadoCmd = &cobra.Command{
	Use:   "certificado",
	Short: "Muestra los datos del certificado de firma y su vigencia",
	Long: `Carga el certificado indicado con --cert (.p12/.pfx o PEM) y muestra titular,
emisor, serial y periodo de vigencia. Termina con error si no está vigente.`,
	Args: cobra.NoArgs,
	RunE: runCertificado,
}

func init() {
	rootCmd.AddCommand(certificadoCmd)
}

type certificadoOutput struct {
	Titular      string `json:"titular"`
	Emisor       string `json:"emisor"`
	Serial       string `json:"serial"`
	VigenteDesde string `json:"vigenteDesde"`
	VigenteHasta string `json:"vigenteHasta"`
	Vigente      bool   `json:"vigente"`
	Detalle      string `json:"detalle,omitempty"`
}

func runCertificado(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
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

	cert, err := loadCertificate(cfg.SRI)
	if err != nil {
		return err
	}
	defer cert.Release()

	out := certificadoOutput{
		Titular:      cert.Subject(),
		Emisor:       cert.Issuer(),
		Serial:       cert.SerialNumber(),
		VigenteDesde: cert.NotBefore().In(sri.Location).Format(time.RFC3339),
		VigenteHasta: cert.NotAfter().In(sri.Location).Format(time.RFC3339),
		Vigente:      true,
	}
	validity := signer.CheckValidity(cert, time.Now().In(sri.Location))
	if validity != nil {
		out.Vigente = false
		out.Detalle = validity.Error()
	}
	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return errors.Join(err, validity)
	}
	return validity
}
