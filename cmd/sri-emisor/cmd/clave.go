package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	domainsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	"github.com/jhoicas/sri-comprobantes/pkg/config"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

var claveDocumento string

var claveCmd = &cobra.Command{
	Use:   "clave [clave-de-acceso]",
	Short: "Verifica una clave de acceso o genera una para un comprobante",
	Long: `Con una clave como argumento verifica el dígito y muestra sus campos.
Con --documento genera una clave nueva para el comprobante JSON indicado.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClave,
}

func init() {
	rootCmd.AddCommand(claveCmd)
	claveCmd.Flags().StringVar(&claveDocumento, "documento", "", "Comprobante JSON para generar la clave")
}

// claveOutput campos de una clave de acceso.
type claveOutput struct {
	ClaveAcceso     string `json:"claveAcceso"`
	Valida          bool   `json:"valida"`
	FechaEmision    string `json:"fechaEmision"`
	TipoComprobante string `json:"tipoComprobante"`
	RUC             string `json:"ruc"`
	Ambiente        string `json:"ambiente"`
	NumeroDocumento string `json:"numeroDocumento"`
	CodigoNumerico  string `json:"codigoNumerico"`
	TipoEmision     string `json:"tipoEmision"`
}

func runClave(cmd *cobra.Command, args []string) error {
	var key string
	switch {
	case claveDocumento != "":
		data, err := readFile(claveDocumento)
		if err != nil {
			return err
		}
		doc, err := entity.DecodeDocument(data)
		if err != nil {
			return err
		}
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		if environment != "" {
			cfg.SRI.Environment = environment
		}
		env, err := sri.ParseEnvironment(cfg.SRI.Environment)
		if err != nil {
			return err
		}
		k, err := domainsri.NewAccessKey(doc, env)
		if err != nil {
			return err
		}
		key = k.String()
	case len(args) == 1:
		key = args[0]
	default:
		return fmt.Errorf("indicar una clave de acceso o --documento")
	}

	fields, err := sri.ParseAccessKey(key)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), claveOutput{
		ClaveAcceso:     key,
		Valida:          true,
		FechaEmision:    fields.IssueDate.Format(time.DateOnly),
		TipoComprobante: fields.Kind.Name(),
		RUC:             fields.IssuerRUC,
		Ambiente:        fields.Environment.String(),
		NumeroDocumento: sri.FormatDocumentNumber(fields.Establishment, fields.EmissionPoint, fields.Sequential),
		CodigoNumerico:  fields.NumericCode,
		TipoEmision:     fields.EmissionType,
	})
}
