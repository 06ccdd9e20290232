package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
)

var emitTimeout time.Duration

var emitirCmd = &cobra.Command{
	Use:   "emitir <documento.json>",
	Short: "Genera, firma, envía y autoriza un comprobante",
	Long: `Lee un comprobante en JSON con la forma {"tipo": "01", "comprobante": {...}},
genera la clave de acceso y el XML, lo firma con XAdES-BES, lo envía al servicio
de recepción y consulta la autorización.

El resultado se imprime en JSON. Si termina en TIMEOUT la clave puede
consultarse después con "sri-emisor autorizacion".`,
	Args: cobra.ExactArgs(1),
	RunE: runEmitir,
}

func init() {
	rootCmd.AddCommand(emitirCmd)
	emitirCmd.Flags().DurationVar(&emitTimeout, "timeout", 5*time.Minute, "Tiempo máximo de la emisión completa")
}

func runEmitir(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), emitTimeout)
	defer cancel()

	data, err := readFile(args[0])
	if err != nil {
		return err
	}
	doc, err := entity.DecodeDocument(data)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	cert, err := loadCertificate(a.cfg.SRI)
	if err != nil {
		return err
	}

	res := a.orchestrator.Emit(ctx, doc, cert, a.env)
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	return resultError(res)
}
