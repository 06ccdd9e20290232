package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

var authTimeout time.Duration

var autorizacionCmd = &cobra.Command{
	Use:   "autorizacion <clave-de-acceso>",
	Short: "Consulta la autorización de un comprobante ya enviado",
	Long: `Consulta el servicio de autorización hasta obtener un estado terminal o agotar
los intentos (SRI_POLL_INTENTOS). Si no se indica --ambiente se toma el de la clave.`,
	Args: cobra.ExactArgs(1),
	RunE: runAutorizacion,
}

func init() {
	rootCmd.AddCommand(autorizacionCmd)
	autorizacionCmd.Flags().DurationVar(&authTimeout, "timeout", 2*time.Minute, "Tiempo máximo de la consulta")
}

func runAutorizacion(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
	defer cancel()

	fields, err := sri.ParseAccessKey(args[0])
	if err != nil {
		return err
	}
	if environment == "" {
		environment = string(fields.Environment)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	res := a.orchestrator.Authorize(ctx, a.env, sri.AccessKey(args[0]))
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	return resultError(res)
}
