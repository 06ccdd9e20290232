package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

var conexionCmd = &cobra.Command{
	Use:   "conexion",
	Short: "Comprueba la conexión con los servicios web del SRI",
	Long: `Descarga el WSDL de recepción y de autorización del ambiente configurado
(o de ambos si no se indica --ambiente) y muestra la dirección del servicio.`,
	Args: cobra.NoArgs,
	RunE: runConexion,
}

func init() {
	rootCmd.AddCommand(conexionCmd)
}

func runConexion(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	envs := []sri.Environment{sri.EnvironmentTest, sri.EnvironmentProduction}
	explicit := environment != ""

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))
	if explicit {
		envs = []sri.Environment{a.env}
	}

	var errs []error
	for _, env := range envs {
		start := time.Now()
		if err := a.client.Ping(ctx, env); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s ERROR  %v\n", env, err)
			errs = append(errs, fmt.Errorf("%s: %w", env, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s OK     %s\n", env, time.Since(start).Round(time.Millisecond))
	}
	return errors.Join(errs...)
}
