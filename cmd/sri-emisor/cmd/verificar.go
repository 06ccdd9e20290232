package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
)

var verificarCmd = &cobra.Command{
	Use:   "verificar <comprobante-firmado.xml>",
	Short: "Verifica la firma XAdES-BES de un comprobante",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readFile(args[0])
		if err != nil {
			return err
		}
		res, err := signer.Verify(data)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"titular":    res.Subject,
			"emisor":     res.Issuer,
			"serial":     res.SerialNumber,
			"fechaFirma": res.SigningTime,
		})
	},
}

func init() {
	rootCmd.AddCommand(verificarCmd)
}
