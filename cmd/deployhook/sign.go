package main

import (
	"fmt"
	"io"
	"os"

	"deployhook/internal/webhook"

	"github.com/spf13/cobra"
)

var signSecretEnv string

var signCmd = &cobra.Command{
	Use:   "sign [FILE]",
	Short: "Print the signature header for a payload",
	Long: `Compute the X-Hub-Signature-256 value for a payload file (or stdin) using
the webhook secret, for testing the gateway by hand.`,
	Example: `  deployhook sign payload.json
  curl -X POST http://127.0.0.1:5000/webhook/gatus \
    -H "X-Hub-Signature-256: $(deployhook sign payload.json)" \
    --data-binary @payload.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSign,
}

func init() {
	signCmd.Flags().StringVar(&signSecretEnv, "secret-env", getEnvOrDefault("DEPLOYHOOK_SECRET_ENV", defaultSecretEnv), "Environment variable holding the webhook secret")
}

func runSign(cmd *cobra.Command, args []string) error {
	secret := os.Getenv(signSecretEnv)
	if secret == "" {
		return fmt.Errorf("%s is not set", signSecretEnv)
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open payload: %w", err)
		}
		defer file.Close()
		in = file
	}

	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign(body, []byte(secret)))
	return nil
}
