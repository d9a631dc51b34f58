package main

import (
	"context"
	"fmt"
	"os"

	"deployhook/internal/githook"
	"deployhook/internal/security"

	"github.com/spf13/cobra"
)

var (
	registerRepo      string
	registerURL       string
	registerService   string
	registerTokenEnv  string
	registerSecretEnv string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create the push webhook on a GitHub repository",
	Long: `Create a push webhook on a GitHub repository that delivers to
<url>/webhook/<service>, signed with the webhook secret. An existing hook with
the same URL is left untouched.`,
	Example: `  GITHUB_TOKEN=ghp_... deployhook register --repo TwiN/gatus --url https://deploy.example.com`,
	Args:    cobra.NoArgs,
	RunE:    runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerRepo, "repo", "", "Repository as owner/repo")
	registerCmd.Flags().StringVar(&registerURL, "url", getEnvOrDefault("DEPLOYHOOK_PUBLIC_URL", ""), "Public base URL of the gateway")
	registerCmd.Flags().StringVar(&registerService, "service", "gatus", "Service name")
	registerCmd.Flags().StringVar(&registerTokenEnv, "token-env", "GITHUB_TOKEN", "Environment variable holding a GitHub token")
	registerCmd.Flags().StringVar(&registerSecretEnv, "secret-env", getEnvOrDefault("DEPLOYHOOK_SECRET_ENV", defaultSecretEnv), "Environment variable holding the webhook secret")
	_ = registerCmd.MarkFlagRequired("repo")
	_ = registerCmd.MarkFlagRequired("url")
}

func runRegister(cmd *cobra.Command, args []string) error {
	owner, repo, err := security.ValidateRepository(registerRepo)
	if err != nil {
		return err
	}
	if err := security.ValidateServiceName(registerService); err != nil {
		return err
	}

	secret := os.Getenv(registerSecretEnv)
	if secret == "" {
		return fmt.Errorf("%s is not set", registerSecretEnv)
	}

	ctx := context.Background()
	client := githook.NewClient(ctx, os.Getenv(registerTokenEnv))
	if client == nil {
		return fmt.Errorf("%s is not set; a token with admin:repo_hook scope is required", registerTokenEnv)
	}

	hookURL := githook.WebhookURL(registerURL, registerService)
	created, err := githook.NewRegistrar(client).EnsureWebhook(ctx, owner, repo, hookURL, secret)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "Created webhook on %s/%s -> %s\n", owner, repo, hookURL)
	} else {
		fmt.Fprintf(out, "Webhook already exists on %s/%s -> %s\n", owner, repo, hookURL)
	}
	return nil
}
