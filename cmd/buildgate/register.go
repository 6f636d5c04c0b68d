package main

import (
	"fmt"
	"os"

	"buildgate/internal/githubapi"
	"buildgate/internal/security"

	"github.com/spf13/cobra"
)

var webhookURL string

var registerWebhookCmd = &cobra.Command{
	Use:   "register-webhook PROJECT_NAME",
	Short: "Create the GitHub webhook for a project",
	Long: `Create the GitHub webhook that delivers push, pull_request, status and
check_run events for a project to the buildgate server.

The webhook is signed with the project's configured secret. Nothing is
changed when a webhook for the URL already exists. The GitHub token is read
from the environment variable named by the project's token_env.

Example:
  buildgate register-webhook myapp --url https://gate.example.com/in/myapp`,
	Args: cobra.ExactArgs(1),
	RunE: runRegisterWebhook,
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a webhook secret",
	Long:  `Generate a random webhook secret suitable for the 'secret' field of projects.yaml.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := security.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}

func init() {
	registerWebhookCmd.Flags().StringVar(&webhookURL, "url", "", "Public URL of the project's webhook endpoint (required)")
	_ = registerWebhookCmd.MarkFlagRequired("url")
}

func runRegisterWebhook(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(args[0])
	if err != nil {
		return err
	}

	token := os.Getenv(proj.TokenEnv)
	if token == "" {
		return fmt.Errorf("a GitHub token is required in $%s", proj.TokenEnv)
	}

	client, err := githubapi.NewClient(token, proj.APIURL)
	if err != nil {
		return err
	}
	repo := githubapi.NewRepository(client, proj.Owner, proj.Repo)

	created, err := repo.RegisterWebhook(cmd.Context(), webhookURL, proj.Secret)
	if err != nil {
		return err
	}

	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "Created webhook on %s for %s\n", repo.FullName(), webhookURL)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Webhook on %s for %s already exists\n", repo.FullName(), webhookURL)
	}
	return nil
}
