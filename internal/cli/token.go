package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/service"
	"github.com/noah-isme/eduschedule-api/pkg/config"
)

func tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		name    string
		ttl     time.Duration
		format  string
	)

	c := &cobra.Command{
		Use:   "token",
		Short: "Mint an API access token signed with the configured JWT secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			auth := service.NewAuthService(nil, nil, service.AuthConfig{
				AccessTokenSecret: cfg.JWT.Secret,
				AccessTokenExpiry: cfg.JWT.Expiration,
				Issuer:            "eduschedule-api",
			})
			token, err := auth.IssueToken(dto.IssueTokenRequest{
				Subject: subject,
				Role:    strings.ToUpper(role),
				Name:    name,
				TTL:     ttl,
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), token, format)
		},
	}

	c.Flags().StringVar(&subject, "subject", "", "Token subject, usually an operator or user id (required)")
	c.Flags().StringVar(&role, "role", "ADMIN", "SUPERADMIN, ADMIN or TEACHER")
	c.Flags().StringVar(&name, "name", "", "Display name")
	c.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRATION)")
	c.Flags().StringVar(&format, "format", formatJSON, "Output format: json|yaml")
	_ = c.MarkFlagRequired("subject")
	return c
}
