package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fivetwenty-io/strapi-client/internal/auth"
	"github.com/fivetwenty-io/strapi-client/internal/client"
	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var adminEmail string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a Strapi instance",
		Long: `Verify credentials against a Strapi instance and save them as a target.

By default an API token is read from --token or prompted for. With
--admin-email the admin panel login is used instead and only the resulting
admin JWT is saved, never the password.`,
		Example: `  strapi login --url https://cms.example.com
  strapi login --url http://localhost:1337 --token "$TOKEN" --target local
  strapi login --url http://localhost:1337 --admin-email admin@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			config := loadConfig()

			endpoint, err := loginURL(cmd, config)
			if err != nil {
				return err
			}

			name := lo.CoalesceOrEmpty(viper.GetString("target"), targetName(endpoint))

			target, exists := config.Targets[name]
			if !exists {
				target = &TargetConfig{}
				config.Targets[name] = target
			}

			target.URL = endpoint

			if value := viper.GetString("api_version"); value != "" {
				target.APIVersion = value
			}

			if adminEmail != "" {
				err = adminLogin(ctx, cmd, target, adminEmail)
			} else {
				err = tokenLogin(ctx, cmd, target)
			}

			if err != nil {
				return err
			}

			now := time.Now()
			target.LastLogin = &now
			config.CurrentTarget = name

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			s := newStyles()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s as target '%s'\n",
				s.success.Render("Logged in to"), endpoint, name)

			return nil
		},
	}

	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "log in with admin panel credentials")

	return cmd
}

// loginURL returns --url, the selected target's URL, or a prompted URL.
func loginURL(cmd *cobra.Command, config *Config) (string, error) {
	endpoint := viper.GetString("url")

	if endpoint == "" {
		if _, target, err := resolveTarget(config, viper.GetString("target")); err == nil {
			endpoint = target.URL
		}
	}

	if endpoint == "" {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "Strapi URL: ")

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read URL: %w", err)
		}

		endpoint = strings.TrimSpace(line)
	}

	endpoint = client.NormalizeBaseURL(endpoint)
	if endpoint == "" {
		return "", constants.ErrNoBaseURLConfigured
	}

	return endpoint, nil
}

func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", constants.ErrNotInteractive
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), prompt)

	secret, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	return strings.TrimSpace(string(secret)), nil
}

func tokenLogin(ctx context.Context, cmd *cobra.Command, target *TargetConfig) error {
	token := viper.GetString("token")
	if token == "" {
		var err error

		token, err = readSecret(cmd, "API token: ")
		if err != nil {
			return err
		}
	}

	if token == "" {
		return constants.ErrTokenNotProvided
	}

	err := verifyConnection(ctx, &strapi.Config{
		BaseURL:    target.URL,
		APIToken:   token,
		APIVersion: strapi.APIVersion(target.APIVersion),
		Logger:     newLogger(),
	})
	if err != nil {
		return err
	}

	target.APIToken = token
	target.AdminEmail = ""
	target.AdminToken = ""
	target.AdminTokenExpiresAt = nil

	return nil
}

func adminLogin(ctx context.Context, cmd *cobra.Command, target *TargetConfig, email string) error {
	password := viper.GetString("admin_password")
	if password == "" {
		var err error

		password, err = readSecret(cmd, "Admin password: ")
		if err != nil {
			return err
		}
	}

	manager := auth.NewAdminTokenManager(&auth.AdminConfig{
		LoginURL: target.URL + constants.AdminLoginPath,
		Email:    email,
		Password: password,
	})

	_, err := manager.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("admin login failed: %w", err)
	}

	c, err := client.NewWithTokenManager(&strapi.Config{
		BaseURL:    target.URL,
		APIVersion: strapi.APIVersion(target.APIVersion),
		Logger:     newLogger(),
	}, manager)
	if err != nil {
		return fmt.Errorf("failed to create Strapi client: %w", err)
	}

	_, err = c.GetContentTypes(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to verify admin login: %w", err)
	}

	token := manager.CurrentToken()
	target.APIToken = ""
	target.AdminEmail = email
	target.AdminToken = token.AccessToken
	target.AdminTokenExpiresAt = nil

	if !token.ExpiresAt.IsZero() {
		expiresAt := token.ExpiresAt
		target.AdminTokenExpiresAt = &expiresAt
	}

	return nil
}

// verifyConnection lists content types, which requires a valid token.
func verifyConnection(ctx context.Context, config *strapi.Config) error {
	c, err := client.New(config)
	if err != nil {
		return fmt.Errorf("failed to create Strapi client: %w", err)
	}

	_, err = c.GetContentTypes(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to verify credentials: %w", err)
	}

	return nil
}
