package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/46labs/coffeeshop/pkg/auth"
	"github.com/46labs/coffeeshop/pkg/client"
	"github.com/46labs/coffeeshop/pkg/config"
	"github.com/46labs/coffeeshop/pkg/drinks"
	"github.com/46labs/coffeeshop/pkg/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "coffeeshop",
	Short:         "Coffee shop environment tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}

		level, err := log.ParseLevel(loaded.LogLevel)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		log.SetLevel(level)

		cfg = loaded
		return nil
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the active environment record",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg.Environment)
	},
}

var tenantURL string

var loginLinkCmd = &cobra.Command{
	Use:   "login-link [callback-path]",
	Short: "Print the identity provider login and logout links",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newAuthenticator()

		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.LoginLink(path))
		fmt.Fprintln(cmd.OutOrStdout(), a.LogoutLink())
		return nil
	},
}

var accessToken string

var drinksCmd = &cobra.Command{
	Use:   "drinks",
	Short: "List drinks from the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		var opts []drinks.Option
		if accessToken != "" {
			opts = append(opts, drinks.WithAccessToken(accessToken))
		}
		c, err := drinks.New(cfg.Environment, opts...)
		if err != nil {
			return err
		}

		list, err := c.List(ctx)
		if accessToken != "" && err == nil {
			claims, verr := newAuthenticator().Verify(ctx, accessToken)
			if verr != nil {
				return verr
			}
			if claims.Can("get:drinks-detail") {
				list, err = c.Detail(ctx)
			}
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local identity provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(cfg)
		if err != nil {
			return err
		}
		return srv.Start()
	},
}

var (
	mgmtClientID     string
	mgmtClientSecret string
	mgmtInsecure     bool
)

var checkCmd = &cobra.Command{
	Use:   "check-registration",
	Short: "Check that the callback URL and audience are registered with the provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := tenantURL
		if domain == "" {
			domain = cfg.Environment.Auth.TenantURL()
		}

		c, err := client.New(client.Config{
			Domain:       domain,
			ClientID:     mgmtClientID,
			ClientSecret: mgmtClientSecret,
			Insecure:     mgmtInsecure,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		report, err := c.CheckRegistration(ctx, cfg.Environment)
		if err != nil {
			return err
		}

		for _, p := range report.Problems() {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		if !report.OK() {
			return fmt.Errorf("%s registration incomplete", report.Mode)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s registration ok\n", report.Mode)
		return nil
	},
}

func newAuthenticator() *auth.Authenticator {
	var opts []auth.Option
	if tenantURL != "" {
		opts = append(opts, auth.WithTenantURL(tenantURL))
	}
	return auth.New(cfg.Environment, opts...)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tenantURL, "tenant-url", "", "identity provider base url (default derived from auth.domain)")

	drinksCmd.Flags().StringVar(&accessToken, "token", "", "access token; with get:drinks-detail the detailed list is shown")

	checkCmd.Flags().StringVar(&mgmtClientID, "client-id", os.Getenv("COFFEESHOP_MGMT_CLIENT_ID"), "management api client id")
	checkCmd.Flags().StringVar(&mgmtClientSecret, "client-secret", os.Getenv("COFFEESHOP_MGMT_CLIENT_SECRET"), "management api client secret")
	checkCmd.Flags().BoolVar(&mgmtInsecure, "insecure", false, "talk to the provider over plain http")

	rootCmd.AddCommand(envCmd, loginLinkCmd, drinksCmd, serveCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithField("error", err).Fatal("command failed")
	}
}
