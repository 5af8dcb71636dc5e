package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/pilab-dev/tiktok-auth/config"
	"github.com/pilab-dev/tiktok-auth/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// AppName is the binary name and the tracer service name.
const AppName = "ttctl"

// Output formats.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// app is the state shared by every subcommand after PersistentPreRunE.
type app struct {
	cfgFile  string
	output   string
	logLevel string

	cfg    *config.ServerConfig
	logger log.Logger
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           AppName,
		Short:         "ttctl drives the TikTok OAuth flow from the command line",
		Long:          `A command-line client for TikTok Login Kit: generate PKCE pairs, build authorization URLs, exchange and refresh tokens, and inspect what a token can do.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = log.NewZerologAdapterTo(cmd.ErrOrStderr(), log.ParseLevel(a.logLevel), true)

			if a.output != OutputJSON && a.output != OutputYAML {
				return fmt.Errorf("unsupported output format %q", a.output)
			}

			cfg, err := config.LoadConfigFile(a.cfgFile)
			if err != nil {
				a.logger.Error(cmd.Context(), "Failed to load configuration", err)
				return err
			}
			a.cfg = cfg

			return ttauth.CheckRandomSource()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is $HOME/.tiktok-auth/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", OutputJSON, "output format: json or yaml")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", zerolog.WarnLevel.String(), "log level")

	rootCmd.AddCommand(
		newPKCECmd(a),
		newAuthURLCmd(a),
		newExchangeCmd(a),
		newRefreshCmd(a),
		newRevokeCmd(a),
		newClientTokenCmd(a),
		newValidateCmd(a),
		newUserCmd(a),
	)

	return rootCmd
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// requireIdentity fails early for commands that talk to TikTok.
func (a *app) requireIdentity() error {
	if err := a.cfg.Identity().Validate(); err != nil {
		return fmt.Errorf("TIKTOK_CLIENT_KEY and TIKTOK_CLIENT_SECRET are required: %w", err)
	}
	return nil
}

func (a *app) httpClient() *http.Client {
	return ttauth.NewHTTPClient(a.cfg.HTTPClientTimeout)
}

func (a *app) tokenClient() *ttauth.TokenClient {
	return ttauth.NewTokenClient(a.cfg.Identity(),
		ttauth.WithEndpoints(a.cfg.Endpoints()),
		ttauth.WithHTTPClient(a.httpClient()),
	)
}

func (a *app) apiClient() *ttauth.APIClient {
	return ttauth.NewAPIClient(a.cfg.Endpoints(), a.httpClient())
}

// print writes v in the selected output format. YAML goes through JSON first
// so both formats share the same field names.
func (a *app) print(w io.Writer, v interface{}) error {
	if a.output == OutputYAML {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
