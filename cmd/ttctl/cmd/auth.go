package cmd

import (
	"errors"

	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/spf13/cobra"
)

type authURLOutput struct {
	URL         string `json:"url"`
	RedirectURI string `json:"redirect_uri"`
	State       string `json:"state,omitempty"`
	Verifier    string `json:"code_verifier"`
}

type revokeOutput struct {
	Revoked bool `json:"revoked"`
}

// redirectURI resolves the flag or falls back to the configured URI with a
// localhost origin.
func (a *app) redirectURI(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.RedirectURIFor("http://localhost:" + a.cfg.HTTPPort)
}

func newAuthURLCmd(a *app) *cobra.Command {
	var redirectURI, scope, state string

	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Build an authorization URL with a fresh PKCE pair",
		Long: `Build the TikTok authorization URL. The printed code_verifier must be kept
and passed to "ttctl exchange" together with the code TikTok returns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.ClientKey == "" {
				return errors.New("TIKTOK_CLIENT_KEY is required")
			}
			if scope == "" {
				scope = a.cfg.DefaultScope
			}

			pair, err := ttauth.NewPKCEGenerator().Generate()
			if err != nil {
				return err
			}
			uri := a.redirectURI(redirectURI)
			authURL, err := ttauth.NewAuthURLBuilder(a.cfg.Identity(), a.cfg.Endpoints()).
				Build(uri, scope, state, pair.Challenge)
			if err != nil {
				return err
			}

			a.logger.Debug(cmd.Context(), "Built authorization URL", map[string]interface{}{
				"redirect_uri": uri,
				"scope":        scope,
			})
			return a.print(cmd.OutOrStdout(), authURLOutput{
				URL:         authURL,
				RedirectURI: uri,
				State:       state,
				Verifier:    pair.Verifier,
			})
		},
	}

	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "redirect URI registered with TikTok")
	cmd.Flags().StringVar(&scope, "scope", "", "comma separated scopes (default TIKTOK_DEFAULT_SCOPE)")
	cmd.Flags().StringVar(&state, "state", "", "opaque state echoed back by TikTok")
	return cmd
}

func newExchangeCmd(a *app) *cobra.Command {
	var code, verifier, redirectURI string

	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code for tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireIdentity(); err != nil {
				return err
			}

			tok, err := a.tokenClient().ExchangeCode(cmd.Context(), code, a.redirectURI(redirectURI), verifier)
			if err != nil {
				return err
			}
			a.logger.Info(cmd.Context(), "Authorization code exchanged", map[string]interface{}{
				"open_id": tok.OpenID,
				"scope":   tok.GrantedScopeString(),
			})
			return a.print(cmd.OutOrStdout(), tok)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "authorization code from the callback")
	cmd.Flags().StringVar(&verifier, "verifier", "", "code_verifier printed by auth-url")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "redirect URI used for the authorization request")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("verifier")
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	var refreshToken string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Trade a refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireIdentity(); err != nil {
				return err
			}
			tok, err := a.tokenClient().Refresh(cmd.Context(), refreshToken)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), tok)
		},
	}

	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token")
	_ = cmd.MarkFlagRequired("refresh-token")
	return cmd
}

func newRevokeCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireIdentity(); err != nil {
				return err
			}
			if err := a.tokenClient().Revoke(cmd.Context(), token); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), revokeOutput{Revoked: true})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "access token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newClientTokenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "client-token",
		Short: "Obtain an app access token with the client credentials grant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireIdentity(); err != nil {
				return err
			}
			tok, err := a.tokenClient().ClientAccessToken(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), tok)
		},
	}
}
