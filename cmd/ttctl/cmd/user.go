package cmd

import (
	"strings"

	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/pilab-dev/tiktok-auth/log"
	"github.com/pilab-dev/tiktok-auth/resource"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check whether TikTok still accepts an access token",
		Long: `Check an access token with a single user/info read. Tokens that are not
shaped like a TikTok access token are rejected without a network call.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := ttauth.NewValidator(a.apiClient()).Validate(cmd.Context(), token)
			if err != nil {
				return err
			}
			if !res.Valid {
				a.logger.Warn(cmd.Context(), "Token rejected", log.Fields{
					"error_code": res.ErrorCode,
					"token":      log.Redact(token),
				})
			}
			return a.print(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "access token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newUserCmd(a *app) *cobra.Command {
	var token, fields string

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Show the user an access token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []string
			for _, f := range strings.Split(fields, ",") {
				if f = strings.TrimSpace(f); f != "" {
					list = append(list, f)
				}
			}

			user, err := resource.NewUsers(a.apiClient()).Get(cmd.Context(), token, list...)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), user)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "access token")
	cmd.Flags().StringVar(&fields, "fields", "", "comma separated user fields (default: basic profile fields)")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
