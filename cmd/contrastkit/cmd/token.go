package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/contrastkit/contrastkit/session"
)

func newTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint and inspect session tokens",
	}
	tokenCmd.AddCommand(newTokenMintCommand(), newTokenVerifyCommand())

	return tokenCmd
}

func signer() *session.Signer {
	return session.NewSigner(appConfig.Session.Secret, session.WithTTL(appConfig.Session.TTL))
}

func newTokenMintCommand() *cobra.Command {
	var user session.User
	var siteID string

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user.ID == "" {
				return errors.New("--user-id is required")
			}

			token, exp, err := signer().Mint(user, siteID)
			if err != nil {
				return err
			}

			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
				"sessionToken": token,
				"exp":          exp,
			})
		},
	}

	cmd.Flags().StringVar(&user.ID, "user-id", "", "user id")
	cmd.Flags().StringVar(&user.Email, "email", "", "user email")
	cmd.Flags().StringVar(&user.FirstName, "first-name", "", "user first name")
	cmd.Flags().StringVar(&siteID, "site-id", "", "site the token is bound to")

	return cmd
}

func newTokenVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a session token and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := signer().Verify(args[0])
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(claims)
		},
	}
}
