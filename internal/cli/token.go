package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/restaurant-floor/internal/utils"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Secret  string
	StaffID uint64
	Role    string
	TTL     time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Long: `Mint an HS256 staff token signed with the server's JWT secret.

Production tokens come from the identity service; this is for local
development and for running floorctl watch against a dev server.

Examples:
  floorctl token --secret dev --staff 7 --role KITCHEN
  JWT_SECRET=dev floorctl token --role MANAGER --ttl 1h --format json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.Secret
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			tok, err := utils.NewAccessToken(secret, opts.StaffID, opts.Role, opts.TTL)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			doc := map[string]any{
				"token":      tok.Token,
				"expires_at": tok.Exp,
				"role":       opts.Role,
			}
			switch opts.Format {
			case "json":
				return json.NewEncoder(out).Encode(doc)
			case "yaml":
				enc := yaml.NewEncoder(out)
				if err := enc.Encode(doc); err != nil {
					return err
				}
				return enc.Close()
			}
			_, err = fmt.Fprintln(out, tok.Token)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "signing secret (default $JWT_SECRET)")
	cmd.Flags().Uint64Var(&opts.StaffID, "staff", 1, "staff member id (token subject)")
	cmd.Flags().StringVar(&opts.Role, "role", utils.RoleStaff, "STAFF, KITCHEN or MANAGER")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
