package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// Output formats accepted by --output
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// UsersOptions holds flags shared by the users subcommands.
type UsersOptions struct {
	*RootOptions
	Output string
}

// NewUsersCommand creates the users command group.
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UsersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and remove users of the configured pool",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Output != OutputJSON && opts.Output != OutputYAML {
				return fmt.Errorf("invalid output %q: must be one of [%s %s]", opts.Output, OutputJSON, OutputYAML)
			}
			if root := cmd.Root(); root.PersistentPreRunE != nil {
				return root.PersistentPreRunE(cmd, args)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", OutputJSON, "output format (json|yaml)")

	cmd.AddCommand(&cobra.Command{
		Use:   "get <identifier>",
		Short: "Find a user by username or username attribute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, closePool, err := openPool(cmd.Context(), opts.Config)
			if err != nil {
				return err
			}
			defer func() { _ = closePool() }()

			user, err := pool.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %q not found", args[0])
			}
			return render(cmd.OutOrStdout(), opts.Output, user)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users ordered by username",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, closePool, err := openPool(cmd.Context(), opts.Config)
			if err != nil {
				return err
			}
			defer func() { _ = closePool() }()

			users, err := pool.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.Output, users)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <username>",
		Short: "Delete the user stored under username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, closePool, err := openPool(cmd.Context(), opts.Config)
			if err != nil {
				return err
			}
			defer func() { _ = closePool() }()

			if err := pool.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	})

	return cmd
}

func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case OutputYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to render yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

