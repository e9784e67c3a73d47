package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ErrTokenNotFound is returned by "token get" for a missing key.
var ErrTokenNotFound = errors.New("token not found")

// TokenCmd manages the persisted bearer tokens the client resolves.
func TokenCmd(env *Env) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage stored bearer tokens",
		Long: `Manage the bearer tokens kept in the SQLite token store.

Requests sent with an empty "Authorization: Bearer " header (see --bearer)
receive the token stored under the configured key.`,
		Example: `  netguard token set eyJhbGciOi...
  netguard token get
  netguard token delete --key staging`,
	}
	cmd.PersistentFlags().StringVar(&key, "key", "", "store key (default: client.token_storage_key)")

	keyOf := func(a *app) string {
		if key != "" {
			return key
		}
		return a.cfg.Client.TokenStorageKey
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <token>",
		Short: "Store a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(a *app) error {
				return a.store.Set(keyOf(a), args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(a *app) error {
				k := keyOf(a)
				value, ok := a.store.Token(k)
				if !ok {
					return fmt.Errorf("%w: %s", ErrTokenNotFound, k)
				}
				_, err := fmt.Fprintln(env.Stdout, value)
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(a *app) error {
				return a.store.Delete(keyOf(a))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withApp(cmd, func(a *app) error {
				keys, err := a.store.Keys()
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(env.Stdout, k)
				}
				return nil
			})
		},
	})
	return cmd
}
