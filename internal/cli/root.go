// Package cli implements lobbyctl, a command-line client that speaks the
// lobby's framed TCP protocol.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// options are the global flags, overridable with LOBBYCTL_* environment
// variables.
type options struct {
	v *viper.Viper
}

func (o *options) addr() string           { return o.v.GetString("addr") }
func (o *options) timeout() time.Duration { return o.v.GetDuration("timeout") }
func (o *options) user() string           { return o.v.GetString("user") }
func (o *options) password() string       { return o.v.GetString("password") }

// dial opens a connection using the global flags.
func (o *options) dial(ctx context.Context) (*Client, error) {
	return Dial(ctx, o.addr(), o.timeout())
}

// session dials and logs in with --user and --password.
func (o *options) session(ctx context.Context) (*Client, int64, error) {
	if o.user() == "" || o.password() == "" {
		return nil, 0, fmt.Errorf("--user and --password are required")
	}
	c, err := o.dial(ctx)
	if err != nil {
		return nil, 0, err
	}
	player, err := c.Login(o.user(), o.password())
	if err != nil {
		c.Close()
		return nil, 0, fmt.Errorf("logging in as %s: %w", o.user(), err)
	}
	return c, player.ID, nil
}

// NewRootCmd creates the lobbyctl root command.
func NewRootCmd() *cobra.Command {
	opts := &options{v: viper.New()}

	root := &cobra.Command{
		Use:   "lobbyctl",
		Short: "Command-line client for the lobby server",
		Long: `lobbyctl talks to a lobby server over its TCP protocol.

Commands that act on rooms log in first with --user and --password on the
same connection.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.v.BindPFlags(cmd.Flags())
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("addr", "localhost:9000", "Server address (env: LOBBYCTL_ADDR)")
	flags.Duration("timeout", 5*time.Second, "Dial and reply timeout (env: LOBBYCTL_TIMEOUT)")
	flags.StringP("user", "u", "", "Username to log in with (env: LOBBYCTL_USER)")
	flags.StringP("password", "p", "", "Password to log in with (env: LOBBYCTL_PASSWORD)")

	opts.v.SetEnvPrefix("LOBBYCTL")
	opts.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	opts.v.AutomaticEnv()

	root.AddCommand(newRegisterCmd(opts))
	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newRoomsCmd(opts))
	root.AddCommand(newCreateCmd(opts))
	root.AddCommand(newJoinCmd(opts))

	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
