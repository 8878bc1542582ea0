package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/lobby/internal/lobby/wire"
)

func newRegisterCmd(opts *options) *cobra.Command {
	var nickname string

	cmd := &cobra.Command{
		Use:   "register <username> <password>",
		Short: "Register a new player",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if nickname == "" {
				nickname = args[0]
			}
			resp, err := c.Call(wire.RegisterRequest{Username: args[0], Password: args[1], Nickname: nickname})
			if err != nil {
				return err
			}
			player, err := expect[wire.RegisterResponse](resp, func(r wire.RegisterResponse) *wire.PlayerInfo { return r.Player })
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Registered ")
			printPlayer(cmd.OutOrStdout(), player)
			return nil
		},
	}
	cmd.Flags().StringVar(&nickname, "nickname", "", "Display name (defaults to the username)")
	return cmd
}

func newLoginCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check credentials and show the player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			player, err := c.Login(opts.user(), opts.password())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Logged in as ")
			printPlayer(cmd.OutOrStdout(), player)
			return nil
		},
	}
}

func newRoomsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms waiting for a second player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Call(wire.ListRoomsRequest{})
			if err != nil {
				return err
			}
			rooms, err := expect[wire.ListRoomsResponse](resp, func(r wire.ListRoomsResponse) []wire.RoomInfo { return r.Rooms })
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rooms) == 0 {
				fmt.Fprintln(out, "No open rooms")
				return nil
			}
			for i := range rooms {
				printRoom(out, &rooms[i])
			}
			return nil
		},
	}
}

func newCreateCmd(opts *options) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room and print its join code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, playerID, err := opts.session(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Call(wire.CreateRoomRequest{PlayerID: playerID})
			if err != nil {
				return err
			}
			room, err := expect[wire.CreateRoomResponse](resp, func(r wire.CreateRoomResponse) *wire.RoomInfo { return r.Room })
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Created ")
			printRoom(cmd.OutOrStdout(), room)
			return watch(cmd.OutOrStdout(), c, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep the room open and print updates for this long")
	return cmd
}

func newJoinCmd(opts *options) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "join <code>",
		Short: "Join a waiting room by its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, playerID, err := opts.session(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Call(wire.JoinRoomRequest{PlayerID: playerID, RoomCode: args[0]})
			if err != nil {
				return err
			}
			room, err := expect[wire.JoinRoomResponse](resp, func(r wire.JoinRoomResponse) *wire.RoomInfo { return r.Room })
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Joined ")
			printRoom(cmd.OutOrStdout(), room)
			return watch(cmd.OutOrStdout(), c, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "Stay in the room and print updates for this long")
	return cmd
}

// watch prints pushed messages until d elapses or the room closes.
func watch(out io.Writer, c *Client, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	deadline := time.Now().Add(d)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return nil
		}
		resp, err := c.Next(left)
		if err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				return nil
			}
			return err
		}
		printPush(out, resp)
		if u, ok := resp.(wire.RoomStateUpdate); ok && u.Closed {
			return nil
		}
	}
}
