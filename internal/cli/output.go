package cli

import (
	"fmt"
	"io"

	"github.com/cory-johannsen/lobby/internal/lobby/wire"
)

var statusNames = map[wire.RoomStatus]string{
	wire.RoomWaiting: "waiting",
	wire.RoomPlaying: "playing",
	wire.RoomEnded:   "ended",
}

func printPlayer(out io.Writer, p *wire.PlayerInfo) {
	if p == nil {
		fmt.Fprintln(out, "(unknown player)")
		return
	}
	fmt.Fprintf(out, "player %d %s (%s) score=%d\n", p.ID, p.Username, p.Nickname, p.Score)
}

func playerLabel(p *wire.PlayerInfo) string {
	if p == nil {
		return "-"
	}
	return p.Nickname
}

func printRoom(out io.Writer, r *wire.RoomInfo) {
	if r == nil {
		fmt.Fprintln(out, "(no room)")
		return
	}
	fmt.Fprintf(out, "room %s id=%d status=%s players=%s,%s\n",
		r.RoomCode, r.ID, statusNames[r.Status], playerLabel(r.Player1), playerLabel(r.Player2))
}

// printPush renders a server-initiated message.
func printPush(out io.Writer, resp wire.Response) {
	switch r := resp.(type) {
	case wire.RoomStateUpdate:
		switch {
		case r.Closed:
			fmt.Fprintf(out, "room %d closed\n", r.RoomID)
		case r.Room != nil:
			fmt.Fprint(out, "update: ")
			printRoom(out, r.Room)
		}
		for _, p := range r.Positions {
			fmt.Fprintf(out, "player %d at (%g, %g)\n", p.PlayerID, p.X, p.Y)
		}
	case wire.StartGameResponse:
		fmt.Fprintf(out, "game started in room %d\n", r.RoomID)
	case wire.EndGameResponse:
		fmt.Fprintf(out, "game ended in room %d, winner %d\n", r.RoomID, r.WinnerID)
	default:
		fmt.Fprintf(out, "%s: %s\n", resp.Type(), resp.StatusOf().Message)
	}
}
