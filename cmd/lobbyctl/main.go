// Package main provides lobbyctl, a command-line client for the lobby server.
package main

import "github.com/cory-johannsen/lobby/internal/cli"

func main() {
	cli.Execute()
}
