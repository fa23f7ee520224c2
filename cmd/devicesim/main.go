// Command devicesim plays the phone side of the device channel: it reports
// an accelerometer, streams samples and prints the events the server pushes.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Server string `help:"Server base URL." default:"ws://localhost:8088"`
	Token  string `help:"Bearer token, optionally suffixed with :<uid> in local auth mode." default:"MOCK-TOKEN" env:"FYS_TOKEN"`

	Stream   StreamCmd   `cmd:"" help:"Connect, report the sensor and stream samples."`
	Listen   ListenCmd   `cmd:"" help:"Connect and print pushed events." default:"1"`
	IssueJWT IssueJWTCmd `cmd:"" name:"issue-jwt" help:"Issue a token for AUTH_MODE=jwt servers."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("devicesim"),
		kong.Description("Simulated phone for the sleep tracker device channel"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&Context{Server: CLI.Server, Token: CLI.Token, Out: os.Stdout}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
