package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/matheus3301/radio/internal/app"
	"github.com/matheus3301/radio/internal/config"
	"github.com/matheus3301/radio/internal/profile"
	"go.uber.org/fx"
)

func main() {
	serverFlag := flag.String("server", "", "message server base URL (overrides env and config)")
	userFlag := flag.String("user", "", "username to register and poll as")
	configFlag := flag.String("config", profile.ConfigPath(), "path to config.toml")
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Resolve(*configFlag, config.Flags{ServerURL: *serverFlag, Username: *userFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Read the username before fx takes over stdin.
	in := bufio.NewReader(os.Stdin)
	username := cfg.Username
	if username == "" {
		fmt.Print("Enter your username: ")
		line, rerr := in.ReadString('\n')
		if rerr != nil && line == "" {
			fmt.Fprintln(os.Stderr, "error: no username given")
			os.Exit(1)
		}
		username = strings.TrimSpace(line)
	}
	if err := profile.ValidateName(username); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		app.Module(app.Params{
			Username:       username,
			ServerURL:      cfg.ServerURL,
			RequestTimeout: cfg.RequestTimeout,
			In:             in,
		}),
	).Run()
}
