package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/radio/internal/config"
	"github.com/matheus3301/radio/internal/gateway"
	"github.com/matheus3301/radio/internal/profile"
	"github.com/matheus3301/radio/internal/store"
)

const defaultLimit = 50

func main() {
	userFlag := flag.String("user", "", "profile to read (overrides env and config)")
	serverFlag := flag.String("server", "", "message server base URL (overrides env and config)")
	configFlag := flag.String("config", profile.ConfigPath(), "path to config.toml")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	// set must work even when the current file does not resolve.
	if args[0] == "config" && len(args) >= 2 && args[1] == "set" {
		cmdConfigSet(*configFlag, args[2:])
		return
	}
	cfg, err := config.Resolve(*configFlag, config.Flags{ServerURL: *serverFlag, Username: *userFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "history":
		limit := defaultLimit
		if len(args) >= 2 {
			n, perr := strconv.Atoi(args[1])
			if perr != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "invalid limit: %s\n", args[1])
				os.Exit(1)
			}
			limit = n
		}
		cmdHistory(openJournal(cfg.Username), limit, *jsonFlag)
	case "search":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: radioctl search <query>")
			os.Exit(1)
		}
		cmdSearch(openJournal(cfg.Username), strings.Join(args[1:], " "), *jsonFlag)
	case "config":
		if len(args) < 2 || args[1] != "show" {
			fmt.Fprintln(os.Stderr, "usage: radioctl config <show|set <key> <value>>")
			os.Exit(1)
		}
		cmdConfigShow(*configFlag, cfg, *jsonFlag)
	case "users":
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		cmdUsers(ctx, gateway.NewAPI(cfg.ServerURL, cfg.RequestTimeout), *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: radioctl [--user <name>] [--server <url>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  history [limit]   Show journaled messages, newest first")
	fmt.Fprintln(os.Stderr, "  search <query>    Search journaled messages")
	fmt.Fprintln(os.Stderr, "  users             List users registered on the server")
	fmt.Fprintln(os.Stderr, "  config show       Show the effective configuration")
	fmt.Fprintln(os.Stderr, "  config set <key> <value>")
	fmt.Fprintf(os.Stderr, "                    Update config.toml (keys: %s)\n", strings.Join(config.Keys, ", "))
}

func openJournal(username string) *store.DB {
	if err := profile.ValidateName(username); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	path := profile.JournalPath(username)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "error: no journal for %q: %v\n", username, err)
		os.Exit(1)
	}
	db, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return db
}

type recordJSON struct {
	Time        string `json:"time"`
	Direction   string `json:"direction"`
	Counterpart string `json:"counterpart"`
	Body        string `json:"body"`
}

func cmdHistory(db *store.DB, limit int, jsonOut bool) {
	defer func() { _ = db.Close() }()
	recs, err := db.ListRecords(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	printRecords(recs, jsonOut)
}

func cmdSearch(db *store.DB, query string, jsonOut bool) {
	defer func() { _ = db.Close() }()
	recs, err := db.SearchRecords(query, defaultLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	printRecords(recs, jsonOut)
}

func printRecords(recs []store.Record, jsonOut bool) {
	if jsonOut {
		out := make([]recordJSON, 0, len(recs))
		for _, r := range recs {
			out = append(out, recordJSON{
				Time:        time.UnixMilli(r.Timestamp).Format(time.RFC3339),
				Direction:   r.Direction,
				Counterpart: r.Counterpart,
				Body:        r.Body,
			})
		}
		outputJSON(out)
		return
	}
	if len(recs) == 0 {
		fmt.Println("No messages found.")
		return
	}
	for _, r := range recs {
		arrow := "<-"
		if r.Direction == "sent" {
			arrow = "->"
		}
		ts := time.UnixMilli(r.Timestamp).Format("2006-01-02 15:04:05")
		fmt.Printf("%s %s %-16s %s\n", ts, arrow, r.Counterpart, r.Body)
	}
}

func cmdUsers(ctx context.Context, api *gateway.API, jsonOut bool) {
	users, err := api.ListUsers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot list users on %s: %v\n", api.BaseURL(), err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(map[string][]string{"users": users})
		return
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return
	}
	for _, u := range users {
		fmt.Println(u)
	}
}

func cmdConfigShow(path string, cfg config.Resolved, jsonOut bool) {
	if jsonOut {
		outputJSON(map[string]string{
			"path":            path,
			"server_url":      cfg.ServerURL,
			"username":        cfg.Username,
			"request_timeout": cfg.RequestTimeout.String(),
		})
		return
	}
	fmt.Printf("Config:   %s\n", path)
	fmt.Printf("Server:   %s\n", cfg.ServerURL)
	fmt.Printf("Username: %s\n", cfg.Username)
	fmt.Printf("Timeout:  %s\n", cfg.RequestTimeout)
}

func cmdConfigSet(path string, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: radioctl config set <key> <value>")
		os.Exit(1)
	}
	if err := config.Set(path, args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s in %s\n", args[0], path)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
