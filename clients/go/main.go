// Waymark CLI - Command line client for the Waymark world-message API
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/waymark-protocol/waymark/clients/go/waymark"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("WAYMARK_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := waymark.NewClient(baseURL)
	ctx := context.Background()
	cmd := os.Args[1]

	switch cmd {
	case "register":
		token, err := client.Register(ctx)
		exitOnError(err)
		fmt.Printf("Registered. Token saved to %s\n", client.ConfigDir)
		fmt.Println(token)

	case "unregister":
		exitOnError(client.Unregister(ctx))
		fmt.Println("Account deleted.")

	case "mine":
		resp, err := client.Mine(ctx)
		exitOnError(err)
		fmt.Printf("Extra slots: %d\n", resp.Extra)
		for _, msg := range resp.Messages {
			hidden := ""
			if msg.IsHidden {
				hidden = " (hidden)"
			}
			fmt.Printf("  %s  t%d  %+d  %s%s\n",
				waymark.SimpleID(msg.ID), msg.Territory,
				msg.PositiveVotes-msg.NegativeVotes, msg.Text, hidden)
		}

	case "messages":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: waymark messages <territory>")
			os.Exit(1)
		}
		territory, err := strconv.ParseUint(os.Args[2], 10, 32)
		exitOnError(err)
		msgs, err := client.Messages(ctx, uint32(territory), nil, nil)
		exitOnError(err)
		for _, msg := range msgs {
			fmt.Printf("  %s  (%.1f, %.1f, %.1f)  %+d  %s\n",
				waymark.SimpleID(msg.ID), msg.X, msg.Y, msg.Z,
				msg.PositiveVotes-msg.NegativeVotes, msg.Text)
		}

	case "erase":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: waymark erase <message_id>")
			os.Exit(1)
		}
		id, err := uuid.Parse(os.Args[2])
		exitOnError(err)
		exitOnError(client.Erase(ctx, id))
		fmt.Println("Erased.")

	case "vote":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: waymark vote <message_id> <up|down>")
			os.Exit(1)
		}
		id, err := uuid.Parse(os.Args[2])
		exitOnError(err)
		way := 1
		if os.Args[3] == "down" {
			way = -1
		}
		exitOnError(client.Vote(ctx, id, way))
		fmt.Println("Voted.")

	case "packs":
		packs, err := client.Packs(ctx)
		exitOnError(err)
		for _, pack := range packs {
			fmt.Printf("  %s  %s (%d templates)\n", pack.ID, pack.Name, len(pack.Templates))
		}

	case "claim":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: waymark claim <code>")
			os.Exit(1)
		}
		extra, err := client.Claim(ctx, os.Args[2])
		exitOnError(err)
		fmt.Printf("Extra slots: %d\n", extra)

	case "ping":
		start := time.Now()
		exitOnError(client.Ping(ctx))
		fmt.Printf("OK (%s)\n", time.Since(start).Round(time.Millisecond))

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Waymark CLI - player-placed world messages

Usage: waymark <command> [options]

Commands:
  register                Create an account and save its token
  unregister              Delete the account and its messages
  mine                    List your messages
  messages <territory>    List messages in a territory
  erase <message_id>      Delete one of your messages
  vote <id> <up|down>     Vote on a message
  packs                   List composition packs
  claim <code>            Redeem an extra-slot code
  ping                    Keepalive round-trip

Environment:
  WAYMARK_URL      Server URL (default: http://localhost:8080)
  WAYMARK_CONFIG   Config directory (default: ~/.waymark)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
