// Command gencode mints one-time codes that grant extra message slots.
// Codes are printed to stdout and handed out manually.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/waymark-protocol/waymark/internal/config"
	"github.com/waymark-protocol/waymark/internal/crypto"
	"github.com/waymark-protocol/waymark/internal/store"
)

func main() {
	extra := flag.Int64("extra", 10, "Total extra slots the code grants")
	count := flag.Int("count", 1, "Number of codes to mint")
	flag.Parse()

	if *extra <= 0 || *count <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: gencode [-extra <slots>] [-count <n>]")
		os.Exit(1)
	}

	cfg := config.Load()
	ctx := context.Background()

	var db store.DataStore
	var err error
	if cfg.DatabaseURL != "" {
		db, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
	} else {
		db, err = store.NewSQLiteStore(ctx, cfg.SQLitePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	for i := 0; i < *count; i++ {
		code, err := crypto.NewToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate code: %v\n", err)
			os.Exit(1)
		}
		if err := db.CreateExtraCode(ctx, code, *extra); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to store code: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(code)
	}
}
