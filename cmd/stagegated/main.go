package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Greg-CLD/stagegate/internal/api"
)

// version is set by build flags
var version = "dev"

func main() {
	addr := flag.String("addr", os.Getenv("STAGEGATE_ADDR"), "Listen address (default 127.0.0.1:7180)")
	token := flag.String("token", os.Getenv("STAGEGATE_TOKEN"), "Shared token for local auth")
	dbPath := flag.String("db", "", "Database path override (defaults to config)")
	flag.Parse()

	opts := api.Options{
		Addr:    *addr,
		Token:   *token,
		DBPath:  *dbPath,
		Version: version,
	}

	if err := api.Serve(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
