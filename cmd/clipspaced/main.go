package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"clipspace/internal/config"
	"clipspace/internal/daemonrun"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	levelFlag := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *levelFlag}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
