package main

import (
	"log"
	"os"

	"github.com/sheikh-saqib/room-billing-ledger/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	if err := newApp(config.Default(), os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
