package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"omni-swap/cmd"
)

func main() {
	// A missing .env file is fine; configuration can come entirely from
	// the environment or config file
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
