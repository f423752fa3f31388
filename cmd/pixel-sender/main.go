package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/cli"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	os.Exit(cli.Execute())
}
