package main

import (
	"os"

	"creditline-backend/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
