package main

import (
	"os"

	"github.com/onboardly/onboardly/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
