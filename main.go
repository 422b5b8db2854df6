package main

import (
	"os"

	"questionnaire-service/internal/cli"
)

var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
