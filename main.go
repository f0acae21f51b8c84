package main

import (
	"os"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
