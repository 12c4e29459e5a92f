// Package main is the entry point for the billing-portal CLI.
package main

import (
	"os"

	"github.com/shunichi-ikebuchi/billing-portal/cmd/billing-portal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
