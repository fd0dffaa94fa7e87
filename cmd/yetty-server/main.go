// Package main is the entry point for yetty-server, the terminal
// session server.
package main

import (
	"os"

	"github.com/zokrezyl/yetty-sub000/cmd/yetty-server/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
