// Package main is the entry point for yetty-attach, a plain ANSI
// renderer for a running yetty-server session.
package main

import (
	"os"

	"github.com/zokrezyl/yetty-sub000/cmd/yetty-attach/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
