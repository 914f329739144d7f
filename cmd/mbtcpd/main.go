// Package main provides mbtcpd, a standalone Modbus TCP server daemon
// backed by an in-memory data store.
package main

import (
	"fmt"
	"os"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
