// Package main is the entry point for the hospital directory API.
//
// The binary is a cobra command tree:
//
//	hospital-directory serve              run the HTTP API
//	hospital-directory migrate up         apply Postgres migrations
//	hospital-directory user create-admin  bootstrap an administrator
//
// All actual logic lives in internal/; this package only reads configuration
// and calls into it.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
