package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ambiyansyah-risyal/netguard"
	"github.com/ambiyansyah-risyal/netguard/internal/cli"
)

const (
	ExitOK        = 0
	ExitGeneral   = 1
	ExitUsage     = 2
	ExitRequest   = 3
	ExitInterrupt = 130
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCmd(cli.DefaultEnv())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(exitCode(err))
	}
}

// describe prefers the user facing text of a request failure.
func describe(err error) string {
	var netErr *netguard.NetworkError
	if errors.As(err, &netErr) {
		return fmt.Sprintf("%s: %s", netErr.Kind, netErr.Description())
	}
	return err.Error()
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled), errors.Is(err, netguard.Unhandled("The request was cancelled.")):
		return ExitInterrupt
	case netguard.KindOf(err) != 0:
		return ExitRequest
	case isUsageError(err):
		return ExitUsage
	default:
		return ExitGeneral
	}
}

var usageErrorPatterns = []string{
	"required flag",
	"unknown flag",
	"unknown shorthand",
	"unknown command",
	"flag needs an argument",
	"invalid argument",
	"accepts ",
	"requires at least",
	"parameter must be",
	"header must be",
	"encoding must be",
}

func isUsageError(err error) bool {
	msg := err.Error()
	for _, p := range usageErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
