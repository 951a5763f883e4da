package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tumorscope/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tumorscope",
		Short: "Brain tumor MRI classification",
		Long: `Tumorscope compares four deep learning models on a brain MRI scan.

It serves a live upload page backed by a WebSocket session per tab,
a JSON classification endpoint, and can classify single files from
the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		classifyCmd(),
		versionCmd(),
	)

	if os.Getenv("NO_COLOR") != "" {
		errors.DisableColors()
	}

	if err := rootCmd.Execute(); err != nil {
		errorMsg(err)
		os.Exit(1)
	}
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints a command failure. Coded errors get the full layout
// with their hint.
func errorMsg(err error) {
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		fmt.Fprint(os.Stderr, appErr.Format())
		return
	}
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", err)
}
