package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tumorscope/internal/config"
	"github.com/vango-dev/tumorscope/internal/errors"
	"github.com/vango-dev/tumorscope/pkg/classify"
	"github.com/vango-dev/tumorscope/pkg/controller"
	"github.com/vango-dev/tumorscope/pkg/toast"
	"github.com/vango-dev/tumorscope/pkg/upload"
)

func classifyCmd() *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "classify FILE",
		Short: "Classify one image against a running server",
		Long: `Submit a JPEG, PNG or DICOM file to a tumorscope server and print
each model's prediction.

The file goes through the same checks as the upload page: type,
extension and the 16MB limit.

Examples:
  tumorscope classify scan.png
  tumorscope classify --url=http://scope.internal:5000 study.dcm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				serverURL = config.New().URL()
			}
			client := classify.NewClient(serverURL, classify.WithTimeout(timeout))
			return runClassify(cmd.Context(), cmd.OutOrStdout(), client, args[0])
		},
	}

	cmd.Flags().StringVarP(&serverURL, "url", "u", "", "Server URL (default http://localhost:5000)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 60*time.Second, "Request timeout")

	return cmd
}

// runClassify drives an upload controller synchronously: select, submit,
// then print whatever the page would have shown.
func runClassify(ctx context.Context, out io.Writer, classifier controller.Classifier, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ctrl := controller.New(controller.Config{
		Classifier: classifier,
		Go:         func(fn func()) { fn() },
		Toasts:     toast.NewCenter(toast.WithTimeout(0)),
	})

	name := filepath.Base(path)
	info := upload.FileInfo{Name: name, Type: contentTypeFor(name), Size: int64(len(content))}
	if _, err := ctrl.SelectFile(ctx, info, content); err != nil {
		printToasts(out, ctrl.Toasts())
		return err
	}
	if ctrl.File() == nil {
		printToasts(out, ctrl.Toasts())
		return errors.New(controller.CodeReadFailed)
	}

	if _, err := ctrl.Submit(ctx); err != nil {
		printToasts(out, ctrl.Toasts())
		return err
	}

	printToasts(out, ctrl.Toasts())
	if ctrl.State() != controller.StateResultsShown {
		return fmt.Errorf("classification of %s failed", name)
	}
	printResults(out, ctrl.View().Results)
	return nil
}

func printToasts(out io.Writer, center *toast.Center) {
	for _, t := range center.Items() {
		fmt.Fprintf(out, "%s %s\n", levelMark(t.Level), t.Message)
	}
}

func levelMark(l toast.Level) string {
	switch l {
	case toast.LevelDanger:
		return "\033[31m✗\033[0m"
	case toast.LevelWarning:
		return "\033[33m⚠\033[0m"
	case toast.LevelSuccess:
		return "\033[32m✓\033[0m"
	default:
		return "\033[36mi\033[0m"
	}
}

func printResults(out io.Writer, rv *controller.ResultsView) {
	if rv == nil {
		return
	}
	if rv.DemoMode {
		fmt.Fprintf(out, "\033[36mDemo Mode:\033[0m %s\n", controller.DemoBanner)
	}
	fmt.Fprintln(out)
	for _, c := range rv.Cards {
		fmt.Fprintf(out, "  %-16s %-12s %s  (%s, accuracy %s)\n",
			c.Model, c.Label, tierColor(c.Tier, c.Confidence), c.ProcessingTime, c.Accuracy)
	}
	fmt.Fprintln(out)
}

func tierColor(t classify.Tier, s string) string {
	switch t {
	case classify.TierSuccess:
		return "\033[32m" + s + "\033[0m"
	case classify.TierWarning:
		return "\033[33m" + s + "\033[0m"
	default:
		return "\033[31m" + s + "\033[0m"
	}
}

// contentTypeFor guesses the browser-reported type from the extension.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".dcm":
		return "application/dicom"
	}
	return mime.TypeByExtension(filepath.Ext(name))
}
