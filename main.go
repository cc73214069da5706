package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	cmd "github.com/YuminosukeSato/winequality/cmd/winequality"
	"github.com/YuminosukeSato/winequality/internal/ui"
	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Version is set at build time
var Version = "dev"

func main() {
	cmd.SetVersion(Version)
	if err := fang.Execute(
		context.Background(),
		cmd.GetRootCmd(),
		fang.WithVersion(Version),
		fang.WithColorSchemeFunc(ui.FangColorScheme),
	); err != nil {
		// leaving the interactive form is not a failure
		if errors.Is(err, ui.ErrCancelled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
