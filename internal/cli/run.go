package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/cwt/ananta/internal/config"
	"github.com/cwt/ananta/internal/errors"
	"github.com/cwt/ananta/internal/logger"
	"github.com/cwt/ananta/internal/output"
	"github.com/cwt/ananta/internal/parallel"
	"github.com/cwt/ananta/internal/tui"
	"github.com/cwt/ananta/pkg/sshutil"
)

const fallbackWidth = 80

// runOnce fans the command out to every host and exits when all output has
// been printed.
func runOnce(hostFile, command string) error {
	log := logger.NewEnvLogger("[ananta]")
	hosts, maxNameLength, err := config.LoadHosts(hostFile, tagsFlag, log)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("No hosts found in '%s'", hostFile),
			"Check the file path, format, and tag filter.")
	}

	width := localWidth()
	color := useColor()
	remoteWidth := width - maxNameLength - 3
	if remoteWidth < 10 {
		remoteWidth = 10
	}

	printer := output.NewPrinter(os.Stdout, output.NewPalette(), maxNameLength, remoteWidth, output.PrinterOptions{
		Color:              color,
		AllowEmptyLine:     allowEmptyFlag,
		AllowCursorControl: cursorFlag,
		Separate:           separateFlag,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer sshutil.CloseAgent()

	return parallel.Run(ctx, hosts, printer, parallel.Options{
		Command:        command,
		SeparateOutput: separateFlag,
		Color:          color,
		LocalWidth:     width,
		MaxNameLength:  maxNameLength,
		DefaultKey:     defaultKeyFlag,
		Logger:         log,
	})
}

// runSession opens the interactive session. An initial command, if given,
// runs once every dial has settled.
func runSession(hostFile, initialCommand string) error {
	log := logger.NewEnvLogger("[ananta]")
	hosts, maxNameLength, err := config.LoadHosts(hostFile, tagsFlag, log)
	if err != nil {
		return err
	}

	defer sshutil.CloseAgent()

	return tui.Run(hosts, maxNameLength, tui.Options{
		HostFile:       hostFile,
		InitialCommand: initialCommand,
		DefaultKey:     defaultKeyFlag,
		Light:          lightFlag || !termenv.HasDarkBackground(),
		Logger:         log,
	})
}

// localWidth resolves the terminal width: the -W override wins, then the
// real terminal, then COLUMNS, then 80.
func localWidth() int {
	if widthFlag > 0 {
		return widthFlag
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	return fallbackWidth
}

// stdoutIsTerminal is a seam for tests.
var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// useColor honors -N, disables color when stdout is not a terminal (piped
// output stays free of escape sequences), and otherwise follows the
// terminal's advertised profile.
func useColor() bool {
	if noColorFlag {
		return false
	}
	if !stdoutIsTerminal() {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}
