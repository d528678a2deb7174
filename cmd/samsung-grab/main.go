package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ungeskriptet/samsung-grab/internal/app"
	"github.com/ungeskriptet/samsung-grab/internal/config"
	"github.com/ungeskriptet/samsung-grab/internal/domain"
	"github.com/ungeskriptet/samsung-grab/internal/remote"
	"github.com/ungeskriptet/samsung-grab/internal/service"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `usage: samsung-grab <command> [options]

commands:
  task, t      [--all|-a] [--notify|-n URL] [--notify-file|-N FILE] USERNAME
               Request a task (or, with --all, as many as the server hands out)
  upload, u    [--id|-i ID] FILE
               Upload a downloaded file for a claimed task
  list, l      [--pdf FILE]
               List claimed tasks
  stats, s     Query statistics
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitError
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "task", "t":
		return runTask(ctx, rest, stdout, stderr)
	case "upload", "u":
		return runUpload(ctx, rest, stdout, stderr)
	case "list", "l":
		return runList(rest, stdout, stderr)
	case "stats", "s":
		return runStats(ctx, rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitError
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseArgs parses flags that may appear before, between or after positional
// arguments and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func openApp(stderr io.Writer, notify ...string) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, app.Options{Stderr: stderr, Notify: notify})
}

func closeApp(a *app.App, stderr io.Writer, code int) int {
	if err := a.Close(); err != nil {
		fmt.Fprintln(stderr, err)
		if code == exitOK {
			return exitError
		}
	}
	return code
}

func runTask(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("task", stderr)
	var (
		all        bool
		notifyURL  string
		notifyFile string
	)
	fs.BoolVar(&all, "all", false, "request multiple tasks from server")
	fs.BoolVar(&all, "a", false, "shorthand for --all")
	fs.StringVar(&notifyURL, "notify", "", "notification URL for new tasks")
	fs.StringVar(&notifyURL, "n", "", "shorthand for --notify")
	fs.StringVar(&notifyFile, "notify-file", "", "file containing notification URLs")
	fs.StringVar(&notifyFile, "N", "", "shorthand for --notify-file")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(pos) != 1 || pos[0] == "" {
		fmt.Fprintln(stderr, "task: expected exactly one USERNAME")
		return exitUsage
	}

	var targets []string
	if notifyURL != "" {
		targets = append(targets, notifyURL)
	}
	if notifyFile != "" {
		data, err := os.ReadFile(notifyFile)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		targets = append(targets, strings.TrimSpace(string(data)))
	}

	a, err := openApp(stderr, targets...)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	first := true
	_, err = a.Service.Claim(ctx, service.ClaimRequest{
		Username: pos[0],
		All:      all,
		OnTask: func(task domain.Task) {
			if !first {
				fmt.Fprintln(stdout)
			}
			first = false
			_ = a.Service.WriteTask(stdout, task)
		},
	})

	var (
		serr *remote.ServerError
		uerr *remote.UnrecognizedResponseError
	)
	code := exitOK
	switch {
	case err == nil:
	case errors.As(err, &serr):
		fmt.Fprintf(stdout, "Message from server:\n%s\n", serr.Message)
	case errors.As(err, &uerr):
		fmt.Fprintf(stdout, "Unknown response from server:\n%s\n", strings.TrimSpace(uerr.Raw))
		code = exitError
	default:
		fmt.Fprintln(stderr, err)
		code = exitError
	}
	return closeApp(a, stderr, code)
}

func runUpload(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("upload", stderr)
	var id string
	fs.StringVar(&id, "id", "", "manually set task ID")
	fs.StringVar(&id, "i", "", "shorthand for --id")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(pos) != 1 {
		fmt.Fprintln(stderr, "upload: expected exactly one FILE")
		return exitUsage
	}

	a, err := openApp(stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	code := exitOK
	if _, err := a.Service.Upload(ctx, stdout, pos[0], id); err != nil {
		var serr *remote.ServerError
		if errors.As(err, &serr) {
			fmt.Fprintf(stdout, "Message from server:\n%s\n", serr.Message)
		} else {
			fmt.Fprintln(stderr, err)
		}
		code = exitError
	}
	return closeApp(a, stderr, code)
}

func runList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("list", stderr)
	var pdfPath string
	fs.StringVar(&pdfPath, "pdf", "", "also write the listing as PDF to `FILE`")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(pos) != 0 {
		fmt.Fprintln(stderr, "list: unexpected arguments")
		return exitUsage
	}

	a, err := openApp(stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	code := exitOK
	if err := a.Service.List(stdout); err != nil {
		fmt.Fprintln(stderr, err)
		code = exitError
	}
	if pdfPath != "" && code == exitOK {
		if err := writePDF(a.Service, pdfPath); err != nil {
			fmt.Fprintln(stderr, err)
			code = exitError
		}
	}
	return closeApp(a, stderr, code)
}

func writePDF(svc *service.Service, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := svc.ExportPDF(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runStats(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("stats", stderr)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(pos) != 0 {
		fmt.Fprintln(stderr, "stats: unexpected arguments")
		return exitUsage
	}

	a, err := openApp(stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	code := exitOK
	if err := a.Service.Stats(ctx, stdout); err != nil {
		fmt.Fprintln(stderr, err)
		code = exitError
	}
	return closeApp(a, stderr, code)
}
