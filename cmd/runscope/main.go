// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Runscope inspects a running runscope agent over its Unix socket.
//
//	runscope status                  collector health and counters
//	runscope watch [--tasks ...]     live tables of tasks, resources, async ops
//	runscope details <task-id>       one task with its poll histograms
//
// The socket defaults to server.socket_path from the default
// configuration; pass --socket to override it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/runscope/lib/config"
	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/process"
	"github.com/bureau-foundation/runscope/lib/schema/console"
	"github.com/bureau-foundation/runscope/lib/server"
	"github.com/bureau-foundation/runscope/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

const usage = `Usage: runscope [--socket PATH] <command> [flags]

Commands:
  status              show collector health and counters
  watch               stream live tables of tasks, resources, and async ops
  details <task-id>   show one task with its poll and scheduling histograms
  version             print version information
`

func run(args []string, stdout io.Writer) error {
	var socketPath string
	global := pflag.NewFlagSet("runscope", pflag.ContinueOnError)
	global.StringVar(&socketPath, "socket", "", "agent socket path (default: server.socket_path)")
	global.SetInterspersed(false)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return process.Usage("%v", err)
	}

	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return process.Usage("missing command")
	}
	if socketPath == "" {
		defaults := config.Default()
		defaults.ExpandVariables()
		socketPath = defaults.Server.SocketPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := server.NewClient(socketPath)
	styled := isTerminal(stdout)
	command, commandArgs := rest[0], rest[1:]
	switch command {
	case "status":
		return runStatus(ctx, client, stdout, styled)
	case "watch":
		return runWatch(ctx, client, commandArgs, stdout, styled)
	case "details":
		return runDetails(ctx, client, commandArgs, stdout, styled)
	case "version":
		version.Print("runscope")
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return process.Usage("unknown command %q", command)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func runStatus(ctx context.Context, client *server.Client, stdout io.Writer, styled bool) error {
	status, err := client.Status(ctx)
	if err != nil {
		return err
	}
	var b strings.Builder
	render := newRenderer(styled)
	render.renderStatus(&b, status)
	if version.Skewed(status.Version) {
		b.WriteString(render.warning.Render(fmt.Sprintf(
			"agent version %s differs from this client (%s); snapshots may not decode fully",
			status.Version, version.Short())))
		b.WriteByte('\n')
	}
	_, err = io.WriteString(stdout, b.String())
	return err
}

func runDetails(ctx context.Context, client *server.Client, args []string, stdout io.Writer, styled bool) error {
	if len(args) != 1 {
		return process.Usage("usage: runscope details <task-id>")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return process.Usage("invalid task id %q", args[0])
	}
	details, err := client.TaskDetails(ctx, event.TaskID(id))
	if err != nil {
		return err
	}
	var b strings.Builder
	newRenderer(styled).renderDetails(&b, details)
	_, err = io.WriteString(stdout, b.String())
	return err
}

type watchOptions struct {
	tasks       bool
	resources   bool
	asyncOps    bool
	summary     bool
	compression string
	once        bool
}

// interest maps the flags to a subscription interest. No kind flags
// means every kind.
func (o watchOptions) interest() console.Interest {
	interest := console.Interest{
		IncludeTasks:     o.tasks,
		IncludeResources: o.resources,
		IncludeAsyncOps:  o.asyncOps,
		FieldDetail:      console.FieldDetailFull,
		Compression:      o.compression,
	}
	if !o.tasks && !o.resources && !o.asyncOps {
		interest.IncludeTasks = true
		interest.IncludeResources = true
		interest.IncludeAsyncOps = true
	}
	if o.summary {
		interest.FieldDetail = console.FieldDetailSummary
	}
	return interest
}

func parseWatchFlags(args []string) (watchOptions, error) {
	var opts watchOptions
	flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	flagSet.BoolVar(&opts.tasks, "tasks", false, "include tasks")
	flagSet.BoolVar(&opts.resources, "resources", false, "include resources")
	flagSet.BoolVar(&opts.asyncOps, "ops", false, "include async ops")
	flagSet.BoolVar(&opts.summary, "summary", false, "omit fields and histogram buckets")
	flagSet.StringVar(&opts.compression, "compression", "", "frame compression: none, zstd, lz4")
	flagSet.BoolVar(&opts.once, "once", false, "print the initial snapshot and exit")
	if err := flagSet.Parse(args); err != nil {
		return opts, process.Usage("watch: %v", err)
	}
	if flagSet.NArg() > 0 {
		return opts, process.Usage("watch: unexpected argument %q", flagSet.Arg(0))
	}
	if err := opts.interest().Validate(); err != nil {
		return opts, process.Usage("watch: %v", err)
	}
	return opts, nil
}

func runWatch(ctx context.Context, client *server.Client, args []string, stdout io.Writer, styled bool) error {
	opts, err := parseWatchFlags(args)
	if err != nil {
		return err
	}
	interest := opts.interest()

	stream, err := client.Subscribe(ctx, interest)
	if err != nil {
		return err
	}
	defer stream.Close()

	render := newRenderer(styled)
	state := newView()
	for {
		snapshot, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !state.apply(snapshot) {
			continue
		}

		var b strings.Builder
		if styled {
			b.WriteString("\x1b[H\x1b[2J")
		}
		render.renderHeader(&b, state)
		if interest.IncludeTasks {
			b.WriteByte('\n')
			render.renderTasks(&b, state)
		}
		if interest.IncludeResources {
			b.WriteByte('\n')
			render.renderResources(&b, state)
		}
		if interest.IncludeAsyncOps {
			b.WriteByte('\n')
			render.renderAsyncOps(&b, state)
		}
		if _, err := io.WriteString(stdout, b.String()); err != nil {
			return err
		}
		if opts.once {
			return nil
		}
	}
}
