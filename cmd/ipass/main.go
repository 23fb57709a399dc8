package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/shlex"

	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/pkg/cli"
	"github.com/ipass-go/ipass/pkg/protocol"
	"github.com/ipass-go/ipass/pkg/vault"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usage = `
 * Run "start" once; it keeps running and relays requests to the password manager.
 * Run "auth" while the daemon is running and enter the PIN the password manager displays.
 * Other commands reuse the session created by "auth" until the daemon stops.`

func Usage() {
	printUsage(os.Stdout)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s [OPTION...] COMMAND [ARG...]\n", os.Args[0])
	fmt.Fprintf(w, "\nRun %s help COMMAND for more information. Valid COMMANDs are listed below.", os.Args[0])
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, usage)
	fmt.Fprintln(w, "")

	fmt.Fprintf(w, "Available OPTIONs:\n")
	flag.CommandLine.SetOutput(w)
	flag.PrintDefaults()
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Available COMMANDs:\n")
	maxLength := 0
	labels := commandNames()
	for _, command := range labels {
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	for _, command := range labels {
		info := commands[command]
		fmt.Fprintf(w, "  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), info.help)
	}
}

// help prints usage for the command named by args, which may be empty.
func help(w io.Writer, args []string) int {
	if len(args) == 0 {
		printUsage(w)
		return 0
	}
	name, info, _, err := lookup(args)
	if err != nil {
		writeErr("Unrecognized command: %s", strings.Join(args, " "))
		return 1
	}
	info.Usage(w, name)
	return 0
}

func reportErr(err error) {
	switch {
	case protocol.MayHaveSucceeded(err):
		writeErr("Error: couldn't verify success: %s", err)
	case errors.Is(err, ErrCommandLineArgs):
		// Usage has already been printed.
	default:
		writeErr("Error: %s", err)
	}
}

func runCommand(env *environment, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, env, args); err != nil {
		reportErr(err)
		return 1
	}
	return 0
}

func runInteractiveShell(env *environment) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		if args[0] == "help" {
			help(env.out, args[1:])
			continue
		}
		if _, info, _, err := lookup(args); err == nil && info.daemon {
			writeErr("Command %s cannot be run from the shell", args[0])
			continue
		}
		runCommand(env, args)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func configureLogging(debug bool, level string) error {
	if !debug {
		if debugEnv, ok := os.LookupEnv("IPASS_VERBOSE"); ok {
			debug = debugEnv != "false" && debugEnv != "0"
		}
	}
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return err
		}
		log.SetLevel(parsed)
	}
	if debug {
		log.SetLevel(log.LevelDebug)
	}
	return nil
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	var (
		debug    bool
		logLevel string
	)
	config, err := cli.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %s\n", err)
		os.Exit(1)
	}
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.StringVar(&logLevel, "log-level", "", "Log `level` (error, warn, info, debug, none). Defaults to info.")

	config.RegisterCommandLineFlags()
	flag.Parse()
	if err := configureLogging(debug, logLevel); err != nil {
		writeErr("Error: %s", err)
		return
	}
	config.ReadFromEnvironment()

	env := &environment{config: config, prompt: &cli.Prompter{}, out: os.Stdout}
	args := flag.Args()
	if len(args) > 0 {
		if args[0] == "help" {
			status = help(os.Stdout, args[1:])
			return
		}
		_, info, _, err := lookup(args)
		if err != nil {
			writeErr("Error: %s", err)
			return
		}
		if info.daemon {
			log.SetTimestamps(true)
			status = runCommand(env, args)
			return
		}
	}

	store, err := config.SessionStore()
	if err != nil {
		writeErr("Error: %s", err)
		return
	}
	conn, err := config.Dial()
	if err != nil {
		writeErr("Error: %s", err)
		return
	}
	defer conn.Close()
	env.client = vault.New(conn, store)

	if len(args) > 0 {
		status = runCommand(env, args)
	} else {
		status = runInteractiveShell(env)
	}
}
