package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ipass-go/ipass/internal/authentication"
	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/pkg/cli"
	"github.com/ipass-go/ipass/pkg/relay"
	"github.com/ipass-go/ipass/pkg/vault"
)

var (
	ErrCommandLineArgs = errors.New("invalid command line arguments")
	ErrUnknownCommand  = errors.New("unrecognized command")
)

type Argument struct {
	name string
	help string
}

// prompter reads secrets from the user.
type prompter interface {
	authentication.PINPrompter
	PromptNewPassword(ctx context.Context) (string, error)
}

// environment is what a Handler may use. client is nil for daemon commands.
type environment struct {
	config *cli.Config
	client *vault.Client
	prompt prompter
	out    io.Writer
}

type Handler func(ctx context.Context, env *environment, args map[string]string) error

type Command struct {
	help     string
	daemon   bool // True if the command runs until interrupted and does not talk to the daemon.
	args     []Argument
	optional []Argument
	handler  Handler
}

// lookup finds the command named by the leading words of args. Command names are either one word
// ("auth") or a group and a verb ("pw list"). It returns the command name and its arguments.
func lookup(args []string) (string, *Command, []string, error) {
	if len(args) == 0 {
		return "", nil, nil, errors.New("missing COMMAND")
	}
	if info, ok := commands[args[0]]; ok {
		return args[0], info, args[1:], nil
	}
	if len(args) > 1 {
		name := args[0] + " " + args[1]
		if info, ok := commands[name]; ok {
			return name, info, args[2:], nil
		}
	}
	return "", nil, nil, fmt.Errorf("%w: %s", ErrUnknownCommand, strings.Join(args, " "))
}

func execute(ctx context.Context, env *environment, args []string) error {
	name, info, rest, err := lookup(args)
	if err != nil {
		return err
	}

	if len(rest) < len(info.args) || len(rest) > len(info.args)+len(info.optional) {
		writeErr("Invalid number of command line arguments: %d (%d required, %d optional).", len(rest), len(info.args), len(info.optional))
		err = ErrCommandLineArgs
	} else {
		keywords := make(map[string]string)
		for i, argInfo := range info.args {
			keywords[argInfo.name] = rest[i]
		}
		index := len(info.args)
		for _, argInfo := range info.optional {
			if index >= len(rest) {
				break
			}
			keywords[argInfo.name] = rest[index]
			index++
		}
		err = info.handler(ctx, env, keywords)
	}

	// Print command-specific help
	if errors.Is(err, ErrCommandLineArgs) {
		info.Usage(env.out, name)
	}
	return err
}

func (c *Command) Usage(w io.Writer, name string) {
	fmt.Fprintf(w, "Usage: %s", name)
	maxLength := 0
	for _, arg := range c.args {
		fmt.Fprintf(w, " %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Fprintf(w, " [")
	}
	for _, arg := range c.optional {
		fmt.Fprintf(w, " %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Fprintf(w, " ]")
	}
	fmt.Fprintf(w, "\n%s\n", c.help)
	maxLength++
	for _, arg := range c.args {
		fmt.Fprintf(w, "    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
	for _, arg := range c.optional {
		fmt.Fprintf(w, "    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
}

func commandNames() []string {
	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printJSON(w io.Writer, v interface{}) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

var (
	argURL      = Argument{name: "URL", help: "Website, e.g. example.com"}
	argUsername = Argument{name: "USERNAME", help: "Login name for the website"}
)

var commands = map[string]*Command{
	"start": &Command{
		help:   "Start the daemon that relays requests to the password manager",
		daemon: true,
		handler: func(ctx context.Context, env *environment, args map[string]string) error {
			return startDaemon(ctx, env.config)
		},
	},
	"auth": &Command{
		help: "Authenticate with the password manager using the PIN it displays",
		handler: func(ctx context.Context, env *environment, args map[string]string) error {
			return env.client.Authenticate(ctx, env.prompt)
		},
	},
	"pw list": &Command{
		help: "List login names saved for a website",
		args: []Argument{argURL},
		handler: func(ctx context.Context, env *environment, args map[string]string) error {
			entries, err := env.client.ListLoginNames(ctx, args["URL"])
			if err != nil {
				return err
			}
			return printJSON(env.out, entries)
		},
	},
	"pw get": &Command{
		help: "Get the password of a login",
		args: []Argument{argURL, argUsername},
		handler: func(ctx context.Context, env *environment, args map[string]string) error {
			entries, err := env.client.GetPassword(ctx, args["URL"], args["USERNAME"])
			if err != nil {
				return err
			}
			return printJSON(env.out, entries)
		},
	},
	"pw save": &Command{
		help: "Save a new login. The password is read from the terminal.",
		args: []Argument{argURL, argUsername},
		handler: func(ctx context.Context, env *environment, args map[string]string) error {
			password, err := env.prompt.PromptNewPassword(ctx)
			if err != nil {
				return err
			}
			if err := env.client.SavePassword(ctx, args["URL"], args["USERNAME"], password); err != nil {
				return err
			}
			fmt.Fprintln(env.out, "Password saved successfully")
			return nil
		},
	},
	"otp get": &Command{
		help: "Get one-time verification codes for a login",
		args: []Argument{argURL, argUsername},
		handler: func(ctx context.Context, env *environment, args map[string]string) error {
			codes, err := env.client.GetOneTimeCodes(ctx, args["URL"], args["USERNAME"])
			if err != nil {
				return err
			}
			return printJSON(env.out, codes)
		},
	},
}

// startDaemon runs the relay until ctx is cancelled. The session record is cleared on the way out
// because the password manager forgets the session when it exits. If the daemon port cannot be
// bound, another daemon owns the session and nothing is started or cleared.
func startDaemon(ctx context.Context, config *cli.Config) error {
	store, err := config.SessionStore()
	if err != nil {
		return err
	}
	r := relay.New(nil, config.DaemonPort(), config.RequestTimeout())
	if err := r.Listen(); err != nil {
		return err
	}
	defer r.Close()

	manifest, path, err := config.Manifest()
	if err != nil {
		return err
	}
	log.Debug("Using password manager %s from %s", manifest.Path, path)

	host, err := relay.StartHost(manifest)
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			log.Warning("Error stopping password manager: %s", err)
		}
	}()

	r.Host = host
	err = r.Serve(ctx)
	if clearErr := store.Clear(); clearErr != nil {
		log.Error("Failed to clear session: %s", clearErr)
	} else {
		log.Info("Session cleared")
	}
	return err
}
