package main

import (
	"fmt"

	"github.com/RowanDark/wraith/internal/updater"
)

func (a *app) runSelfUpdate(args []string) int {
	if len(args) > 0 && args[0] == "channel" {
		return a.runSelfUpdateChannel(args[1:])
	}

	flags := a.flagSet("self-update")
	channelFlag := flags.String("channel", "", "update channel for this invocation (stable or beta)")
	rollback := flags.Bool("rollback", false, "restore the previous wraithctl binary")
	check := flags.Bool("check", false, "report whether an update is available without installing it")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 0 {
		fmt.Fprintln(a.stderr, "self-update takes no positional arguments")
		return 2
	}
	if *rollback && *check {
		fmt.Fprintln(a.stderr, "-rollback and -check are mutually exclusive")
		return 2
	}

	cfg, ok := a.loadConfig()
	if !ok {
		return 1
	}
	store, err := updater.OpenStore("")
	if err != nil {
		fmt.Fprintf(a.stderr, "open updater state: %v\n", err)
		return 1
	}

	// An explicit -channel applies to this run only; without one the stored
	// preference wins, and the config file seeds it on first use.
	channel, persist := "", false
	switch {
	case *channelFlag != "":
		if channel, err = updater.ParseChannel(*channelFlag); err != nil {
			fmt.Fprintln(a.stderr, err)
			return 2
		}
	case !store.Exists():
		if channel, err = updater.ParseChannel(cfg.Update.Channel); err != nil {
			fmt.Fprintf(a.stderr, "update.channel: %v\n", err)
			return 2
		}
		persist = true
	}

	logger, closeLogger, err := a.newLogger(cfg, false)
	if err != nil {
		fmt.Fprintf(a.stderr, "init logger: %v\n", err)
		return 1
	}
	defer closeLogger()

	client := &updater.Client{
		Store:          store,
		BaseURL:        cfg.Update.BaseURL,
		CurrentVersion: version,
		Out:            a.stdout,
		Logger:         logger,
	}
	ctx, stop := signalContext()
	defer stop()

	switch {
	case *check:
		st, err := client.Check(ctx, channel)
		if err != nil {
			fmt.Fprintf(a.stderr, "check failed: %v\n", err)
			return 1
		}
		if !st.Available {
			fmt.Fprintf(a.stdout, "wraithctl %s is up to date on the %s channel\n", st.Current, st.Channel)
			return 0
		}
		kind := "full download"
		if st.Delta {
			kind = "delta patch"
		}
		fmt.Fprintf(a.stdout, "wraithctl %s is available on the %s channel (current %s, %s)\n", st.Latest, st.Channel, st.Current, kind)
		if st.NotesURL != "" {
			fmt.Fprintf(a.stdout, "release notes: %s\n", st.NotesURL)
		}
		return 0
	case *rollback:
		if err := client.Rollback(ctx, updater.RollbackOptions{ForceStable: true}); err != nil {
			fmt.Fprintf(a.stderr, "rollback failed: %v\n", err)
			return 1
		}
		return 0
	}

	if err := client.Update(ctx, updater.UpdateOptions{Channel: channel, PersistChannel: persist}); err != nil {
		fmt.Fprintf(a.stderr, "update failed: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) runSelfUpdateChannel(args []string) int {
	flags := a.flagSet("self-update channel")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	store, err := updater.OpenStore("")
	if err != nil {
		fmt.Fprintf(a.stderr, "open updater state: %v\n", err)
		return 1
	}
	switch flags.NArg() {
	case 0:
		state, err := store.Load()
		if err != nil {
			fmt.Fprintf(a.stderr, "load updater state: %v\n", err)
			return 1
		}
		fmt.Fprintln(a.stdout, state.Channel)
		return 0
	case 1:
		channel, err := updater.ParseChannel(flags.Arg(0))
		if err != nil {
			fmt.Fprintln(a.stderr, err)
			return 2
		}
		err = store.Update(func(st *updater.State) error {
			st.Channel = channel
			return nil
		})
		if err != nil {
			fmt.Fprintf(a.stderr, "persist updater state: %v\n", err)
			return 1
		}
		fmt.Fprintf(a.stdout, "default channel set to %s\n", channel)
		return 0
	default:
		fmt.Fprintln(a.stderr, "self-update channel accepts at most one argument")
		return 2
	}
}
