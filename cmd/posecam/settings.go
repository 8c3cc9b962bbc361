package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ayusman/posecam/internal/config"
	"github.com/ayusman/posecam/internal/store"
)

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "manage stored defaults for run options",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "print every setting and its stored or default value",
				Action: withStore(settingsList),
			},
			{
				Name:      "get",
				Usage:     "print one setting",
				ArgsUsage: "KEY",
				Action:    withStore(settingsGet),
			},
			{
				Name:      "set",
				Usage:     "store a setting",
				ArgsUsage: "KEY VALUE",
				Action:    withStore(settingsSet),
			},
			{
				Name:      "unset",
				Usage:     "remove a stored setting",
				ArgsUsage: "KEY",
				Action:    withStore(settingsUnset),
			},
		},
	}
}

func withStore(fn func(c *cli.Context, st *store.Store) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		dataDir, err := dataDirectory(c)
		if err != nil {
			return err
		}
		st, err := openStore(dataDir)
		if err != nil {
			return err
		}
		defer st.Close()
		return fn(c, st)
	}
}

func settingsList(c *cli.Context, st *store.Store) error {
	stored, err := st.Settings().All()
	if err != nil {
		return err
	}
	defaults := config.Default()
	for _, key := range config.Keys() {
		if v, ok := stored[key]; ok {
			fmt.Fprintf(c.App.Writer, "%s=%s (stored)\n", key, v)
			continue
		}
		v, _ := defaults.Get(key)
		fmt.Fprintf(c.App.Writer, "%s=%s\n", key, v)
	}
	return nil
}

func settingKey(c *cli.Context, args int) (string, error) {
	if c.NArg() != args {
		return "", fmt.Errorf("usage: %s %s", c.Command.FullName(), c.Command.ArgsUsage)
	}
	key := c.Args().First()
	if !config.Known(key) {
		return "", fmt.Errorf("%w: %q", config.ErrUnknownKey, key)
	}
	return key, nil
}

func settingsGet(c *cli.Context, st *store.Store) error {
	key, err := settingKey(c, 1)
	if err != nil {
		return err
	}
	v, err := st.Settings().Get(key)
	if errors.Is(err, store.ErrNotFound) {
		defaults := config.Default()
		v, err = defaults.Get(key)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, v)
	return nil
}

func settingsSet(c *cli.Context, st *store.Store) error {
	key, err := settingKey(c, 2)
	if err != nil {
		return err
	}
	value := c.Args().Get(1)

	cfg := config.Default()
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return st.Settings().Set(key, value)
}

func settingsUnset(c *cli.Context, st *store.Store) error {
	key, err := settingKey(c, 1)
	if err != nil {
		return err
	}
	if err := st.Settings().Delete(key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%s is not stored", key)
		}
		return err
	}
	return nil
}
