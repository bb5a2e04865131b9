// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/quickly-buzz/cliparse"
	"github.com/danielhkuo/quickly-buzz/db"
	"github.com/danielhkuo/quickly-buzz/identity"
	"github.com/danielhkuo/quickly-buzz/participant"
	"github.com/danielhkuo/quickly-buzz/store"
)

type options struct {
	store    cliparse.StoreConfig
	identity string
	verbose  bool
}

// session is one open store plus the client following it.
type session struct {
	st     store.Store
	client *participant.Client
}

func (s *session) Close() error {
	return s.st.Close()
}

func (o *options) logger(out io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func (o *options) open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	if err := o.store.Validate(); err != nil {
		return nil, err
	}
	path := o.identity
	if path == "" {
		p, err := identity.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	log := o.logger(cmd.ErrOrStderr())

	st, err := db.OpenStore(ctx, o.store.StoreType, o.store.StoreURL, log)
	if err != nil {
		return nil, err
	}
	return &session{
		st:     st,
		client: participant.New(st, o.store.Namespace, o.store.Round(), identity.NewFileStore(path), log),
	}, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "buzz",
		Short:         "Quiz buzzer participant client",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Environment fills in whatever flags were not given.
			cfg, err := cliparse.LoadStoreConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("store") {
				opts.store.StoreType = cfg.StoreType
			}
			if !flags.Changed("url") {
				opts.store.StoreURL = cfg.StoreURL
			}
			if !flags.Changed("namespace") {
				opts.store.Namespace = cfg.Namespace
			}
			opts.store.SecondSlot = cfg.SecondSlot
			opts.store.WinnerBonus = cfg.WinnerBonus
			opts.store.RunnerUpBonus = cfg.RunnerUpBonus
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.store.StoreType, "store", "t", db.SQLite, "store type")
	pf.StringVarP(&opts.store.StoreURL, "url", "d", "", "store URL or SQLite file")
	pf.StringVar(&opts.store.Namespace, "namespace", "quizBuzzer", "round namespace")
	pf.StringVar(&opts.identity, "identity", "", "identity file (default: user config dir)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log store activity")

	root.AddCommand(
		newJoinCmd(opts),
		newBuzzCmd(opts),
		newWatchCmd(opts),
		newWhoamiCmd(opts),
	)
	return root
}
