// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/quickly-buzz/identity"
	"github.com/danielhkuo/quickly-buzz/participant"
	"github.com/danielhkuo/quickly-buzz/round"
)

// syncTimeout bounds how long buzz waits for the first round snapshot.
const syncTimeout = 10 * time.Second

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newJoinCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "join [name]",
		Short: "Register a name and bind this client to it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			} else {
				if !stdinIsTerminal() {
					return errors.New("name required")
				}
				fmt.Fprint(cmd.OutOrStdout(), "Name: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				name = line
			}

			s, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.client.Start(cmd.Context()); err != nil {
				return err
			}
			b, err := s.client.Bind(cmd.Context(), name)
			if errors.Is(err, identity.ErrAlreadyBound) {
				return fmt.Errorf("already joined as %q", b.Name)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined as %s (key %s)\n", b.Name, b.Key)
			return nil
		},
	}
}

// follow runs the client in the background and waits for a fresh view.
func follow(ctx context.Context, g *errgroup.Group, c *participant.Client) error {
	g.Go(func() error {
		err := c.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	timer := time.NewTimer(syncTimeout)
	defer timer.Stop()
	for c.View().Stale {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errors.New("timed out waiting for the round")
		case <-c.Changes():
		}
	}
	return nil
}

func newBuzzCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "buzz",
		Short: "Claim the current round",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			g, gctx := errgroup.WithContext(ctx)
			defer func() {
				cancel()
				g.Wait()
			}()

			if err := follow(gctx, g, s.client); err != nil {
				return err
			}
			outcome, err := s.client.Buzz(gctx)
			printOutcome(cmd.OutOrStdout(), outcome, err)
			if errors.Is(err, round.ErrScoring) {
				return nil
			}
			return err
		},
	}
}

func printOutcome(out io.Writer, outcome round.Outcome, err error) {
	switch {
	case errors.Is(err, round.ErrScoring):
		fmt.Fprintf(out, "%s (score not updated: %v)\n", outcome, err)
	case err != nil:
	default:
		fmt.Fprintln(out, outcome)
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the round; press Enter to buzz",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				err := s.client.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})

			if stdinIsTerminal() {
				presses := make(chan struct{})
				// Not part of the group: a blocked stdin read must not hold up exit.
				go func() {
					sc := bufio.NewScanner(cmd.InOrStdin())
					for sc.Scan() {
						select {
						case presses <- struct{}{}:
						case <-ctx.Done():
							return
						}
					}
				}()
				g.Go(func() error {
					for {
						select {
						case <-ctx.Done():
							return nil
						case <-presses:
							outcome, err := s.client.Buzz(ctx)
							printOutcome(out, outcome, err)
							if err != nil && !errors.Is(err, round.ErrScoring) {
								fmt.Fprintln(out, "buzz failed:", err)
							}
						}
					}
				})
			}

			g.Go(func() error {
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-s.client.Changes():
						fmt.Fprintln(out, describe(s.client.View()))
					}
				}
			})
			return g.Wait()
		},
	}
}

func describe(v participant.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", v.State.Phase())
	if v.Stale {
		b.WriteString(" (offline)")
	}
	if v.State.Winner != nil {
		fmt.Fprintf(&b, " winner=%s", v.State.Winner.ParticipantID)
	}
	if v.State.RunnerUp != nil {
		fmt.Fprintf(&b, " runner-up=%s", v.State.RunnerUp.ParticipantID)
	}
	switch {
	case v.Revoked:
		b.WriteString(" | removed by moderator, run join again")
	case v.Bound:
		fmt.Fprintf(&b, " | %s: %d", v.Binding.Name, v.Score)
		if v.CanBuzz() {
			b.WriteString(" | press Enter to buzz")
		}
	default:
		b.WriteString(" | not joined")
	}
	return b.String()
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the bound name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.client.Start(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			v := s.client.View()
			if !v.Bound {
				fmt.Fprintf(out, "Not joined (client %s)\n", s.client.ClientID())
				return nil
			}
			fmt.Fprintf(out, "%s (key %s), joined %s\nclient %s\n",
				v.Binding.Name, v.Binding.Key, humanize.Time(v.Binding.BoundAt), v.Binding.ClientID)
			return nil
		},
	}
}
