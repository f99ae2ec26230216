// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/presence"
	"github.com/LeeDigitalWorks/zapstats/pkg/session"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "Print the number of currently active visitors",
	Run: func(cmd *cobra.Command, args []string) {
		client := openStore(cmd)
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		fmt.Println(presence.New(client).ActiveCount(ctx))
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session <session-id>",
	Short: "Show a session record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := openStore(cmd)
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		sid := args[0]
		res := session.New(client).Get(ctx, sid)
		if !res.OK() {
			fmt.Fprintf(os.Stderr, "session %s: %s\n", sid, res.Status)
			os.Exit(1)
		}
		printSession(os.Stdout, sid, res.Record)
	},
}

func init() {
	rootCmd.AddCommand(presenceCmd)
	rootCmd.AddCommand(sessionCmd)
}

func printSession(out io.Writer, sid string, rec *session.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Session:\t%s\n", sid)
	if _, err := uuid.Parse(sid); err != nil {
		fmt.Fprintf(w, "\t(not a UUID; client-generated id)\n")
	}
	fmt.Fprintf(w, "Started:\t%s (%s)\n", humanize.Time(rec.Started()), rec.Started().UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Last seen:\t%s (%s)\n", humanize.Time(rec.LastSeenAt()), rec.LastSeenAt().UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:\t%s\n", rec.Duration().Round(time.Second))
	fmt.Fprintf(w, "Pages:\t%s\n", humanize.Comma(rec.PageCount))
	if rec.InitialReferrer != "" {
		fmt.Fprintf(w, "Referrer:\t%s\n", rec.InitialReferrer)
	}
	utm := rec.UTMParams
	for _, p := range [][2]string{
		{"utm_source", utm.Source},
		{"utm_medium", utm.Medium},
		{"utm_campaign", utm.Campaign},
		{"utm_term", utm.Term},
		{"utm_content", utm.Content},
	} {
		if p[1] != "" {
			fmt.Fprintf(w, "%s:\t%s\n", p[0], p[1])
		}
	}
}
