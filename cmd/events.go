package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Shivanand-hulikatti/event-roster/internal/config"
	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/Shivanand-hulikatti/event-roster/internal/repository"
	"github.com/spf13/cobra"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	var (
		location  string
		available bool
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events from the data directory",
		Long: `List events straight from the events file without starting the server.

Examples:
  # List every event
  event-roster events

  # Only events in a location that still have seats
  event-roster events --location "hall a" --available

  # Show the full description of each event
  event-roster events --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if opts.logLevel == "" {
				cfg.Logging.Level = "warn"
			}
			logger := config.NewLoggerTo(cfg.Logging, cmd.ErrOrStderr())

			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			ctx := cmd.Context()
			var events []*model.Event
			switch {
			case location != "":
				events = a.events.Search(ctx, location)
			case available:
				events = a.events.ListAvailable(ctx)
			default:
				events = a.events.List(ctx)
			}
			if location != "" && available {
				events = filterAvailable(events)
			}

			if verbose {
				return printDetails(cmd.OutOrStdout(), events)
			}
			return printTable(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "only events whose location contains this text")
	cmd.Flags().BoolVar(&available, "available", false, "only events that are not cancelled and not full")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show the full description of each event")
	return cmd
}

func filterAvailable(events []*model.Event) []*model.Event {
	var out []*model.Event
	for _, e := range events {
		if !e.Cancelled && !e.IsFull() {
			out = append(out, e)
		}
	}
	return out
}

func printTable(out io.Writer, events []*model.Event) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(out, "No events found.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tDATE\tLOCATION\tENROLLED\tSTATUS")
	for _, e := range events {
		status := "open"
		switch {
		case e.Cancelled:
			status = "cancelled"
		case e.IsFull():
			status = "full"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			e.ID, e.Kind, e.Name, e.Date.Format(repository.DateLayout), e.Location,
			len(e.Participants), e.Capacity, status)
	}
	return tw.Flush()
}

func printDetails(out io.Writer, events []*model.Event) error {
	for i, e := range events {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if _, err := fmt.Fprintln(out, e.Details()); err != nil {
			return err
		}
	}
	return nil
}
