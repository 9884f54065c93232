package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgate/internal/events"
	"github.com/alfredjeanlab/taskgate/internal/model"
)

var watchCmd = &cobra.Command{
	Use:     "watch <task-id>",
	Short:   "Follow a task's events as they happen",
	GroupID: "audit",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]
		interval, _ := cmd.Flags().GetDuration("interval")
		once, _ := cmd.Flags().GetBool("once")
		natsURL, _ := cmd.Flags().GetString("nats")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		w := cmd.OutOrStdout()
		var lastID int64

		if err := queryAndPrint(ctx, w, taskID, &lastID); err != nil {
			return err
		}
		if once {
			return nil
		}

		if natsURL != "" {
			return watchNATS(ctx, w, natsURL, taskID, &lastID)
		}
		return watchPoll(ctx, w, interval, taskID, &lastID)
	},
}

// watchNATS re-queries on every bus message, debounced, and immediately
// after a reconnect to pick up anything missed while disconnected.
func watchNATS(ctx context.Context, w io.Writer, natsURL, taskID string, lastID *int64) error {
	reconnectCh := make(chan struct{}, 1)

	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.AllTopics)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	debounce := time.NewTimer(0)
	debounce.Stop()
	select {
	case <-debounce.C:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			debounce.Reset(200 * time.Millisecond)
		case <-reconnectCh:
			debounce.Reset(0)
		case <-debounce.C:
			if err := queryAndPrint(ctx, w, taskID, lastID); err != nil {
				return err
			}
		}
	}
}

func watchPoll(ctx context.Context, w io.Writer, interval time.Duration, taskID string, lastID *int64) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		if err := queryAndPrint(ctx, w, taskID, lastID); err != nil {
			return err
		}
	}
}

// queryAndPrint fetches the task's events and prints those after lastID.
func queryAndPrint(ctx context.Context, w io.Writer, taskID string, lastID *int64) error {
	all, err := apiClient.GetEvents(ctx, taskID)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("getting events for %s: %w", taskID, err)
	}
	for _, e := range newEvents(all, lastID) {
		if jsonOutput {
			if err := printJSON(w, e); err != nil {
				return err
			}
			continue
		}
		printEvent(w, e)
	}
	return nil
}

// newEvents returns the events with an ID above *lastID and advances it.
func newEvents(all []*model.Event, lastID *int64) []*model.Event {
	var out []*model.Event
	for _, e := range all {
		if e.ID > *lastID {
			out = append(out, e)
		}
	}
	for _, e := range out {
		*lastID = max(*lastID, e.ID)
	}
	return out
}

func init() {
	watchCmd.Flags().Duration("interval", 5*time.Second, "polling interval when NATS is not configured")
	watchCmd.Flags().Bool("once", false, "print current events and exit")
	watchCmd.Flags().String("nats", defaultNATSURL(), "NATS URL for push updates (empty = poll)")
}

func defaultNATSURL() string {
	if s := os.Getenv("TASKGATE_NATS_URL"); s != "" {
		return s
	}
	return activeRemote().NATSURL
}
