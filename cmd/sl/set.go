package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/studlancer/studlancer/internal/queue"
	"github.com/studlancer/studlancer/internal/schema"
	"github.com/studlancer/studlancer/internal/ui"
)

var setCmd = &cobra.Command{
	Use:   "set <id> <attribute> <value>",
	Short: "Update one attribute of a draft",
	Long: `Records an attribute edit and syncs it to the server.

Attributes: title, topic, subtopic, reward, slots, deadline, content.
Deadlines accept natural language ("next friday", "in 3 days") as well
as RFC 3339 timestamps. Published documents reject edits; the local
copy is rolled back when that happens.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		id, attr, raw := args[0], schema.Attribute(args[1]), args[2]

		if !attr.Valid() || attr == schema.AttrLastUpdated {
			fmt.Fprintf(os.Stderr, "Error: unknown attribute %q\n", args[1])
			os.Exit(1)
		}

		value, err := parseAttributeValue(attr, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := cmd.Context()
		session, cleanup, err := openSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		// Make sure the document is known locally before editing it.
		if _, err := session.Load(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		session.Edit(id, attr, value)

		// One-shot command: sync now instead of waiting out the
		// quiescence window.
		if err := session.Flush(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: update rejected: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s.%s\n", ui.RenderSuccess("Updated"), id, attr)
	},
}

// parseAttributeValue converts a CLI argument into the typed value the
// transaction queue carries for the given attribute.
func parseAttributeValue(attr schema.Attribute, raw string) (queue.Value, error) {
	switch attr {
	case schema.AttrReward, schema.AttrSlots:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return queue.Value{}, fmt.Errorf("%s must be an integer: %w", attr, err)
		}
		return queue.Int(n), nil
	case schema.AttrDeadline:
		t, err := parseDeadline(raw, time.Now())
		if err != nil {
			return queue.Value{}, err
		}
		return queue.String(t.Format(time.RFC3339Nano)), nil
	default:
		return queue.String(raw), nil
	}
}

// parseDeadline accepts RFC 3339 first, then falls back to natural
// language relative to now.
func parseDeadline(raw string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(raw, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse deadline %q: %w", raw, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not understand deadline %q", raw)
	}
	return result.Time, nil
}
