package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studlancer/studlancer/internal/ui"
)

var publishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Publish a draft",
	Long: `Publishes a draft, making it live and freezing its attributes.

Pending edits are flushed first so the published snapshot matches what
you see locally. Unpublishing stays possible only until a privileged
viewer sees the document.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		session, cleanup, err := openSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		pub, err := session.Publish(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s %q (status: %s)\n",
			ui.RenderSuccess("Published"), pub.Kind, pub.Title, pub.Status)
	},
}

var unpublishCmd = &cobra.Command{
	Use:   "unpublish <id>",
	Short: "Take a published document back to draft",
	Long: `Reverts a published document to an editable draft.

Fails once a privileged viewer has seen the published document; after
that the publish is permanent.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		session, cleanup, err := openSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := session.Unpublish(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s\n", ui.RenderSuccess("Unpublished"), args[0])
	},
}
