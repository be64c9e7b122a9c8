package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studlancer/studlancer/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List workspace documents",
	Run: func(cmd *cobra.Command, args []string) {
		showTrash, _ := cmd.Flags().GetBool("trash")

		ctx := cmd.Context()
		session, cleanup, err := openSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		entries, err := session.Workspace(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		shown := 0
		for _, e := range entries {
			if e.InTrash != showTrash {
				continue
			}
			if shown == 0 {
				fmt.Println(ui.RenderHeader(fmt.Sprintf("%-36s  %-8s  %s", "ID", "KIND", "TITLE")))
			}
			title := e.Title
			if title == "" {
				title = ui.RenderMuted("(untitled)")
			}
			fmt.Printf("%s  %-8s  %s  %s\n",
				e.ID, e.Kind, title,
				ui.RenderMuted(e.LastUpdated.Format("2006-01-02 15:04")))
			shown++
		}

		if shown == 0 {
			if showTrash {
				fmt.Println(ui.RenderMuted("Trash is empty."))
			} else {
				fmt.Println(ui.RenderMuted("No documents. Create one with 'sl new quest'."))
			}
		}
	},
}

func init() {
	listCmd.Flags().Bool("trash", false, "list trashed drafts instead")
}
