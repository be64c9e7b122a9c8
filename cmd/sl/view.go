package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studlancer/studlancer/internal/remote"
)

var viewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Record a view of a published document",
	Long: `Marks a published document as seen by the current user.

When a quest creator views a published solution to their quest, the
solution's publish becomes permanent: the solver can no longer
unpublish it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := workspaceConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		client := remote.New(ws.ServerURL, remote.StaticToken(ws.Owner))
		if err := client.RecordView(cmd.Context(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Viewed %s\n", args[0])
	},
}
