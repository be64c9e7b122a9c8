package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studlancer/studlancer/internal/ui"
)

var trashCmd = &cobra.Command{
	Use:   "trash <id>",
	Short: "Move a draft to the trash",
	Long: `Soft-deletes a draft. Trashed drafts can be restored.

A draft with no content skips the trash and is deleted permanently.
Published documents cannot be trashed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		session, cleanup, err := openSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := session.Trash(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s\n", ui.RenderWarn("Trashed"), args[0])
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a draft from the trash",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		session, cleanup, err := openSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := session.Restore(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s\n", ui.RenderSuccess("Restored"), args[0])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Permanently delete a document",
	Long: `Removes a document for good. There is no undo.

Only unpublished documents that are in the trash (or empty) can be
deleted permanently.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Fprintln(os.Stderr, "Error: permanent deletion requires --force")
			os.Exit(1)
		}

		ctx := cmd.Context()
		session, cleanup, err := openSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := session.DeletePermanently(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s\n", ui.RenderError("Deleted"), args[0])
	},
}

func init() {
	deleteCmd.Flags().Bool("force", false, "confirm permanent deletion")
}
