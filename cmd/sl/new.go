package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/studlancer/studlancer/internal/schema"
	"github.com/studlancer/studlancer/internal/ui"
)

var newCmd = &cobra.Command{
	Use:   "new [quest|solution]",
	Short: "Create a new draft document",
	Long: `Creates a draft on the server and records it in the local workspace.

With a terminal attached and no flags, prompts interactively for the
document fields. Solutions require --quest to name the quest they answer.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kind := args[0]
		if kind != "quest" && kind != "solution" {
			fmt.Fprintf(os.Stderr, "Error: kind must be quest or solution, got %q\n", kind)
			os.Exit(1)
		}

		ctx := cmd.Context()
		session, cleanup, err := openSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		ws, err := workspaceConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		doc := &schema.Document{
			ID:        uuid.NewString(),
			Kind:      schema.Kind(kind),
			CreatorID: ws.Owner,
		}
		doc.Title, _ = cmd.Flags().GetString("title")
		doc.Topic, _ = cmd.Flags().GetString("topic")
		doc.QuestID, _ = cmd.Flags().GetString("quest")

		interactive := doc.Title == "" && term.IsTerminal(int(os.Stdin.Fd()))
		if interactive {
			if err := promptDocument(doc); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		if kind == "solution" && doc.QuestID == "" {
			fmt.Fprintln(os.Stderr, "Error: solutions require --quest")
			os.Exit(1)
		}

		if err := session.Create(ctx, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create document: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s %s\n", ui.RenderSuccess("Created"), kind, doc.ID)
	},
}

// promptDocument fills the remaining document fields via an interactive form.
func promptDocument(doc *schema.Document) error {
	fields := []huh.Field{
		huh.NewInput().Title("Title").Value(&doc.Title),
		huh.NewInput().Title("Topic").Value(&doc.Topic),
		huh.NewInput().Title("Subtopic").Value(&doc.Subtopic),
	}

	var reward, slots, deadline string
	if doc.Kind == "quest" {
		fields = append(fields,
			huh.NewInput().Title("Reward (points)").Value(&reward).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := strconv.Atoi(s)
					return err
				}),
			huh.NewInput().Title("Slots").Value(&slots).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := strconv.Atoi(s)
					return err
				}),
			huh.NewInput().Title("Deadline (RFC3339, optional)").Value(&deadline),
		)
	} else if doc.QuestID == "" {
		fields = append(fields, huh.NewInput().Title("Quest id").Value(&doc.QuestID))
	}

	form := huh.NewForm(huh.NewGroup(fields...))
	if err := form.Run(); err != nil {
		return fmt.Errorf("form canceled: %w", err)
	}

	if reward != "" {
		doc.Reward, _ = strconv.Atoi(reward)
	}
	if slots != "" {
		doc.Slots, _ = strconv.Atoi(slots)
	}
	if deadline != "" {
		t, err := time.Parse(time.RFC3339, deadline)
		if err != nil {
			return fmt.Errorf("invalid deadline: %w", err)
		}
		doc.Deadline = &t
	}
	return nil
}

func init() {
	newCmd.Flags().String("title", "", "document title (skips the interactive form)")
	newCmd.Flags().String("topic", "", "document topic")
	newCmd.Flags().String("quest", "", "quest id (solutions only)")
}
