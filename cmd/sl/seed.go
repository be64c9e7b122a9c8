package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studlancer/studlancer/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load users and documents from a YAML seed file",
	Long: `Populates the server database from a YAML file. Useful for demos
and local development. Existing documents with the same id are skipped.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dbPath, _ := cmd.Flags().GetString("db")

		database, err := db.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()

		if err := database.InitSchema(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize schema: %v\n", err)
			os.Exit(1)
		}

		result, err := database.Seed(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: seed failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Seeded %d users and %d documents\n",
			result.UsersLoaded, result.DocumentsLoaded)
	},
}

func init() {
	seedCmd.Flags().String("db", "studlancer.db", "path to the SQLite database")
}
