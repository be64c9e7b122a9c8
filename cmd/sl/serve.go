package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/studlancer/studlancer/internal/db"
	"github.com/studlancer/studlancer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Studlancer API server",
	Long: `Starts the HTTP API and WebSocket server over a SQLite database.

Reads optional settings from a .env file in the working directory
(SL_PORT, SL_DB, SL_LOG_FILE). Flags take precedence over the
environment.`,
	Run: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; only report real load failures.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
		}

		port, _ := cmd.Flags().GetInt("port")
		dbPath, _ := cmd.Flags().GetString("db")
		logFile, _ := cmd.Flags().GetString("log-file")

		if !cmd.Flags().Changed("port") {
			if p := viper.GetInt("port"); p != 0 {
				port = p
			}
		}
		if !cmd.Flags().Changed("db") {
			if p := viper.GetString("db"); p != "" {
				dbPath = p
			}
		}
		if !cmd.Flags().Changed("log-file") {
			if p := viper.GetString("log_file"); p != "" {
				logFile = p
			}
		}

		var logOut io.Writer = os.Stderr
		if logFile != "" {
			if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to create log directory: %v\n", err)
				os.Exit(1)
			}
			logOut = &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			}
		}
		logger := log.New(logOut, "[server] ", log.LstdFlags)

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

		cfg := server.DefaultConfig()
		cfg.Port = port
		cfg.Logger = logger

		srv := server.New(database, cfg)
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start server: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Listening on %s (db: %s)\n", srv.Addr(), dbPath)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		fmt.Println("Shutting down...")
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "port to listen on")
	serveCmd.Flags().String("db", "studlancer.db", "path to the SQLite database")
	serveCmd.Flags().String("log-file", "", "write server logs to a rotating file")
}
