// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command styleseek is the terminal client for the agent service. It
// opens the chat SSE stream, renders token deltas as they arrive, and
// prints the recommendation summary from the final event.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "styleseek",
	Short: "Terminal client for the StyleSeek recommendation agent",
}

// agentBaseURL resolves the agent address, CLI flag first.
func agentBaseURL() string {
	if serverURL != "" {
		return serverURL
	}
	if env := os.Getenv("STYLESEEK_AGENT_URL"); env != "" {
		return env
	}
	return "http://localhost:8000"
}

var serverURL string

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"agent base URL (default $STYLESEEK_AGENT_URL or http://localhost:8000)")
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
