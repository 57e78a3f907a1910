// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask for a recommendation, streaming the answer live",
	Long: `Opens the chat stream against the agent service. With a question
argument it runs one turn and exits; without one it starts an
interactive loop sharing a single session.`,
	Run: runChatCommand,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "",
		"session id to resume (default: new session)")
}

func runChatCommand(cmd *cobra.Command, args []string) {
	sessionID := chatSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 {
		if err := streamOneTurn(ctx, sessionID, strings.Join(args, " ")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Session %s. Type a question, or 'exit' to quit.\n", sessionID)
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		if err := streamOneTurn(ctx, sessionID, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// streamOneTurn posts one user turn and renders the SSE stream until the
// done event.
func streamOneTurn(ctx context.Context, sessionID, query string) error {
	body, err := json.Marshal(datatypes.ChatStreamRequest{
		SessionID: sessionID,
		UserQuery: query,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		agentBaseURL()+"/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := json.Marshal(resp.Status)
		return fmt.Errorf("agent returned %s", payload)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if done := renderEvent(event, strings.TrimPrefix(line, "data: ")); done {
				return scanner.Err()
			}
		}
	}
	return scanner.Err()
}

// renderEvent prints one event's visible output. Returns true on the
// terminating done event.
func renderEvent(event, data string) bool {
	switch event {
	case datatypes.EventToken:
		var tok datatypes.TokenEvent
		if json.Unmarshal([]byte(data), &tok) == nil {
			fmt.Print(tok.Delta)
		}
	case datatypes.EventError:
		var errEv datatypes.ErrorEvent
		if json.Unmarshal([]byte(data), &errEv) == nil {
			fmt.Fprintf(os.Stderr, "\n[%s] %s\n", errEv.ErrorType, errEv.Error)
		}
	case datatypes.EventFinal:
		var final datatypes.FinalEvent
		if json.Unmarshal([]byte(data), &final) == nil {
			printFinalSummary(&final)
		}
	case datatypes.EventDone:
		fmt.Println()
		return true
	}
	return false
}

func printFinalSummary(final *datatypes.FinalEvent) {
	fmt.Printf("\n\n--- %d recommendations in %dms ---\n",
		len(final.RecommendedStyleCodes), final.ElapsedMs)
	if final.GroupedRecommendedProducts == nil {
		return
	}
	for _, category := range final.GroupedRecommendedProducts.Categories() {
		fmt.Printf("[%s]\n", category)
		for _, p := range final.GroupedRecommendedProducts.Get(category) {
			fmt.Printf("  %s\n", datatypes.ProductCode(p))
		}
	}
}
