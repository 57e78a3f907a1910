// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

var (
	feedbackSessionID string
	feedbackMessageID string
	feedbackRating    int
	feedbackCodes     []string
	feedbackNotes     string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Submit feedback on a recommendation turn",
	Run:   runFeedbackCommand,
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackSessionID, "session", "", "session id (required)")
	feedbackCmd.Flags().StringVar(&feedbackMessageID, "message", "", "message id (required)")
	feedbackCmd.Flags().IntVar(&feedbackRating, "rating", 0, "rating 1-5 (0 omits)")
	feedbackCmd.Flags().StringSliceVar(&feedbackCodes, "codes", nil, "selected style codes")
	feedbackCmd.Flags().StringVar(&feedbackNotes, "notes", "", "free-text note")
	_ = feedbackCmd.MarkFlagRequired("session")
	_ = feedbackCmd.MarkFlagRequired("message")
}

func runFeedbackCommand(cmd *cobra.Command, args []string) {
	req := datatypes.FeedbackRequest{
		SessionID:          feedbackSessionID,
		MessageID:          feedbackMessageID,
		SelectedStyleCodes: feedbackCodes,
		Notes:              feedbackNotes,
	}
	if feedbackRating != 0 {
		req.Rating = &feedbackRating
	}

	body, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(agentBaseURL()+"/v1/feedback",
		"application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		fmt.Fprintf(os.Stderr, "Error: agent returned %d: %s\n", resp.StatusCode, payload)
		os.Exit(1)
	}
	fmt.Println("Feedback recorded.")
}
