// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
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
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianVoyage/services/voyager"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

var (
	configPath string
	serverURL  string
	threadID   string

	rootCmd = &cobra.Command{
		Use:   "voyager",
		Short: "A CLI to run and talk to the Aleutian Voyage travel agent",
		Long: `Voyager runs the travel agent turn service and provides a
				terminal client for chatting with it and inspecting why it
				answered the way it did.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Starts the voyager turn service",
		Run:   runServeCommand,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session against a running service",
		Run:   runChatCommand,
	}

	whyCmd = &cobra.Command{
		Use:   "why [thread-id]",
		Short: "Prints the receipt for the last turn of a thread",
		Long:  `Fetches the sources, decisions, budgets and self-check verdict recorded for the most recent turn of the given thread.`,
		Args:  cobra.ExactArgs(1),
		Run:   runWhyCommand,
	}

	threadsCmd = &cobra.Command{
		Use:   "threads",
		Short: "Lists active conversation threads",
		Run:   runThreadsCommand,
	}
)

func init() {
	chatCmd.Flags().StringVar(&threadID, "resume", "", "resume an existing thread")
	for _, c := range []*cobra.Command{chatCmd, whyCmd, threadsCmd} {
		c.Flags().StringVar(&serverURL, "server", "", "voyager service base URL")
	}
	rootCmd.AddCommand(serveCmd, chatCmd, whyCmd, threadsCmd)
}

// baseURL resolves the service address, preferring the flag over the
// environment over the configured port.
func baseURL() string {
	if serverURL != "" {
		return strings.TrimRight(serverURL, "/")
	}
	if env := os.Getenv("VOYAGE_SERVER_URL"); env != "" {
		return strings.TrimRight(env, "/")
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Port)
}

func runServeCommand(cmd *cobra.Command, args []string) {
	svc, err := voyager.New(cfg)
	if err != nil {
		log.Fatalf("Error starting voyager: %v", err)
	}
	defer svc.Shutdown(context.Background())

	if err := svc.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func runChatCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Println("Voyager travel agent. Type 'exit' to quit, 'why' for the last receipt.")
	if threadID != "" {
		fmt.Printf("Resuming thread %s\n", threadID)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return
		case line == "why":
			if threadID == "" {
				fmt.Println("No turns yet in this session.")
				continue
			}
			receipt, err := fetchReceipt(ctx, threadID)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printReceipt(receipt)
			continue
		}

		resp, err := sendTurn(ctx, line, threadID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Printf("Error: %v\n", err)
			continue
		}
		threadID = resp.ThreadID

		fmt.Printf("\nVoyager: %s\n", resp.Reply)
		if len(resp.Citations) > 0 {
			fmt.Printf("(sources: %s)\n", strings.Join(resp.Citations, ", "))
		}
	}
}

func runWhyCommand(cmd *cobra.Command, args []string) {
	receipt, err := fetchReceipt(context.Background(), args[0])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	printReceipt(receipt)
}

func runThreadsCommand(cmd *cobra.Command, args []string) {
	body, err := getJSON(context.Background(), baseURL()+"/v1/threads")
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	var payload struct {
		Threads []string `json:"threads"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}

	if len(payload.Threads) == 0 {
		fmt.Println("No active threads.")
		return
	}
	for _, id := range payload.Threads {
		fmt.Println(id)
	}
}

func sendTurn(ctx context.Context, message, thread string) (*datatypes.TurnResponse, error) {
	reqBody, err := json.Marshal(datatypes.TurnRequest{Message: message, ThreadID: thread})
	if err != nil {
		return nil, err
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, 90*time.Second)
	defer cancelTimeout()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL()+"/v1/turn", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	var resp datatypes.TurnResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding turn response: %w", err)
	}
	return &resp, nil
}

func fetchReceipt(ctx context.Context, thread string) (*datatypes.Receipt, error) {
	body, err := getJSON(ctx, fmt.Sprintf("%s/v1/threads/%s/receipts", baseURL(), thread))
	if err != nil {
		return nil, err
	}
	var receipt datatypes.Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, fmt.Errorf("decoding receipt: %w", err)
	}
	return &receipt, nil
}

func getJSON(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func printReceipt(r *datatypes.Receipt) {
	fmt.Printf("Verdict: %s (created %s)\n", r.Verdict, r.CreatedAt.Format(time.RFC3339))

	if len(r.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, s := range r.Sources {
			fmt.Printf("%d. %s\n", i+1, s)
		}
	} else {
		fmt.Println("\n(No external sources were consulted)")
	}

	if len(r.Decisions) > 0 {
		fmt.Println("\nDecisions:")
		for _, d := range r.Decisions {
			line := d.Action
			if d.Rationale != "" {
				line += ": " + d.Rationale
			}
			if d.Confidence > 0 {
				line += fmt.Sprintf(" (confidence %.2f)", d.Confidence)
			}
			fmt.Printf("- %s\n", line)
		}
	}

	fmt.Printf("\nBudgets: %d ms external API time, ~%d tokens\n",
		r.Budgets.ExtAPILatencyMS, r.Budgets.TokenEstimate)
}
