package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/docuchat/backend-go/app/bootstrap"
	"github.com/docuchat/backend-go/internal/logger"
	"github.com/docuchat/backend-go/internal/services"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	sessionID := os.Getenv("CHAT_SESSION_ID")
	if sessionID == "" {
		sessionID = "default"
	}

	logger.Info("🚀 Starting document chatbot", zap.String("session_id", sessionID))

	fmt.Println("Document chatbot ready. Commands: /ingest <file>, /clear, /sessions, /info, /verbose, /quit")
	runChatLoop(app, sessionID)
}

func runChatLoop(app *bootstrap.App, sessionID string) {
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	verbose := false

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return

		case line == "/clear":
			if err := app.ChatService.ClearHistory(ctx, sessionID); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println("Conversation history cleared.")

		case line == "/verbose":
			verbose = !verbose
			fmt.Printf("Verbose mode: %v\n", verbose)

		case line == "/sessions":
			ids, err := app.ChatService.ListSessions(ctx)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("Sessions: %s\n", strings.Join(ids, ", "))

		case line == "/info":
			info, err := app.ChatService.SessionInfo(ctx, sessionID)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			chunks, err := app.Pipeline.IndexedChunks(ctx)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("Session %s: %d turns, %d indexed chunks\n",
				info.SessionID, info.TurnCount, chunks)

		case strings.HasPrefix(line, "/ingest "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/ingest "))
			ingestFile(ctx, app, sessionID, path)

		default:
			answer, err := app.ChatService.Ask(ctx, services.ChatRequest{
				SessionID: sessionID,
				Message:   line,
				Verbose:   verbose,
			})
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("Bot: %s\n", answer.Answer)
			if verbose {
				if answer.ContextualizedQuestion != "" {
					fmt.Printf("  (searched as: %s)\n", answer.ContextualizedQuestion)
				}
				if answer.NumSources != nil {
					fmt.Printf("  (%d sources)\n", *answer.NumSources)
				}
			}
		}
	}
}

func ingestFile(ctx context.Context, app *bootstrap.App, sessionID, path string) {
	file, err := os.Open(path)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer file.Close()

	result, err := app.DocumentService.Upload(ctx, services.UploadRequest{
		SessionID: sessionID,
		Filename:  filepath.Base(path),
		Reader:    file,
	})
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("Ingested %s: %d chunks (%d chars)\n",
		result.Filename, result.ChunkCount, result.TextLength)
}
