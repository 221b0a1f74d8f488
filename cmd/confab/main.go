package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/generative-ai-go/genai"

	"confab/internal/config"
	"confab/internal/conversation"
	"confab/internal/embedding"
	"confab/internal/memory"
	"confab/internal/provider"
	"confab/internal/store"
)

func main() {
	log.Println("🚀 Starting confab...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize Gemini Client ────
	ctx := context.Background()
	gemini, err := provider.NewGemini(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer gemini.Close()
	log.Println("✓ Gemini client initialized")

	// Overload on the primary model downgrades to the flash model for the
	// rest of the session.
	cfg.FlashFallbackHandler = func(current, fallback string) bool {
		log.Printf("Model %s is overloaded; switching to %s", current, fallback)
		return true
	}

	// ──── Step 3: Initialize Checkpoint Store (optional) ────
	var checkpoints *store.CheckpointStore
	if cfg.RedisURL != "" {
		checkpoints, err = store.NewCheckpointStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer checkpoints.Close()
		log.Println("✓ Redis checkpoint store connected")
	} else {
		log.Println("  Checkpoints disabled (REDIS_URL not set)")
	}

	// ──── Step 4: Initialize Semantic Memory ────
	embedService := embedding.NewService(gemini, cfg)
	var opts []conversation.Option
	memStore, err := memory.NewStore(cfg.MemoryPath, memory.EmbeddingFunc(embedService))
	if err != nil {
		log.Printf("✗ Semantic memory unavailable, continuing without it: %v", err)
		memStore = nil
	} else {
		opts = append(opts, conversation.WithTurnRecorder(memStore))
		log.Printf("✓ Semantic memory at %s", cfg.MemoryPath)
	}

	// ──── Step 5: Start Conversation Loop ────
	loop := conversation.NewLoop(cfg, gemini, opts...)
	log.Printf("✓ Ready (model: %s). Type /help for commands.", cfg.GetModel())

	runShell(loop, cfg, checkpoints, memStore)
}

func runShell(loop *conversation.Loop, cfg *config.Config, checkpoints *store.CheckpointStore, memStore *memory.Store) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runCommand(loop, cfg, checkpoints, memStore, line); quit {
				return
			}
			continue
		}

		sendMessage(loop, genai.Text(line))
	}
}

// sendMessage streams one user message through the loop. Ctrl-C cancels the
// in-flight stream without exiting the shell.
func sendMessage(loop *conversation.Loop, parts ...genai.Part) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for ev := range loop.SendMessageStream(ctx, parts...) {
		switch ev.Type {
		case conversation.EventContent:
			fmt.Print(ev.Content)
		case conversation.EventToolCallRequest:
			fmt.Printf("\n[tool request] %s(%v) — no tools are wired into this shell; reply with text to continue\n", ev.ToolCall.Name, ev.ToolCall.Args)
		case conversation.EventCompressed:
			log.Printf("History compressed: %d → %d tokens", ev.Compressed.OriginalTokenCount, ev.Compressed.NewTokenCount)
		case conversation.EventMaxTurns:
			log.Println("Turn ceiling reached; handing control back")
		case conversation.EventError:
			log.Printf("Turn failed: %v", ev.Err)
		}
	}
	fmt.Println()

	if ctx.Err() != nil {
		log.Println("Interrupted")
	}
}

func runCommand(loop *conversation.Loop, cfg *config.Config, checkpoints *store.CheckpointStore, memStore *memory.Store, line string) (quit bool) {
	ctx := context.Background()
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`Commands:
  /save <tag>     save the conversation under a tag
  /resume <tag>   replace the conversation with a saved one
  /chats          list saved conversations
  /reset          start over from a fresh conversation
  /compress       force history compression now
  /model [name]   show or change the active model
  /recall <text>  search past turns by meaning
  /quit           exit`)

	case "/save":
		if checkpoints == nil {
			log.Println("Checkpoints are disabled (REDIS_URL not set)")
			break
		}
		if arg == "" {
			log.Println("Usage: /save <tag>")
			break
		}
		if err := checkpoints.Save(ctx, arg, loop.Session().History()); err != nil {
			log.Printf("Save failed: %v", err)
			break
		}
		log.Printf("Saved checkpoint %q", arg)

	case "/resume":
		if checkpoints == nil {
			log.Println("Checkpoints are disabled (REDIS_URL not set)")
			break
		}
		if arg == "" {
			log.Println("Usage: /resume <tag>")
			break
		}
		checkpoint, err := checkpoints.Load(ctx, arg)
		if err != nil {
			log.Printf("Resume failed: %v", err)
			break
		}
		loop.Session().SetHistory(store.ExpandHistory(checkpoint.Turns))
		log.Printf("Resumed checkpoint %q (%d turns)", arg, len(checkpoint.Turns))

	case "/chats":
		if checkpoints == nil {
			log.Println("Checkpoints are disabled (REDIS_URL not set)")
			break
		}
		saved, err := checkpoints.List(ctx)
		if err != nil {
			log.Printf("List failed: %v", err)
			break
		}
		if len(saved) == 0 {
			fmt.Println("No saved conversations")
			break
		}
		for _, cp := range saved {
			fmt.Printf("  %-20s %3d turns  saved %s\n", cp.Tag, len(cp.Turns), cp.SavedAt.Local().Format("2006-01-02 15:04"))
		}

	case "/reset":
		loop.ResetChat()
		log.Println("Conversation reset")

	case "/compress":
		result, err := loop.TryCompress(ctx, true)
		if err != nil {
			log.Printf("Compression failed: %v", err)
			break
		}
		if result == nil {
			log.Println("Nothing to compress")
			break
		}
		log.Printf("History compressed: %d → %d tokens", result.OriginalTokenCount, result.NewTokenCount)

	case "/model":
		if arg == "" {
			fmt.Printf("Active model: %s\n", cfg.GetModel())
			break
		}
		cfg.SetModel(arg)
		log.Printf("Model set to %s", arg)

	case "/recall":
		if memStore == nil {
			log.Println("Semantic memory is unavailable")
			break
		}
		if arg == "" {
			log.Println("Usage: /recall <query>")
			break
		}
		results, err := memStore.Search(ctx, arg, 5)
		if err != nil {
			log.Printf("Recall failed: %v", err)
			break
		}
		if len(results) == 0 {
			fmt.Println("Nothing recorded yet")
			break
		}
		for _, r := range results {
			fmt.Printf("  [%.2f] %s\n", r.Similarity, snippet(r.Text, 120))
		}

	default:
		log.Printf("Unknown command %s (try /help)", cmd)
	}
	return false
}

func snippet(text string, max int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) <= max {
		return text
	}
	return text[:max] + "…"
}
