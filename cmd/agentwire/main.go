package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentwire/agentwire/internal/chat"
	"github.com/agentwire/agentwire/internal/config"
	"github.com/agentwire/agentwire/internal/logger"
	"github.com/agentwire/agentwire/internal/store"
	"github.com/agentwire/agentwire/internal/tui"
	"github.com/agentwire/agentwire/internal/wsclient"
)

const connectTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	var (
		configPath  = flag.String("config", config.GetConfigPath(), "path to config file")
		serverURL   = flag.String("server", "", "gateway URL (overrides config)")
		token       = flag.String("token", "", "auth token (overrides config)")
		prompt      = flag.String("p", "", "send one message, print the answer and exit")
		newSession  = flag.Bool("new", false, "start a fresh session")
		listSession = flag.Bool("list", false, "list stored sessions and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *token != "" {
		cfg.AuthToken = *token
	}

	// Environment overrides for logging, mainly for debugging sessions.
	if envLevel := strings.TrimSpace(os.Getenv("AGENTWIRE_LOG_LEVEL")); envLevel != "" {
		cfg.LogLevel = envLevel
	}
	if envPath := strings.TrimSpace(os.Getenv("AGENTWIRE_LOG_PATH")); envPath != "" {
		cfg.LogPath = envPath
	}

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("fatal: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	logger.Info("agentwire starting, gateway=%s", cfg.ServerURL)

	if mkErr := os.MkdirAll(cfg.StateDir, 0755); mkErr != nil {
		return fmt.Errorf("failed to create state directory: %w", mkErr)
	}
	kv, err := store.NewSQLiteStore(filepath.Join(cfg.StateDir, "sessions.db"))
	if err != nil {
		return err
	}
	defer kv.Close()

	st := store.New(kv, store.WithHistoryLimit(cfg.HistoryLimit))

	if *listSession {
		return listSessions(st)
	}
	if *newSession {
		st.NewSession()
	}

	conn := wsclient.New(wsclient.Config{
		URL:               cfg.ServerURL,
		Token:             cfg.AuthToken,
		ReconnectDelay:    time.Duration(cfg.ReconnectDelayMs) * time.Millisecond,
		ReconnectMaxDelay: time.Duration(cfg.ReconnectMaxDelayMs) * time.Millisecond,
	})
	client := chat.New(conn, st)

	if *prompt != "" {
		return runOneShot(client, *prompt)
	}
	return tui.Run(client)
}

// listSessions prints the stored sessions, newest first.
func listSessions(st *store.Store) error {
	sessions := st.List()
	if len(sessions) == 0 {
		fmt.Println("no stored sessions")
		return nil
	}
	current := st.CurrentID()
	for _, sess := range sessions {
		marker := " "
		if sess.ID == current {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  %d messages  %s\n",
			marker, sess.ID, sess.CreatedAt.Format("2006-01-02 15:04"),
			len(sess.Messages), sess.Title)
	}
	return nil
}

// runOneShot sends a single message, streams the answer to stdout and exits
// when the turn completes.
func runOneShot(client *chat.Client, prompt string) error {
	conn := client.Conn()

	opened := make(chan struct{}, 1)
	failed := make(chan error, 1)
	conn.OnOpen(func() {
		select {
		case opened <- struct{}{}:
		default:
		}
	})
	conn.OnError(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})

	done := make(chan error, 1)
	streamed := false
	client.OnEvent(func(ev chat.Event) {
		switch ev.Kind {
		case chat.EventChunk:
			streamed = true
			fmt.Print(ev.Content)
		case chat.EventAssistantMessage:
			if streamed {
				fmt.Println()
			} else {
				// The answer arrived whole, without streamed chunks.
				fmt.Println(ev.Content)
			}
			done <- nil
		case chat.EventTurnError:
			done <- ev.Err
		}
	})

	conn.Connect()
	defer conn.Disconnect()

	select {
	case <-opened:
	case err := <-failed:
		return fmt.Errorf("failed to reach gateway: %w", err)
	case <-time.After(connectTimeout):
		return fmt.Errorf("timed out connecting to gateway")
	}

	if err := client.SendMessage(prompt); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timed out waiting for the agent's answer")
	}
}
