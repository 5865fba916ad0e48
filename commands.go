package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/session"
	"github.com/saravenpi/relay/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	sendMode        string
	historyMode     string
	downloadOutput  string
	watchExtensions []string
	listenMode      string
)

func parseMode(s string) (models.Mode, error) {
	mode, ok := models.ParseMode(s)
	if !ok {
		return models.ModeNone, fmt.Errorf("unknown mode %q (want chat, store or whatsapp)", s)
	}
	return mode, nil
}

func printMessage(msg models.Message) {
	sender := "bot"
	if msg.Type == models.MessageUser {
		sender = "you"
	}
	if msg.Source != models.SourceNone {
		sender = string(msg.Source)
	}
	fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Format("2006-01-02 15:04"), sender, msg.Content)

	for _, doc := range models.UniqueDocuments(msg.Documents) {
		line := fmt.Sprintf("    📎 #%d %s", doc.ID, doc.FileName)
		if sim := doc.FormatSimilarity(); sim != "" {
			line += " (" + sim + ")"
		}
		fmt.Println(line)
	}
}

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := parseMode(sendMode)
		if err != nil {
			return err
		}

		rt, err := setup(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		reply, ok := rt.dispatcher.Dispatch(cmd.Context(), strings.Join(args, " "), mode)
		if !ok {
			return fmt.Errorf("message is empty")
		}
		printMessage(reply)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Store a document in the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		msg, err := rt.dispatcher.Upload(cmd.Context(), args[0])
		printMessage(msg)
		return err
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [document id]",
	Short: "Download a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid document id %q: %w", args[0], err)
		}

		rt, err := setup(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		name, body, err := rt.client.DownloadDocument(cmd.Context(), id)
		if err != nil {
			return err
		}
		defer body.Close()

		out := downloadOutput
		if out == "" {
			out = name
		}
		if out == "" {
			out = fmt.Sprintf("document-%d", id)
		}

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		n, err := io.Copy(f, body)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(out)
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("Saved %s (%d bytes)\n", out, n)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the saved conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := models.ModeNone
		if historyMode != "" {
			m, err := parseMode(historyMode)
			if err != nil {
				return err
			}
			mode = m
		}

		rt, err := setup(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		count := 0
		for msg := range rt.store.List(mode) {
			printMessage(msg)
			count++
		}
		if count == 0 {
			fmt.Println("No messages.")
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		n := rt.store.Len()
		rt.store.Clear()
		fmt.Printf("Cleared %d message(s)\n", n)
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		h, err := rt.client.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("backend at %s is not healthy: %w", rt.cfg.APIBaseURL, err)
		}
		fmt.Printf("%s: %s\n", h.Service, h.Status)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Upload documents dropped into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		w, err := watcher.New(watchExtensions, rt.dispatcher, rt.log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		unsubscribe := rt.store.Subscribe(printLatest(rt.store.Len, rt.store.Messages))
		defer unsubscribe()

		fmt.Printf("Watching %s, press ctrl+c to stop\n", args[0])
		return w.Run(ctx, args[0])
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Follow pushed messages without the interactive client",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := parseMode(listenMode)
		if err != nil {
			return err
		}

		rt, err := setup(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		unsubscribe := rt.store.Subscribe(printLatest(rt.store.Len, rt.store.Messages))
		defer unsubscribe()

		rt.sync.OnConnectionChange(func(connected bool) {
			if connected {
				fmt.Println("● connected")
			} else {
				fmt.Println("○ disconnected")
			}
		})

		s := session.Open(ctx, rt.sessionDeps(), mode)
		defer s.Close()

		<-ctx.Done()
		return nil
	},
}

// printLatest prints messages appended after it was created.
func printLatest(length func() int, messages func() []models.Message) func() {
	var mu sync.Mutex
	printed := length()
	return func() {
		mu.Lock()
		defer mu.Unlock()
		msgs := messages()
		if len(msgs) < printed {
			printed = 0
		}
		for _, msg := range msgs[printed:] {
			printMessage(msg)
		}
		printed = len(msgs)
	}
}
