package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phonewise/phonewise/internal/catalog"
	"github.com/phonewise/phonewise/internal/client"
	"github.com/phonewise/phonewise/internal/log"
)

var (
	chatServerURL string
	chatTimeout   time.Duration
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a running phonewise server",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatServerURL, "server", "http://localhost:8000", "base URL of the phonewise server")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 3*time.Minute, "per-request timeout")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.NewNop()
	if os.Getenv("DEBUG") != "" {
		logger = log.New(log.Config{Level: parseLevel("debug")})
	}

	ctl := client.NewController(chatServerURL, chatTimeout, logger)
	display := client.NewDisplay(os.Stdout)
	display.Welcome(chatServerURL)

	// Cards from the latest answer, so /select can address them by number.
	var lastPhones []catalog.Phone

	scanner := bufio.NewScanner(os.Stdin)
	for {
		display.Prompt()
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleCommand(ctx, ctl, display, line, lastPhones)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				display.Error(err.Error())
			}
			if done {
				return nil
			}
			continue
		}

		ex, err := ctl.Send(ctx, line, display.Status)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			display.Error(err.Error())
			continue
		}
		display.Answer(ex.Response)
		display.Cards(ex.Phones, ctl.Selection)
		if len(ex.Phones) > 0 {
			lastPhones = ex.Phones
		}
	}
}

// handleCommand runs one slash command. It reports whether the loop should
// exit.
func handleCommand(ctx context.Context, ctl *client.Controller, display *client.Display, line string, lastPhones []catalog.Phone) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true, nil

	case "/select":
		if len(fields) < 2 {
			return false, errors.New("usage: /select <number|id>")
		}
		id, err := resolveSelection(fields[1], lastPhones)
		if err != nil {
			return false, err
		}
		selected, evicted := ctl.Selection.Toggle(id)
		switch {
		case !selected:
			display.Info("Deselected " + id)
		case evicted != "":
			display.Info(fmt.Sprintf("Selected %s (dropped %s)", id, evicted))
		default:
			display.Info("Selected " + id)
		}
		display.Cards(lastPhones, ctl.Selection)
		return false, nil

	case "/compare":
		ex, err := ctl.CompareSelected(ctx, display.Status)
		if err != nil {
			return false, err
		}
		display.Answer(ex.Response)
		display.Cards(ex.Phones, ctl.Selection)
		return false, nil

	case "/clear":
		if err := ctl.ClearChat(ctx); err != nil {
			display.Error("server-side clear failed: " + err.Error())
		}
		display.Info("Conversation cleared.")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

// resolveSelection maps a 1-based card number or a raw id onto a phone id.
func resolveSelection(arg string, lastPhones []catalog.Phone) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(lastPhones) {
			return "", fmt.Errorf("no card numbered %d", n)
		}
		return lastPhones[n-1].ID, nil
	}
	return arg, nil
}
