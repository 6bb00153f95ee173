package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/yosefsha/myassistant/ai/assistant"
	"github.com/yosefsha/myassistant/ai/generator"
	"github.com/yosefsha/myassistant/ai/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), terminationSignals...)
		defer cancel()

		eng, err := newEngine(ctx, instanceProfile)
		if err != nil {
			printStartupError(err, instanceProfile)
			return err
		}
		defer eng.close()

		prompt := newLinePrompt()
		defer prompt.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "Type a message. Commands: /stats, /new, /quit")
		return runChat(ctx, prompt, cmd.OutOrStdout(), eng.assistant)
	},
}

// chatAssistant is the part of the session API the REPL drives.
type chatAssistant interface {
	StartSession(ctx context.Context, message string) (*assistant.Reply, error)
	Continue(ctx context.Context, sessionID, message string) (*assistant.Reply, error)
	SessionStats(sessionID string) (*session.Stats, error)
	EndSession(sessionID string) error
}

type lineReader interface {
	Prompt(prompt string) (string, error)
}

// runChat reads lines until EOF, abort or /quit.
func runChat(ctx context.Context, in lineReader, out io.Writer, a chatAssistant) error {
	var sessionID string
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.Prompt("you> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			if sessionID != "" {
				_ = a.EndSession(sessionID)
			}
			sessionID = ""
			fmt.Fprintln(out, "Started a new conversation.")
			continue
		case "/stats":
			printStats(out, a, sessionID)
			continue
		}

		var reply *assistant.Reply
		if sessionID == "" {
			reply, err = a.StartSession(ctx, line)
		} else {
			reply, err = a.Continue(ctx, sessionID, line)
		}
		if reply != nil {
			sessionID = reply.SessionID
			printDecision(out, reply)
		}

		var gerr *generator.GenerationError
		switch {
		case err == nil:
			fmt.Fprintf(out, "%s\n\n", reply.Text)
		case errors.As(err, &gerr):
			fmt.Fprintf(out, "(no reply: %v)\n\n", err)
		case errors.Is(err, session.ErrSessionNotFound):
			fmt.Fprintln(out, "(session expired, starting over)")
			sessionID = ""
		default:
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func printDecision(out io.Writer, r *assistant.Reply) {
	d := r.Decision
	marker := ""
	if d.Switched {
		marker = fmt.Sprintf(" (switched from %s)", d.Previous)
	}
	fmt.Fprintf(out, "[%s %.2f via %s%s]\n", d.Specialist, d.Confidence, d.Source, marker)
}

func printStats(out io.Writer, a chatAssistant, sessionID string) {
	if sessionID == "" {
		fmt.Fprintln(out, "No conversation yet.")
		return
	}
	stats, err := a.SessionStats(sessionID)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "session %s: %d turns, %d switches, active %s\n",
		stats.SessionID, stats.TurnCount, stats.SwitchCount, stats.ActiveSpecialist)
	for id, n := range stats.SpecialistDistribution {
		fmt.Fprintf(out, "  %-18s %d\n", id, n)
	}
}

// linePrompt is a liner-backed lineReader with history kept across runs.
type linePrompt struct {
	line        *liner.State
	historyFile string
}

func newLinePrompt() *linePrompt {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	p := &linePrompt{line: line, historyFile: filepath.Join(dir, "myassistant", "chat_history")}
	if f, err := os.Open(p.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return p
}

func (p *linePrompt) Prompt(prompt string) (string, error) {
	input, err := p.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		p.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (p *linePrompt) Close() {
	if err := os.MkdirAll(filepath.Dir(p.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = p.line.WriteHistory(f)
			f.Close()
		}
	}
	p.line.Close()
}
