// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Plain-terminal chat REPL for paichat.
//
// Handles "paichat chat": an interactive loop for terminals where the full
// TUI is unwanted (dumb terminals, screen readers, scripting).
//
// Interactive commands during chat:
//
//	/help            Show available commands
//	/new             Start a new conversation
//	/list            List recent conversations
//	/open N          Open conversation N from the last /list
//	/delete N        Delete conversation N
//	/like, /dislike  Rate the last answer
//	/retry           Regenerate the last answer
//	/export [html]   Export the transcript
//	/quit            Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/paichat-tui/internal/config"
	"github.com/jeranaias/paichat-tui/internal/export"
	"github.com/jeranaias/paichat-tui/internal/model"
	"github.com/jeranaias/paichat-tui/internal/store"
	"github.com/jeranaias/paichat-tui/internal/ui/styles"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// replInput provides input history and line editing for the chat REPL.
type replInput struct {
	line        *liner.State
	historyFile string
}

func newReplInput() *replInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &replInput{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *replInput) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *replInput) close() {
	if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// =============================================================================
// CHAT REPL
// =============================================================================

// Chat runs the interactive plain-terminal loop.
func Chat(app *App) error {
	if err := app.RequireSignIn(); err != nil {
		return err
	}

	input := newReplInput()
	defer input.close()

	fmt.Println(welcomeStyle.Render("paichat - interactive chat"))
	fmt.Println(infoStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Println()

	ctx := context.Background()
	if err := app.Store.LoadPage(ctx); err != nil {
		fmt.Println(warningStyle.Render("Could not load history: " + err.Error()))
	}

	for {
		text, err := input.read(promptStyle.Render("> "))
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, liner.ErrInvalidPrompt) {
			continue
		}
		if err != nil {
			// Ctrl+D or closed stdin ends the session.
			fmt.Println()
			return nil
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			if quit := runSlashCommand(app, text); quit {
				return nil
			}
			continue
		}

		if err := sendAndPrint(app, text); err != nil {
			fmt.Println(styles.RenderError(err.Error()))
		}
	}
}

// sendAndPrint submits one message and prints the settled answer. Sends are
// paced, not rejected; a rapid follow-up just waits out the limiter window.
func sendAndPrint(app *App, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := app.sendLimiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	if err := app.Store.Send(ctx, text); err != nil {
		return err
	}

	conv, ok := app.Store.ActiveThread()
	if !ok || len(conv.Messages) == 0 {
		return fmt.Errorf("no answer received")
	}
	last := conv.Messages[len(conv.Messages)-1]

	fmt.Println()
	fmt.Println(last.Content)
	fmt.Println(infoStyle.Render(fmt.Sprintf("(%.1fs)", time.Since(start).Seconds())))
	fmt.Println()
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// runSlashCommand executes one /command. Returns true to quit.
func runSlashCommand(app *App, text string) bool {
	fields := strings.Fields(text)
	cmd := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		printReplHelp()

	case "/new", "/n":
		app.Store.NewThread()
		fmt.Println(infoStyle.Render("Started a new conversation."))

	case "/list", "/l":
		printConversationList(app.Store)

	case "/open", "/o":
		withListedConversation(app.Store, arg, func(conv model.Conversation) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := app.Store.Select(ctx, conv.ID); err != nil {
				fmt.Println(styles.RenderError(err.Error()))
				return
			}
			printTranscript(app.Store)
		})

	case "/delete", "/d":
		withListedConversation(app.Store, arg, func(conv model.Conversation) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := app.Store.DeleteConversation(ctx, conv.ID); err != nil {
				fmt.Println(styles.RenderError(err.Error()))
				return
			}
			fmt.Println(infoStyle.Render("Deleted " + conv.DisplayTitle()))
		})

	case "/like", "/dislike":
		rateLastAnswer(app.Store, cmd == "/like")

	case "/retry", "/r":
		retryLastQuestion(app.Store)

	case "/export", "/e":
		exportActive(app.Store, arg)

	default:
		fmt.Println(warningStyle.Render("Unknown command " + cmd + "; try /help"))
	}
	return false
}

func printReplHelp() {
	help := [][2]string{
		{"/new", "start a new conversation"},
		{"/list", "list recent conversations"},
		{"/open N", "open conversation N from the list"},
		{"/delete N", "delete conversation N"},
		{"/like, /dislike", "rate the last answer"},
		{"/retry", "regenerate the last answer"},
		{"/export [html]", "export the transcript"},
		{"/quit", "exit chat"},
	}
	for _, h := range help {
		fmt.Printf("  %s %s\n", commandStyle.Render(fmt.Sprintf("%-16s", h[0])), infoStyle.Render(h[1]))
	}
}

func printConversationList(st *store.Store) {
	convs := st.Conversations()
	if len(convs) == 0 {
		fmt.Println(infoStyle.Render("No conversations yet."))
		return
	}
	for i, conv := range convs {
		marker := "  "
		if conv.ID == st.ActiveID() {
			marker = "* "
		}
		when := ""
		if !conv.LastActivity.IsZero() {
			when = conv.LastActivity.Format("Jan 02 15:04")
		}
		fmt.Printf("%s%2d. %-50s %s\n", marker, i+1, conv.DisplayTitle(), infoStyle.Render(when))
	}
	if st.Pagination().HasNext {
		fmt.Println(infoStyle.Render("    (older conversations available; they load as you browse)"))
	}
}

// withListedConversation resolves a 1-based /list index and runs fn on it.
func withListedConversation(st *store.Store, arg string, fn func(model.Conversation)) {
	n, err := strconv.Atoi(arg)
	convs := st.Conversations()
	if err != nil || n < 1 || n > len(convs) {
		fmt.Println(warningStyle.Render("Give a conversation number from /list."))
		return
	}
	fn(convs[n-1])
}

func printTranscript(st *store.Store) {
	conv, ok := st.ActiveThread()
	if !ok {
		return
	}
	fmt.Println(welcomeStyle.Render("-- " + conv.DisplayTitle() + " --"))
	for _, msg := range conv.Messages {
		fmt.Printf("%s: %s\n", promptStyle.Render(msg.Role.DisplayName()), msg.Content)
	}
	fmt.Println()
}

func rateLastAnswer(st *store.Store, positive bool) {
	conv, ok := st.ActiveThread()
	if !ok {
		fmt.Println(warningStyle.Render("No active conversation."))
		return
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		if msg.Role != model.RoleAssistant || msg.IsGenerating {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		var err error
		if positive {
			err = st.Like(ctx, msg.ID)
		} else {
			err = st.Dislike(ctx, msg.ID)
		}
		if err != nil {
			fmt.Println(styles.RenderError(err.Error()))
		} else {
			fmt.Println(infoStyle.Render("Feedback recorded."))
		}
		return
	}
	fmt.Println(warningStyle.Render("Nothing to rate yet."))
}

func retryLastQuestion(st *store.Store) {
	conv, ok := st.ActiveThread()
	if !ok {
		fmt.Println(warningStyle.Render("No active conversation."))
		return
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role != model.RoleUser {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := st.Resubmit(ctx, conv.Messages[i].ID); err != nil {
			fmt.Println(styles.RenderError(err.Error()))
			return
		}
		printTranscript(st)
		return
	}
	fmt.Println(warningStyle.Render("Nothing to retry yet."))
}

func exportActive(st *store.Store, format string) {
	conv, ok := st.ActiveThread()
	if !ok || len(conv.Messages) == 0 {
		fmt.Println(warningStyle.Render("Nothing to export yet."))
		return
	}

	var path string
	var err error
	if format == "html" {
		path, err = export.ExportHTML(&conv, nil)
	} else {
		path, err = export.ExportMarkdown(&conv, nil)
	}
	if err != nil {
		fmt.Println(styles.RenderError(err.Error()))
		return
	}
	fmt.Println(styles.RenderSuccess("Exported to " + path))
}
