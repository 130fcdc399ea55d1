package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"spaces-client/internal/conversation"
	"spaces-client/internal/entity"
	"spaces-client/internal/pkg/apperror"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var expandAll bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about a space or a single file",
	Long: `Starts an interactive chat. Lines are sent as questions.

Commands inside the chat:
  /model <name>  switch model for the next question
  /history       show the conversation grouped by day
  /quit          leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the stored conversation grouped by day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		printGroups(session)
		return nil
	},
}

func init() {
	historyCmd.Flags().BoolVar(&expandAll, "expand", false, "Expand every day instead of only the latest")
}

// openSession applies the target selection and waits for its history.
func openSession(ctx context.Context) (*conversation.Session, error) {
	if err := selectTarget(ctx); err != nil {
		return nil, err
	}
	session := container.Conversations.Open(container.Workspace.Selection())
	select {
	case <-session.Ready():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return session, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	session, err := openSession(ctx)
	if err != nil {
		return err
	}

	scope := session.Key().SpaceName
	if session.Key().HasFile() {
		scope += " / " + session.Key().FileName
	}
	color.Cyan("Chatting in %s with %s (%d earlier messages). /quit to leave.", scope, container.Conversations.Model(), len(session.Messages()))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "/quit":
			return nil
		case line == "/history":
			printGroups(session)
			continue
		case strings.HasPrefix(line, "/model"):
			model := strings.TrimSpace(strings.TrimPrefix(line, "/model"))
			if err := container.Conversations.SetModel(model); err != nil {
				color.Red("%v", err)
			} else {
				color.Cyan("Model set to %s", model)
			}
			continue
		}

		reply, err := container.Conversations.Send(ctx, line)
		if err != nil && reply.Text == "" {
			// Rejected locally; the notification already explains why.
			if errors.Is(err, apperror.ErrStaleSession) {
				return err
			}
			continue
		}
		printMessage(reply)
	}
}

func printGroups(session *conversation.Session) {
	groups := session.Groups()
	if len(groups) == 0 {
		fmt.Println("No conversation yet.")
		return
	}
	for _, g := range groups {
		if g.Collapsed && !expandAll {
			color.New(color.Bold).Printf("▸ %s", g.Date)
			fmt.Printf(" (%d messages)\n", len(g.Messages))
			continue
		}
		color.New(color.Bold).Printf("▾ %s\n", g.Date)
		for _, m := range g.Messages {
			printMessage(m)
		}
	}
}

func printMessage(m entity.ChatMessage) {
	switch {
	case m.IsUser():
		fmt.Printf("  you: %s\n", m.Text)
	case m.Kind == entity.MessageKindError:
		color.Red("  bot: %s", m.Text)
	default:
		fmt.Printf("  bot: %s\n", m.Text)
	}
	for _, c := range m.Citations {
		if c.Page > 0 {
			color.HiBlack("       [%s, p.%d]", c.Source, c.Page)
		} else {
			color.HiBlack("       [%s]", c.Source)
		}
	}
}
