package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/adoptiveai/ragchat/chat"
	"github.com/adoptiveai/ragchat/render"
)

var chatThreadID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive streaming chat",
	Long: `Chat opens an interactive session against the agent service. Each
line is sent as a turn; tool activity, graphs, and document citations
render inline as they settle.

In-session commands:
  /new           start a fresh conversation
  /load <id>     load a stored conversation
  /attach <path> upload a file with the next message
  /quit          exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatThreadID, "thread", "", "Resume a stored conversation thread")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	client := newClient(cfg)

	var opts []chat.SessionOption
	if cfg.UserID != "" {
		opts = append(opts, chat.WithUserID(cfg.UserID))
	}
	if cfg.Model != "" {
		opts = append(opts, chat.WithModel(cfg.Model))
	}
	if cfg.Agent != "" {
		opts = append(opts, chat.WithAgent(cfg.Agent))
	}
	session := chat.NewSession(client, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if chatThreadID != "" {
		if err := session.Load(ctx, chatThreadID); err != nil {
			return fmt.Errorf("loading conversation %s: %w", chatThreadID, err)
		}
		fmt.Printf("Resumed %q (%s)\n", session.Title(), session.ThreadID())
		printItems(render.Project(session.Messages()), true)
	}

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	markdown = md

	for {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := runReplCommand(ctx, session, line)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			if done {
				return nil
			}
			continue
		}

		before := len(session.Messages())
		if err := session.Send(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}
		turn := session.Messages()[before:]
		printItems(render.Project(turn), false)
	}
}

// runReplCommand handles slash commands. Returns true when the session
// should end.
func runReplCommand(ctx context.Context, session *chat.Session, line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/new":
		session.NewConversation()
		fmt.Println("Started a new conversation.")
		return false, nil
	case "/load":
		if rest == "" {
			return false, errors.New("usage: /load <thread-id>")
		}
		if err := session.Load(ctx, rest); err != nil {
			return false, err
		}
		fmt.Printf("Resumed %q\n", session.Title())
		printItems(render.Project(session.Messages()), true)
		return false, nil
	case "/attach":
		if rest == "" {
			return false, errors.New("usage: /attach <path>")
		}
		if _, err := os.Stat(rest); err != nil {
			return false, err
		}
		session.Attach(rest)
		fmt.Printf("Will upload %s with the next message.\n", rest)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
}

var markdown *glamour.TermRenderer

// printItems renders a projected display sequence to stdout. With echoes
// enabled, human messages print too (used when replaying history).
func printItems(items []render.Item, echoes bool) {
	for _, item := range items {
		if item.Kind == render.ItemToolGroup {
			printToolGroup(item.Group)
			continue
		}
		printMessage(item.Message, echoes)
	}
}

func printMessage(msg chat.Message, echoes bool) {
	switch msg.Role {
	case chat.RoleHuman:
		if echoes {
			fmt.Printf("> %s\n", msg.Content)
		}
	case chat.RoleAssistant:
		out := msg.Content
		if markdown != nil {
			if rendered, err := markdown.Render(msg.Content); err == nil {
				out = rendered
			}
		}
		fmt.Print(out)
		if !strings.HasSuffix(out, "\n") {
			fmt.Println()
		}
	case chat.RoleTool:
		printToolMessage(msg)
	default:
		fmt.Println(msg.Content)
	}
}

func printToolMessage(msg chat.Message) {
	switch data := msg.Data.(type) {
	case chat.GraphData:
		fmt.Printf("[graph %s]", data.GraphID)
		if layout, ok := data.Figure["layout"].(map[string]interface{}); ok {
			if title, ok := layout["title"].(string); ok && title != "" {
				fmt.Printf(" %s", title)
			}
		}
		fmt.Println()
	case chat.CitationData:
		fmt.Println("Sources:")
		for _, e := range data.Entries {
			if len(e.BlockIndices) > 0 {
				fmt.Printf("  - %s (blocks %v)\n", e.PDFFile, e.BlockIndices)
			} else {
				fmt.Printf("  - %s\n", e.PDFFile)
			}
		}
	default:
		if msg.Content != "" {
			fmt.Printf("  %s\n", msg.Content)
		}
	}
}

// printToolGroup renders a run of generic tool messages as one collapsed
// thinking block.
func printToolGroup(group []chat.Message) {
	fmt.Printf("… %d tool step(s)\n", len(group))
	for _, msg := range group {
		switch data := msg.Data.(type) {
		case chat.StatusData:
			fmt.Printf("  · %s\n", msg.Content)
		case chat.SQLData:
			fmt.Printf("  · sql result: %s\n", firstLine(data.Content))
		default:
			if msg.Content != "" {
				fmt.Printf("  · %s\n", firstLine(msg.Content))
			}
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
