// Command chatcli talks to the configured model from a terminal, using the
// same agent profile and reset keywords as the web page.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/zeuschat/backend/internal/config"
	"github.com/zeuschat/backend/internal/model/agent"
	"github.com/zeuschat/backend/internal/model/chat"
	"github.com/zeuschat/backend/internal/service/ai"
	chatservice "github.com/zeuschat/backend/internal/service/chat"
	"github.com/zeuschat/backend/internal/service/conversation"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	agentLabel     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hintStyle      = lipgloss.NewStyle().Faint(true)
)

type options struct {
	envFile string
	profile string
	width   int
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "chatcli",
		Short:        "Chat with the agent from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "agent profile TOML (defaults to AGENT_PROFILE)")
	cmd.Flags().IntVar(&opts.width, "width", 80, "word wrap width for rendered replies")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if err := godotenv.Load(opts.envFile); err != nil {
		log.Printf("[WARN] failed to load %s, using system environment: %v", opts.envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.AI.Validate(); err != nil {
		return err
	}

	profilePath := opts.profile
	if profilePath == "" {
		profilePath = cfg.ProfilePath
	}
	profile, err := agent.Load(profilePath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiService, err := ai.NewService(ctx, profile, cfg.AI)
	if err != nil {
		return err
	}
	defer aiService.Close()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(opts.width),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	conv := conversation.NewService(chatservice.NewService(), aiService, profile)
	session := &terminalSession{conv: conv, out: os.Stdout, renderer: renderer}
	if err := session.start(ctx); err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	prompt := "> "
	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(session.out)
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if err := session.send(ctx, input); err != nil {
			return err
		}
	}
}

// terminalSession prints one conversation to a terminal.
type terminalSession struct {
	conv      *conversation.Service
	out       io.Writer
	renderer  *glamour.TermRenderer
	sessionID string
}

func (s *terminalSession) start(ctx context.Context) error {
	session, transcript, err := s.conv.Start(ctx)
	if err != nil {
		return err
	}
	s.sessionID = session.ID

	profile := s.conv.Profile()
	fmt.Fprintln(s.out, titleStyle.Render(profile.Title))
	fmt.Fprintln(s.out, hintStyle.Render(profile.Placeholder+"  (Ctrl+D to quit)"))
	for _, turn := range transcript {
		s.printTurn(turn)
	}
	return nil
}

// send applies one input. Model failures are printed, not returned.
func (s *terminalSession) send(ctx context.Context, input string) error {
	outcome, err := s.conv.Handle(ctx, s.sessionID, input)
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyMessage) {
			return nil
		}
		return err
	}

	switch {
	case outcome.Err != nil:
		fmt.Fprintln(s.out, noticeStyle.Render(outcome.Err.Error()))
	case outcome.Reset:
		for _, turn := range outcome.Transcript {
			s.printTurn(turn)
		}
	default:
		s.printTurn(chat.AssistantTurn(outcome.Reply))
	}
	return nil
}

func (s *terminalSession) printTurn(turn chat.Turn) {
	if turn.Role == chat.RoleUser {
		fmt.Fprintln(s.out, userLabelStyle.Render("you")+" "+turn.Content)
		return
	}

	fmt.Fprintln(s.out, agentLabel.Render(s.conv.Profile().Name))
	rendered, err := s.renderer.Render(turn.Content)
	if err != nil {
		fmt.Fprintln(s.out, turn.Content)
		return
	}
	fmt.Fprint(s.out, rendered)
}
