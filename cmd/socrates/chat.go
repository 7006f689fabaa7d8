package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/socrates-agent/socrates/agent"
	"github.com/socrates-agent/socrates/graph"
	"github.com/socrates-agent/socrates/prompts"
)

// theme contains the styles of the chat transcript.
type theme struct {
	Banner   lipgloss.Style
	User     lipgloss.Style
	Socrates lipgloss.Style
	Tool     lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
}

func newTheme() theme {
	return theme{
		Banner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("63")).
			Bold(true).
			Padding(0, 1),
		User:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		Socrates: lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		Tool:     lipgloss.NewStyle().Foreground(lipgloss.Color("111")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

const chatHelp = "Comandos: /reset, /history, /graph, /salir"

// chatSession is an interactive dialogue on one thread.
type chatSession struct {
	agent    *agent.Agent
	threadID string
	theme    theme
	out      io.Writer
}

func newChatSession(a *agent.Agent, threadID string, out io.Writer) *chatSession {
	if threadID == "" {
		threadID = uuid.NewString()
	}
	return &chatSession{agent: a, threadID: threadID, theme: newTheme(), out: out}
}

func (s *chatSession) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// Run reads questions from in until EOF or an exit command.
func (s *chatSession) Run(ctx context.Context, in io.Reader) error {
	s.printf("%s\n%s %s\n%s\n\n",
		s.theme.Banner.Render("Sócrates"),
		s.theme.Socrates.Render("Sócrates>"), prompts.RandomPhrase(nil),
		s.theme.Muted.Render(chatHelp+" · hilo "+s.threadID))

	scanner := bufio.NewScanner(in)
	for {
		s.printf("%s ", s.theme.User.Render("Tú>"))
		if !scanner.Scan() {
			s.printf("\n")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		done, err := s.handle(ctx, line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *chatSession) handle(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(line) {
	case "/salir", "/exit":
		s.printf("%s\n", s.theme.Muted.Render("Hasta pronto."))
		return true, nil
	case "/reset":
		if err := s.agent.Reset(ctx, s.threadID); err != nil {
			return false, err
		}
		s.printf("%s\n", s.theme.Muted.Render("Conversación reiniciada."))
		return false, nil
	case "/history":
		history, err := s.agent.History(ctx, s.threadID)
		if err != nil {
			return false, err
		}
		s.printHistory(history)
		return false, nil
	case "/graph":
		s.printf("%s\n", graph.NewExporter(s.agent.Graph()).DrawMermaid())
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		s.printf("%s\n", s.theme.Muted.Render(chatHelp))
		return false, nil
	}

	reply, err := s.agent.Ask(ctx, s.threadID, line)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true, nil
		}
		s.printf("%s\n", s.theme.Error.Render("Error: "+err.Error()))
		return false, nil
	}
	s.printSteps(reply.Steps)
	s.printf("%s %s\n\n", s.theme.Socrates.Render("Sócrates>"), reply.Answer)
	return false, nil
}

func (s *chatSession) printSteps(steps []agent.Step) {
	for _, st := range steps {
		s.printf("%s\n", s.theme.Tool.Render(fmt.Sprintf("· %s(%s)", st.Action, st.Input)))
	}
}

func (s *chatSession) printHistory(history []llms.MessageContent) {
	if len(history) == 0 {
		s.printf("%s\n", s.theme.Muted.Render("(sin mensajes)"))
		return
	}
	for _, m := range history {
		label := s.theme.Socrates.Render("Sócrates:")
		if m.Role == llms.ChatMessageTypeHuman {
			label = s.theme.User.Render("Tú:")
		}
		s.printf("%s %s\n", label, agent.MessageText(m))
	}
}
