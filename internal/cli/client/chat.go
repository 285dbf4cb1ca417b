package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Persona   string `json:"persona,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is one completed turn.
type ChatResponse struct {
	Response   string `json:"response"`
	Persona    string `json:"persona"`
	SessionID  string `json:"session_id"`
	ThreadID   string `json:"thread_id"`
	Mood       string `json:"mood"`
	TrustScore int    `json:"trust_score"`
	TurnCount  int    `json:"turn_count"`
}

type streamMessage struct {
	UserID    string `json:"user_id,omitempty"`
	Persona   string `json:"persona,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type streamFrame struct {
	Type       string `json:"type"`
	Node       string `json:"node,omitempty"`
	Content    string `json:"content,omitempty"`
	Response   string `json:"response,omitempty"`
	Persona    string `json:"persona,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Mood       string `json:"mood,omitempty"`
	TrustScore *int   `json:"trust_score,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var (
		persona   string
		sessionID string
		stream    bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to a persona",
		Long: `Sends one message, or starts an interactive session when no message is
given. The session id printed after the first turn keeps the conversation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if api.userID == "" {
				return fmt.Errorf("a user id is required (--user, %s or 'gateway config set --user-id')", envUserID)
			}

			s := &chatSession{
				api:       api,
				out:       cmd.OutOrStdout(),
				persona:   persona,
				sessionID: sessionID,
				verbose:   verbose,
				json:      wantsJSON(cmd),
			}
			if stream {
				if err := s.connect(cmd.Context()); err != nil {
					return err
				}
				defer s.conn.Close()
			}

			if len(args) == 1 {
				return s.send(cmd.Context(), args[0])
			}
			return s.repl(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&persona, "persona", "p", "", "Persona id (default: support)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to continue")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the reply over a websocket")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show orchestrator steps while streaming")

	return cmd
}

type chatSession struct {
	api       *APIClient
	conn      *websocket.Conn
	out       io.Writer
	persona   string
	sessionID string
	verbose   bool
	json      bool
}

func (s *chatSession) connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := s.api.DialStream(ctx)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *chatSession) repl(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return nil
		default:
			if err := s.send(ctx, line); err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
		}
		fmt.Fprint(s.out, "> ")
	}
	return scanner.Err()
}

func (s *chatSession) send(ctx context.Context, message string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.conn != nil {
		return s.sendStream(message)
	}

	resp, err := s.api.Post(ctx, "/chat", ChatRequest{
		Persona:   s.persona,
		SessionID: s.sessionID,
		Message:   message,
	})
	if err != nil {
		return err
	}

	var out ChatResponse
	if err := resp.Decode(&out); err != nil {
		return err
	}
	s.remember(out.Persona, out.SessionID)

	if s.json {
		return printJSON(s.out, out)
	}
	fmt.Fprintf(s.out, "%s\n", out.Response)
	fmt.Fprintf(s.out, "[%s | mood %s | trust %d | session %s]\n", out.Persona, out.Mood, out.TrustScore, out.SessionID)
	return nil
}

func (s *chatSession) sendStream(message string) error {
	err := s.conn.WriteJSON(streamMessage{
		UserID:    s.api.userID,
		Persona:   s.persona,
		SessionID: s.sessionID,
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	for {
		var f streamFrame
		if err := s.conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("stream closed: %w", err)
		}

		switch f.Type {
		case "node":
			if s.verbose && !s.json {
				fmt.Fprintf(s.out, "  · %s\n", f.Node)
			}
		case "token":
			if !s.json {
				fmt.Fprint(s.out, f.Content)
			}
		case "error":
			return fmt.Errorf("%s", f.Message)
		case "done":
			s.remember(f.Persona, f.SessionID)
			if s.json {
				return printJSON(s.out, f)
			}
			trust := 0
			if f.TrustScore != nil {
				trust = *f.TrustScore
			}
			fmt.Fprintf(s.out, "\n[%s | mood %s | trust %d | session %s]\n", f.Persona, f.Mood, trust, f.SessionID)
			return nil
		}
	}
}

// remember pins later turns to the thread the server chose.
func (s *chatSession) remember(persona, sessionID string) {
	if s.persona == "" {
		s.persona = persona
	}
	if s.sessionID == "" {
		s.sessionID = sessionID
	}
}
