// Package chat runs the interactive read-eval-print loop against a chat model.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cchalm/bedrock-chat/internal/ai"
	"github.com/cchalm/bedrock-chat/internal/apperr"
)

const (
	SystemPrompt = "You are a helpful AI assistant. Please provide clear and concise responses."
	Banner       = "Start chatting with Claude 3 Haiku! Type 'exit' to stop."
	ExitCommand  = "exit"

	maxLineSize = 1024 * 1024
)

// Invoker sends a prompt to a model and returns the full reply
type Invoker interface {
	Invoke(ctx context.Context, prompt ai.Prompt) (ai.Reply, error)
}

type Options struct {
	// ReplayHistory sends earlier turns as context with each request. When false each request carries only the
	// latest user turn.
	ReplayHistory bool
	// TurnTimeout bounds each model call. Zero means no limit.
	TurnTimeout time.Duration
	SessionID   string
	Tracer      trace.Tracer
}

type Loop struct {
	model   Invoker
	in      *bufio.Scanner
	out     io.Writer
	history *ai.History
	opts    Options
}

func New(model Invoker, in io.Reader, out io.Writer, opts Options) *Loop {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Loop{
		model:   model,
		in:      scanner,
		out:     out,
		history: ai.NewHistory(),
		opts:    opts,
	}
}

// History returns the turns exchanged so far
func (l *Loop) History() *ai.History {
	return l.history
}

// Run reads lines until the user types exit or input ends, in which case it returns nil. A failed model call ends
// the session and is returned as a ChatInvocationError after being printed.
func (l *Loop) Run(ctx context.Context) error {
	fmt.Fprintln(l.out, Banner)

	for turn := 0; ; turn++ {
		fmt.Fprint(l.out, "You: ")
		if !l.in.Scan() {
			fmt.Fprintln(l.out)
			if err := l.in.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		}
		input := l.in.Text()
		if isExit(input) {
			log.Printf("Session %s ended after %d turns", l.opts.SessionID, l.history.Len())
			return nil
		}

		reply, err := l.exchange(ctx, turn, input)
		if err != nil {
			fmt.Fprintf(l.out, "Error during chat: %v\n", err)
			return apperr.New(apperr.KindChatInvocation, apperr.HintChatInvocation, err)
		}

		if err := l.history.AddExchange(input, reply.Text); err != nil {
			return fmt.Errorf("failed to record exchange: %w", err)
		}

		fmt.Fprintf(l.out, "Claude: %s\n\n", reply.Text)
	}
}

func (l *Loop) exchange(ctx context.Context, turn int, input string) (ai.Reply, error) {
	ctx, span := l.opts.Tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("chat.session_id", l.opts.SessionID),
		attribute.Int("chat.turn_index", turn),
		attribute.Bool("chat.replay_history", l.opts.ReplayHistory),
	))
	defer span.End()

	if l.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.TurnTimeout)
		defer cancel()
	}

	reply, err := l.model.Invoke(ctx, l.prompt(input))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invoke failed")
		return ai.Reply{}, err
	}
	return reply, nil
}

func (l *Loop) prompt(input string) ai.Prompt {
	var turns []ai.Turn
	if l.opts.ReplayHistory {
		turns = l.history.Turns()
	}
	turns = append(turns, ai.UserTurn(input))
	return ai.Prompt{
		SystemPrompt: SystemPrompt,
		Turns:        turns,
	}
}

func isExit(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), ExitCommand)
}
