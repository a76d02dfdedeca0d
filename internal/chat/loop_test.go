package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cchalm/bedrock-chat/internal/ai"
	"github.com/cchalm/bedrock-chat/internal/apperr"
)

// fakeModel replies with "echo: <latest user text>" unless err is set
type fakeModel struct {
	prompts []ai.Prompt
	err     error
	// failOn makes the call with this index fail; -1 disables it
	failOn int
}

func newFakeModel() *fakeModel {
	return &fakeModel{failOn: -1}
}

func (fm *fakeModel) Invoke(ctx context.Context, prompt ai.Prompt) (ai.Reply, error) {
	call := len(fm.prompts)
	fm.prompts = append(fm.prompts, prompt)
	if fm.err != nil && (fm.failOn < 0 || fm.failOn == call) {
		return ai.Reply{}, fm.err
	}
	last := prompt.Turns[len(prompt.Turns)-1]
	return ai.Reply{Text: "echo: " + last.Text}, nil
}

func runLoop(t *testing.T, model Invoker, input string, opts Options) (*Loop, string, error) {
	t.Helper()
	var out bytes.Buffer
	l := New(model, strings.NewReader(input), &out, opts)
	err := l.Run(context.Background())
	return l, out.String(), err
}

func linesWithPrefix(output, prefix string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		// prompts share a line with the following output
		line = strings.TrimPrefix(line, "You: ")
		if strings.HasPrefix(line, prefix) {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestRun_ExitFirst(t *testing.T) {
	for _, input := range []string{"exit", "EXIT", "Exit", "  eXiT  "} {
		t.Run(input, func(t *testing.T) {
			model := newFakeModel()
			l, out, err := runLoop(t, model, input+"\n", Options{})

			require.NoError(t, err)
			assert.Empty(t, model.prompts)
			assert.Equal(t, 0, l.History().Len())
			assert.True(t, strings.HasPrefix(out, Banner+"\n"))
		})
	}
}

func TestRun_EndOfInput(t *testing.T) {
	model := newFakeModel()
	_, _, err := runLoop(t, model, "", Options{})

	require.NoError(t, err)
	assert.Empty(t, model.prompts)
}

func TestRun_SingleExchange(t *testing.T) {
	model := newFakeModel()
	_, out, err := runLoop(t, model, "hello\nexit\n", Options{})
	require.NoError(t, err)

	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	assert.Equal(t, SystemPrompt, prompt.SystemPrompt)
	require.Len(t, prompt.Turns, 1)
	assert.Equal(t, ai.UserTurn("hello"), prompt.Turns[0])

	claudeLines := linesWithPrefix(out, "Claude: ")
	require.Len(t, claudeLines, 1)
	assert.Equal(t, "Claude: echo: hello", claudeLines[0])
}

func TestRun_HistoryAfterTwoExchanges(t *testing.T) {
	model := newFakeModel()
	l, _, err := runLoop(t, model, "first\nsecond\nexit\n", Options{})
	require.NoError(t, err)

	assert.Equal(t, []ai.Turn{
		ai.UserTurn("first"),
		ai.AssistantTurn("echo: first"),
		ai.UserTurn("second"),
		ai.AssistantTurn("echo: second"),
	}, l.History().Turns())
}

func TestRun_NoContextSendsOnlyLatestTurn(t *testing.T) {
	model := newFakeModel()
	_, _, err := runLoop(t, model, "a\nb\nc\nexit\n", Options{ReplayHistory: false})
	require.NoError(t, err)

	require.Len(t, model.prompts, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Len(t, model.prompts[i].Turns, 1)
		assert.Equal(t, want, model.prompts[i].Turns[0].Text)
	}
}

func TestRun_ReplayHistory(t *testing.T) {
	model := newFakeModel()
	_, _, err := runLoop(t, model, "a\nb\nc\nexit\n", Options{ReplayHistory: true})
	require.NoError(t, err)

	require.Len(t, model.prompts, 3)
	assert.Len(t, model.prompts[0].Turns, 1)
	assert.Len(t, model.prompts[1].Turns, 3)
	assert.Equal(t, []ai.Turn{
		ai.UserTurn("a"),
		ai.AssistantTurn("echo: a"),
		ai.UserTurn("b"),
		ai.AssistantTurn("echo: b"),
		ai.UserTurn("c"),
	}, model.prompts[2].Turns)
}

func TestRun_InvocationErrorEndsSession(t *testing.T) {
	model := newFakeModel()
	model.err = errors.New("service unavailable")

	l, out, err := runLoop(t, model, "hello\nagain\nexit\n", Options{})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindChatInvocation))
	assert.ErrorIs(t, err, model.err)
	assert.Len(t, model.prompts, 1)
	assert.Equal(t, 0, l.History().Len())

	errorLines := linesWithPrefix(out, "Error during chat:")
	require.Len(t, errorLines, 1)
	assert.Contains(t, errorLines[0], "service unavailable")
	assert.True(t, strings.HasSuffix(out, "Error during chat: service unavailable\n"),
		"no further prompts may follow the error, got %q", out)
}

func TestRun_ErrorAfterSuccessfulTurn(t *testing.T) {
	model := newFakeModel()
	model.err = errors.New("throttled")
	model.failOn = 1

	l, out, err := runLoop(t, model, "one\ntwo\nthree\n", Options{})

	assert.True(t, apperr.Is(err, apperr.KindChatInvocation))
	assert.Len(t, model.prompts, 2)
	assert.Equal(t, 2, l.History().Len())
	assert.Len(t, linesWithPrefix(out, "Claude: "), 1)
}

// blockingModel waits for its context to end
type blockingModel struct{}

func (blockingModel) Invoke(ctx context.Context, prompt ai.Prompt) (ai.Reply, error) {
	<-ctx.Done()
	return ai.Reply{}, ctx.Err()
}

func TestRun_TurnTimeout(t *testing.T) {
	_, out, err := runLoop(t, blockingModel{}, "hello\n", Options{TurnTimeout: 10 * time.Millisecond})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, out, "Error during chat:")
}

func TestRun_RecordsTurnSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, _, err := runLoop(t, newFakeModel(), "a\nb\nexit\n", Options{SessionID: "s-1", Tracer: tp.Tracer("test")})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "chat.turn", span.Name())
	}
}
