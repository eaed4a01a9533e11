// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bankbot/internal/banking"
	"github.com/jeranaias/bankbot/internal/reply"
	"github.com/jeranaias/bankbot/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeGenerator records prompts and streams its reply word by word.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
	before  func() // runs before replying
}

func (g *fakeGenerator) Name() string { return "fake/model" }

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateStream(ctx, prompt, nil)
}

func (g *fakeGenerator) GenerateStream(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.before != nil {
		g.before()
	}
	if g.err != nil {
		return "", g.err
	}
	if onDelta != nil {
		for _, word := range strings.SplitAfter(g.reply, " ") {
			onDelta(word)
		}
	}
	return g.reply, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
	saves    int
	count    int
}

func (o *recordingObserver) MessageAnswered(out Outcome) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, out)
	o.mu.Unlock()
}

func (o *recordingObserver) HistorySaved(time.Duration, error) {
	o.mu.Lock()
	o.saves++
	o.mu.Unlock()
}

func (o *recordingObserver) ConversationCountChanged(n int) {
	o.mu.Lock()
	o.count = n
	o.mu.Unlock()
}

func newResponder(gen reply.Generator) Responder {
	return Responder{
		Classifier: banking.NewClassifier(banking.DefaultKeywords),
		FAQ:        banking.NewFAQ(banking.Entry{Question: "atm", Answer: "Automated Teller Machine"}),
		Generator:  gen,
	}
}

func openController(t *testing.T, gen reply.Generator, obs Observer) (*Controller, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), storage.HistoryFileName)
	c, err := Open(storage.NewHistoryStore(path), newResponder(gen), Options{Observer: obs})
	require.NoError(t, err)
	return c, path
}

func loadFromDisk(t *testing.T, path string) *storage.History {
	t.Helper()
	h, err := storage.NewHistoryStore(path).Load()
	require.NoError(t, err)
	return h
}

// =============================================================================
// OPEN
// =============================================================================

func TestOpenCreatesAndSavesFirstConversation(t *testing.T) {
	c, path := openController(t, &fakeGenerator{}, nil)

	require.Len(t, c.Conversations(), 1)
	assert.NotEmpty(t, c.ActiveID())

	onDisk := loadFromDisk(t, path)
	assert.Equal(t, []string{c.ActiveID()}, onDisk.IDs())
	assert.Equal(t, c.ActiveID(), onDisk.ActiveID())
}

func TestOpenKeepsExistingHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), storage.HistoryFileName)
	store := storage.NewHistoryStore(path)
	h := storage.NewHistory()
	first := h.CreateNewChat()
	second := h.CreateNewChat()
	require.NoError(t, store.Save(h))

	c, err := Open(store, newResponder(&fakeGenerator{}), Options{})
	require.NoError(t, err)
	assert.Len(t, c.Conversations(), 2)
	assert.Equal(t, second, c.ActiveID())
	assert.NotEqual(t, first, c.ActiveID())
}

func TestOpenCorruptHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), storage.HistoryFileName)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))

	_, err := Open(storage.NewHistoryStore(path), newResponder(nil), Options{})
	assert.True(t, errors.Is(err, storage.ErrCorruptHistory))
}

func TestOpenRejectsEmptyConversationID(t *testing.T) {
	path := filepath.Join(t.TempDir(), storage.HistoryFileName)
	data := []byte(`{"conversations": {"": {"title": "x", "messages": []}}, "active_chat": ""}`)
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, err := Open(storage.NewHistoryStore(path), newResponder(nil), Options{})
	assert.True(t, errors.Is(err, storage.ErrCorruptHistory))

	onDisk, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, data, onDisk, "corrupt file is left alone")
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmitOutOfDomain(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	c, path := openController(t, gen, nil)

	out, err := c.Submit(context.Background(), "What's the weather today?", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteRefused, out.Route)
	assert.Equal(t, banking.DefaultRefusal, out.Reply)
	assert.Equal(t, 0, gen.calls())

	conv, err := c.Transcript("")
	require.NoError(t, err)
	assert.Equal(t, "What's the weather today?", conv.Title)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, storage.UserMessage("What's the weather today?"), conv.Messages[1])
	assert.Equal(t, storage.AssistantMessage(banking.DefaultRefusal), conv.Messages[2])

	saved, _ := loadFromDisk(t, path).Get(c.ActiveID())
	assert.Equal(t, conv.Messages, saved.Messages)
}

func TestSubmitFAQ(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	c, _ := openController(t, gen, nil)

	out, err := c.Submit(context.Background(), "What does ATM stand for at my bank?", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteFAQ, out.Route)
	assert.Equal(t, "Automated Teller Machine", out.Reply)
	assert.Equal(t, "bank", out.Keyword)
	assert.Equal(t, 0, gen.calls())
}

func TestSubmitGeneratedReply(t *testing.T) {
	gen := &fakeGenerator{reply: "Your balance is shown on the Accounts page."}
	c, path := openController(t, gen, nil)

	var deltas []string
	out, err := c.Submit(context.Background(), "  What is my account balance?  ", func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)
	assert.Equal(t, RouteModel, out.Route)
	assert.Equal(t, gen.reply, out.Reply)
	assert.Equal(t, gen.reply, strings.Join(deltas, ""))
	assert.Equal(t, []string{"What is my account balance?"}, gen.prompts, "prompt is trimmed")

	saved, _ := loadFromDisk(t, path).Get(c.ActiveID())
	require.Len(t, saved.Messages, 3)
	assert.Equal(t, storage.AssistantMessage(gen.reply), saved.Messages[2])
}

func TestSubmitSavesUserMessageBeforeGenerating(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c, path := openController(t, gen, nil)

	var seenOnDisk []storage.Message
	gen.before = func() {
		conv, _ := loadFromDisk(t, path).Get(c.ActiveID())
		seenOnDisk = conv.Messages
	}

	_, err := c.Submit(context.Background(), "loan options?", nil)
	require.NoError(t, err)
	require.Len(t, seenOnDisk, 2)
	assert.Equal(t, storage.UserMessage("loan options?"), seenOnDisk[1])
}

func TestSubmitGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: &reply.Error{Kind: reply.KindUnavailable, Message: "cannot reach Ollama at 127.0.0.1:11434"}}
	c, _ := openController(t, gen, nil)

	out, err := c.Submit(context.Background(), "credit card limits?", nil)
	require.NoError(t, err, "generation failures are recorded, not returned")
	assert.Equal(t, RouteError, out.Route)
	assert.Equal(t, reply.KindUnavailable, out.ErrorKind)
	assert.Equal(t, "Error from AI: cannot reach Ollama at 127.0.0.1:11434", out.Reply)

	conv, _ := c.Transcript("")
	assert.Equal(t, storage.AssistantMessage(out.Reply), conv.Messages[len(conv.Messages)-1])

	// The conversation continues.
	gen.err, gen.reply = nil, "Limits depend on your credit score."
	out, err = c.Submit(context.Background(), "and debit cards?", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteModel, out.Route)
}

func TestSubmitWithoutGenerator(t *testing.T) {
	c, _ := openController(t, nil, nil)

	out, err := c.Submit(context.Background(), "mortgage rates?", nil)
	require.NoError(t, err)
	assert.Equal(t, RouteError, out.Route)
	assert.True(t, strings.HasPrefix(out.Reply, reply.DescribePrefix))
}

func TestSubmitEmpty(t *testing.T) {
	c, _ := openController(t, &fakeGenerator{}, nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Submit(context.Background(), text, nil)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	conv, _ := c.Transcript("")
	assert.Len(t, conv.Messages, 1)
	assert.Equal(t, storage.DefaultTitle, conv.Title)
}

func TestTitleAdoptedOnlyFromFirstMessage(t *testing.T) {
	c, _ := openController(t, &fakeGenerator{reply: "ok"}, nil)

	long := "How do I dispute a transaction that I do not recognise?"
	out, err := c.Submit(context.Background(), long, nil)
	require.NoError(t, err)
	assert.True(t, out.TitleChanged)

	out, err = c.Submit(context.Background(), "what about a bank transfer?", nil)
	require.NoError(t, err)
	assert.False(t, out.TitleChanged)

	conv, _ := c.Transcript("")
	assert.Equal(t, long[:30], conv.Title)
}

func TestSubmitTo(t *testing.T) {
	c, _ := openController(t, &fakeGenerator{reply: "ok"}, nil)
	first := c.ActiveID()
	second, err := c.NewChat()
	require.NoError(t, err)

	out, err := c.SubmitTo(context.Background(), first, "savings rates?", nil)
	require.NoError(t, err)
	assert.Equal(t, first, out.ConversationID)
	assert.Equal(t, first, c.ActiveID())

	conv, _ := c.Transcript(second)
	assert.Len(t, conv.Messages, 1, "other conversation untouched")

	_, err = c.SubmitTo(context.Background(), "missing", "savings?", nil)
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)
}

func TestSubmitPersistenceFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	h := storage.NewHistory()
	h.CreateNewChat()
	store := storage.NewHistoryStore(filepath.Join(blocker, storage.HistoryFileName))
	gen := &fakeGenerator{reply: "unused"}
	c := New(store, h, newResponder(gen), Options{})

	_, err := c.Submit(context.Background(), "loan?", nil)
	require.Error(t, err)
	assert.Equal(t, 0, gen.calls(), "no generation after a failed save")
}

func TestSubmitConcurrent(t *testing.T) {
	c, path := openController(t, &fakeGenerator{reply: "ok"}, nil)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Submit(context.Background(), fmt.Sprintf("loan question %d", i), nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	conv, _ := loadFromDisk(t, path).Get(c.ActiveID())
	require.Len(t, conv.Messages, 1+2*n)
	for i := 1; i < len(conv.Messages); i += 2 {
		assert.Equal(t, storage.RoleUser, conv.Messages[i].Role)
		assert.Equal(t, storage.RoleAssistant, conv.Messages[i+1].Role)
	}
}

// blockingGenerator returns a generator that waits for release before
// replying, closing started once generation begins.
func blockingGenerator() (gen *fakeGenerator, started, release chan struct{}) {
	started, release = make(chan struct{}), make(chan struct{})
	gen = &fakeGenerator{reply: "ok", before: func() {
		close(started)
		<-release
	}}
	return gen, started, release
}

func TestQueriesDuringGeneration(t *testing.T) {
	gen, started, release := blockingGenerator()
	c, _ := openController(t, gen, nil)
	id := c.ActiveID()

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "loan rates?", nil)
		done <- err
	}()
	<-started

	answered := make(chan struct{})
	go func() {
		defer close(answered)
		assert.Len(t, c.Conversations(), 1)
		conv, err := c.Transcript(id)
		assert.NoError(t, err)
		assert.Len(t, conv.Messages, 2, "user message is visible before the reply")
		_, err = c.NewChat()
		assert.NoError(t, err)
	}()
	select {
	case <-answered:
	case <-time.After(2 * time.Second):
		t.Fatal("queries blocked while a reply was generated")
	}

	close(release)
	require.NoError(t, <-done)
	conv, err := c.Transcript(id)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 3)
}

func TestDeleteDuringGeneration(t *testing.T) {
	gen, started, release := blockingGenerator()
	c, path := openController(t, gen, nil)
	id := c.ActiveID()

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "loan rates?", nil)
		done <- err
	}()
	<-started

	_, err := c.DeleteChat(id)
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-done, storage.ErrConversationNotFound)
	onDisk := loadFromDisk(t, path)
	_, ok := onDisk.Get(id)
	assert.False(t, ok, "dropped reply does not resurrect the conversation")
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

func TestNewSelectRename(t *testing.T) {
	obs := &recordingObserver{}
	c, path := openController(t, &fakeGenerator{}, obs)
	first := c.ActiveID()

	second, err := c.NewChat()
	require.NoError(t, err)
	assert.Equal(t, second, c.ActiveID())
	assert.Equal(t, 2, obs.count)

	require.NoError(t, c.SelectChat(first))
	require.NoError(t, c.RenameChat(first, "Mortgage"))

	onDisk := loadFromDisk(t, path)
	assert.Equal(t, first, onDisk.ActiveID())
	conv, _ := onDisk.Get(first)
	assert.Equal(t, "Mortgage", conv.Title)

	assert.ErrorIs(t, c.SelectChat("missing"), storage.ErrConversationNotFound)
	assert.ErrorIs(t, c.RenameChat("missing", "x"), storage.ErrConversationNotFound)
}

func TestDeleteChat(t *testing.T) {
	c, path := openController(t, &fakeGenerator{}, nil)
	first := c.ActiveID()
	second, err := c.NewChat()
	require.NoError(t, err)

	active, err := c.DeleteChat(second)
	require.NoError(t, err)
	assert.Equal(t, first, active)

	active, err = c.DeleteChat(first)
	require.NoError(t, err)
	assert.NotEqual(t, first, active)

	onDisk := loadFromDisk(t, path)
	assert.Equal(t, []string{active}, onDisk.IDs())
	assert.Equal(t, active, onDisk.ActiveID())

	_, err = c.DeleteChat("missing")
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)
}

func TestTranscriptIsACopy(t *testing.T) {
	c, _ := openController(t, &fakeGenerator{}, nil)

	conv, err := c.Transcript("")
	require.NoError(t, err)
	conv.Messages[0].Text = "mutated"
	conv.Title = "mutated"

	again, _ := c.Transcript(c.ActiveID())
	assert.Equal(t, storage.DefaultGreeting, again.Messages[0].Text)
	assert.Equal(t, storage.DefaultTitle, again.Title)

	_, err = c.Transcript("missing")
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)
}

func TestObserverSeesOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	c, _ := openController(t, &fakeGenerator{reply: "ok"}, obs)

	_, err := c.Submit(context.Background(), "weather?", nil)
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), "loan?", nil)
	require.NoError(t, err)

	require.Len(t, obs.outcomes, 2)
	assert.Equal(t, RouteRefused, obs.outcomes[0].Route)
	assert.Equal(t, RouteModel, obs.outcomes[1].Route)
	// initial save + one for the refusal + two for the in-domain message
	assert.Equal(t, 4, obs.saves)
}

// =============================================================================
// RESPONDER
// =============================================================================

func TestResponderCustomRefusal(t *testing.T) {
	r := newResponder(nil)
	r.Refusal = "Banking questions only, please."

	out := r.Respond(context.Background(), "tell me a joke", nil)
	assert.Equal(t, RouteRefused, out.Route)
	assert.Equal(t, "Banking questions only, please.", out.Reply)
}

func TestCustomGreeting(t *testing.T) {
	path := filepath.Join(t.TempDir(), storage.HistoryFileName)
	c, err := Open(storage.NewHistoryStore(path), newResponder(nil), Options{Greeting: "Welcome to the bank."})
	require.NoError(t, err)

	conv, err := c.Transcript("")
	require.NoError(t, err)
	assert.Equal(t, []storage.Message{storage.AssistantMessage("Welcome to the bank.")}, conv.Messages)
}
