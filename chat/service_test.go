package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/ragline/advisor"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/memory"
	"github.com/poiesic/ragline/storage"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service   *Service
	stores    *badger.Stores
	answerer  *mock.MockChatModel
	expansion *mock.MockChatModel
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	stores, err := badger.NewMemoryStores(mock.NewMockEmbedder())
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	mem, err := memory.New(stores.Conversations)
	require.NoError(t, err)

	expansion := mock.NewMockChatModel()
	expansion.GenerateFunc = func(ctx context.Context, messages []ai.ChatMessage, opts ai.GenerationOptions) (string, error) {
		return "spring framework java dependency injection", nil
	}
	expander, err := advisor.NewQueryExpander(expansion)
	require.NoError(t, err)

	retriever, err := advisor.NewRetriever(stores.Index, advisor.WithRetrievalSettings(advisor.RetrievalSettings{
		SearchTopK:          2,
		FetchMultiplier:     2,
		SimilarityThreshold: -1,
	}))
	require.NoError(t, err)

	answerer := mock.NewMockChatModel()
	chain := NewChain(mem, 8, expander, retriever, nil)
	service, err := NewService(stores.Conversations, mem, chain, answerer, opts...)
	require.NoError(t, err)

	return &fixture{service: service, stores: stores, answerer: answerer, expansion: expansion}
}

func (f *fixture) seed(t *testing.T, texts ...string) {
	t.Helper()
	fragments := make([]core.Fragment, len(texts))
	for i, text := range texts {
		fragments[i] = core.Fragment{Text: text, SourceID: "kb.txt", Sequence: i}
	}
	require.NoError(t, f.stores.Index.Upsert(context.Background(), fragments))
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestConversationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.service.CreateConversation(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, conv.Title)

	named, err := f.service.CreateConversation(ctx, "Spring questions")
	require.NoError(t, err)

	list, err := f.service.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, f.service.DeleteConversation(ctx, conv.Id))
	_, err = f.service.GetConversation(ctx, conv.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := f.service.GetConversation(ctx, named.Id)
	require.NoError(t, err)
	assert.Equal(t, "Spring questions", got.Title)
}

func TestAsk_StreamsAndStoresAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "Spring is a Java framework", "It provides dependency injection")

	conv, err := f.service.CreateConversation(ctx, "spring")
	require.NoError(t, err)

	var tokens []string
	answer, err := f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "what is spring?"}, func(token string) error {
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Greater(t, len(tokens), 1, "answer arrives in several tokens")
	assert.Equal(t, strings.Join(tokens, ""), answer.Content)
	assert.Equal(t, core.RoleAssistant, answer.Role)

	call, ok := f.answerer.LastCall()
	require.True(t, ok)
	assert.True(t, call.Streamed)
	require.Len(t, call.Messages, 2)
	assert.Equal(t, advisor.SystemPrompt(true), call.Messages[0].Content)
	assert.Contains(t, call.Messages[1].Content, "Spring is a Java framework")
	assert.Contains(t, call.Messages[1].Content, "Question: what is spring?")
	assert.Equal(t, 1, f.expansion.CallCount())

	stored, err := f.service.GetConversation(ctx, conv.Id)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "what is spring?", stored.Messages[0].Content)
	assert.Equal(t, answer.Content, stored.Messages[1].Content)
}

func TestAsk_ReplaysHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.service.CreateConversation(ctx, "history")
	require.NoError(t, err)

	_, err = f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "first question"}, nil)
	require.NoError(t, err)
	_, err = f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "second question"}, nil)
	require.NoError(t, err)

	call, ok := f.answerer.LastCall()
	require.True(t, ok)
	require.Len(t, call.Messages, 4)
	assert.Equal(t, core.RoleSystem, call.Messages[0].Role)
	assert.Equal(t, ai.UserMessage("first question"), call.Messages[1])
	assert.Equal(t, core.RoleAssistant, call.Messages[2].Role)
	assert.Contains(t, call.Messages[3].Content, "Question: second question")
}

func TestAsk_EmptyIndexUsesMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.service.CreateConversation(ctx, "empty")
	require.NoError(t, err)

	answer, err := f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "anything?"}, nil)
	require.NoError(t, err)
	assert.Contains(t, answer.Content, "CONTEXT: "+advisor.EmptyContext)
}

func TestAsk_RequestOverrides(t *testing.T) {
	f := newFixture(t, WithOnlyContext(false))
	ctx := context.Background()
	conv, err := f.service.CreateConversation(ctx, "options")
	require.NoError(t, err)

	_, err = f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "q", TopK: 7, TopP: 0.9}, nil)
	require.NoError(t, err)

	call, _ := f.answerer.LastCall()
	assert.Equal(t, 7, call.Options.TopK)
	assert.Equal(t, 0.9, call.Options.TopP)
	assert.Equal(t, ai.DefaultPrimaryOptions().Temperature, call.Options.Temperature)
	assert.Equal(t, advisor.SystemPrompt(false), call.Messages[0].Content)

	only := true
	_, err = f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "q", OnlyContext: &only}, nil)
	require.NoError(t, err)

	call, _ = f.answerer.LastCall()
	assert.Equal(t, advisor.SystemPrompt(true), call.Messages[0].Content)
	assert.Equal(t, ai.DefaultPrimaryOptions().TopK, call.Options.TopK)
}

func TestAsk_ConsumerGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.service.CreateConversation(ctx, "gone")
	require.NoError(t, err)

	received := 0
	answer, err := f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "tell me a long story"}, func(token string) error {
		received++
		return ErrConsumerGone
	})
	require.NoError(t, err)
	assert.Nil(t, answer)
	assert.Equal(t, 1, received)

	stored, err := f.service.GetConversation(ctx, conv.Id)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1, "only the question is stored")
	assert.Equal(t, core.RoleUser, stored.Messages[0].Role)
}

func TestAsk_CanceledContext(t *testing.T) {
	f := newFixture(t)
	conv, err := f.service.CreateConversation(context.Background(), "canceled")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	answer, err := f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "q"}, func(string) error { return nil })
	require.NoError(t, err)
	assert.Nil(t, answer)
	assert.Zero(t, f.answerer.CallCount())
}

func TestAsk_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Ask(ctx, AskRequest{ConversationID: "x", Question: "   "}, nil)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = f.service.Ask(ctx, AskRequest{Question: "q"}, nil)
	assert.ErrorIs(t, err, ErrConversationRequired)

	_, err = f.service.Ask(ctx, AskRequest{ConversationID: "missing", Question: "q"}, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, f.answerer.CallCount())
}

func TestAsk_ModelErrorPropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.service.CreateConversation(ctx, "broken")
	require.NoError(t, err)

	boom := errors.New("model offline")
	f.answerer.GenerateFunc = func(ctx context.Context, messages []ai.ChatMessage, opts ai.GenerationOptions) (string, error) {
		return "", boom
	}

	_, err = f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "q"}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestAsk_ExpansionErrorFailsTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.service.CreateConversation(ctx, "expansion")
	require.NoError(t, err)

	f.expansion.GenerateFunc = func(ctx context.Context, messages []ai.ChatMessage, opts ai.GenerationOptions) (string, error) {
		return "", errors.New("aux model offline")
	}

	_, err = f.service.Ask(ctx, AskRequest{ConversationID: conv.Id, Question: "q"}, nil)
	assert.ErrorIs(t, err, advisor.ErrExpansion)
	assert.Zero(t, f.answerer.CallCount())
}
