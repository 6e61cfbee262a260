// Package chat answers questions inside conversations.
//
// A Service owns the conversation lifecycle and runs each question through an
// advisor chain: memory replay, query expansion, retrieval with re-ranking,
// then a single call to the answering model. Answers can be streamed token by
// token; the folded answer is stored once the model finishes.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/ragline/advisor"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/memory"
	"github.com/poiesic/ragline/storage"
)

// DefaultTitle names conversations created without a title.
const DefaultTitle = "New chat"

// TokenFunc receives answer tokens as the model produces them.
// Returning ErrConsumerGone ends the turn quietly.
type TokenFunc func(token string) error

// AskRequest is one question in a conversation.
type AskRequest struct {
	ConversationID string
	Question       string

	// OnlyContext restricts the answer to retrieved context. Nil uses the service default.
	OnlyContext *bool

	// TopK and TopP override the primary sampling options when positive.
	TopK int
	TopP float64
}

// Service manages conversations and answers questions.
type Service struct {
	conversations storage.ConversationRepository
	memory        *memory.Memory
	chain         *advisor.Chain
	model         ai.ChatModel
	primary       ai.GenerationOptions
	onlyContext   bool
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithPrimaryOptions sets the answer sampling options.
// Default is ai.DefaultPrimaryOptions().
func WithPrimaryOptions(opts ai.GenerationOptions) Option {
	return func(s *Service) error {
		if err := opts.Validate(); err != nil {
			return err
		}
		s.primary = opts
		return nil
	}
}

// WithOnlyContext sets whether answers are restricted to retrieved context
// when a request does not say. Default is true.
func WithOnlyContext(onlyContext bool) Option {
	return func(s *Service) error {
		s.onlyContext = onlyContext
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a chat service. The chain must include a memory advisor
// over mem so questions are recorded alongside answers.
func NewService(
	conversations storage.ConversationRepository,
	mem *memory.Memory,
	chain *advisor.Chain,
	model ai.ChatModel,
	opts ...Option,
) (*Service, error) {
	if conversations == nil {
		return nil, errors.New("conversation repository cannot be nil")
	}
	if mem == nil {
		return nil, errors.New("memory cannot be nil")
	}
	if chain == nil {
		return nil, errors.New("advisor chain cannot be nil")
	}
	if model == nil {
		return nil, errors.New("chat model cannot be nil")
	}

	s := &Service{
		conversations: conversations,
		memory:        mem,
		chain:         chain,
		model:         model,
		primary:       ai.DefaultPrimaryOptions(),
		onlyContext:   true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "chat")
	return s, nil
}

// CreateConversation starts an empty conversation.
func (s *Service) CreateConversation(ctx context.Context, title string) (*core.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	return s.conversations.CreateConversation(ctx, title)
}

// ListConversations returns conversation headers, newest first.
func (s *Service) ListConversations(ctx context.Context) ([]*core.Conversation, error) {
	return s.conversations.ListConversations(ctx)
}

// GetConversation returns a conversation with its messages.
func (s *Service) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	return s.conversations.GetConversation(ctx, id)
}

// DeleteConversation removes a conversation and its history.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if err := s.conversations.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.memory.Forget(id)
	return nil
}

// Ask answers a question and stores the answer in the conversation.
//
// With a nil onToken the answer is generated in one call. Otherwise it is
// streamed and each token is passed to onToken as it arrives. When the reader
// goes away, either by canceling ctx or by onToken returning ErrConsumerGone,
// Ask returns a nil message and a nil error and nothing is stored for the answer.
func (s *Service) Ask(ctx context.Context, req AskRequest, onToken TokenFunc) (*core.Message, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if req.ConversationID == "" {
		return nil, ErrConversationRequired
	}

	onlyContext := s.onlyContext
	if req.OnlyContext != nil {
		onlyContext = *req.OnlyContext
	}

	rc := advisor.NewRequestContext()
	advisor.Set(rc, advisor.ConversationIDKey, req.ConversationID)
	areq := &advisor.Request{
		Messages: []ai.ChatMessage{
			ai.SystemMessage(advisor.SystemPrompt(onlyContext)),
			ai.UserMessage(question),
		},
		UserText: question,
		Options:  s.primary.WithTopK(req.TopK).WithTopP(req.TopP),
		Context:  rc,
	}

	resp, err := s.chain.Call(ctx, areq, s.modelCall(onToken))
	if err != nil {
		if errors.Is(err, ErrConsumerGone) || ctx.Err() != nil {
			s.logger.Info("reader left before the answer finished", "conversation_id", req.ConversationID)
			return nil, nil
		}
		return nil, err
	}

	answer := &core.Message{Role: core.RoleAssistant, Content: resp.Text}
	if err := s.memory.Append(ctx, req.ConversationID, answer); err != nil {
		return nil, err
	}

	s.logger.Debug("answered question",
		"conversation_id", req.ConversationID,
		"expansion_ratio", rc.ExpansionRatio(),
		"answer_chars", len(answer.Content))
	return answer, nil
}

func (s *Service) modelCall(onToken TokenFunc) advisor.ModelCall {
	if onToken == nil {
		return func(ctx context.Context, req *advisor.Request) (string, error) {
			return s.model.Generate(ctx, req.Messages, req.Options)
		}
	}
	return func(ctx context.Context, req *advisor.Request) (string, error) {
		var answer strings.Builder
		_, err := s.model.Stream(ctx, req.Messages, req.Options, func(ctx context.Context, token string) error {
			answer.WriteString(token)
			return onToken(token)
		})
		if err != nil {
			return "", err
		}
		return answer.String(), nil
	}
}
