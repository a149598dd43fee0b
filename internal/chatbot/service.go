package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/llm"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/cache"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// appends retry this many times when another request wrote the transcript first
const maxAppendAttempts = 3

var (
	ErrBusinessNotFound     = errors.New("business not found")
	ErrChatbotDisabled      = errors.New("chatbot is disabled for this business")
	ErrEmptyMessage         = errors.New("message is required")
	ErrMessageTooLong       = errors.New("message is too long")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrReplyFailed          = errors.New("failed to generate a reply")
	ErrConcurrentUpdate     = errors.New("conversation was updated concurrently")
)

// MessageRequest is one visitor message
type MessageRequest struct {
	Slug         string
	SessionID    string
	Message      string
	VisitorName  string
	VisitorEmail string
}

// MessageResponse carries the reply and the full transcript after it
type MessageResponse struct {
	SessionID      string        `json:"session_id"`
	ConversationID uint          `json:"conversation_id"`
	Reply          string        `json:"reply"`
	Messages       []ChatMessage `json:"messages"`
}

// Service answers visitor messages on behalf of a business
type Service struct {
	db        *gorm.DB
	completer llm.Completer
	loader    *ContextLoader
	selector  *Selector
	cfg       config.ChatbotConfig
	now       func() time.Time
}

// NewService wires the chatbot pipeline. store may be nil to disable context caching.
func NewService(db *gorm.DB, completer llm.Completer, store cache.Store, cfg config.ChatbotConfig) *Service {
	return &Service{
		db:        db,
		completer: completer,
		loader:    NewContextLoader(db, store, cfg.ContextTTL),
		selector:  NewSelector(completer, cfg.SelectionThreshold, cfg.MaxSnippets),
		cfg:       cfg,
		now:       time.Now,
	}
}

// HandleMessage runs the full reply pipeline and persists the exchange.
// Nothing is written when the reply cannot be generated.
func (s *Service) HandleMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		prometheus.RecordChatMessage("rejected")
		return nil, ErrEmptyMessage
	}
	if s.cfg.MaxMessageChars > 0 && utf8.RuneCountInString(text) > s.cfg.MaxMessageChars {
		prometheus.RecordChatMessage("rejected")
		return nil, ErrMessageTooLong
	}

	business, err := s.activeBusiness(ctx, req.Slug)
	if err != nil {
		prometheus.RecordChatMessage("rejected")
		return nil, err
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := logger.Ctx(ctx).With(zap.Uint("business_id", business.ID), zap.String("session_id", sessionID))

	conv, err := s.findConversation(ctx, business.ID, sessionID)
	if err != nil && !errors.Is(err, ErrConversationNotFound) {
		prometheus.RecordChatMessage("error")
		return nil, err
	}
	var history []ChatMessage
	if conv != nil {
		history = s.decode(ctx, conv)
	}

	bc, err := s.loader.Load(ctx, *business)
	if err != nil {
		prometheus.RecordChatMessage("error")
		return nil, err
	}

	knowledge, mode := s.selector.Select(ctx, business.Name, text, bc.Knowledge)
	prometheus.RecordKnowledgeSelection(mode)
	log.Debug("Knowledge selected", zap.String("mode", mode), zap.Int("entries", len(knowledge)))

	userMsg := ChatMessage{Role: llm.RoleUser, Content: text, Timestamp: s.now().UTC()}

	prompt := make([]llm.Message, 0, s.cfg.HistoryLimit+2)
	prompt = append(prompt, llm.Message{Role: llm.RoleSystem, Content: BuildSystemPrompt(bc, knowledge)})
	for _, m := range lastN(history, s.cfg.HistoryLimit) {
		prompt = append(prompt, llm.Message{Role: m.Role, Content: m.Content})
	}
	prompt = append(prompt, llm.Message{Role: llm.RoleUser, Content: text})

	done := prometheus.TrackLLMCall("reply")
	reply, err := s.completer.Complete(ctx, prompt, llm.Options{})
	done(err)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		log.Error("Chatbot reply failed", zap.Error(err))
		prometheus.RecordChatMessage("llm_error")
		return nil, fmt.Errorf("%w: %v", ErrReplyFailed, err)
	}

	turn := []ChatMessage{
		userMsg,
		{Role: llm.RoleAssistant, Content: reply, Timestamp: s.now().UTC()},
	}
	conv, msgs, err := s.persist(ctx, business.ID, sessionID, req, conv, turn)
	if err != nil {
		log.Error("Failed to save conversation", zap.Error(err))
		prometheus.RecordChatMessage("error")
		return nil, err
	}

	prometheus.RecordChatMessage("ok")
	return &MessageResponse{
		SessionID:      sessionID,
		ConversationID: conv.ID,
		Reply:          reply,
		Messages:       msgs,
	}, nil
}

// Transcript returns the stored messages of a visitor session
func (s *Service) Transcript(ctx context.Context, slug, sessionID string) (*model.Conversation, []ChatMessage, error) {
	business, err := s.activeBusiness(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.findConversation(ctx, business.ID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return conv, s.decode(ctx, conv), nil
}

func (s *Service) activeBusiness(ctx context.Context, slug string) (*model.Business, error) {
	var business model.Business
	err := s.db.WithContext(ctx).Where("slug = ? AND active = ?", slug, true).First(&business).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBusinessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load business: %w", err)
	}
	if !business.ChatbotEnabled {
		return nil, ErrChatbotDisabled
	}
	return &business, nil
}

func (s *Service) findConversation(ctx context.Context, businessID uint, sessionID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND session_id = ?", businessID, sessionID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &conv, nil
}

// decode never fails: a corrupt transcript is logged and replaced by an empty one
func (s *Service) decode(ctx context.Context, conv *model.Conversation) []ChatMessage {
	msgs, err := DecodeTranscript(conv.Messages)
	if err != nil {
		logger.Ctx(ctx).Warn("Discarding unreadable transcript",
			zap.Uint("conversation_id", conv.ID), zap.Error(err))
		return []ChatMessage{}
	}
	return msgs
}

// persist appends turn to the conversation, creating it on first use.
// Updates are conditional on the message count so concurrent requests never drop messages.
func (s *Service) persist(ctx context.Context, businessID uint, sessionID string, req MessageRequest, conv *model.Conversation, turn []ChatMessage) (*model.Conversation, []ChatMessage, error) {
	db := s.db.WithContext(ctx)
	last := turn[len(turn)-1].Timestamp

	if conv == nil {
		raw, err := EncodeTranscript(turn)
		if err != nil {
			return nil, nil, err
		}
		created := &model.Conversation{
			BusinessID:    businessID,
			SessionID:     sessionID,
			VisitorName:   req.VisitorName,
			VisitorEmail:  req.VisitorEmail,
			Messages:      raw,
			MessageCount:  len(turn),
			Status:        model.ConversationActive,
			LastMessageAt: &last,
		}
		createErr := db.Create(created).Error
		if createErr == nil {
			return created, turn, nil
		}
		// another request may have opened the same session meanwhile
		existing, err := s.findConversation(ctx, businessID, sessionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create conversation: %w", createErr)
		}
		conv = existing
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		if attempt > 0 {
			reloaded, err := s.findConversation(ctx, businessID, sessionID)
			if err != nil {
				return nil, nil, err
			}
			conv = reloaded
		}

		history := s.decode(ctx, conv)
		msgs := make([]ChatMessage, 0, len(history)+len(turn))
		msgs = append(msgs, history...)
		msgs = append(msgs, turn...)
		raw, err := EncodeTranscript(msgs)
		if err != nil {
			return nil, nil, err
		}

		updates := map[string]interface{}{
			"messages":        raw,
			"message_count":   len(msgs),
			"last_message_at": last,
			"status":          model.ConversationActive,
		}
		if req.VisitorName != "" {
			updates["visitor_name"] = req.VisitorName
		}
		if req.VisitorEmail != "" {
			updates["visitor_email"] = req.VisitorEmail
		}

		res := db.Model(&model.Conversation{}).
			Where("id = ? AND message_count = ?", conv.ID, conv.MessageCount).
			Updates(updates)
		if res.Error != nil {
			return nil, nil, fmt.Errorf("failed to update conversation: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			conv.Messages = raw
			conv.MessageCount = len(msgs)
			conv.LastMessageAt = &last
			conv.Status = model.ConversationActive
			return conv, msgs, nil
		}
	}
	return nil, nil, ErrConcurrentUpdate
}
