package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"analytics-backend/internal/agent"
	"analytics-backend/internal/database"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// condenseWindow caps how many prior messages are included when rewriting a
// follow-up question into a standalone one.
const condenseWindow = 10

type ChatSession struct {
	mu        sync.Mutex
	db        *gorm.DB
	sessionID uuid.UUID
	agent     *agent.Agent
	condenser llms.Model
}

func NewChatSession(db *gorm.DB, sessionID uuid.UUID, analysisAgent *agent.Agent, model, apiKey, baseURL string) (*ChatSession, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create chat client: %w", err)
	}

	return &ChatSession{
		db:        db,
		sessionID: sessionID,
		agent:     analysisAgent,
		condenser: client,
	}, nil
}

// Chat answers one user message in the context of the session. Follow-up
// questions are first rewritten into standalone questions using the recent
// history, so the analysis agent never needs the conversation itself.
func (session *ChatSession) Chat(ctx context.Context, userInput string) (*agent.Output, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	history, err := GetChatHistory(session.db, session.sessionID)
	if err != nil {
		return nil, fmt.Errorf("error loading chat history: %w", err)
	}

	question := userInput
	if len(history) > 0 {
		question, err = session.condense(ctx, history, userInput)
		if err != nil {
			slog.Warn("could not condense follow-up question, using it verbatim", "error", err)
			question = userInput
		}
	}

	if err := session.saveMessage("user", userInput, nil); err != nil {
		return nil, err
	}

	output, err := session.agent.Process(ctx, question)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{}
	if output.CodeExecuted != "" {
		metadata["query"] = output.CodeExecuted
	}
	if output.VisualizationCode != "" {
		metadata["visualization_code"] = output.VisualizationCode
	}
	if err := session.saveMessage("ai", output.Response, metadata); err != nil {
		return nil, err
	}

	return output, nil
}

func (session *ChatSession) condense(ctx context.Context, history []database.ChatHistory, userInput string) (string, error) {
	if len(history) > condenseWindow {
		history = history[len(history)-condenseWindow:]
	}

	var transcript strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.MessageType, msg.Content)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem,
			"Rewrite the user's latest message as a single standalone question about the NYC 311 dataset, "+
				"resolving any references to the conversation. If it is already standalone, return it unchanged. "+
				"Return ONLY the question."),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("CONVERSATION:\n%s\nLATEST MESSAGE: %s", transcript.String(), userInput)),
	}

	resp, err := session.condenser.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from chat model")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func (session *ChatSession) saveMessage(messageType, content string, metadata map[string]string) error {
	var metadataJSON datatypes.JSON = nil
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("could not marshal metadata: %w", err)
		}
		metadataJSON = datatypes.JSON(b)
	}

	chatMessage := database.ChatHistory{
		SessionID:   session.sessionID,
		MessageType: messageType,
		Content:     content,
		Metadata:    metadataJSON,
	}
	return SaveChatMessage(session.db, &chatMessage)
}
