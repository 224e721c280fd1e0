package chat

import (
	"context"
	"fmt"
	"testing"

	"analytics-backend/internal/agent"
	"analytics-backend/internal/database"
	"analytics-backend/internal/dataset"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"gorm.io/gorm"
)

type scriptedLLM struct {
	responses []string
	prompts   []string
	calls     int
}

func (s *scriptedLLM) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if s.calls >= len(s.responses) {
		return "", fmt.Errorf("unexpected llm call %d", s.calls+1)
	}
	s.prompts = append(s.prompts, prompt)
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *scriptedLLM) GenerateJSON(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return s.Generate(ctx, systemPrompt, prompt)
}

// fakeCondenser stands in for the chat model that rewrites follow-ups.
type fakeCondenser struct {
	response string
	err      error
	calls    int
}

func (f *fakeCondenser) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.response}}}, nil
}

func (f *fakeCondenser) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	f.calls++
	return f.response, f.err
}

func testDB(t *testing.T) *gorm.DB {
	db, err := database.NewDatabase("file::memory:")
	require.NoError(t, err)
	return db
}

func newTestSession(t *testing.T, db *gorm.DB, llm *scriptedLLM, condenser llms.Model) *ChatSession {
	frame, err := dataset.NewFrame([]*dataset.Column{
		{Name: "Borough", Type: dataset.StringColumn,
			Strings: []string{"BRONX", "QUEENS", "BRONX", "BROOKLYN"}, Nulls: make([]bool, 4)},
	})
	require.NoError(t, err)

	sessionID := uuid.New()
	require.NoError(t, CreateSession(db, &database.ChatSession{ID: sessionID, Title: "test"}))

	return &ChatSession{
		db:        db,
		sessionID: sessionID,
		agent:     agent.New(llm, frame, nil),
		condenser: condenser,
	}
}

func TestChatFirstMessageSkipsCondense(t *testing.T) {
	db := testDB(t)
	llm := &scriptedLLM{responses: []string{
		"Plan: count rows.",
		"COUNT",
		"There are 4 complaints in total.",
	}}
	condenser := &fakeCondenser{response: "should not be used"}
	session := newTestSession(t, db, llm, condenser)

	output, err := session.Chat(context.Background(), "How many complaints?")
	require.NoError(t, err)

	assert.True(t, output.Success)
	assert.Equal(t, 0, condenser.calls)

	history, err := GetChatHistory(db, session.sessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].MessageType)
	assert.Equal(t, "How many complaints?", history[0].Content)
	assert.Equal(t, "ai", history[1].MessageType)
	assert.Contains(t, string(history[1].Metadata), "COUNT")
}

func TestChatCondensesFollowUp(t *testing.T) {
	db := testDB(t)
	llm := &scriptedLLM{responses: []string{
		"Plan: count bronx rows.",
		`FILTER Borough = "BRONX" | COUNT`,
		"There are 2 complaints in the Bronx.",
	}}
	standalone := "How many complaints are there in the Bronx?"
	condenser := &fakeCondenser{response: standalone}
	session := newTestSession(t, db, llm, condenser)

	require.NoError(t, SaveChatMessage(db, &database.ChatHistory{
		SessionID: session.sessionID, MessageType: "user", Content: "How many complaints per borough?"}))
	require.NoError(t, SaveChatMessage(db, &database.ChatHistory{
		SessionID: session.sessionID, MessageType: "ai", Content: "BRONX: 2, QUEENS: 1, BROOKLYN: 1"}))

	output, err := session.Chat(context.Background(), "And in the Bronx?")
	require.NoError(t, err)

	assert.True(t, output.Success)
	assert.Equal(t, 1, condenser.calls)
	// The analysis runs on the rewritten question, not the raw follow-up.
	assert.Contains(t, llm.prompts[0], standalone)

	history, err := GetChatHistory(db, session.sessionID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	// The verbatim user message is what lands in history.
	assert.Equal(t, "And in the Bronx?", history[2].Content)
}

func TestChatCondenseFailureFallsBack(t *testing.T) {
	db := testDB(t)
	llm := &scriptedLLM{responses: []string{
		"Plan: count rows.",
		"COUNT",
		"There are 4 complaints in total.",
	}}
	condenser := &fakeCondenser{err: fmt.Errorf("model unavailable")}
	session := newTestSession(t, db, llm, condenser)

	require.NoError(t, SaveChatMessage(db, &database.ChatHistory{
		SessionID: session.sessionID, MessageType: "user", Content: "earlier question"}))

	output, err := session.Chat(context.Background(), "How many complaints?")
	require.NoError(t, err)

	assert.True(t, output.Success)
	assert.Contains(t, llm.prompts[0], "How many complaints?")
}

func TestSessionCacheEviction(t *testing.T) {
	cache := NewSessionCache(2)

	created := 0
	get := func(id uuid.UUID) {
		_, err := cache.GetSession(id, func() (*ChatSession, error) {
			created++
			return &ChatSession{sessionID: id}, nil
		})
		require.NoError(t, err)
	}

	first := uuid.New()
	second := uuid.New()
	third := uuid.New()

	get(first)
	get(second)
	assert.Equal(t, 2, created)

	// Hits do not create new sessions.
	get(first)
	assert.Equal(t, 2, created)

	// A third session evicts the least recently used one.
	get(third)
	assert.Equal(t, 3, created)
	get(second)
	assert.Equal(t, 4, created)
}

func TestDeleteSessionRemovesHistory(t *testing.T) {
	db := testDB(t)

	sessionID := uuid.New()
	require.NoError(t, CreateSession(db, &database.ChatSession{ID: sessionID, Title: "doomed"}))
	require.NoError(t, SaveChatMessage(db, &database.ChatHistory{
		SessionID: sessionID, MessageType: "user", Content: "hello"}))

	require.NoError(t, DeleteSession(db, sessionID))

	_, err := GetSession(db, sessionID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	history, err := GetChatHistory(db, sessionID)
	require.NoError(t, err)
	assert.Empty(t, history)
}
