package assistantapi

import (
	"context"

	assistant "example.com/assistant/gen/assistant"
	"goa.design/clue/log"
)

// assistant service example implementation.
// The example methods log the requests and return zero values.
type assistantsrvc struct{}

// NewAssistant returns the assistant service implementation.
func NewAssistant() assistant.Service {
	return &assistantsrvc{}
}

// List available documents
func (s *assistantsrvc) ListDocuments(ctx context.Context) (res *assistant.Documents, err error) {
	res = &assistant.Documents{}
	log.Printf(ctx, "assistant.list_documents")
	return
}

// Return system info
func (s *assistantsrvc) SystemInfo(ctx context.Context) (res *assistant.SystemInfoResult, err error) {
	res = &assistant.SystemInfoResult{}
	log.Printf(ctx, "assistant.system_info")
	return
}

// Return conversation history with optional query params
func (s *assistantsrvc) ConversationHistory(ctx context.Context, p *assistant.ConversationHistoryPayload) (res *assistant.ConversationHistoryResult, err error) {
	res = &assistant.ConversationHistoryResult{}
	log.Printf(ctx, "assistant.conversation_history")
	return
}

// Generate context-aware prompts
func (s *assistantsrvc) GeneratePrompts(ctx context.Context, p *assistant.GeneratePromptsPayload) (res *assistant.PromptTemplates, err error) {
	res = &assistant.PromptTemplates{}
	log.Printf(ctx, "assistant.generate_prompts")
	return
}

// Send status notification to client
func (s *assistantsrvc) SendNotification(ctx context.Context, p *assistant.SendNotificationPayload) (err error) {
	log.Printf(ctx, "assistant.send_notification")
	return
}

// Analyze sentiment of text
func (s *assistantsrvc) AnalyzeSentiment(ctx context.Context, p *assistant.AnalyzeSentimentPayload) (res *assistant.AnalyzeSentimentResult, err error) {
	res = &assistant.AnalyzeSentimentResult{}
	log.Printf(ctx, "assistant.analyze_sentiment")
	return
}

// Extract keywords from text
func (s *assistantsrvc) ExtractKeywords(ctx context.Context, p *assistant.ExtractKeywordsPayload) (res *assistant.ExtractKeywordsResult, err error) {
	res = &assistant.ExtractKeywordsResult{}
	log.Printf(ctx, "assistant.extract_keywords")
	return
}

// Summarize text
func (s *assistantsrvc) SummarizeText(ctx context.Context, p *assistant.SummarizeTextPayload) (res *assistant.SummarizeTextResult, err error) {
	res = &assistant.SummarizeTextResult{}
	log.Printf(ctx, "assistant.summarize_text")
	return
}

// Search knowledge base
func (s *assistantsrvc) Search(ctx context.Context, p *assistant.SearchPayload) (res *assistant.SearchResult, err error) {
	res = &assistant.SearchResult{}
	log.Printf(ctx, "assistant.search")
	return
}

// Execute code
func (s *assistantsrvc) ExecuteCode(ctx context.Context, p *assistant.ExecuteCodePayload) (res *assistant.ExecuteCodeResult, err error) {
	res = &assistant.ExecuteCodeResult{}
	log.Printf(ctx, "assistant.execute_code")
	return
}

// Process batch of items
func (s *assistantsrvc) ProcessBatch(ctx context.Context, p *assistant.ProcessBatchPayload) (res *assistant.ProcessBatchResult, err error) {
	res = &assistant.ProcessBatchResult{}
	log.Printf(ctx, "assistant.process_batch")
	return
}
