package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// ChatRequest represents the chat API request.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Query          string `json:"query"`
	Mode           string `json:"mode,omitempty"`
	TopK           int    `json:"top_k,omitempty"`
}

// ChatSource represents a cited source in a chat answer.
type ChatSource struct {
	PaperID string  `json:"paper_id"`
	Title   string  `json:"title"`
	Authors string  `json:"authors,omitempty"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
}

// ChatResponse represents the chat API response.
type ChatResponse struct {
	ConversationID string       `json:"conversation_id"`
	Answer         string       `json:"answer"`
	Sources        []ChatSource `json:"sources,omitempty"`
	GateReason     string       `json:"gate_reason,omitempty"`
	Grounded       bool         `json:"grounded"`
	Degraded       bool         `json:"degraded,omitempty"`
	TokensUsed     int          `json:"tokens_used,omitempty"`
}

// ChatMessage represents a message in a conversation history response.
type ChatMessage struct {
	ID         int64        `json:"id"`
	Type       string       `json:"type"`
	Content    string       `json:"content"`
	Sources    []ChatSource `json:"sources,omitempty"`
	TokensUsed int          `json:"tokens_used,omitempty"`
	CreatedAt  string       `json:"created_at"`
}

// ChatHistoryResponse represents the chat history API response.
type ChatHistoryResponse struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []ChatMessage `json:"messages"`
}

// ChatStatsResponse represents the conversation stats API response.
type ChatStatsResponse struct {
	ConversationID    string `json:"conversation_id"`
	MessageCount      int    `json:"message_count"`
	UserMessages      int    `json:"user_messages"`
	AssistantMessages int    `json:"assistant_messages"`
	TotalTokens       int    `json:"total_tokens"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// ChatCmd creates the chat command with history and stats subcommands.
func ChatCmd() *cobra.Command {
	var (
		conversationID string
		mode           string
		topK           int
	)

	cmd := &cobra.Command{
		Use:   "chat <query>",
		Short: "Ask a question about the paper corpus",
		Long: `Asks a question and receives an answer grounded in the paper corpus.

Pass --conversation to continue an earlier conversation; without it a
new conversation is created and its ID printed for follow-up questions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runChat(cmd, args[0], conversationID, mode, topK, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation ID to continue")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Retrieval mode (lexical, vector_local, vector_pinecone, combined)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve")

	cmd.AddCommand(chatHistoryCmd())
	cmd.AddCommand(chatStatsCmd())

	return cmd
}

func runChat(cmd *cobra.Command, query, conversationID, mode string, topK int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := ChatRequest{
		ConversationID: conversationID,
		Query:          query,
		Mode:           mode,
		TopK:           topK,
	}

	resp, err := api.Post("/chat", req)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(resp.Data, &chatResp); err != nil {
		return fmt.Errorf("failed to parse chat response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(chatResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(chatResp.Answer)
	if len(chatResp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range chatResp.Sources {
			fmt.Printf("  - %s (%s, %.4f)\n", src.Title, src.PaperID, src.Score)
		}
	}
	if chatResp.Degraded {
		fmt.Println()
		fmt.Println("Note: retrieval was degraded, some backends were unavailable.")
	}
	fmt.Println()
	fmt.Printf("Conversation: %s\n", chatResp.ConversationID)

	return nil
}

func chatHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <conversation_id>",
		Short: "Show conversation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runChatHistory(cmd, args[0], limit, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of messages (0 = server default)")

	return cmd
}

func runChatHistory(cmd *cobra.Command, conversationID string, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/chat/history/%s", conversationID)
	if limit > 0 {
		path += "?" + url.Values{"limit": {fmt.Sprintf("%d", limit)}}.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	var history ChatHistoryResponse
	if err := json.Unmarshal(resp.Data, &history); err != nil {
		return fmt.Errorf("failed to parse history: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(history, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(history.Messages) == 0 {
		fmt.Println("No messages.")
		return nil
	}

	for i, msg := range history.Messages {
		fmt.Printf("[%s] %s\n", msg.Type, msg.CreatedAt)
		fmt.Println(msg.Content)
		if len(msg.Sources) > 0 {
			fmt.Println("Sources:")
			for _, src := range msg.Sources {
				fmt.Printf("  - %s (%s)\n", src.Title, src.PaperID)
			}
		}
		if i < len(history.Messages)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}

func chatStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <conversation_id>",
		Short: "Show conversation statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runChatStats(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runChatStats(cmd *cobra.Command, conversationID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/chat/stats/%s", conversationID))
	if err != nil {
		return fmt.Errorf("failed to get conversation stats: %w", err)
	}

	var stats ChatStatsResponse
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return fmt.Errorf("failed to parse stats: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Conversation: %s\n", stats.ConversationID)
	fmt.Printf("Messages: %d (%d user, %d assistant)\n",
		stats.MessageCount, stats.UserMessages, stats.AssistantMessages)
	fmt.Printf("Total tokens: %d\n", stats.TotalTokens)
	fmt.Printf("Created: %s\n", stats.CreatedAt)
	fmt.Printf("Updated: %s\n", stats.UpdatedAt)

	return nil
}
