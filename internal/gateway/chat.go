package gateway

import (
	"context"
	"net/http"
	"net/url"

	"spaces-client/internal/dto"
	"spaces-client/internal/pkg/apperror"
)

// Chat posts one turn. Filename is omitted for space-wide chat.
func (c *Client) Chat(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	var body []byte
	if err := c.doJSON(ctx, "chat", http.MethodPost, "/chat", req, &body); err != nil {
		return nil, err
	}
	resp, err := dto.ParseChatResponse(body)
	if err != nil {
		return nil, &apperror.MalformedPayloadError{Op: "chat", Err: err}
	}
	return resp, nil
}

func (c *Client) History(ctx context.Context, space, filename string) ([]dto.HistoryRecord, error) {
	if err := c.validateRequest(dto.HistoryRequest{Space: space, Filename: filename}); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("space", space)
	if filename != "" {
		query.Set("filename", filename)
	}

	var resp dto.HistoryResponse
	if err := c.doJSON(ctx, "fetch history", http.MethodGet, "/get_conversations?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (c *Client) SaveConversation(ctx context.Context, req dto.SaveConversationRequest) error {
	if err := c.validateRequest(req); err != nil {
		return err
	}
	return c.doJSON(ctx, "save conversation", http.MethodPost, "/save_conversation", req, nil)
}
