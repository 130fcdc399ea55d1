package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"spaces-client/internal/dto"
	"spaces-client/internal/pkg/apperror"
)

func (c *Client) ListSpaces(ctx context.Context) ([]string, error) {
	var resp dto.ListSpacesResponse
	if err := c.doJSON(ctx, "list spaces", http.MethodGet, "/list_spaces", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Spaces == nil {
		return []string{}, nil
	}
	return resp.Spaces, nil
}

func (c *Client) ListFiles(ctx context.Context, space string) ([]dto.FileDTO, error) {
	if err := c.validateRequest(dto.ListFilesRequest{Space: space}); err != nil {
		return nil, err
	}

	var resp dto.ListFilesResponse
	path := "/list_files/" + url.PathEscape(space)
	if err := c.doJSON(ctx, "list files", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Files == nil {
		return []dto.FileDTO{}, nil
	}
	return resp.Files, nil
}

// CreateSpace returns the server's confirmation message.
func (c *Client) CreateSpace(ctx context.Context, name string) (string, error) {
	req := dto.CreateSpaceRequest{SpaceName: strings.TrimSpace(name)}
	if err := c.validateRequest(req); err != nil {
		return "", err
	}

	var resp dto.MessageResponse
	if err := c.doJSON(ctx, "create space", http.MethodPost, "/create_space", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ConvertFile asks the server to index a file. The server's indexed flag is
// only learned from a later ListFiles.
func (c *Client) ConvertFile(ctx context.Context, space, fileName string) (string, error) {
	req := dto.ConvertFileRequest{FileName: fileName, Space: space}
	if err := c.validateRequest(req); err != nil {
		return "", err
	}

	var resp dto.MessageResponse
	path := "/convert_pdf/" + url.PathEscape(fileName)
	if err := c.doJSON(ctx, "convert file", http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}
	if resp.Message == "" && resp.Error != "" {
		return "", &apperror.RemoteError{Op: "convert file", StatusCode: http.StatusOK, Message: resp.Error}
	}
	return resp.Message, nil
}
