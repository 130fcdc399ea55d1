package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"spaces-client/internal/dto"
	"spaces-client/internal/entity"
	"spaces-client/internal/mockserver"
	"spaces-client/internal/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRT struct {
	roundTrip func(req *http.Request) (*http.Response, error)
}

func (m *mockRT) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.roundTrip(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func stubClient(rt func(req *http.Request) (*http.Response, error)) *Client {
	return NewClient("http://spaces.test", time.Second, nil, WithHTTPClient(&http.Client{Transport: &mockRT{roundTrip: rt}}))
}

func liveClient(t *testing.T) (*Client, *mockserver.Server) {
	t.Helper()
	srv, baseURL, err := mockserver.StartLocal(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown() })
	return NewClient(baseURL, 5*time.Second, nil), srv
}

func pdfHandle(name string, content string) entity.FileHandle {
	return entity.FileHandle{
		Name:      name,
		MediaType: "application/pdf",
		Size:      int64(len(content)),
		Content:   bytes.NewReader([]byte(content)),
	}
}

func TestSpaceLifecycleAgainstMockServer(t *testing.T) {
	c, _ := liveClient(t)
	ctx := context.Background()

	spaces, err := c.ListSpaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, spaces)

	msg, err := c.CreateSpace(ctx, "Docs")
	require.NoError(t, err)
	assert.Contains(t, msg, "Docs")

	_, err = c.CreateSpace(ctx, "Docs")
	var remoteErr *apperror.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusBadRequest, remoteErr.StatusCode)
	assert.Equal(t, "Space 'Docs' already exists", remoteErr.Message)

	var progress []int
	_, err = c.UploadFile(ctx, "Docs", pdfHandle("report.pdf", strings.Repeat("x", 64*1024)), func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	require.NotEmpty(t, progress)
	assert.Equal(t, 0, progress[0])
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}

	files, err := c.ListFiles(ctx, "Docs")
	require.NoError(t, err)
	assert.Equal(t, []dto.FileDTO{{Name: "report.pdf", IsIndexed: false}}, files)

	_, err = c.ConvertFile(ctx, "Docs", "report.pdf")
	require.NoError(t, err)

	files, err = c.ListFiles(ctx, "Docs")
	require.NoError(t, err)
	assert.True(t, files[0].IsIndexed)

	_, err = c.ConvertFile(ctx, "Docs", "missing.pdf")
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "File not found", remoteErr.Message)
}

func TestSpaceNamesAreEscaped(t *testing.T) {
	c, _ := liveClient(t)
	ctx := context.Background()

	_, err := c.CreateSpace(ctx, "Q3 Reports")
	require.NoError(t, err)
	_, err = c.UploadFile(ctx, "Q3 Reports", pdfHandle("a b.pdf", "%PDF"), nil)
	require.NoError(t, err)

	files, err := c.ListFiles(ctx, "Q3 Reports")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a b.pdf", files[0].Name)
}

func TestChatHistoryAndSave(t *testing.T) {
	c, srv := liveClient(t)
	ctx := context.Background()
	_, err := c.CreateSpace(ctx, "Docs")
	require.NoError(t, err)

	resp, err := c.Chat(ctx, dto.ChatRequest{Space: "Docs", Query: "hello", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "[llama3] You asked: hello", resp.Answer())

	require.NoError(t, c.SaveConversation(ctx, dto.SaveConversationRequest{
		Space:   "Docs",
		Message: dto.SaveConversationMessage{Sender: "user", Text: "hello", Timestamp: "2024-01-01T10:00:00Z"},
	}))

	records, err := c.History(ctx, "Docs", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Docs - hello", records[0].Text)

	srv.FailChat("model unavailable")
	_, err = c.Chat(ctx, dto.ChatRequest{Space: "Docs", Query: "again", Model: "llama3"})
	assert.Equal(t, apperror.CodeRemote, apperror.Kind(err))
	assert.Equal(t, "model unavailable", apperror.UserMessage(err))
}

func TestValidationHappensBeforeNetwork(t *testing.T) {
	called := false
	c := stubClient(func(req *http.Request) (*http.Response, error) {
		called = true
		return response(http.StatusOK, "{}"), nil
	})
	ctx := context.Background()

	_, err := c.CreateSpace(ctx, "   ")
	assert.Equal(t, apperror.CodeValidation, apperror.Kind(err))

	_, err = c.ListFiles(ctx, "")
	assert.Equal(t, apperror.CodeValidation, apperror.Kind(err))

	_, err = c.Chat(ctx, dto.ChatRequest{Space: "Docs", Query: "", Model: "llama3"})
	assert.Equal(t, apperror.CodeValidation, apperror.Kind(err))

	_, err = c.UploadFile(ctx, "Docs", entity.FileHandle{
		Name:      "notes.txt",
		MediaType: "text/plain",
		Content:   bytes.NewReader([]byte("hi")),
	}, nil)
	assert.Equal(t, apperror.CodeInvalidFileType, apperror.Kind(err))

	assert.False(t, called)
}

func TestNetworkFailureIsClassified(t *testing.T) {
	c := stubClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	_, err := c.ListSpaces(context.Background())
	var netErr *apperror.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "list spaces", netErr.Op)
}

func TestMalformedPayloadIsClassified(t *testing.T) {
	c := stubClient(func(req *http.Request) (*http.Response, error) {
		return response(http.StatusOK, `{"spaces": "not-a-list"`), nil
	})

	_, err := c.ListSpaces(context.Background())
	assert.Equal(t, apperror.CodeMalformedPayload, apperror.Kind(err))
}

func TestRemoteErrorFallsBackToErrorField(t *testing.T) {
	c := stubClient(func(req *http.Request) (*http.Response, error) {
		return response(http.StatusInternalServerError, `{"error":"ollama down"}`), nil
	})

	_, err := c.Chat(context.Background(), dto.ChatRequest{Space: "Docs", Query: "q", Model: "llama3"})
	var remoteErr *apperror.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "ollama down", remoteErr.Message)
}

func TestChatOmitsFilenameForSpaceWideChat(t *testing.T) {
	var captured string
	c := stubClient(func(req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		captured = string(b)
		return response(http.StatusOK, `{"text":"ok"}`), nil
	})

	resp, err := c.Chat(context.Background(), dto.ChatRequest{Space: "Docs", Query: "q", Model: "mistral"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Answer())
	assert.NotContains(t, captured, "filename")
	assert.Contains(t, captured, `"model":"mistral"`)
}

func TestHistoryQueryParameters(t *testing.T) {
	c := stubClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/get_conversations", req.URL.Path)
		assert.Equal(t, "Docs", req.URL.Query().Get("space"))
		assert.Equal(t, "report.pdf", req.URL.Query().Get("filename"))
		return response(http.StatusOK, `{"conversations":[["user","hi","2024-01-01T10:00:00Z"]]}`), nil
	})

	records, err := c.History(context.Background(), "Docs", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, []dto.HistoryRecord{{Sender: "user", Text: "hi", Timestamp: "2024-01-01T10:00:00Z"}}, records)
}

func TestUploadProgressStopsBelowHundredOnFailure(t *testing.T) {
	c := stubClient(func(req *http.Request) (*http.Response, error) {
		_, _ = io.Copy(io.Discard, req.Body)
		return response(http.StatusNotFound, `{"message":"Space not found"}`), nil
	})

	var progress []int
	_, err := c.UploadFile(context.Background(), "Gone", pdfHandle("a.pdf", "%PDF-1.4"), func(p int) {
		progress = append(progress, p)
	})
	require.Error(t, err)
	require.NotEmpty(t, progress)
	assert.Less(t, progress[len(progress)-1], 100)
}

func TestChatAcceptsRawBody(t *testing.T) {
	c := stubClient(func(req *http.Request) (*http.Response, error) {
		return response(http.StatusOK, "The answer is 42."), nil
	})

	resp, err := c.Chat(context.Background(), dto.ChatRequest{Space: "Docs", Query: "q", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", resp.Answer())

	broken := stubClient(func(req *http.Request) (*http.Response, error) {
		return response(http.StatusOK, `{"content": 3`), nil
	})
	_, err = broken.Chat(context.Background(), dto.ChatRequest{Space: "Docs", Query: "q", Model: "llama3"})
	assert.Equal(t, apperror.CodeMalformedPayload, apperror.Kind(err))
}
