package mockserver

import (
	"fmt"
	"strings"

	"spaces-client/internal/constant"
	"spaces-client/internal/dto"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) listSpaces(ctx *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.spaces))
	for _, sp := range s.spaces {
		names = append(names, sp.name)
	}
	return ctx.JSON(dto.ListSpacesResponse{Spaces: names})
}

func (s *Server) createSpace(ctx *fiber.Ctx) error {
	var req dto.CreateSpaceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(dto.MessageResponse{Message: "Invalid request body"})
	}
	name := strings.TrimSpace(req.SpaceName)
	if name == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(dto.MessageResponse{Message: "Space name is required"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findSpace(name) != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(dto.MessageResponse{Message: fmt.Sprintf("Space '%s' already exists", name)})
	}
	s.spaces = append(s.spaces, &storedSpace{name: name})
	s.logger.Info(module, "Space created", map[string]interface{}{"space": name})

	return ctx.Status(fiber.StatusCreated).JSON(dto.MessageResponse{Message: fmt.Sprintf("New Space %s created successfully", name)})
}

func (s *Server) listFiles(ctx *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.findSpace(ctx.Params("space"))
	if sp == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(dto.MessageResponse{Message: "Space not found"})
	}

	files := make([]dto.FileDTO, 0, len(sp.files))
	for _, f := range sp.files {
		files = append(files, dto.FileDTO{Name: f.name, IsIndexed: f.indexed})
	}
	return ctx.JSON(dto.ListFilesResponse{Files: files})
}

func (s *Server) uploadFile(ctx *fiber.Ctx) error {
	header, err := ctx.FormFile(constant.UploadFormField)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(dto.MessageResponse{Message: "No file part"})
	}
	if header.Filename == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(dto.MessageResponse{Message: "No selected file"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.findSpace(ctx.Params("space"))
	if sp == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(dto.MessageResponse{Message: "Space not found"})
	}

	// Re-uploading a name replaces the stored file and its index.
	if existing := sp.findFile(header.Filename); existing != nil {
		existing.size = header.Size
		existing.indexed = false
	} else {
		sp.files = append(sp.files, &storedFile{name: header.Filename, size: header.Size})
	}

	return ctx.JSON(dto.MessageResponse{Message: "File uploaded successfully"})
}

func (s *Server) convertFile(ctx *fiber.Ctx) error {
	var req dto.ConvertFileRequest
	if err := ctx.BodyParser(&req); err != nil || req.Space == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(dto.MessageResponse{Error: "Space not provided"})
	}
	filename := ctx.Params("filename")

	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.findSpace(req.Space)
	if sp == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(dto.MessageResponse{Error: "File not found"})
	}
	f := sp.findFile(filename)
	if f == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(dto.MessageResponse{Error: "File not found"})
	}
	f.indexed = true

	return ctx.JSON(dto.MessageResponse{Message: fmt.Sprintf("Indexed PDF %s in space: %s", filename, req.Space)})
}

func (s *Server) chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil || req.Space == "" || req.Query == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(dto.MessageResponse{Error: "Space and query are required"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chatFailure != "" {
		return ctx.Status(fiber.StatusInternalServerError).JSON(dto.MessageResponse{Error: s.chatFailure})
	}

	var citations []dto.CitationDTO
	if sp := s.findSpace(req.Space); sp != nil {
		for _, f := range sp.files {
			if !f.indexed || (req.Filename != "" && f.name != req.Filename) {
				continue
			}
			citations = append(citations, dto.CitationDTO{Source: f.name, Page: 1})
		}
	}

	return ctx.JSON(dto.ChatResponse{
		Role:      "assistant",
		Content:   fmt.Sprintf("[%s] You asked: %s", req.Model, req.Query),
		Citations: citations,
	})
}

func (s *Server) getConversations(ctx *fiber.Ctx) error {
	space := ctx.Query("space")
	filename := ctx.Query("filename")

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([][]string, 0)
	for _, row := range s.conversations {
		if space != "" && row.space != space {
			continue
		}
		if filename != "" && row.filename != filename {
			continue
		}
		rows = append(rows, []string{row.sender, row.text, row.timestamp})
	}
	return ctx.JSON(fiber.Map{"conversations": rows})
}

func (s *Server) saveConversation(ctx *fiber.Ctx) error {
	var req dto.SaveConversationRequest
	if err := ctx.BodyParser(&req); err != nil || req.Space == "" || req.Message.Text == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Space and message are required"})
	}

	// Stored text carries the provenance prefix, as the real service does.
	prefix := req.Space + constant.ProvenanceSeparator
	if req.Filename != "" {
		prefix += req.Filename + constant.ProvenanceSeparator
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append(s.conversations, conversationRow{
		sender:    req.Message.Sender,
		text:      prefix + req.Message.Text,
		timestamp: req.Message.Timestamp,
		space:     req.Space,
		filename:  req.Filename,
	})

	return ctx.JSON(dto.MessageResponse{Status: "conversation saved"})
}
