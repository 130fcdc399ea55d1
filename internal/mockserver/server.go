package mockserver

import (
	"net"
	"sync"

	"spaces-client/internal/pkg/logger"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
)

const module = "MockServer"

type storedFile struct {
	name    string
	size    int64
	indexed bool
}

type storedSpace struct {
	name  string
	files []*storedFile
}

type conversationRow struct {
	sender    string
	text      string
	timestamp string
	space     string
	filename  string
}

// Server is an in-memory implementation of the spaces service HTTP
// contract, used for local development and tests.
type Server struct {
	app    *fiber.App
	logger logger.ILogger

	mu            sync.Mutex
	spaces        []*storedSpace
	conversations []conversationRow
	chatFailure   string
}

func New(log logger.ILogger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             64 * 1024 * 1024, // 64MB
		UnescapePath:          true,
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())

	s := &Server{app: app, logger: log}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/list_spaces", s.listSpaces)
	s.app.Post("/create_space", s.createSpace)
	s.app.Get("/list_files/:space", s.listFiles)
	s.app.Post("/upload_file/:space", s.uploadFile)
	s.app.Post("/convert_pdf/:filename", s.convertFile)
	s.app.Post("/chat", s.chat)
	s.app.Get("/get_conversations", s.getConversations)
	s.app.Post("/save_conversation", s.saveConversation)
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info(module, "Mock spaces service listening", map[string]interface{}{"addr": addr})
	return s.app.Listen(addr)
}

func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// FailChat makes every chat call return 500 with message until reset with "".
func (s *Server) FailChat(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatFailure = message
}

// SeedConversation stores a raw history row as the service would.
func (s *Server) SeedConversation(space, filename, sender, text, timestamp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append(s.conversations, conversationRow{
		sender:    sender,
		text:      text,
		timestamp: timestamp,
		space:     space,
		filename:  filename,
	})
}

func (s *Server) findSpace(name string) *storedSpace {
	for _, sp := range s.spaces {
		if sp.name == name {
			return sp
		}
	}
	return nil
}

func (sp *storedSpace) findFile(name string) *storedFile {
	for _, f := range sp.files {
		if f.name == name {
			return f
		}
	}
	return nil
}

// StartLocal serves on an ephemeral loopback port and returns the base URL.
// Callers stop it with Shutdown.
func StartLocal(log logger.ILogger) (*Server, string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	s := New(log)
	go func() {
		if err := s.Listener(ln); err != nil {
			s.logger.Error(module, "Mock server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
	return s, "http://" + ln.Addr().String(), nil
}
