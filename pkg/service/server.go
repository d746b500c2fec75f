/*
Package service exposes the query pipeline and upload storage over
HTTP. Every route except registration and token issuance requires a
bearer token, and the query route is additionally rate limited per user.
*/
package service

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cohesivestack/valgo"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/thothlabs/thoth/pkg/agent"
	"github.com/thothlabs/thoth/pkg/auth"
	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/file"
	"github.com/thothlabs/thoth/pkg/stores"
	"github.com/thothlabs/thoth/pkg/types"
)

const localsUser = "username"

/*
Server is safe for concurrent use: fiber runs handlers on many
goroutines and every dependency here is either immutable or guards its
own state.
*/
type Server struct {
	app     *fiber.App
	agent   *agent.Agent
	db      *stores.SQLite
	uploads file.Store
	auth    *auth.Service
	limiter *auth.RateLimiter
	addr    string
}

type ServerOption func(*Server)

func NewServer(
	pipeline *agent.Agent,
	db *stores.SQLite,
	uploads file.Store,
	authService *auth.Service,
	options ...ServerOption,
) *Server {
	srv := &Server{
		app: fiber.New(fiber.Config{
			AppName:      "thoth",
			ServerHeader: "Thoth-Server",
			BodyLimit:    stores.DefaultMaxFileSize,
		}),
		agent:   pipeline,
		db:      db,
		uploads: uploads,
		auth:    authService,
		limiter: auth.NewRateLimiter(100, time.Minute),
		addr:    ":8000",
	}

	for _, option := range options {
		option(srv)
	}

	srv.routes()
	return srv
}

func WithAddr(addr string) ServerOption {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

func WithRateLimiter(limiter *auth.RateLimiter) ServerOption {
	return func(s *Server) {
		if limiter != nil {
			s.limiter = limiter
		}
	}
}

func (srv *Server) routes() {
	srv.app.Use(logger.New(), healthcheck.NewHealthChecker())

	srv.app.Post("/register", srv.handleRegister)
	srv.app.Post("/token", srv.handleToken)

	srv.app.Delete("/user/:username", srv.requireUser, srv.handleDeleteUser)
	srv.app.Post("/upload", srv.requireUser, srv.handleUpload)
	srv.app.Get("/files", srv.requireUser, srv.handleListFiles)
	srv.app.Get("/download/:name", srv.requireUser, srv.handleDownload)
	srv.app.Delete("/delete/:name", srv.requireUser, srv.handleDeleteFile)
	srv.app.Post("/query", srv.requireUser, srv.handleQuery)
}

func (srv *Server) Start() error {
	log.Info("starting server", "addr", srv.addr)
	return srv.app.Listen(srv.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (srv *Server) Shutdown() error {
	return srv.app.Shutdown()
}

// App exposes the underlying fiber app for in-process testing.
func (srv *Server) App() *fiber.App {
	return srv.app
}

/*
requireUser resolves the bearer token to a username and stores it in
the request locals for the handlers downstream.
*/
func (srv *Server) requireUser(ctx fiber.Ctx) error {
	header := ctx.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return replyError(ctx, fiber.StatusUnauthorized, errors.KindInvalidRequest, "missing bearer token")
	}

	username, err := srv.auth.VerifyToken(tokenStr)
	if err != nil {
		return replyError(ctx, fiber.StatusUnauthorized, errors.KindInvalidRequest, "could not validate credentials")
	}

	ctx.Locals(localsUser, username)
	return ctx.Next()
}

func currentUser(ctx fiber.Ctx) string {
	username, _ := ctx.Locals(localsUser).(string)
	return username
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req credentialsRequest) validate() error {
	val := valgo.Is(
		valgo.String(req.Username, "username").Not().Blank().MaxLength(64),
	).Is(
		valgo.String(req.Password, "password").Not().Blank(),
	)

	if !val.Valid() {
		return errors.ErrInvalidRequest.WithMessagef("%v", val.Error())
	}
	return nil
}

func (srv *Server) handleRegister(ctx fiber.Ctx) error {
	var req credentialsRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return replyError(ctx, fiber.StatusBadRequest, errors.KindInvalidRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return replyKindError(ctx, err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return replyKindError(ctx, err)
	}

	if err := srv.db.CreateUser(ctx.Context(), req.Username, hash); err != nil {
		return replyKindError(ctx, err)
	}

	log.Info("registered user", "username", req.Username)
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"username": req.Username})
}

func (srv *Server) handleToken(ctx fiber.Ctx) error {
	var req credentialsRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return replyError(ctx, fiber.StatusBadRequest, errors.KindInvalidRequest, "invalid request body")
	}

	user, err := srv.db.GetUser(ctx.Context(), req.Username)
	if err != nil {
		// A missing user and a bad password look identical to the caller.
		return replyError(ctx, fiber.StatusUnauthorized, errors.KindInvalidRequest, "incorrect username or password")
	}

	if err := auth.VerifyPassword(user.HashedPassword, req.Password); err != nil {
		return replyError(ctx, fiber.StatusUnauthorized, errors.KindInvalidRequest, "incorrect username or password")
	}

	token, expiresAt, err := srv.auth.GenerateToken(user.Username)
	if err != nil {
		return replyKindError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"expires_at":   expiresAt.UTC().Format(time.RFC3339),
	})
}

func (srv *Server) handleDeleteUser(ctx fiber.Ctx) error {
	target := ctx.Params("username")
	if target != currentUser(ctx) {
		return replyError(ctx, fiber.StatusForbidden, errors.KindInvalidRequest, "cannot delete another user")
	}

	if err := srv.db.DeleteUser(ctx.Context(), target); err != nil {
		return replyKindError(ctx, err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (srv *Server) handleUpload(ctx fiber.Ctx) error {
	owner := currentUser(ctx)

	user, err := srv.db.GetUser(ctx.Context(), owner)
	if err != nil {
		return replyKindError(ctx, err)
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		return replyError(ctx, fiber.StatusBadRequest, errors.KindInvalidRequest, "missing file field")
	}

	body, err := header.Open()
	if err != nil {
		return replyError(ctx, fiber.StatusBadRequest, errors.KindInvalidRequest, "unreadable upload")
	}
	defer body.Close()

	name := header.Filename
	size, err := srv.uploads.Save(ctx.Context(), owner, name, body, user.MaxFileSize)
	if err != nil {
		return replyKindError(ctx, err)
	}

	if err := srv.db.RecordFile(ctx.Context(), owner, name, size); err != nil {
		// The bytes landed but the record did not; remove the orphan so the
		// listing stays truthful.
		if removeErr := srv.uploads.Remove(ctx.Context(), owner, name); removeErr != nil {
			log.Error("failed to remove orphaned upload", "owner", owner, "name", name, "error", removeErr)
		}
		return replyKindError(ctx, err)
	}

	log.Info("stored upload", "owner", owner, "name", name, "size", size)
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"name": name, "size": size})
}

func (srv *Server) handleListFiles(ctx fiber.Ctx) error {
	owner := currentUser(ctx)

	records, err := srv.db.ListFiles(ctx.Context(), owner)
	if err != nil {
		return replyKindError(ctx, err)
	}

	files := make([]fiber.Map, 0, len(records))
	for _, record := range records {
		files = append(files, fiber.Map{
			"name":        record.Name,
			"size":        record.Size,
			"uploaded_at": record.UploadedAt.UTC().Format(time.RFC3339),
		})
	}

	return ctx.JSON(fiber.Map{"files": files})
}

func (srv *Server) handleDownload(ctx fiber.Ctx) error {
	owner := currentUser(ctx)
	name := ctx.Params("name")

	if _, err := srv.db.GetFileRecord(ctx.Context(), owner, name); err != nil {
		return replyKindError(ctx, err)
	}

	body, err := srv.uploads.Open(ctx.Context(), owner, name)
	if err != nil {
		return replyKindError(ctx, err)
	}

	ctx.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	ctx.Set("Content-Type", "application/octet-stream")
	return ctx.SendStream(body)
}

func (srv *Server) handleDeleteFile(ctx fiber.Ctx) error {
	owner := currentUser(ctx)
	name := ctx.Params("name")

	if err := srv.db.DeleteFileRecord(ctx.Context(), owner, name); err != nil {
		return replyKindError(ctx, err)
	}

	if err := srv.uploads.Remove(ctx.Context(), owner, name); err != nil {
		return replyKindError(ctx, err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

type queryRequest struct {
	Query       string   `json:"query"`
	Session     string   `json:"session_id"`
	Model       string   `json:"model"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
}

func (srv *Server) handleQuery(ctx fiber.Ctx) error {
	owner := currentUser(ctx)

	if !srv.limiter.Allow(owner) {
		return replyError(ctx, fiber.StatusTooManyRequests, errors.KindInvalidRequest, "rate limit exceeded")
	}

	var req queryRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return replyError(ctx, fiber.StatusBadRequest, errors.KindInvalidRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return replyError(ctx, fiber.StatusBadRequest, errors.KindInvalidRequest, "query must not be empty")
	}

	cfg := types.DefaultGenerationConfig()
	cfg.Model = req.Model
	if req.MaxTokens != nil {
		cfg.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}

	q := types.NewQuery(req.Query, cfg)
	// Sessions are namespaced per user so two users asking in "default"
	// never share history.
	session := req.Session
	if session == "" {
		session = "default"
	}
	q.SessionID = owner + "/" + session

	record, _, err := srv.agent.Ask(ctx.Context(), q)
	if err != nil {
		return replyKindError(ctx, err)
	}

	if err := srv.db.RecordQuery(ctx.Context(), owner, session, record.Query, record.Response); err != nil {
		log.Error("failed to record query", "owner", owner, "error", err)
	}

	return ctx.JSON(fiber.Map{
		"query":             record.Query,
		"response":          record.Response,
		"elapsed_ms":        record.Elapsed.Milliseconds(),
		"prompt_tokens":     record.PromptTokens,
		"completion_tokens": record.CompletionTokens,
		"total_tokens":      record.TotalTokens,
		"truncated":         record.Truncated,
	})
}

func replyError(ctx fiber.Ctx, status int, kind errors.Kind, message string) error {
	return ctx.Status(status).JSON(fiber.Map{
		"error": fiber.Map{"kind": string(kind), "message": message},
	})
}

// replyKindError maps the error taxonomy onto HTTP status codes.
func replyKindError(ctx fiber.Ctx, err error) error {
	kind := errors.KindOf(err)

	message := err.Error()
	var agentErr *errors.AgentError
	if stderrors.As(err, &agentErr) {
		message = agentErr.Message
	}

	status := fiber.StatusInternalServerError
	switch kind {
	case errors.KindNotFound:
		status = fiber.StatusNotFound
	case errors.KindInvalidRequest, errors.KindDecode, errors.KindConfig:
		status = fiber.StatusBadRequest
	case errors.KindTooLarge, errors.KindBudgetExceeded:
		status = fiber.StatusRequestEntityTooLarge
	case errors.KindBackendUnavailable:
		status = fiber.StatusServiceUnavailable
	}

	return replyError(ctx, status, kind, message)
}
