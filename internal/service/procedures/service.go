// Package procedures drafts standard operating procedures with a language
// model and records crew sign-offs.
package procedures

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lawnpro/crew-ops/internal/llm"
	"github.com/lawnpro/crew-ops/internal/metrics"
	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/repository"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

//go:embed prompts/*.tmpl
var promptsFS embed.FS

var prompts = template.Must(template.ParseFS(promptsFS, "prompts/*.tmpl"))

var (
	// ErrProcedureNotFound is returned for unknown procedure ids.
	ErrProcedureNotFound = errors.New("procedure not found")
	// ErrEmptyTask is returned when no task is described.
	ErrEmptyTask = errors.New("task must not be empty")
	// ErrEmptyGeneration is returned when the model output has no usable content.
	ErrEmptyGeneration = errors.New("model returned no usable content")
	// ErrInvalidSignature is returned for signatures that are not PNG data URLs.
	ErrInvalidSignature = errors.New("signature must be a PNG data URL")
	// ErrAlreadyAcknowledged is returned when an employee signs a procedure twice.
	ErrAlreadyAcknowledged = errors.New("procedure already acknowledged")
)

const maxTaskLength = 2000

// ProcedureRepository interface for procedure storage.
type ProcedureRepository interface {
	Create(procedure *models.Procedure) error
	GetByID(id string) (*models.Procedure, error)
	List(limit int) ([]models.Procedure, error)
	Delete(id string) error
	Acknowledge(ack *models.ProcedureAcknowledgement) error
}

// Announcer posts newly generated procedures to the team.
type Announcer interface {
	SendProcedurePublished(ctx context.Context, title, author, markdown string) error
}

// Service handles procedure generation and acknowledgement.
type Service struct {
	repo      ProcedureRepository
	model     llm.LLM
	company   string
	markdown  *md.Converter
	announcer Announcer
	now       func() time.Time
	log       *logger.Logger
}

// NewService creates a new procedure service with concrete repository types.
func NewService(repo *repository.ProcedureRepository, model llm.LLM, company string, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(repo, model, company, log)
}

// NewServiceWithInterfaces creates a new procedure service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo ProcedureRepository, model llm.LLM, company string, log *logger.Logger) *Service {
	if company == "" {
		company = "our company"
	}
	return &Service{
		repo:     repo,
		model:    model,
		company:  company,
		markdown: newMarkdownConverter(),
		now:      time.Now,
		log:      log,
	}
}

// SetAnnouncer enables chat announcements for generated procedures.
func (s *Service) SetAnnouncer(a Announcer) {
	s.announcer = a
}

// GenerateRequest describes the procedure to draft.
type GenerateRequest struct {
	Task  string `json:"task"`
	Notes string `json:"notes"`
	Title string `json:"title"`
}

type promptData struct {
	Company     string
	Task        string
	Notes       string
	AllowedTags string
}

// BuildPrompt renders the generation prompt for a request.
func (s *Service) BuildPrompt(req GenerateRequest) (string, error) {
	var b strings.Builder
	err := prompts.ExecuteTemplate(&b, "procedure.tmpl", promptData{
		Company:     s.company,
		Task:        strings.TrimSpace(req.Task),
		Notes:       strings.TrimSpace(req.Notes),
		AllowedTags: allowedTagList(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return b.String(), nil
}

// Generate drafts a procedure for the task, sanitises the model output and
// stores it.
func (s *Service) Generate(ctx context.Context, actor string, req GenerateRequest) (*models.Procedure, error) {
	req.Task = strings.TrimSpace(req.Task)
	if req.Task == "" {
		return nil, ErrEmptyTask
	}
	if len(req.Task) > maxTaskLength {
		req.Task = req.Task[:maxTaskLength]
	}

	prompt, err := s.BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	start := s.now()
	raw, err := s.model.Generate(ctx, prompt)
	metrics.ObserveProcedureGeneration(s.now().Sub(start).Seconds())
	if err != nil {
		metrics.RecordProcedureGenerated("error")
		return nil, fmt.Errorf("failed to generate procedure: %w", err)
	}

	content, err := Sanitize(stripFences(raw))
	if err != nil {
		metrics.RecordProcedureGenerated("error")
		return nil, fmt.Errorf("failed to sanitise procedure: %w", err)
	}
	if strings.TrimSpace(plainText(content)) == "" {
		metrics.RecordProcedureGenerated("empty")
		return nil, ErrEmptyGeneration
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = firstHeading(content)
	}
	if title == "" {
		title = req.Task
	}
	if len(title) > 255 {
		title = title[:255]
	}

	procedure := &models.Procedure{
		ID:        uuid.NewString(),
		Title:     title,
		Task:      req.Task,
		Content:   content,
		Model:     s.model.Model(),
		CreatedBy: actor,
	}
	if err := s.repo.Create(procedure); err != nil {
		metrics.RecordProcedureGenerated("error")
		return nil, fmt.Errorf("failed to store procedure: %w", err)
	}

	metrics.RecordProcedureGenerated("success")
	s.log.Info().
		Str("procedure_id", procedure.ID).
		Str("model", procedure.Model).
		Str("actor", actor).
		Int("content_chars", len(content)).
		Msg("Procedure generated")

	s.announce(ctx, procedure)
	return procedure, nil
}

// announce posts a markdown preview. Failures are logged only.
func (s *Service) announce(ctx context.Context, procedure *models.Procedure) {
	if s.announcer == nil {
		return
	}
	body, err := s.toMarkdown(procedure.Content)
	if err != nil {
		s.log.Warn().Err(err).Str("procedure_id", procedure.ID).Msg("Failed to render procedure preview")
		return
	}
	if err := s.announcer.SendProcedurePublished(ctx, procedure.Title, procedure.CreatedBy, excerpt(body, announceExcerpt)); err != nil {
		s.log.Warn().Err(err).Str("procedure_id", procedure.ID).Msg("Failed to announce procedure")
	}
}

// List returns the most recent procedures.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) List(ctx context.Context, limit int) ([]models.Procedure, error) {
	procedures, err := s.repo.List(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list procedures: %w", err)
	}
	return procedures, nil
}

// Get returns a procedure with its acknowledgements.
//
//nolint:revive // ctx reserved for cancellation once repositories accept it
func (s *Service) Get(ctx context.Context, id string) (*models.Procedure, error) {
	procedure, err := s.repo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProcedureNotFound
	}
	if err != nil {
		return nil, err
	}
	return procedure, nil
}

// Delete removes a procedure and its acknowledgements.
func (s *Service) Delete(ctx context.Context, id, actor string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete procedure: %w", err)
	}
	s.log.Info().Str("procedure_id", id).Str("actor", actor).Msg("Procedure deleted")
	return nil
}

// Acknowledge records that an employee read and signed a procedure.
func (s *Service) Acknowledge(ctx context.Context, id, email, signatureDataURL string) (*models.ProcedureAcknowledgement, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	signature, err := decodeSignature(signatureDataURL)
	if err != nil {
		return nil, err
	}

	ack := &models.ProcedureAcknowledgement{
		ProcedureID:   id,
		EmployeeEmail: email,
		Signature:     signature,
		SignedAt:      s.now().UTC(),
	}
	if err := s.repo.Acknowledge(ack); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyAcknowledged
		}
		return nil, fmt.Errorf("failed to record acknowledgement: %w", err)
	}

	metrics.RecordProcedureAcknowledged()
	s.log.Info().Str("procedure_id", id).Str("employee", email).Msg("Procedure acknowledged")
	return ack, nil
}
