package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

const parseWorkers = 4

func (rt *Router) generateLesson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(rt.deps.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
		return
	}

	provider, ok := rt.resolveProvider(r.FormValue("provider"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown provider %q", r.FormValue("provider"))})
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one file is required"})
		return
	}
	if len(files) > rt.deps.MaxUploadFiles {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("too many files, limit is %d", rt.deps.MaxUploadFiles)})
		return
	}

	documents, err := rt.parseUploads(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}

	req := domain.GenerationRequest{
		Prompt:            prompt,
		Category:          domain.LessonCategory(r.FormValue("category")),
		Provider:          provider,
		AdditionalContext: r.FormValue("additional_context"),
		Documents:         documents,
	}

	start := time.Now()
	var draft *domain.LessonDraft
	err = rt.execute(r.Context(), "lesson.generate", func(ctx context.Context) error {
		generated, genErr := rt.deps.Lessons.GenerateFromDocuments(ctx, req)
		if genErr != nil {
			return genErr
		}
		draft = generated
		return nil
	})
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordLessonGeneration(rt.deps.Service, "generate", string(provider), time.Since(start), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordTokenUsage(rt.deps.Service, "lesson.generate", string(provider), draft.TokensUsed)
	}

	if err := rt.deps.LessonStore.Save(r.Context(), draft); err != nil {
		writeError(w, fmt.Errorf("persist lesson: %w", err))
		return
	}

	writeJSON(w, http.StatusCreated, draft)
}

// parseUploads decodes every upload concurrently and reassembles the
// results in upload order. The first failure cancels the remaining work.
func (rt *Router) parseUploads(ctx context.Context, files []*multipart.FileHeader) ([]domain.ParsedDocument, error) {
	documents := make([]domain.ParsedDocument, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseWorkers)
	for i, header := range files {
		i, header := i, header
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !rt.deps.Ingestor.IsSupported(header.Filename) {
				err := domain.WrapError(domain.ErrUnsupportedFormat, "parse upload", fmt.Errorf("%s", header.Filename))
				rt.recordParse(header.Filename, err)
				return err
			}

			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("open upload %s: %w", header.Filename, err)
			}
			defer file.Close()

			data, err := io.ReadAll(file)
			if err != nil {
				return fmt.Errorf("read upload %s: %w", header.Filename, err)
			}

			parsed, err := rt.deps.Ingestor.Parse(data, header.Filename)
			rt.recordParse(header.Filename, err)
			if err != nil {
				return err
			}
			documents[i] = *parsed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return documents, nil
}

func (rt *Router) recordParse(filename string, err error) {
	if rt.deps.Metrics == nil {
		return
	}
	format := ""
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		format = strings.ToLower(filename[idx:])
	}
	rt.deps.Metrics.RecordDocumentParse(rt.deps.Service, format, err)
}

// lessonByID dispatches /v1/lessons/{id}, /v1/lessons/{id}/refine and
// /v1/lessons/{id}/complete.
func (rt *Router) lessonByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/lessons/")
	switch {
	case strings.HasSuffix(rest, "/refine"):
		rt.refineLesson(w, r, strings.TrimSuffix(rest, "/refine"))
	case strings.HasSuffix(rest, "/complete"):
		rt.completeLesson(w, r, strings.TrimSuffix(rest, "/complete"))
	default:
		rt.getLesson(w, r, rest)
	}
}

func (rt *Router) getLesson(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lesson id is required"})
		return
	}

	draft, err := rt.deps.LessonStore.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (rt *Router) refineLesson(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lesson id is required"})
		return
	}

	var req struct {
		Instructions string `json:"instructions"`
		Provider     string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Instructions) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "instructions are required"})
		return
	}
	provider, ok := rt.resolveProvider(req.Provider)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown provider %q", req.Provider)})
		return
	}

	current, err := rt.deps.LessonStore.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	var refined *domain.LessonDraft
	err = rt.execute(r.Context(), "lesson.refine", func(ctx context.Context) error {
		next, refineErr := rt.deps.Lessons.Refine(ctx, current, req.Instructions, provider)
		if refineErr != nil {
			return refineErr
		}
		refined = next
		return nil
	})
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordLessonGeneration(rt.deps.Service, "refine", string(provider), time.Since(start), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordTokenUsage(rt.deps.Service, "lesson.refine", string(provider), refined.TokensUsed)
	}

	if err := rt.deps.LessonStore.Save(r.Context(), refined); err != nil {
		writeError(w, fmt.Errorf("persist refined lesson: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, refined)
}

func (rt *Router) completeLesson(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lesson id is required"})
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	if _, err := rt.deps.LessonStore.GetByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.deps.Activity.RecordLessonCompleted(r.Context(), req.UserID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
