package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marcelsud/webhook-inspector/capture"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many records are fetched at once
const DefaultConcurrency = 8

// Generator is the external text generation collaborator: prompt in, text out
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// UseCase turns a selection of captured webhooks into handler code
type UseCase interface {
	Synthesize(ctx context.Context, ids []string) (string, error)
}

/* Service builds the prompt from stored bodies and delegates to the Generator
 * It holds no lock while the generator runs
 */
type Service struct {
	Repo        capture.Reader
	Generator   Generator
	Language    string
	Concurrency int
}

// NewService creates a synthesis service targeting language
func NewService(repo capture.Reader, gen Generator, language string) *Service {
	return &Service{
		Repo:        repo,
		Generator:   gen,
		Language:    language,
		Concurrency: DefaultConcurrency,
	}
}

// Synthesize fetches the bodies of ids in the order given, skipping unknown
// ids and records without a body, and returns the generator output verbatim.
func (s *Service) Synthesize(ctx context.Context, ids []string) (string, error) {
	selection, err := parseSelection(ids)
	if err != nil {
		return "", err
	}

	bodies, err := s.fetchBodies(ctx, selection)
	if err != nil {
		return "", err
	}

	prompt, err := BuildPrompt(s.Language, bodies)
	if err != nil {
		return "", err
	}

	code, err := s.Generator.Generate(ctx, prompt)
	if err != nil {
		return "", &SynthesisError{Err: err}
	}
	return code, nil
}

// parseSelection validates ids and drops repeats, keeping the first occurrence
func parseSelection(ids []string) ([]capture.ID, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}

	seen := make(map[capture.ID]struct{}, len(ids))
	selection := make([]capture.ID, 0, len(ids))
	for _, raw := range ids {
		id, err := capture.ParseID(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", capture.ErrInvalidIdentifier, raw)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		selection = append(selection, id)
	}
	return selection, nil
}

func (s *Service) fetchBodies(ctx context.Context, selection []capture.ID) ([]string, error) {
	found := make([]*string, len(selection))

	g, gctx := errgroup.WithContext(ctx)
	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)

	for i, id := range selection {
		g.Go(func() error {
			rec, err := s.Repo.Get(gctx, id)
			if errors.Is(err, capture.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("selecting record %s: %w", id, err)
			}
			found[i] = rec.Body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bodies := make([]string, 0, len(found))
	for _, body := range found {
		if body != nil {
			bodies = append(bodies, *body)
		}
	}
	return bodies, nil
}
