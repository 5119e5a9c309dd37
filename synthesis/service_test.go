package synthesis_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/marcelsud/webhook-inspector/capture/memory"
	capturemocks "github.com/marcelsud/webhook-inspector/capture/mocks"
	"github.com/marcelsud/webhook-inspector/synthesis"
	"github.com/marcelsud/webhook-inspector/synthesis/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func insertBody(t *testing.T, repo capture.Repository, body *string) capture.ID {
	t.Helper()

	id, err := capture.NewID()
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), capture.Record{
		ID:        id,
		Method:    "POST",
		Pathname:  "/capture/stripe",
		Headers:   map[string]string{},
		Body:      body,
		CreatedAt: id.Time(),
	}))
	return id
}

func TestSynthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("empty selection", func(t *testing.T) {
		gen := mocks.NewGenerator(t)
		service := synthesis.NewService(memory.NewRepository(), gen, "")

		_, err := service.Synthesize(ctx, []string{})
		assert.ErrorIs(t, err, synthesis.ErrEmptySelection)

		_, err = service.Synthesize(ctx, nil)
		assert.ErrorIs(t, err, synthesis.ErrEmptySelection)
	})

	t.Run("prompt holds both bodies and the output is returned verbatim", func(t *testing.T) {
		repo := memory.NewRepository()
		first := `{"type":"invoice.paid","id":"evt_1"}`
		second := `{"type":"charge.refunded","id":"evt_2"}`
		id1 := insertBody(t, repo, capture.String(first))
		id2 := insertBody(t, repo, capture.String(second))

		gen := mocks.NewGenerator(t)
		gen.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, first+"\n\n"+second)
		})).Return("export function handle() {}\n", nil)

		service := synthesis.NewService(repo, gen, "TypeScript")
		code, err := service.Synthesize(ctx, []string{id1.String(), id2.String()})

		require.NoError(t, err)
		assert.Equal(t, "export function handle() {}\n", code)
	})

	t.Run("caller order wins over store order", func(t *testing.T) {
		repo := memory.NewRepository()
		older := insertBody(t, repo, capture.String("older"))
		newer := insertBody(t, repo, capture.String("newer"))

		gen := mocks.NewGenerator(t)
		gen.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "newer\n\nolder")
		})).Return("code", nil)

		service := synthesis.NewService(repo, gen, "")
		_, err := service.Synthesize(ctx, []string{newer.String(), older.String()})
		require.NoError(t, err)
	})

	t.Run("unknown ids, repeats and missing bodies are skipped", func(t *testing.T) {
		repo := memory.NewRepository()
		withBody := insertBody(t, repo, capture.String("PAYLOAD-XYZ"))
		withoutBody := insertBody(t, repo, nil)
		unknown, err := capture.NewID()
		require.NoError(t, err)

		var prompt string
		gen := mocks.NewGenerator(t)
		gen.On("Generate", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { prompt = args.String(1) }).
			Return("code", nil)

		service := synthesis.NewService(repo, gen, "")
		_, err = service.Synthesize(ctx, []string{
			unknown.String(), withBody.String(), withoutBody.String(), withBody.String(),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(prompt, "PAYLOAD-XYZ"))
		assert.Contains(t, prompt, "\"\"\"\nPAYLOAD-XYZ\n\"\"\"")
	})

	t.Run("malformed id", func(t *testing.T) {
		gen := mocks.NewGenerator(t)
		service := synthesis.NewService(memory.NewRepository(), gen, "")

		_, err := service.Synthesize(ctx, []string{"1"})
		assert.ErrorIs(t, err, capture.ErrInvalidIdentifier)
		gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("storage failure aborts before generating", func(t *testing.T) {
		repo := capturemocks.NewRepository(t)
		id, err := capture.NewID()
		require.NoError(t, err)
		repo.On("Get", mock.Anything, id).Return(capture.Record{}, capture.NewStorageError("select", errors.New("down")))

		gen := mocks.NewGenerator(t)
		service := synthesis.NewService(repo, gen, "")

		_, err = service.Synthesize(ctx, []string{id.String()})
		var storageErr *capture.StorageError
		assert.ErrorAs(t, err, &storageErr)
		gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("generator failure is a synthesis error", func(t *testing.T) {
		repo := memory.NewRepository()
		id := insertBody(t, repo, capture.String("{}"))

		gen := mocks.NewGenerator(t)
		gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

		service := synthesis.NewService(repo, gen, "")
		_, err := service.Synthesize(ctx, []string{id.String()})

		var synthErr *synthesis.SynthesisError
		require.ErrorAs(t, err, &synthErr)
		assert.False(t, synthErr.Timeout())
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("deadline is reported as a timeout", func(t *testing.T) {
		repo := memory.NewRepository()
		id := insertBody(t, repo, capture.String("{}"))

		gen := mocks.NewGenerator(t)
		gen.On("Generate", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded)

		service := synthesis.NewService(repo, gen, "")
		_, err := service.Synthesize(ctx, []string{id.String()})

		var synthErr *synthesis.SynthesisError
		require.ErrorAs(t, err, &synthErr)
		assert.True(t, synthErr.Timeout())
	})
}

func TestSynthesize_Unconfigured(t *testing.T) {
	repo := memory.NewRepository()
	id := insertBody(t, repo, capture.String(`{"type":"invoice.paid"}`))
	service := synthesis.NewService(repo, synthesis.Unavailable{}, "Go")

	_, err := service.Synthesize(context.Background(), []string{id.String()})

	var synthErr *synthesis.SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.ErrorIs(t, err, synthesis.ErrGeneratorUnavailable)
	assert.False(t, synthErr.Timeout())
}
