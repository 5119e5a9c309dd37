package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/marcelsud/webhook-inspector/config"
	"github.com/marcelsud/webhook-inspector/internal/logger"
	"github.com/marcelsud/webhook-inspector/internal/seed"
	"github.com/marcelsud/webhook-inspector/internal/storage"
	"github.com/marcelsud/webhook-inspector/signature"
	"github.com/marcelsud/webhook-inspector/sources"
	"github.com/marcelsud/webhook-inspector/synthesis"
	"github.com/marcelsud/webhook-inspector/synthesis/gemini"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// opener opens the store; tests swap it for an in-memory one
type opener func(ctx context.Context, cfg *config.Config) (capture.Repository, error)

type app struct {
	envFile   string
	out       io.Writer
	open      opener
	generator synthesis.Generator

	cfg  *config.Config
	repo capture.Repository
}

func newRootCmd(out io.Writer, open opener) *cobra.Command {
	return newApp(out, open).command()
}

func newApp(out io.Writer, open opener) *app {
	if open == nil {
		open = storage.Open
	}
	return &app{out: out, open: open}
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "webhook-inspector",
		Short:         "Inspect captured webhooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.repo == nil {
				return nil
			}
			return a.repo.Close(cmd.Context())
		},
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVar(&a.envFile, "env", "", "configuration file (defaults to ./.env)")

	root.AddCommand(
		a.listCmd(),
		a.getCmd(),
		a.resetCmd(),
		a.seedCmd(),
		a.generateCmd(),
		a.verifyCmd(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	logger.InitWriter(os.Stderr, cfg.LogLevel, "text")

	repo, err := a.open(ctx, cfg)
	if err != nil {
		return err
	}
	a.cfg, a.repo = cfg, repo
	return nil
}

func (a *app) captureService() *capture.Service {
	return capture.NewService(a.repo, a.cfg.PageSize, a.cfg.MaxPageSize)
}

func (a *app) listCmd() *cobra.Command {
	var (
		cursor string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured webhooks, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := a.captureService().List(cmd.Context(), cursor, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMETHOD\tPATH\tCREATED")
			for _, rec := range page.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID, rec.Method, rec.Pathname, rec.CreatedAt.Format(time.RFC3339Nano))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if page.NextCursor != "" {
				fmt.Fprintf(a.out, "\nnext: --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue after this cursor")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 uses PAGE_SIZE)")
	return cmd
}

// recordJSON mirrors the API detail representation
type recordJSON struct {
	ID            string            `json:"id"`
	Method        string            `json:"method"`
	Pathname      string            `json:"pathname"`
	IP            string            `json:"ip"`
	StatusCode    int               `json:"statusCode"`
	ContentType   *string           `json:"contentType"`
	ContentLength *string           `json:"contentLength"`
	QueryParams   map[string]string `json:"queryParams"`
	Headers       map[string]string `json:"headers"`
	Body          *string           `json:"body"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one captured webhook as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.captureService().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(recordJSON{
				ID:            rec.ID.String(),
				Method:        rec.Method,
				Pathname:      rec.Pathname,
				IP:            rec.IP,
				StatusCode:    rec.StatusCode,
				ContentType:   rec.ContentType,
				ContentLength: rec.ContentLength,
				QueryParams:   rec.QueryParams,
				Headers:       rec.Headers,
				Body:          rec.Body,
				CreatedAt:     rec.CreatedAt.UTC(),
			})
		},
	}
}

func (a *app) resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every captured webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete every webhook without --yes")
			}
			if err := a.captureService().Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "store emptied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func (a *app) seedCmd() *cobra.Command {
	var (
		count   int
		secret  string
		randSrc uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Reset the store and capture synthetic signed payment events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive (got %d)", count)
			}

			var (
				key signature.Secret
				err error
			)
			if secret == "" {
				key, err = signature.GenerateSecret(signature.MinSecretBytes)
			} else {
				key, err = signature.ParseSecret(secret)
			}
			if err != nil {
				return fmt.Errorf("preparing signing secret: %w", err)
			}
			if randSrc == 0 {
				randSrc = uint64(time.Now().UnixNano())
			}

			s := a.captureService()
			if err := s.Reset(cmd.Context()); err != nil {
				return err
			}

			requests, err := seed.New(randSrc, key, "localhost:"+a.cfg.Port).Requests(count)
			if err != nil {
				return fmt.Errorf("generating events: %w", err)
			}
			for _, req := range requests {
				if _, err := s.Capture(cmd.Context(), req); err != nil {
					return err
				}
			}

			log.Info().Int("count", count).Msg("seeded store")
			fmt.Fprintf(a.out, "captured %d events\nsigning secret: %s\n", count, key)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 60, "number of events")
	cmd.Flags().StringVar(&secret, "secret", "", "whsec_ signing secret (random when empty)")
	cmd.Flags().Uint64Var(&randSrc, "seed", 0, "random seed (time based when 0)")
	return cmd
}

func (a *app) generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <id>...",
		Short: "Generate handler code from captured webhook bodies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := a.generator
			if gen == nil {
				if !a.cfg.SynthesisEnabled() {
					return errors.New("GEMINI_API_KEY is not set")
				}
				client, err := gemini.NewClient(cmd.Context(), a.cfg.GeminiAPIKey, a.cfg.GeminiModel,
					gemini.WithBaseURL(a.cfg.GeminiBaseURL),
					gemini.WithTimeout(a.cfg.SynthesisTimeout()),
				)
				if err != nil {
					return err
				}
				gen = client
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.SynthesisTimeout())
			defer cancel()

			code, err := synthesis.NewService(a.repo, gen, a.cfg.SynthesisLanguage).Synthesize(ctx, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, code)
			return nil
		},
	}
}

func (a *app) verifyCmd() *cobra.Command {
	var (
		secret    string
		tolerance time.Duration
	)
	cmd := &cobra.Command{
		Use:   "verify <id>",
		Short: "Check the stripe-signature header of a captured webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.captureService().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			key, err := a.signingSecret(secret, rec.Pathname)
			if err != nil {
				return err
			}

			header, ok := rec.Headers[signature.HeaderName]
			if !ok {
				return fmt.Errorf("webhook %s has no %s header", rec.ID, signature.HeaderName)
			}
			var payload []byte
			if rec.Body != nil {
				payload = []byte(*rec.Body)
			}

			if err := signature.Verify(header, payload, rec.CreatedAt, tolerance, key); err != nil {
				return fmt.Errorf("verifying %s: %w", rec.ID, err)
			}
			fmt.Fprintf(a.out, "signature valid for %s\n", rec.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "whsec_ signing secret (defaults to the source's signing_secret)")
	cmd.Flags().DurationVar(&tolerance, "tolerance", signature.DefaultTolerance, "maximum age of the signed timestamp at capture time (0 disables)")
	return cmd
}

// signingSecret prefers the flag, then the secret configured for the record's source
func (a *app) signingSecret(flag, pathname string) (signature.Secret, error) {
	if flag != "" {
		return signature.ParseSecret(flag)
	}
	if a.cfg.SourcesFile == "" {
		return signature.Secret{}, errors.New("--secret is required when SOURCES_FILE is not set")
	}

	loader := sources.NewLoader(a.cfg.CaptureStatusCode)
	if err := loader.Load(a.cfg.SourcesFile); err != nil {
		return signature.Secret{}, err
	}
	source, err := loader.Resolve(strings.TrimPrefix(pathname, "/capture"))
	if err != nil {
		return signature.Secret{}, err
	}
	key, ok := source.Secret()
	if !ok {
		return signature.Secret{}, fmt.Errorf("source %s has no signing_secret", source.SourceID)
	}
	return key, nil
}
