package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/haasonsaas/kiro/internal/auth"
	"github.com/haasonsaas/kiro/internal/catalog"
	"github.com/haasonsaas/kiro/internal/config"
	"github.com/haasonsaas/kiro/internal/observability"
	"github.com/haasonsaas/kiro/internal/tape"
	"github.com/haasonsaas/kiro/internal/usage"
	"github.com/haasonsaas/kiro/pkg/kiro"
	"github.com/haasonsaas/kiro/pkg/models"
)

// =============================================================================
// Chat Command Handler
// =============================================================================

// runChat handles the chat command.
func runChat(cmd *cobra.Command, opts chatOptions, message string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd, opts.configPath)
	if err != nil {
		return err
	}

	model := opts.model
	if model == "" {
		model = cfg.Service.DefaultModel
	}
	directory := catalog.New()
	info, ok := directory.Resolve(model)
	if !ok {
		return fmt.Errorf("unknown model %q (run `kiro models` for the list)", model)
	}
	model = info.ID

	out := cmd.OutOrStdout()

	var streamer tape.Streamer
	var store *usage.Store
	if opts.replayPath != "" {
		loaded, err := tape.Load(opts.replayPath)
		if err != nil {
			return err
		}
		streamer = tape.NewReplayer(loaded)
		fmt.Fprintf(out, "Replaying tape %s (%d turns)\n", opts.replayPath, loaded.TotalTurns())
	} else {
		logger := observability.NewLogger(observability.LogConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})

		var metrics *observability.Metrics
		if cfg.Metrics.Enabled {
			metrics = observability.NewMetrics(nil)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Warn(ctx, "metrics server stopped", "error", err)
				}
			}()
			defer srv.Close()
		}

		tracer, shutdown := observability.NewTracer(observability.TraceConfig{
			ServiceName:    "kiro",
			ServiceVersion: version,
			Endpoint:       cfg.Tracing.Endpoint,
			SamplingRate:   cfg.Tracing.SamplingRate,
			EnableInsecure: cfg.Tracing.Insecure,
		})
		defer shutdown(context.Background())

		source, err := auth.NewSource(auth.Options{
			TokenPath:  cfg.Auth.TokenPath,
			RefreshURL: cfg.Auth.RefreshURL,
			Logger:     logger,
			Metrics:    metrics,
		})
		if err != nil {
			return err
		}
		if cfg.Auth.Watch {
			if err := source.Watch(ctx); err != nil {
				logger.Warn(ctx, "token watch unavailable", "error", err)
			}
		}
		defer source.Close()

		provider, err := newProvider(cfg, source, logger, metrics, tracer)
		if err != nil {
			return err
		}
		streamer = provider

		store, err = usage.Open(cfg.Usage.Path)
		if err != nil {
			logger.Warn(ctx, "usage ledger unavailable", "error", err)
		} else {
			defer store.Close()
		}
	}

	if opts.recordPath != "" {
		recorder := tape.NewRecorder(streamer).WithModel(model)
		streamer = recorder
		defer func() {
			if err := recorder.Save(opts.recordPath); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to save tape: %v\n", err)
				return
			}
			fmt.Fprintf(out, "Saved tape to %s\n", opts.recordPath)
		}()
	}

	session := &chatSession{
		streamer:     streamer,
		store:        store,
		directory:    directory,
		model:        model,
		systemPrompt: opts.systemPrompt,
		showThinking: opts.showThinking,
		out:          out,
		errOut:       cmd.ErrOrStderr(),
	}

	// One-shot mode: a message argument or piped stdin.
	if message == "" && !isTerminal(cmd.InOrStdin()) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		message = strings.TrimSpace(string(data))
	}
	if message != "" {
		return session.runTurn(ctx, message)
	}

	return session.repl(ctx, cmd.InOrStdin())
}

// newProvider wires a provider from the configuration and shared
// collaborators. The profile ARN falls back to the one recorded in the
// token file.
func newProvider(cfg *config.Config, source *auth.Source, logger *observability.Logger, metrics *observability.Metrics, tracer *observability.Tracer) (*kiro.Provider, error) {
	profileARN := cfg.Service.ProfileARN
	if profileARN == "" {
		profileARN = source.ProfileARN()
	}
	return kiro.Open("kiro", kiro.Options{
		Endpoint:    cfg.Service.Endpoint,
		ProfileARN:  profileARN,
		Credentials: source,
		Logger:      logger,
		Metrics:     metrics,
		Tracer:      tracer,
		Limits: kiro.Limits{
			HistoryBytes:    cfg.Limits.HistoryBytes,
			ToolResultChars: cfg.Limits.ToolResultChars,
			IdleTimeout:     cfg.Limits.IdleTimeout,
			MaxRetries:      cfg.Limits.MaxRetries,
		},
	})
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// Chat Session
// =============================================================================

// chatSession holds the conversation state of one chat invocation.
type chatSession struct {
	streamer     tape.Streamer
	store        *usage.Store
	directory    *catalog.Catalog
	model        string
	systemPrompt string
	showThinking bool
	out          io.Writer
	errOut       io.Writer

	history []models.Message
	turns   int
	tokens  int64
}

// repl runs the interactive loop until EOF or an exit command.
func (s *chatSession) repl(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(s.out, "Kiro chat (model: %s)\n", s.model)
	fmt.Fprintln(s.out, "Type /exit to quit, /reset to clear history, /model <id> to switch models.")
	fmt.Fprintln(s.out)

	reader := bufio.NewReader(in)
	for ctx.Err() == nil {
		fmt.Fprint(s.out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(s.out)
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if s.command(line) {
				break
			}
			continue
		}
		if err := s.runTurn(ctx, line); err != nil {
			fmt.Fprintf(s.errOut, "turn failed: %v\n", err)
		}
	}

	if s.turns > 0 {
		fmt.Fprintf(s.out, "Session: %d turns, %s tokens\n", s.turns, usage.FormatTokenCount(s.tokens))
	}
	return nil
}

// command handles a slash command and reports whether to exit.
func (s *chatSession) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/reset":
		s.history = nil
		fmt.Fprintln(s.out, "History cleared.")
	case "/model":
		if len(fields) < 2 {
			fmt.Fprintf(s.out, "Current model: %s\n", s.model)
			break
		}
		info, ok := s.directory.Resolve(fields[1])
		if !ok {
			fmt.Fprintf(s.out, "Unknown model %q. Run `kiro models` for the list.\n", fields[1])
			break
		}
		s.model = info.ID
		fmt.Fprintf(s.out, "Model set to %s.\n", s.model)
	default:
		fmt.Fprintf(s.out, "Unknown command %q. Commands: /exit, /reset, /model.\n", fields[0])
	}
	return false
}

// runTurn streams one turn and folds the outcome into the session. The
// exchange joins the history only when the turn completed.
func (s *chatSession) runTurn(ctx context.Context, text string) error {
	userMsg := models.Message{Role: models.RoleUser, Content: text}
	req := &models.Request{
		Model:        s.model,
		Messages:     append(append([]models.Message{}, s.history...), userMsg),
		SystemPrompt: s.systemPrompt,
	}

	start := time.Now()
	msg, err := s.streamTurn(ctx, req)
	elapsed := time.Since(start)

	if msg != nil {
		s.turns++
		s.tokens += int64(msg.Usage.InputTokens + msg.Usage.OutputTokens)
		s.recordUsage(msg, elapsed)
	}
	if err != nil {
		return err
	}
	if msg == nil {
		return errors.New("stream ended without a result")
	}
	s.history = append(s.history, userMsg, msg.AsMessage())
	return nil
}

// streamTurn prints the event stream and returns the final message,
// which is partial when the turn ended in an error.
func (s *chatSession) streamTurn(ctx context.Context, req *models.Request) (*models.AssistantMessage, error) {
	events, err := s.streamer.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var msg *models.AssistantMessage
	var turnErr error
	for ev := range events {
		switch ev.Type {
		case models.EventThinkingStart:
			if s.showThinking {
				fmt.Fprint(s.out, "[thinking] ")
			}
		case models.EventThinkingDelta:
			if s.showThinking {
				fmt.Fprint(s.out, ev.Delta)
			}
		case models.EventThinkingEnd:
			if s.showThinking {
				fmt.Fprint(s.out, "\n\n")
			}
		case models.EventTextDelta:
			fmt.Fprint(s.out, ev.Delta)
		case models.EventToolCallEnd:
			if ev.ToolCall != nil {
				fmt.Fprintf(s.out, "\n[tool call] %s %s\n", ev.ToolCall.Name, ev.ToolCall.Arguments)
			}
		case models.EventDone:
			msg = ev.Message
		case models.EventError:
			msg = ev.Message
			turnErr = errors.New(ev.Error)
		}
	}
	fmt.Fprintln(s.out)
	return msg, turnErr
}

// recordUsage appends the turn to the ledger. The write happens on a
// fresh context so an aborted turn still gets accounted.
func (s *chatSession) recordUsage(msg *models.AssistantMessage, elapsed time.Duration) {
	if s.store == nil {
		return
	}
	rec := usage.Record{
		Model:          s.model,
		InputTokens:    int64(msg.Usage.InputTokens),
		OutputTokens:   int64(msg.Usage.OutputTokens),
		ContextPercent: msg.Usage.ContextPercent,
		StopReason:     string(msg.StopReason),
		DurationMs:     elapsed.Milliseconds(),
	}
	if err := s.store.Append(context.Background(), rec); err != nil {
		fmt.Fprintf(s.errOut, "failed to record usage: %v\n", err)
	}
}
