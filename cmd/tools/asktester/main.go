package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/medassist/backend/internal/analysis/confidence"
	"github.com/zhouzirui/medassist/backend/internal/bootstrap"
	"github.com/zhouzirui/medassist/backend/internal/config"
	"github.com/zhouzirui/medassist/backend/internal/model/chat"
	"github.com/zhouzirui/medassist/backend/internal/stream"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	levelStyles = map[chat.Confidence]lipgloss.Style{
		chat.ConfidenceHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		chat.ConfidenceMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		chat.ConfidenceLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

type options struct {
	backend string
	instant bool
	timeout time.Duration
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "asktester [question]",
		Short: "Stream one answer from the MedAssist selector to the terminal",
		Long: `asktester sends a single question through the same backend selection the
API server uses (retrieval backend, Ark model or local simulator) and prints the
answer as it streams, followed by its sources and confidence.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "override BACKEND (rag, ark or none)")
	cmd.Flags().BoolVar(&opts.instant, "instant", false, "print tokens without typing delays")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "give up after this long")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "show service logs")
	return cmd
}

func run(ctx context.Context, out io.Writer, question string, opts *options) error {
	if !opts.verbose {
		log.SetOutput(io.Discard)
	}
	_ = godotenv.Load()
	if opts.backend != "" {
		// 通过环境变量覆盖，复用 config 的校验。
		if err := os.Setenv("BACKEND", opts.backend); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var streamerOpts []stream.Option
	if opts.instant {
		streamerOpts = append(streamerOpts, stream.WithPacer(stream.Instant))
		cfg.Simulator.ThinkingDelay = 0
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	svc, err := bootstrap.NewAssistant(ctx, cfg, stream.NewStreamer(streamerOpts...))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, headerStyle.Render("Q: "+question))
	fmt.Fprintln(out, dimStyle.Render("backend: "+svc.BackendName()))
	fmt.Fprintln(out)

	var (
		answer  strings.Builder
		sources []chat.Source
	)
	started := time.Now()
	err = stream.Consume(svc.Respond(ctx, "asktester", question), func(chunk chat.StreamChunk) error {
		if chunk.Done {
			sources = chunk.Sources
			return nil
		}
		answer.WriteString(chunk.Content)
		_, err := io.WriteString(out, chunk.Content)
		return err
	})
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}

	printSummary(out, answer.String(), sources, time.Since(started))
	return nil
}

func printSummary(out io.Writer, answer string, sources []chat.Source, elapsed time.Duration) {
	fmt.Fprintln(out)
	if len(sources) > 0 {
		fmt.Fprintln(out, headerStyle.Render("Sources"))
		for i, src := range sources {
			fmt.Fprintln(out, sourceStyle.Render(fmt.Sprintf("  [%d] %s (%s, %.2f)", i+1, src.Title, src.Type, src.Score)))
			if src.URL != "" {
				fmt.Fprintln(out, dimStyle.Render("      "+src.URL))
			}
		}
	}

	decision := confidence.Assess(answer, sources)
	level := string(decision.Level)
	if level == "" {
		level = "n/a"
	}
	style, ok := levelStyles[decision.Level]
	if !ok {
		style = dimStyle
	}
	fmt.Fprintf(out, "%s %s\n", dimStyle.Render("confidence:"), style.Render(level))
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("elapsed: %s", elapsed.Round(time.Millisecond))))
}
