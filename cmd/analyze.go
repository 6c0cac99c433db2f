package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
	"github.com/maastricht-university/sincerity-pipeline/media"
	"github.com/maastricht-university/sincerity-pipeline/orchestrator"
)

type analyzeFlags struct {
	apiKey string
	format string
	out    string
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags
	c := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Analyze one video and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args[0], f)
		},
	}
	c.Flags().StringVar(&f.apiKey, "api-key", "", "OpenAI API key (default $OPENAI_API_KEY)")
	c.Flags().StringVarP(&f.format, "format", "f", "json", "report format: json or yaml")
	c.Flags().StringVarP(&f.out, "out", "o", "", "also write the report to this file")
	return c
}

func runAnalyze(ctx context.Context, w io.Writer, video string, f analyzeFlags) error {
	if !media.Allowed(video) {
		return fmt.Errorf("unsupported video %q: expected mp4, avi, mov or mkv", video)
	}
	switch f.format {
	case "json", "yaml", "yml":
	default:
		return fmt.Errorf("unknown report format %q", f.format)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, log, err := setup()
	if err != nil {
		return err
	}
	p, err := orchestrator.NewPipeline(conf, log, nil)
	if err != nil {
		return err
	}

	credential := f.apiKey
	if credential == "" {
		credential = conf.Sincerity.APIKey
	}
	rep, err := p.Analyze(ctx, video, credential)
	if err != nil {
		return err
	}

	if err := orchestrator.WriteReport(w, rep, f.format); err != nil {
		return err
	}
	if f.out != "" {
		if err := orchestrator.WriteReportFile(f.out, rep, f.format); err != nil {
			return err
		}
		log.WithField("path", f.out).Info("report written")
	}
	if analysis.Passed(rep.Faces) {
		fmt.Fprintln(w, "PASSED")
	} else {
		fmt.Fprintln(w, "NOT PASSED")
	}
	return nil
}
