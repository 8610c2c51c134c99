package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ironsheep/image-optim/internal/pipeline"
)

var runOutput string

var runCmd = &cobra.Command{
	Use:   "run [operations.json]",
	Short: "Run an operation list once and write the encoded image",
	Long: `Run a JSON operation list, read from the given file or from stdin, and
write the encoded result to --output or stdout.

Example:

  echo '[{"type":"load","locator":"https://example.com/a.png"},
         {"type":"resize","width":320},
         {"type":"optim","format":"webp","quality":70}]' |
    image-optim run -o a.webp`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()

	var spec []byte
	var err error
	if len(args) == 1 && args[0] != "-" {
		spec, err = afero.ReadFile(fs, args[0])
	} else {
		spec, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading operations: %w", err)
	}

	runner := newRunner(cfg, logger)
	defer runner.Stop()

	res, err := executeSpec(cmd.Context(), runner, spec)
	if err != nil {
		return err
	}

	logger.Info("pipeline finished",
		slog.String("format", res.Format.String()),
		slog.Int("width", res.Width),
		slog.Int("height", res.Height),
		slog.Int("size", len(res.Data)),
		slog.Int("ratio", res.Ratio),
		slog.Float64("diff", res.DiffScore),
	)

	return writeResult(fs, runOutput, cmd.OutOrStdout(), res.Data)
}

// executeSpec decodes a JSON operation list and runs it on the pool.
func executeSpec(ctx context.Context, runner *pipeline.Runner, spec []byte) (*pipeline.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ops, err := pipeline.DecodeOperations(spec)
	if err != nil {
		return nil, err
	}
	return runner.Execute(ctx, ops)
}

// writeResult writes data to path on fs, or to stdout when path is empty.
func writeResult(fs afero.Fs, path string, stdout io.Writer, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := afero.WriteFile(fs, path, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
