package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"onnxd/pkg/types"
)

// Config carries the persistent CLI options.
type Config struct {
	ServerURL string
	APIKey    string
	JSON      bool
	Timeout   time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// buildRootCmd constructs the onnxctl command tree wired to cfg. The
// resolved client is built per invocation so tests can point cfg at a
// test server.
func buildRootCmd(cfg *Config, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "onnxctl",
		Short:         "Control a running onnxd daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.ServerURL, "server", envOr("ONNXCTL_SERVER", DefaultServerURL), "onnxd base URL")
	root.PersistentFlags().StringVar(&cfg.APIKey, "api-key", os.Getenv("ONNXCTL_API_KEY"), "Bearer token for authenticated daemons")
	root.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "Print raw JSON instead of formatted output")
	root.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "Request timeout")

	client := func() *Client {
		c := NewClient(cfg.ServerURL, cfg.APIKey)
		c.HTTP.Timeout = cfg.Timeout
		return c
	}
	reqCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), cfg.Timeout)
	}

	modelsCmd := &cobra.Command{
		Use:     "models [id]",
		Short:   "List registered models, or show one model's detail",
		Example: "  onnxctl models\n  onnxctl models pid-bdt.onnx",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqCtx()
			defer cancel()
			if len(args) == 1 {
				detail, err := client().ModelDetail(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(out, detail)
			}
			resp, err := client().Models(ctx)
			if err != nil {
				return err
			}
			if cfg.JSON {
				return printJSON(out, resp)
			}
			fmt.Fprintln(out, renderModels(resp.Models, newStyles()))
			return nil
		},
	}
	root.AddCommand(modelsCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, instance, and host memory status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqCtx()
			defer cancel()
			st, err := client().Status(ctx)
			if err != nil {
				return err
			}
			if cfg.JSON {
				return printJSON(out, st)
			}
			fmt.Fprintln(out, renderStatus(st, newStyles()))
			return nil
		},
	}
	root.AddCommand(statusCmd)

	var evalModel string
	var evalValues string
	evalCmd := &cobra.Command{
		Use:     "eval",
		Short:   "Evaluate a flat batch of values against a model",
		Example: "  onnxctl eval --model pid-bdt.onnx --values 1,2,3,4,5,6,7,8",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseFloats(evalValues)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return fmt.Errorf("--values is required")
			}
			ctx, cancel := reqCtx()
			defer cancel()
			resp, err := client().Evaluate(ctx, types.EvalRequest{Model: evalModel, Values: values})
			if err != nil {
				return err
			}
			return printJSON(out, resp)
		},
	}
	evalCmd.Flags().StringVar(&evalModel, "model", "", "Model id (empty uses the daemon default)")
	evalCmd.Flags().StringVar(&evalValues, "values", "", "Comma-separated float values forming the flat input batch")
	root.AddCommand(evalCmd)

	var fetchRemotePath string
	var fetchTimestamp int64
	fetchCmd := &cobra.Command{
		Use:     "fetch <id>",
		Short:   "Download a model from the artifact store and load it",
		Example: "  onnxctl fetch pid-bdt.onnx --remote-path Analysis/PID/TPC/ML --timestamp 1655000000000",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(fetchRemotePath) == "" {
				return fmt.Errorf("--remote-path is required")
			}
			ctx, cancel := reqCtx()
			defer cancel()
			resp, err := client().Fetch(ctx, args[0], types.FetchRequest{
				RemotePath: fetchRemotePath,
				Timestamp:  fetchTimestamp,
			})
			if err != nil {
				return err
			}
			return printJSON(out, resp)
		},
	}
	fetchCmd.Flags().StringVar(&fetchRemotePath, "remote-path", "", "Store path of the artifact")
	fetchCmd.Flags().Int64Var(&fetchTimestamp, "timestamp", 0, "Timestamp the artifact must be valid for")
	root.AddCommand(fetchCmd)

	reloadCmd := &cobra.Command{
		Use:   "reload <id>",
		Short: "Reopen a model's session from the file on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqCtx()
			defer cancel()
			if err := client().Reload(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out, "reloaded %s\n", args[0])
			return nil
		},
	}
	root.AddCommand(reloadCmd)

	unloadCmd := &cobra.Command{
		Use:   "unload <id>",
		Short: "Drain and remove a model instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := reqCtx()
			defer cancel()
			if err := client().Unload(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out, "unloaded %s\n", args[0])
			return nil
		},
	}
	root.AddCommand(unloadCmd)

	return root
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseFloats(s string) ([]float32, error) {
	var out []float32
	for _, part := range strings.Split(s, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}

// Execute runs the onnxctl CLI and returns a process exit code.
func Execute(args []string) int {
	cfg := &Config{}
	root := buildRootCmd(cfg, os.Stdout)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "onnxctl: %v\n", err)
		return 1
	}
	return 0
}
