package resolve

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/appmodel/artifact"
	ocmctx "ocm.software/open-component-model/appmodel/cli/internal/context"
	"ocm.software/open-component-model/appmodel/cli/internal/flags/enum"
	"ocm.software/open-component-model/appmodel/internal/metrics"
	"ocm.software/open-component-model/appmodel/provider/cached"
	"ocm.software/open-component-model/appmodel/provider/file"
	"ocm.software/open-component-model/appmodel/resolver"
)

const (
	FlagRepository  = "repository"
	FlagMode        = "mode"
	FlagSet         = "set"
	FlagWorkspace   = "workspace"
	FlagOutput      = "output"
	FlagClasspath   = "classpath"
	FlagConcurrency = "concurrency"
	FlagMetrics     = "metrics"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve {application-coordinate}",
		Short: "Resolve the application model of an application",
		Long: `Resolve the runtime and deployment classpaths of an application.

The application and all of its dependencies are looked up in a repository
document of type repository.appmodel.ocm.software/v1. Extensions found on the
runtime classpath are activated and their deployment artifacts are resolved
into the deployment classpath.

The format of a coordinate is:
	{group}:{artifact}[:{classifier}:{type}|:{type}]:{version}`,
		Example: strings.TrimSpace(`
resolve org.acme:app:1.0.0 --repository repository.yaml
resolve org.acme:app:1.0.0 -r repository.yaml --mode dev --workspace org.acme:app
resolve org.acme:app:1.0.0 -r repository.yaml --set rest.version=2.0.0 --set org.acme:json=1.1
resolve org.acme:app:1.0.0 -r repository.yaml -o tree --classpath deployment
resolve org.acme:app:1.0.0 -r repository.yaml --metrics metrics.prom
`),
		Args:              cobra.ExactArgs(1),
		RunE:              ResolveApplication,
		DisableAutoGenTag: true,
	}

	cmd.Flags().StringP(FlagRepository, "r", "", "path to the repository document")
	_ = cmd.MarkFlagRequired(FlagRepository)
	modes := make([]string, 0, len(resolver.Modes))
	for _, m := range resolver.Modes {
		modes = append(modes, string(m))
	}
	enum.Var(cmd.Flags(), FlagMode, modes, "resolution mode, overrides the configured mode")
	cmd.Flags().StringArray(FlagSet, nil, `system override in the form KEY=VALUE, KEY is either a property name or a group:artifact key`)
	cmd.Flags().StringSlice(FlagWorkspace, nil, "group:artifact keys of workspace modules, flagged reloadable in dev mode")
	enum.VarP(cmd.Flags(), FlagOutput, "o", Outputs(), "output format of the application model")
	enum.Var(cmd.Flags(), FlagClasspath, Classpaths(), "classpath rendered by the table and tree output")
	cmd.Flags().Int(FlagConcurrency, 0, "maximum number of parallel repository lookups, overrides the configured concurrency")
	cmd.Flags().String(FlagMetrics, "", `file to write repository lookup metrics to in the Prometheus text format, "-" for stderr`)
	return cmd
}

func ResolveApplication(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := ocmctx.ConfigFromContext(ctx)

	root, err := artifact.ParseCoordinate(args[0])
	if err != nil {
		return fmt.Errorf("invalid application coordinate: %w", err)
	}
	output, err := enum.Get(cmd.Flags(), FlagOutput)
	if err != nil {
		return fmt.Errorf("getting output flag failed: %w", err)
	}
	classpath, err := enum.Get(cmd.Flags(), FlagClasspath)
	if err != nil {
		return fmt.Errorf("getting classpath flag failed: %w", err)
	}
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	req.Root = root

	path, err := cmd.Flags().GetString(FlagRepository)
	if err != nil {
		return fmt.Errorf("getting repository flag failed: %w", err)
	}
	repo, err := file.LoadFile(path)
	if err != nil {
		return err
	}
	ttl, err := cfg.Cache.TTLDuration()
	if err != nil {
		return err
	}
	var opts []cached.Option
	if cfg.Cache != nil {
		opts = append(opts, cached.WithSize(cfg.Cache.Size))
		if ttl > 0 {
			opts = append(opts, cached.WithTTL(ttl))
		}
	}

	slogcontext.FromCtx(ctx).DebugContext(ctx, "resolving application",
		slog.String("repository", path),
		slog.String("mode", string(req.Mode)),
		slog.Int("overrides", len(req.SystemOverrides)))

	m, err := resolver.New(cached.New(repo, opts...)).Resolve(ctx, req)
	if merr := writeMetrics(cmd); merr != nil {
		return errors.Join(err, merr)
	}
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), m, output, classpath)
}

// writeMetrics writes the gathered metrics to the file given with --metrics.
func writeMetrics(cmd *cobra.Command) (err error) {
	path, err := cmd.Flags().GetString(FlagMetrics)
	if err != nil {
		return fmt.Errorf("getting metrics flag failed: %w", err)
	}
	switch path {
	case "":
		return nil
	case "-":
		return metrics.WriteText(cmd.ErrOrStderr())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics file failed: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return metrics.WriteText(f)
}

// requestFromFlags builds the request from the configuration and the flags.
// Flags take precedence over the configuration.
func requestFromFlags(cmd *cobra.Command) (resolver.Request, error) {
	cfg := ocmctx.ConfigFromContext(cmd.Context())
	req := resolver.Request{
		Mode:            resolver.ModeProd,
		Concurrency:     cfg.Concurrency,
		SystemOverrides: map[string]string{},
	}
	if cfg.Mode != "" {
		mode, err := resolver.ParseMode(cfg.Mode)
		if err != nil {
			return req, fmt.Errorf("configured mode: %w", err)
		}
		req.Mode = mode
	}
	if cmd.Flags().Changed(FlagMode) {
		mode, err := enum.Get(cmd.Flags(), FlagMode)
		if err != nil {
			return req, fmt.Errorf("getting mode flag failed: %w", err)
		}
		req.Mode = resolver.Mode(mode)
	}
	if cmd.Flags().Changed(FlagConcurrency) {
		concurrency, err := cmd.Flags().GetInt(FlagConcurrency)
		if err != nil {
			return req, fmt.Errorf("getting concurrency flag failed: %w", err)
		}
		req.Concurrency = concurrency
	}

	for k, v := range cfg.Overrides {
		req.SystemOverrides[k] = v
	}
	overrides, err := cmd.Flags().GetStringArray(FlagSet)
	if err != nil {
		return req, fmt.Errorf("getting set flag failed: %w", err)
	}
	for _, o := range overrides {
		k, v, ok := strings.Cut(o, "=")
		if !ok || k == "" {
			return req, fmt.Errorf("invalid override %q, expected KEY=VALUE", o)
		}
		req.SystemOverrides[k] = v
	}

	workspace, err := cmd.Flags().GetStringSlice(FlagWorkspace)
	if err != nil {
		return req, fmt.Errorf("getting workspace flag failed: %w", err)
	}
	for _, w := range workspace {
		key, err := artifact.ParseKey(w)
		if err != nil {
			return req, fmt.Errorf("invalid workspace module: %w", err)
		}
		req.WorkspaceModules = append(req.WorkspaceModules, key)
	}
	return req, nil
}
