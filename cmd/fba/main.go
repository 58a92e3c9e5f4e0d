package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"founderaudit/internal/app"
	"founderaudit/internal/config"
	"founderaudit/internal/domain"
	"founderaudit/internal/engine"
	"founderaudit/internal/export"
	"founderaudit/internal/repo"
	"founderaudit/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fba",
	Short: "Founder Bottleneck Audit",
	Long: `fba stores founder bottleneck audits and wizard sessions and reports on them.
- Audit: one respondent's answers (decision categories, compensation, delay tax, patterns) plus the scored results.
- Session: one pass through the wizard, tracked step by step until it completes.
- Reports: cohort aggregates, session drop-off, the three-stage funnel, weekly/monthly trends, business metrics and the founder directory.
- Workspace: the directory holding funnel.yml and the .founderaudit database.`,
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FBA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), viper.GetString("workspace"), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			cfg := a.Config
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			hcfg := server.Config{
				Engine:      a.Engine,
				BasePath:    cfg.Server.BasePath,
				CORSOrigins: cfg.Server.CORSOrigins,
				Logger:      a.Logger,
				Metrics:     a.Metrics,
			}
			if cfg.Metrics.Enabled {
				hcfg.MetricsPath = cfg.Metrics.Path
			}
			handler, err := server.New(hcfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if d := server.NewWebhookDispatcher(a.Engine, a.Logger, a.Metrics); d != nil {
				go d.Run(ctx)
			}

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      handler,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			a.Logger.WithField("addr", cfg.Server.Addr).WithField("base_path", cfg.Server.BasePath).
				Info("serving founder audit API (Swagger UI at /docs)")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path (overrides server.base_path)")
	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect and score audits"}
	cmd.AddCommand(auditListCmd())
	cmd.AddCommand(auditShowCmd())
	cmd.AddCommand(auditScoreCmd())
	return cmd
}

func auditListCmd() *cobra.Command {
	var email, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audits, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAudits(ctx, repo.AuditFilters{
					Email:  email,
					Status: domain.OverallStatus(status),
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(w io.Writer) { export.RenderAudits(w, items) })
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "filter by respondent email")
	cmd.Flags().StringVar(&status, "status", "", "filter by overall status (optimized|scaling-risk|critical)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max audits (0 for all)")
	return cmd
}

func auditShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.GetAudit(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a, func(w io.Writer) {
					fmt.Fprintf(w, "%s <%s>  %s\n", a.UserName, a.UserEmail, a.CreatedAt.Format(time.RFC3339))
					export.RenderResults(w, a.Results)
				})
			})
		},
	}
}

func auditScoreCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score audit answers from a JSON file without storing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if file == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(file)
			}
			if err != nil {
				return err
			}
			var data domain.AuditData
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("invalid audit data: %w", err)
			}
			_, results, err := engine.Engine{}.ScorePreview(data)
			if err != nil {
				return err
			}
			return printJSONOrTable(results, func(w io.Writer) { export.RenderResults(w, results) })
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "audit data JSON (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Inspect wizard sessions"}
	cmd.AddCommand(sessionListCmd())
	return cmd
}

func sessionListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListSessions(ctx, repo.SessionFilters{Status: domain.SessionStatus(status), Limit: limit})
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(w io.Writer) { export.RenderSessions(w, items) })
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (in-progress|completed|abandoned)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max sessions (0 for all)")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Aggregate reports over stored audits and sessions"}
	cmd.AddCommand(&cobra.Command{
		Use:   "cohort",
		Short: "Cohort aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rep, err := e.Cohort(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(rep, func(w io.Writer) { export.RenderCohort(w, rep) })
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sessions",
		Short: "Session completion and drop-off",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.SessionSummary(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(sum, func(w io.Writer) { export.RenderSessionSummary(w, sum) })
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "funnel",
		Short: "Three-stage funnel conversion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.Funnel(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(f, func(w io.Writer) { export.RenderFunnel(w, f) })
			})
		},
	})
	var period string
	trends := &cobra.Command{
		Use:   "trends",
		Short: "Sessions and audits per period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				points, err := e.Trends(ctx, period)
				if err != nil {
					return err
				}
				return printJSONOrTable(points, func(w io.Writer) { export.RenderTrends(w, points) })
			})
		},
	}
	trends.Flags().StringVar(&period, "period", "", "week or month (defaults to reports.default_period)")
	cmd.AddCommand(trends)
	cmd.AddCommand(&cobra.Command{
		Use:   "business",
		Short: "Email capture, return visitors and repeat-audit deltas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.Business(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(b, func(w io.Writer) { export.RenderBusiness(w, b) })
			})
		},
	})
	var query string
	founders := &cobra.Command{
		Use:   "founders",
		Short: "Founder directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Founders(ctx, query)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(w io.Writer) { export.RenderFounders(w, items) })
			})
		},
	}
	founders.Flags().StringVar(&query, "q", "", "case-insensitive match on name or email")
	cmd.AddCommand(founders)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "export", Short: "Export audits or founders as CSV or XLSX"}
	var format, out, email, status string
	audits := &cobra.Command{
		Use:   "audits",
		Short: "Export audits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAudits(ctx, repo.AuditFilters{Email: email, Status: domain.OverallStatus(status)})
				if err != nil {
					return err
				}
				return writeOutput(out, func(w io.Writer) error {
					switch format {
					case "csv":
						return export.WriteAuditsCSV(w, items)
					case "xlsx":
						return export.WriteAuditsXLSX(w, items)
					default:
						return fmt.Errorf("unknown format %q (csv|xlsx)", format)
					}
				})
			})
		},
	}
	audits.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	audits.Flags().StringVar(&out, "out", "", "output file (stdout when empty)")
	audits.Flags().StringVar(&email, "email", "", "filter by respondent email")
	audits.Flags().StringVar(&status, "status", "", "filter by overall status")

	var foundersOut, query string
	founders := &cobra.Command{
		Use:   "founders",
		Short: "Export the founder directory as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Founders(ctx, query)
				if err != nil {
					return err
				}
				return writeOutput(foundersOut, func(w io.Writer) error {
					return export.WriteFoundersCSV(w, items)
				})
			})
		},
	}
	founders.Flags().StringVar(&foundersOut, "out", "", "output file (stdout when empty)")
	founders.Flags().StringVar(&query, "q", "", "case-insensitive match on name or email")

	cmd.AddCommand(audits)
	cmd.AddCommand(founders)
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Activity log"}
	var n int
	var evtType, entityKind, entityID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, _, err := e.ActivityFeed(ctx, n, 0, repo.EventFilters{Type: evtType, EntityKind: entityKind, EntityID: entityID})
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(w io.Writer) {
					for _, evt := range items {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s:%s\t%s\n", evt.ID, evt.TS, evt.Type, evt.EntityKind, evt.EntityID, evt.Payload)
					}
				})
			})
		},
	}
	tail.Flags().IntVarP(&n, "n", "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind filter (audit|session)")
	tail.Flags().StringVar(&entityID, "entity-id", "", "entity id filter")
	lg.AddCommand(tail)
	return lg
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage funnel.yml",
		Long:  "funnel.yml lives in the workspace and configures the server, storage, logging, metrics, reports and webhooks. Missing keys fall back to defaults.",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default funnel.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfg.AddCommand(initCmd)
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(c)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(c)
		},
	})
	var file string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate funnel.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				_, err = config.Load(viper.GetString("workspace"))
			}
			if viper.GetBool("json") {
				out := map[string]any{"ok": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	validateCmd.Flags().StringVar(&file, "file", "", "validate this file instead of the workspace config")
	cfg.AddCommand(validateCmd)
	return cfg
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"), app.Options{LogOutput: io.Discard})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Engine)
}

func printJSONOrTable(v any, render func(io.Writer)) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	render(os.Stdout)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
