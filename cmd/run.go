package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/formweaver/formweaver/api/schemas"
	"github.com/formweaver/formweaver/internal/batch"
	"github.com/formweaver/formweaver/internal/browser"
	"github.com/formweaver/formweaver/internal/config"
	"github.com/formweaver/formweaver/internal/mapping"
	"github.com/formweaver/formweaver/internal/observability"
	"github.com/formweaver/formweaver/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Schedules and executes a batch of form submissions",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			profileName := viper.GetString("profile")
			targetURL := viper.GetString("url")
			rulesPath := viper.GetString("rules")
			inputPath := viper.GetString("input")
			doRetry := viper.GetBool("retry")
			if profileName == "" || targetURL == "" || inputPath == "" {
				return fmt.Errorf("--profile, --url and --input are required")
			}

			rules, err := loadRules(rulesPath)
			if err != nil {
				return err
			}
			rows, err := loadRows(inputPath)
			if err != nil {
				return err
			}

			components, err := initializeRunComponents(ctx, &cfg, logger, profileName, targetURL, rules)
			if err != nil {
				if components != nil {
					components.Shutdown(ctx)
				}
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown(ctx)

			engine := components.Engine
			if err := engine.Recover(ctx); err != nil {
				logger.Warn("Batch recovery failed, continuing with an empty registry", zap.Error(err))
			}

			batchID, err := engine.ScheduleBatchRun(ctx, profileName, schemas.BatchConfig{
				RowDelay:      cfg.BatchCfg.RowDelay,
				StopOnCaptcha: viper.GetBool("stop-on-captcha"),
			})
			if err != nil {
				return fmt.Errorf("failed to schedule batch: %w", err)
			}
			logger.Info("Batch scheduled", zap.String("batch_id", batchID), zap.Int("rows", len(rows)))

			result, err := engine.ExecuteBatch(ctx, profileName, rows)
			if err != nil {
				return fmt.Errorf("batch execution failed: %w", err)
			}

			failures := result.Failures
			if doRetry && len(failures) > 0 {
				policy := schemas.RetryPolicy{
					MaxAttempts: cfg.BatchCfg.RetryMaxAttempts,
					RetryDelay:  cfg.BatchCfg.RetryDelay,
				}
				retryResult, err := engine.RetryFailedSubmissions(ctx, failures, policy)
				if err != nil {
					return fmt.Errorf("retry pass failed: %w", err)
				}
				failures = retryResult.Failures
				logger.Info("Retry pass finished",
					zap.Int("recovered", len(retryResult.Succeeded)),
					zap.Int("exhausted", len(failures)))
			}

			fmt.Printf("\nBatch Complete. Batch ID: %s\n", result.BatchID)
			fmt.Printf("Succeeded: %d  Failed: %d\n", len(result.Results), len(failures))
			if len(failures) > 0 {
				for _, f := range failures {
					fmt.Printf("  row failed after %d attempt(s): %s\n", f.Attempt, f.Error)
				}
				return fmt.Errorf("%d row(s) failed", len(failures))
			}
			return nil
		},
	}

	runCmd.Flags().StringP("profile", "p", "", "Profile name for this batch.")
	runCmd.Flags().StringP("url", "u", "", "Target page URL containing the form.")
	runCmd.Flags().StringP("rules", "r", "", "Path to a JSON mapping-rule file.")
	runCmd.Flags().StringP("input", "i", "", "Path to a JSON file holding an array of row objects.")
	runCmd.Flags().Bool("retry", true, "Retry failed rows with the configured policy.")
	runCmd.Flags().Bool("stop-on-captcha", false, "Abort remaining rows when a CAPTCHA wall is hit.")

	return runCmd
}

// runComponents holds the initialized services for one run.
type runComponents struct {
	Engine         *batch.Engine
	BrowserManager *browser.Manager
	SerialStore    *store.SerialStore
	DBPool         *pgxpool.Pool
	logger         *zap.Logger
}

// Shutdown gracefully closes all components.
func (rc *runComponents) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if rc.BrowserManager != nil {
		if err := rc.BrowserManager.Shutdown(shutdownCtx); err != nil {
			rc.logger.Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	if rc.SerialStore != nil {
		rc.SerialStore.Close()
	}
	if rc.DBPool != nil {
		rc.DBPool.Close()
	}
}

// initializeRunComponents handles dependency injection for the run command.
func initializeRunComponents(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	profileName, targetURL string,
	rules []schemas.MappingRule,
) (*runComponents, error) {
	components := &runComponents{logger: logger}

	// 1. Persistence. Postgres when configured, in-memory otherwise; either
	// way all writes funnel through the serializing queue.
	var backing schemas.BatchStore
	if cfg.DatabaseCfg.URL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseCfg.URL)
		if err != nil {
			return components, fmt.Errorf("failed to connect to database: %w", err)
		}
		components.DBPool = dbPool
		pgStore, err := store.NewPgStore(ctx, dbPool, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		backing = pgStore
	} else {
		logger.Info("No database configured, batch state is held in memory")
		backing = store.NewMemoryStore()
	}
	components.SerialStore = store.NewSerialStore(backing, logger)

	// 2. Browser and row processor.
	manager, err := browser.NewManager(ctx, cfg.BrowserCfg, logger)
	if err != nil {
		return components, err
	}
	components.BrowserManager = manager

	profiles := browser.StaticProfiles{
		profileName: {Name: profileName, URL: targetURL, Rules: rules},
	}
	submitter := browser.NewSubmitter(cfg, logger, manager, profiles)

	// 3. Batch engine.
	engine, err := batch.NewEngine(cfg, logger, components.SerialStore, submitter)
	if err != nil {
		return components, err
	}
	components.Engine = engine

	return components, nil
}

// loadRules reads and compiles a mapping-rule file. An empty path yields an
// empty rule set, which degrades to all-unmapped suggestions.
func loadRules(path string) ([]schemas.MappingRule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := mapping.ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rules, nil
}

// loadRows reads a JSON array of input rows.
func loadRows(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	var rows []any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("input file %s is not a JSON array: %w", path, err)
	}
	return rows, nil
}
