package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/html"

	"github.com/formweaver/formweaver/api/schemas"
	"github.com/formweaver/formweaver/internal/browser"
	"github.com/formweaver/formweaver/internal/config"
	"github.com/formweaver/formweaver/internal/detect"
	"github.com/formweaver/formweaver/internal/mapping"
	"github.com/formweaver/formweaver/internal/observability"
)

// detectReport is the JSON shape printed by the detect command.
type detectReport struct {
	Forms       []schemas.FormDescriptor      `json:"forms"`
	Suggestions [][]schemas.MappingSuggestion `json:"suggestions,omitempty"`
}

// newDetectCmd creates the `detect` command: a dry run of the detection and
// mapping pipeline that prints what a batch would see, without submitting.
func newDetectCmd() *cobra.Command {
	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Detects forms on a page or in a local HTML file and prints them as JSON",
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

			targetURL := viper.GetString("url")
			filePath := viper.GetString("file")
			rulesPath := viper.GetString("rules")
			if (targetURL == "") == (filePath == "") {
				return fmt.Errorf("exactly one of --url or --file is required")
			}

			var pageHTML string
			if filePath != "" {
				data, err := os.ReadFile(filePath)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", filePath, err)
				}
				pageHTML = string(data)
			} else {
				manager, err := browser.NewManager(ctx, cfg.BrowserCfg, logger)
				if err != nil {
					return err
				}
				defer manager.Shutdown(ctx)
				pageHTML, err = fetchPage(manager, &cfg, targetURL)
				if err != nil {
					return err
				}
			}

			doc, err := html.Parse(strings.NewReader(pageHTML))
			if err != nil {
				return fmt.Errorf("failed to parse document: %w", err)
			}

			filter := detect.NewVisibilityFilter(cfg.DetectorCfg.HiddenClasses)
			detector := detect.NewDetector(logger, filter, cfg.DetectorCfg.MaxShadowDepth)
			extractor := detect.NewExtractor(logger, filter)

			report := detectReport{}
			for _, container := range detector.DetectForms(doc) {
				form := extractor.ExtractFormMetadata(container)
				if len(form.Fields) == 0 {
					continue
				}
				report.Forms = append(report.Forms, form)
			}

			if rulesPath != "" {
				rules, err := loadRules(rulesPath)
				if err != nil {
					return err
				}
				for _, form := range report.Forms {
					report.Suggestions = append(report.Suggestions, mapping.SuggestMappings(form.Fields, rules))
				}
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode report: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	detectCmd.Flags().StringP("url", "u", "", "Page URL to scan.")
	detectCmd.Flags().StringP("file", "f", "", "Local HTML file to scan instead of a live page.")
	detectCmd.Flags().StringP("rules", "r", "", "Optional JSON mapping-rule file to run suggestions against.")

	return detectCmd
}

// fetchPage loads the target in a fresh tab and returns its rendered HTML.
func fetchPage(manager *browser.Manager, cfg *config.Config, url string) (string, error) {
	tabCtx, closeTab := manager.NewTab()
	defer closeTab()
	return browser.FetchHTML(tabCtx, cfg.BrowserCfg, url)
}
