package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/formweaver/formweaver/api/schemas"
	"github.com/formweaver/formweaver/internal/config"
	"github.com/formweaver/formweaver/internal/detect"
	"github.com/formweaver/formweaver/internal/detect/visual"
	"github.com/formweaver/formweaver/internal/humanoid"
)

// Profile binds a profile name to its target page and mapping rules.
type Profile struct {
	Name  string
	URL   string
	Rules []schemas.MappingRule
}

// ProfileSource resolves profile names to their submission targets.
type ProfileSource interface {
	ProfileFor(name string) (Profile, error)
}

// StaticProfiles is a fixed in-memory ProfileSource.
type StaticProfiles map[string]Profile

// ProfileFor implements ProfileSource.
func (p StaticProfiles) ProfileFor(name string) (Profile, error) {
	profile, ok := p[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	return profile, nil
}

// SubmissionResult is the per-row outcome handed back to the batch engine.
type SubmissionResult struct {
	Profile   string `json:"profile"`
	URL       string `json:"url"`
	FormID    string `json:"form_id"`
	Synthetic bool   `json:"synthetic"`
	Filled    int    `json:"filled"`
}

// Submitter drives one row through detect, map, fill and submit against a
// live page. It implements the batch engine's RowProcessor capability.
type Submitter struct {
	logger    *zap.Logger
	cfg       config.BrowserConfig
	manager   *Manager
	profiles  ProfileSource
	detector  *detect.Detector
	extractor *detect.Extractor
	clusterer *visual.Clusterer
	pacer     *humanoid.Pacer
}

// NewSubmitter wires the detection pipeline to a browser manager.
func NewSubmitter(
	cfg config.Interface,
	logger *zap.Logger,
	manager *Manager,
	profiles ProfileSource,
) *Submitter {
	filter := detect.NewVisibilityFilter(cfg.Detector().HiddenClasses)
	log := logger.Named("submitter")
	return &Submitter{
		logger:    log,
		cfg:       cfg.Browser(),
		manager:   manager,
		profiles:  profiles,
		detector:  detect.NewDetector(log, filter, cfg.Detector().MaxShadowDepth),
		extractor: detect.NewExtractor(log, filter),
		clusterer: visual.NewClusterer(log, cfg.Detector().ClusterGap),
		pacer:     humanoid.NewPacer(cfg.Humanoid()),
	}
}

// ProcessRow implements schemas.RowProcessor. Any failure is returned as an
// error for the batch engine to record; a CAPTCHA wall is reported through
// schemas.ErrCaptchaDetected so StopOnCaptcha batches can abort early.
func (s *Submitter) ProcessRow(ctx context.Context, profileName string, row any) (any, error) {
	profile, err := s.profiles.ProfileFor(profileName)
	if err != nil {
		return nil, err
	}
	columns, err := NormalizeRow(row)
	if err != nil {
		return nil, err
	}

	tabCtx, closeTab := s.manager.NewTab()
	defer closeTab()

	navCtx := tabCtx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(tabCtx, s.cfg.NavigationTimeout)
		defer cancel()
	}

	pageHTML, err := FetchHTML(navCtx, s.cfg, profile.URL)
	if err != nil {
		return nil, err
	}
	if looksLikeCaptcha(pageHTML) {
		return nil, fmt.Errorf("%s: %w", profile.URL, schemas.ErrCaptchaDetected)
	}

	forms, err := s.detectForms(navCtx, pageHTML)
	if err != nil {
		return nil, err
	}

	plan, err := PlanSubmission(forms, profile.Rules, columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", profile.URL, err)
	}

	if err := s.fillAndSubmit(navCtx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("Row submitted",
		zap.String("profile", profileName),
		zap.String("form_id", plan.Form.ID),
		zap.Int("filled", len(plan.Actions)))
	return SubmissionResult{
		Profile:   profileName,
		URL:       profile.URL,
		FormID:    plan.Form.ID,
		Synthetic: plan.Form.Synthetic,
		Filled:    len(plan.Actions),
	}, nil
}

// FetchHTML navigates the tab to the target and returns the rendered
// document HTML.
func FetchHTML(ctx context.Context, cfg config.BrowserConfig, url string) (string, error) {
	var pageHTML string
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
	}
	if cfg.PostLoadWait > 0 {
		// JS-rendered layouts need a settle window before the DOM is scanned.
		tasks = append(tasks, chromedp.Sleep(cfg.PostLoadWait))
	}
	tasks = append(tasks, chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery))

	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("failed to load %s: %w", url, err)
	}
	return pageHTML, nil
}

// detectForms runs structural detection over the captured document and falls
// back to visual clustering when no usable form container exists.
func (s *Submitter) detectForms(ctx context.Context, pageHTML string) ([]schemas.FormDescriptor, error) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var forms []schemas.FormDescriptor
	for _, container := range s.detector.DetectForms(doc) {
		form := s.extractor.ExtractFormMetadata(container)
		if len(form.Fields) > 0 {
			forms = append(forms, form)
		}
	}
	if len(forms) > 0 {
		return forms, nil
	}

	s.logger.Debug("No structural forms found, trying visual fallback")
	snapshot, err := CaptureSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.clusterer.FallbackDetection(snapshot), nil
}

// fillAndSubmit types each planned value with human pacing and submits the
// form through the first filled control.
func (s *Submitter) fillAndSubmit(ctx context.Context, plan *FillPlan) error {
	for _, action := range plan.Actions {
		if err := s.pacer.CognitivePause(ctx); err != nil {
			return err
		}
		if err := s.focus(ctx, action.Selector); err != nil {
			return err
		}
		if err := s.typeValue(ctx, action.Selector, action.Value); err != nil {
			return err
		}
	}

	submitThrough := plan.Actions[0].Selector
	if err := chromedp.Run(ctx, chromedp.Submit(submitThrough, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to submit form %q: %w", plan.Form.ID, err)
	}
	return nil
}

// focus clicks into the control and clears any prefilled value. With pacing
// enabled the click is a held press at the element's center.
func (s *Submitter) focus(ctx context.Context, selector string) error {
	if s.pacer.Enabled() {
		if err := s.pacer.ClickSelector(ctx, selector); err != nil {
			return fmt.Errorf("failed to focus %s: %w", selector, err)
		}
	} else {
		if err := chromedp.Run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
			return fmt.Errorf("failed to focus %s: %w", selector, err)
		}
	}
	if err := chromedp.Run(ctx, chromedp.Clear(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", selector, err)
	}
	return nil
}

// typeValue sends the value one rune at a time, holding each key per the
// pacer so the input rhythm is not machine-regular.
func (s *Submitter) typeValue(ctx context.Context, selector, value string) error {
	if !s.pacer.Enabled() {
		if err := chromedp.Run(ctx, chromedp.SendKeys(selector, value, chromedp.ByQuery)); err != nil {
			return fmt.Errorf("failed to fill %s: %w", selector, err)
		}
		return nil
	}
	for _, r := range value {
		if err := chromedp.Run(ctx, chromedp.SendKeys(selector, string(r), chromedp.ByQuery)); err != nil {
			return fmt.Errorf("failed to type into %s: %w", selector, err)
		}
		if hold := s.pacer.KeyHold(); hold > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(hold):
			}
		}
	}
	return nil
}
