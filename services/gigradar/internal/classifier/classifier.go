package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/models"
	"gigradar/services/gigradar/internal/textnorm"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("gigradar/classifier")

const (
	maxTitleRunes       = 200
	maxDescriptionRunes = 1000
	callTimeout         = 30 * time.Second
)

const promptTemplate = `You screen "hire a freelancer" forum posts for a developer who builds automation.

Answer Yes when the poster wants to HIRE someone for any of:
- mobile, browser or social-platform automation (Appium, Selenium, Playwright, emulators, multi-account tooling)
- TikTok Shop outreach or affiliate automation
- full-stack automation dashboards or control panels
- scrapers, crawlers and data pipelines
- workflow orchestration (n8n, Zapier, Make, custom schedulers)
- web development, API integrations, SaaS or MVP builds
Be highly sensitive: any request for a "bot" together with a platform name is Yes.

Answer No when the post is about:
- content creation, social media management, video editing or design
- coaching, courses or consulting calls
- virtual assistants or manual data entry
- bulk account creation or account sales
- pure marketing, SEO, backlinks or traffic
- people offering their own services instead of hiring

Title: %s
Description: %s

Reply with exactly one token: Yes or No.`

// Completer is the LLM provider surface the classifier needs.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

type Decision struct {
	Label    string
	Relevant bool
	Model    string
	Latency  time.Duration
}

func no(model string) Decision {
	return Decision{Label: models.DecisionNo, Relevant: false, Model: model}
}

// Classifier labels forum posts Yes/No. It never returns an error: any
// failure yields No.
type Classifier struct {
	completer Completer
	enabled   bool
	fallbacks []string
	logger    *zap.Logger

	mu    sync.RWMutex
	model string
}

func New(completer Completer, apiKey, model string, fallbacks []string, logger *zap.Logger) *Classifier {
	enabled := strings.TrimSpace(apiKey) != "" && completer != nil
	if !enabled {
		logger.Warn("LLM API key missing, every post will be classified No")
	}
	return &Classifier{
		completer: completer,
		enabled:   enabled,
		fallbacks: fallbacks,
		logger:    logger,
		model:     model,
	}
}

func (c *Classifier) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func BuildPrompt(title, description string) string {
	return fmt.Sprintf(promptTemplate,
		textnorm.Clip(strings.TrimSpace(title), maxTitleRunes),
		textnorm.Clip(strings.TrimSpace(description), maxDescriptionRunes))
}

func (c *Classifier) Classify(ctx context.Context, title, description string) Decision {
	model := c.Model()
	if !c.enabled {
		return no(model)
	}

	ctx, span := tracer.Start(ctx, "Classifier.Classify")
	defer span.End()

	start := time.Now()
	prompt := BuildPrompt(title, description)

	out, err := c.complete(ctx, model, prompt)
	if err != nil && isModelNotFound(err) {
		c.logger.Warn("model not found, looking for a fallback", zap.String("model", model), zap.Error(err))
		fallback, ferr := c.pickFallback(ctx, model)
		if ferr != nil {
			span.RecordError(ferr)
			c.logger.Error("no fallback model available", zap.Error(ferr))
			return no(model)
		}
		c.mu.Lock()
		c.model = fallback
		c.mu.Unlock()
		c.logger.Info("switched classifier model", zap.String("from", model), zap.String("to", fallback))
		model = fallback
		out, err = c.complete(ctx, model, prompt)
	}
	if err != nil {
		span.RecordError(err)
		c.logger.Error("classification failed",
			zap.String("model", model),
			zap.Error(errors.ClassifierUnavailable("completion", err)))
		return no(model)
	}

	span.SetAttributes(telemetry.String("llm.model", model), telemetry.String("llm.output", out))

	d, ok := ParseAnswer(out)
	if !ok {
		c.logger.Warn("unexpected classifier output", zap.String("output", textnorm.Clip(out, 200)))
	}
	d.Model = model
	d.Latency = time.Since(start)
	return d
}

func (c *Classifier) complete(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return c.completer.Complete(ctx, model, prompt)
}

// ParseAnswer maps YES/Y and NO/N (any case, surrounding punctuation
// ignored) to a decision. ok is false when the output is neither; the
// decision is then No.
func ParseAnswer(out string) (Decision, bool) {
	answer := strings.ToUpper(strings.Trim(strings.TrimSpace(out), " .!\"'`*"))
	switch answer {
	case "YES", "Y":
		return Decision{Label: models.DecisionYes, Relevant: true}, true
	case "NO", "N":
		return Decision{Label: models.DecisionNo, Relevant: false}, true
	default:
		return Decision{Label: models.DecisionNo, Relevant: false}, false
	}
}

func isModelNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") && strings.Contains(msg, "not found")
}

func (c *Classifier) pickFallback(ctx context.Context, current string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	listed, err := c.completer.ListModels(ctx)
	if err != nil {
		return "", errors.ClassifierUnavailable("listing models", err)
	}

	available := make(map[string]bool, len(listed))
	for _, id := range listed {
		available[strings.TrimPrefix(id, "models/")] = true
	}

	for _, candidate := range c.fallbacks {
		if candidate != current && available[candidate] {
			return candidate, nil
		}
	}

	// Any stable small model the provider lists.
	for _, id := range listed {
		id = strings.TrimPrefix(id, "models/")
		lower := strings.ToLower(id)
		if id == current || strings.Contains(lower, "exp") || strings.Contains(lower, "preview") {
			continue
		}
		if strings.Contains(lower, "flash") || strings.Contains(lower, "mini") {
			return id, nil
		}
	}

	return "", errors.ClassifierUnavailable("no usable model among "+fmt.Sprint(len(listed))+" listed", nil)
}
