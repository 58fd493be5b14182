package stages

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// StrategyInput is the input of the design strategy stage.
type StrategyInput struct {
	Config site.BusinessConfiguration
}

// DesignStrategy reasons about brand personality, color mood and which
// sections matter most.
type DesignStrategy struct{ base }

var _ Executor[StrategyInput, site.DesignStrategy] = (*DesignStrategy)(nil)

// NewDesignStrategy creates the stage.
func NewDesignStrategy(env Env, chain provider.Chain) *DesignStrategy {
	return &DesignStrategy{newBase(site.StageDesignStrategy, env, chain)}
}

const strategySystem = `You are a senior brand strategist for small-business websites.
Answer with a JSON object: {"personality": [adjectives], "colorMood": [keywords],
"sectionPriority": [section types, most important first], "visualStyle": "one word"}.
Section types are lowercase words such as hero, about, services, testimonials, faq, contact.`

// BuildStrategyRequest builds the provider request for cfg.
func BuildStrategyRequest(cfg site.BusinessConfiguration) (system, prompt string) {
	return strategySystem, "Define the design strategy for this business.\n\n" + describe(cfg)
}

// Execute runs the stage.
func (s *DesignStrategy) Execute(ctx context.Context, in StrategyInput, r Reporter) (res site.Result[site.DesignStrategy]) {
	defer recoverTo(&s.base, &res, func() site.DesignStrategy { return FallbackStrategy(in.Config) })

	req := s.textRequest(BuildStrategyRequest(in.Config))
	r.Report(ProgressRequestBuilt, "request built")

	ai, ok, err := generate(ctx, &s.base, req, r, parseStrategy)
	if err != nil {
		return cancelled[site.DesignStrategy](&s.base, err)
	}
	if ok {
		return succeed(&s.base, r, ai.value, ai.path, ai.provider)
	}
	return succeed(&s.base, r, FallbackStrategy(in.Config), PathFallback, "")
}

func parseStrategy(raw []byte) (site.DesignStrategy, error) {
	var out site.DesignStrategy
	if err := validateSchema("strategy", raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	out.VisualStyle = strings.ToLower(strings.TrimSpace(out.VisualStyle))
	if !slices.Contains(out.SectionPriority, site.SectionHero) {
		out.SectionPriority = append([]string{site.SectionHero}, out.SectionPriority...)
	}
	return out, nil
}

// FallbackStrategy derives a strategy from the industry profile table.
func FallbackStrategy(cfg site.BusinessConfiguration) site.DesignStrategy {
	p := profileFor(cfg.Industry)

	personality := slices.Clone(p.personality)
	if tone := strings.ToLower(strings.TrimSpace(cfg.Tone)); tone != "" && !slices.Contains(personality, tone) {
		personality = append(personality, tone)
	}

	priority := []string{site.SectionHero}
	priority = append(priority, p.sections...)
	priority = append(priority, site.SectionContact)

	style := p.visualStyle
	if bs := strings.ToLower(strings.TrimSpace(cfg.Brand.Style)); bs != "" {
		style = bs
	}

	return site.DesignStrategy{
		Personality:     personality,
		ColorMood:       slices.Clone(p.colorMood),
		SectionPriority: priority,
		VisualStyle:     style,
	}
}
