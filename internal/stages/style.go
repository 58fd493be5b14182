package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// StyleInput is the input of the style designer.
type StyleInput struct {
	Config site.BusinessConfiguration
}

// StyleDesigner produces the five-color palette and font pairing.
type StyleDesigner struct{ base }

var _ Executor[StyleInput, site.StyleSystem] = (*StyleDesigner)(nil)

// NewStyleDesigner creates the stage.
func NewStyleDesigner(env Env, chain provider.Chain) *StyleDesigner {
	return &StyleDesigner{newBase(site.StageStyleDesigner, env, chain)}
}

const styleSystem = `You are a visual designer choosing a website color system.
Answer with a JSON object: {"primaryColor": "#RRGGBB", "secondaryColor": "#RRGGBB",
"accentColor": "#RRGGBB", "backgroundColor": "#RRGGBB", "textColor": "#RRGGBB",
"headingFont": "Google Font name", "bodyFont": "Google Font name"}.
Every color must be a six-digit hex triplet. Text must be readable on the background.`

// BuildStyleRequest builds the provider request for cfg.
func BuildStyleRequest(cfg site.BusinessConfiguration) (system, prompt string) {
	return styleSystem, "Design the color palette and typography for this business.\n\n" + describe(cfg)
}

// Execute runs the stage.
func (s *StyleDesigner) Execute(ctx context.Context, in StyleInput, r Reporter) (res site.Result[site.StyleSystem]) {
	defer recoverTo(&s.base, &res, func() site.StyleSystem { return FallbackStyle(in.Config) })

	req := s.textRequest(BuildStyleRequest(in.Config))
	r.Report(ProgressRequestBuilt, "request built")

	ai, ok, err := generate(ctx, &s.base, req, r, parseStyle)
	if err != nil {
		return cancelled[site.StyleSystem](&s.base, err)
	}
	if ok {
		return succeed(&s.base, r, ai.value, ai.path, ai.provider)
	}
	return succeed(&s.base, r, FallbackStyle(in.Config), PathFallback, "")
}

type styleResponse struct {
	site.Palette
	HeadingFont string `json:"headingFont"`
	BodyFont    string `json:"bodyFont"`
}

// parseStyle rejects the whole answer when any one color is not a hex
// triplet; a palette is never partially accepted.
func parseStyle(raw []byte) (site.StyleSystem, error) {
	if err := validateSchema("style", raw); err != nil {
		return site.StyleSystem{}, err
	}
	var resp styleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return site.StyleSystem{}, err
	}
	if err := ValidatePalette(resp.Palette); err != nil {
		return site.StyleSystem{}, err
	}
	return site.StyleSystem{
		Palette:     normalizePalette(resp.Palette),
		HeadingFont: strings.TrimSpace(resp.HeadingFont),
		BodyFont:    strings.TrimSpace(resp.BodyFont),
	}, nil
}

// ValidatePalette reports the first color that is not a #RRGGBB value.
func ValidatePalette(p site.Palette) error {
	names := []string{"primaryColor", "secondaryColor", "accentColor", "backgroundColor", "textColor"}
	for i, c := range p.Colors() {
		if !validHex(c) {
			return fmt.Errorf("%s %q is not a hex color", names[i], c)
		}
	}
	return nil
}

func normalizePalette(p site.Palette) site.Palette {
	return site.Palette{
		Primary:    strings.ToUpper(p.Primary),
		Secondary:  strings.ToUpper(p.Secondary),
		Accent:     strings.ToUpper(p.Accent),
		Background: strings.ToUpper(p.Background),
		Text:       strings.ToUpper(p.Text),
	}
}

// FallbackStyle returns the industry palette, honoring a valid brand color
// and brand fonts.
func FallbackStyle(cfg site.BusinessConfiguration) site.StyleSystem {
	p := profileFor(cfg.Industry)
	style := site.StyleSystem{
		Palette:     p.palette,
		HeadingFont: p.headingFont,
		BodyFont:    p.bodyFont,
	}
	if c := strings.TrimSpace(cfg.Brand.PrimaryColor); validHex(c) {
		style.Palette.Primary = strings.ToUpper(c)
	}
	switch fonts := cfg.Brand.Fonts; {
	case len(fonts) >= 2:
		style.HeadingFont, style.BodyFont = fonts[0], fonts[1]
	case len(fonts) == 1:
		style.HeadingFont, style.BodyFont = fonts[0], fonts[0]
	}
	return style
}
