package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// CopyInput is the input of the copywriter.
type CopyInput struct {
	Config   site.BusinessConfiguration
	Sections site.SectionPlan
	Layout   site.Layout
}

// Copywriter writes headline, body, bullets and call to action per section.
type Copywriter struct{ base }

var _ Executor[CopyInput, []site.SectionCopy] = (*Copywriter)(nil)

// NewCopywriter creates the stage.
func NewCopywriter(env Env, chain provider.Chain) *Copywriter {
	return &Copywriter{newBase(site.StageCopywriter, env, chain)}
}

const copySystem = `You are a conversion copywriter for small-business websites.
Answer with a JSON object: {"sections": [{"section": "hero", "headline": "...", "subheadline": "...",
"body": "...", "bullets": ["..."], "cta": "..."}]}. Write one entry for every section you are given.
Headlines stay under 70 characters. Match the requested tone of voice.`

// RequiredSections lists every section needing copy: the planned sections
// in plan order, then any extra section types the layout placed.
func RequiredSections(plan site.SectionPlan, layout site.Layout) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range plan.Sections {
		if !seen[s.Type] {
			seen[s.Type] = true
			out = append(out, s.Type)
		}
	}
	for _, p := range layout.Pages {
		for _, s := range p.Sections {
			if !seen[s.Type] {
				seen[s.Type] = true
				out = append(out, s.Type)
			}
		}
	}
	return out
}

// BuildCopyRequest builds the provider request.
func BuildCopyRequest(cfg site.BusinessConfiguration, sections []string) (system, prompt string) {
	return copySystem, fmt.Sprintf("Write copy for these sections: %s.\n\n%s",
		strings.Join(sections, ", "), describe(cfg))
}

// Execute runs the stage.
func (s *Copywriter) Execute(ctx context.Context, in CopyInput, r Reporter) (res site.Result[[]site.SectionCopy]) {
	required := RequiredSections(in.Sections, in.Layout)
	fallback := func() []site.SectionCopy { return FallbackCopy(in.Config, required) }
	defer recoverTo(&s.base, &res, fallback)

	req := s.textRequest(BuildCopyRequest(in.Config, required))
	r.Report(ProgressRequestBuilt, "request built")

	ai, ok, err := generate(ctx, &s.base, req, r, func(raw []byte) ([]site.SectionCopy, error) {
		return parseCopy(raw, required)
	})
	if err != nil {
		return cancelled[[]site.SectionCopy](&s.base, err)
	}
	if ok {
		return succeed(&s.base, r, ai.value, ai.path, ai.provider)
	}
	return succeed(&s.base, r, fallback(), PathFallback, "")
}

type copyResponse struct {
	Sections []site.SectionCopy `json:"sections"`
}

// parseCopy accepts the answer only if it covers every required section.
// Extra sections are dropped and the result follows the required order.
func parseCopy(raw []byte, required []string) ([]site.SectionCopy, error) {
	if err := validateSchema("copy", raw); err != nil {
		return nil, err
	}
	var resp copyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	byType := make(map[string]site.SectionCopy, len(resp.Sections))
	for _, c := range resp.Sections {
		c.Section = strings.ToLower(strings.TrimSpace(c.Section))
		if _, dup := byType[c.Section]; !dup {
			byType[c.Section] = c
		}
	}

	out := make([]site.SectionCopy, 0, len(required))
	var missing []string
	for _, t := range required {
		c, ok := byType[t]
		if !ok {
			missing = append(missing, t)
			continue
		}
		out = append(out, c)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("no copy for section(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// FallbackCopy writes template copy for every section.
func FallbackCopy(cfg site.BusinessConfiguration, sections []string) []site.SectionCopy {
	p := profileFor(cfg.Industry)
	out := make([]site.SectionCopy, 0, len(sections))
	for _, t := range sections {
		out = append(out, templateCopy(t, cfg, p))
	}
	return out
}

func templateCopy(sectionType string, cfg site.BusinessConfiguration, p industryProfile) site.SectionCopy {
	name := cfg.ProjectName
	industry := strings.ToLower(strings.TrimSpace(cfg.Industry))
	service := cfg.PrimaryService()
	audience := joinList(cfg.TargetAudiences)
	if audience == "" {
		audience = "clients"
	}
	where := ""
	if cfg.Location.City != "" {
		where = " in " + cfg.Location.City
	}
	services := joinList(cfg.Services)
	if services == "" {
		services = industry + " services"
	}

	c := site.SectionCopy{Section: sectionType}
	switch sectionType {
	case site.SectionHero:
		c.Headline = titleCase(service) + " You Can Count On"
		c.Subheadline = fmt.Sprintf("%s helps %s with %s%s.", name, audience, services, where)
		c.Body = fmt.Sprintf("A %s team focused on clear communication and results.", strings.Join(p.personality[:2], ", "))
		c.CTA = p.cta
	case site.SectionAbout:
		c.Headline = "About " + name
		c.Body = fmt.Sprintf("%s is a %s business%s. We work with %s and bring a %s approach to every engagement.",
			name, industry, where, audience, p.personality[0])
	case site.SectionServices:
		c.Headline = "Our Services"
		c.Body = fmt.Sprintf("Everything %s offers, delivered with care.", name)
		if len(cfg.Services) > 0 {
			for _, svc := range cfg.Services {
				if svc = strings.TrimSpace(svc); svc != "" {
					c.Bullets = append(c.Bullets, titleCase(svc))
				}
			}
		} else {
			c.Bullets = []string{titleCase(services)}
		}
		c.CTA = "Learn More"
	case site.SectionTeam:
		c.Headline = "Meet the Team"
		c.Body = fmt.Sprintf("The people behind %s bring experience and commitment to every %s.", name, clientNoun(p))
	case site.SectionTestimonials:
		c.Headline = "What Our Clients Say"
		c.Body = fmt.Sprintf("Feedback from %s who worked with %s.", audience, name)
		c.Bullets = []string{
			"Professional, responsive and easy to work with.",
			"They took the time to understand what we needed.",
			"Clear communication from start to finish.",
		}
	case site.SectionFAQ:
		c.Headline = "Frequently Asked Questions"
		c.Body = "Answers to the questions we hear most often."
		c.Bullets = []string{
			fmt.Sprintf("What does %s offer? %s.", name, upperFirst(services)),
			"How do I get started? Reach out through the contact form and we will respond within one business day.",
		}
		if cfg.Location.City != "" {
			c.Bullets = append(c.Bullets, fmt.Sprintf("Where are you located? We serve %s and the surrounding area.", cfg.Location.City))
		}
	case site.SectionContact:
		c.Headline = "Get in Touch"
		c.Body = fmt.Sprintf("Tell us what you need and the %s team will get back to you.", name)
		if loc := cfg.Location.String(); loc != "" {
			c.Subheadline = "Located in " + loc
		}
		c.CTA = "Send a Message"
	case site.SectionGallery:
		c.Headline = "Gallery"
		c.Body = fmt.Sprintf("A look at %s.", name)
	case site.SectionMenu:
		c.Headline = "Our Menu"
		c.Body = "Fresh, seasonal and made with care."
		c.Bullets = titleCaseAll(cfg.Services)
	case site.SectionPricing:
		c.Headline = "Simple, Transparent Pricing"
		c.Body = "Contact us for a quote tailored to your needs."
		c.Bullets = titleCaseAll(cfg.Services)
		c.CTA = p.cta
	case site.SectionProcess:
		c.Headline = "How It Works"
		c.Body = "A clear path from first conversation to finished work."
		c.Bullets = []string{"Tell us what you need", "We agree on a plan", "We deliver", "We follow up"}
	case site.SectionCTA:
		c.Headline = "Ready to Get Started?"
		c.Body = fmt.Sprintf("%s is here to help%s.", name, where)
		c.CTA = p.cta
	default:
		c.Headline = titleCase(strings.ReplaceAll(sectionType, "-", " "))
		c.Body = fmt.Sprintf("More about %s.", name)
	}
	return c
}

func clientNoun(p industryProfile) string {
	if p.visualStyle == "organic" {
		return "guest"
	}
	return "client"
}

func titleCaseAll(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, titleCase(it))
		}
	}
	return out
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
