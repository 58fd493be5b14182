package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// Title and description bounds applied after generation. They count
// characters (runes), not bytes, so a multi-byte name may exceed them in
// encoded length.
const (
	TitleMax       = 65
	TitleTarget    = 60
	DescriptionMin = 120
	DescriptionMax = 160
	descTarget     = 150
	maxKeywords    = 12
)

// SEOInput is the input of the SEO generator.
type SEOInput struct {
	Config   site.BusinessConfiguration
	Strategy site.DesignStrategy
	Layout   site.Layout
	Copy     []site.SectionCopy
	Images   site.ImagePlan
}

// SEOGenerator produces title, description, keywords and structured data.
type SEOGenerator struct{ base }

var _ Executor[SEOInput, site.SEOMetadata] = (*SEOGenerator)(nil)

// NewSEOGenerator creates the stage.
func NewSEOGenerator(env Env, chain provider.Chain) *SEOGenerator {
	return &SEOGenerator{newBase(site.StageSEO, env, chain)}
}

const seoSystem = `You are an SEO specialist for local businesses.
Answer with a JSON object: {"title": "...", "description": "...", "keywords": ["..."]}.
The title is 60 to 65 characters. The description is 150 to 160 characters.
Give 5 to 12 lowercase keywords.`

// BuildSEORequest builds the provider request.
func BuildSEORequest(in SEOInput) (system, prompt string) {
	var b strings.Builder
	b.WriteString(describe(in.Config))
	if len(in.Strategy.Personality) > 0 {
		fmt.Fprintf(&b, "Brand personality: %s\n", joinList(in.Strategy.Personality))
	}
	var pages []string
	for _, p := range in.Layout.Pages {
		pages = append(pages, p.Title)
	}
	if len(pages) > 0 {
		fmt.Fprintf(&b, "Pages: %s\n", strings.Join(pages, ", "))
	}
	if hero, ok := heroCopy(in.Copy); ok {
		fmt.Fprintf(&b, "Hero headline: %s\n", hero.Headline)
	}
	return seoSystem, "Write search metadata for the home page.\n\n" + b.String()
}

// Execute runs the stage.
func (s *SEOGenerator) Execute(ctx context.Context, in SEOInput, r Reporter) (res site.Result[site.SEOMetadata]) {
	fallback := func() site.SEOMetadata { return FallbackSEO(in) }
	defer recoverTo(&s.base, &res, fallback)

	req := s.textRequest(BuildSEORequest(in))
	r.Report(ProgressRequestBuilt, "request built")

	ai, ok, err := generate(ctx, &s.base, req, r, func(raw []byte) (site.SEOMetadata, error) {
		return parseSEO(raw, in)
	})
	if err != nil {
		return cancelled[site.SEOMetadata](&s.base, err)
	}
	if ok {
		return succeed(&s.base, r, ai.value, ai.path, ai.provider)
	}
	return succeed(&s.base, r, fallback(), PathFallback, "")
}

type seoResponse struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

func parseSEO(raw []byte, in SEOInput) (site.SEOMetadata, error) {
	if err := validateSchema("seo", raw); err != nil {
		return site.SEOMetadata{}, err
	}
	var resp seoResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return site.SEOMetadata{}, err
	}
	keywords := normalizeKeywords(resp.Keywords)
	if len(keywords) == 0 {
		return site.SEOMetadata{}, fmt.Errorf("no usable keywords")
	}
	return buildMetadata(in, resp.Title, resp.Description, keywords), nil
}

// FallbackSEO derives metadata from the configuration and the copy.
func FallbackSEO(in SEOInput) site.SEOMetadata {
	cfg := in.Config
	title := cfg.ProjectName + " | " + titleCase(cfg.PrimaryService())
	if cfg.Location.City != "" {
		title += " in " + cfg.Location.City
	}

	var desc strings.Builder
	if hero, ok := heroCopy(in.Copy); ok && hero.Subheadline != "" {
		desc.WriteString(hero.Subheadline)
	} else {
		services := joinList(cfg.Services)
		if services == "" {
			services = strings.ToLower(cfg.Industry) + " services"
		}
		fmt.Fprintf(&desc, "%s offers %s", cfg.ProjectName, services)
		if cfg.Location.City != "" {
			desc.WriteString(" in " + cfg.Location.City)
		}
		desc.WriteString(".")
	}

	return buildMetadata(in, title, desc.String(), fallbackKeywords(cfg, in.Strategy))
}

func buildMetadata(in SEOInput, title, description string, keywords []string) site.SEOMetadata {
	cfg := in.Config
	title = AdjustTitle(title, cfg)
	description = AdjustDescription(description, cfg)

	image := ""
	if hero, ok := in.Images.Hero(); ok {
		image = hero.AssetPath()
	}
	return site.SEOMetadata{
		Title:         title,
		Description:   description,
		Keywords:      keywords,
		Slug:          cfg.Slug(),
		CanonicalPath: "/",
		OpenGraph: site.OpenGraph{
			Title:       title,
			Description: description,
			Image:       image,
			Type:        "website",
		},
		StructuredData: structuredData(cfg, description, image, keywords),
	}
}

// AdjustTitle trims the title to TitleMax at a word boundary, or extends a
// short title toward TitleTarget. Extensions are tried in order: business
// name, industry, region, country, each listed service, then the industry
// call to action. An extension is skipped when the title already names it
// or when it would push the title past TitleMax.
func AdjustTitle(title string, cfg site.BusinessConfiguration) string {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		title = cfg.ProjectName
	}
	if utf8.RuneCountInString(title) > TitleMax {
		return trimWords(title, TitleMax, 0)
	}

	extras := []string{cfg.ProjectName, titleCase(cfg.Industry), cfg.Location.Region, cfg.Location.Country}
	for _, svc := range cfg.Services {
		extras = append(extras, titleCase(svc))
	}
	extras = append(extras, profileFor(cfg.Industry).cta)
	for _, extra := range extras {
		if utf8.RuneCountInString(title) >= TitleTarget {
			break
		}
		extra = strings.TrimSpace(extra)
		if extra == "" || strings.Contains(normalizeWords(title), normalizeWords(extra)) {
			continue
		}
		candidate := title + " | " + extra
		if utf8.RuneCountInString(candidate) <= TitleMax {
			title = candidate
		}
	}
	return title
}

// AdjustDescription pads a short description with sentences about the
// business until it reaches the target, then trims to DescriptionMax at a
// word boundary. The result is always DescriptionMin to DescriptionMax runes.
func AdjustDescription(desc string, cfg site.BusinessConfiguration) string {
	desc = strings.Join(strings.Fields(desc), " ")
	if desc != "" && !strings.HasSuffix(desc, ".") && !strings.HasSuffix(desc, "!") && !strings.HasSuffix(desc, "?") {
		desc += "."
	}

	fillers := descriptionFillers(cfg)
	next := 0
	for utf8.RuneCountInString(desc) < descTarget && next < len(fillers) {
		candidate := strings.TrimSpace(desc + " " + fillers[next])
		next++
		if utf8.RuneCountInString(candidate) <= DescriptionMax {
			desc = candidate
		}
	}
	// Nothing left fits whole: take the overflow and trim it.
	for utf8.RuneCountInString(desc) < DescriptionMin {
		desc = strings.TrimSpace(desc + " " + genericFiller)
	}
	return trimWords(desc, DescriptionMax, DescriptionMin)
}

const genericFiller = "Quality work, honest advice and friendly service every time."

func descriptionFillers(cfg site.BusinessConfiguration) []string {
	var out []string
	if loc := cfg.Location.String(); loc != "" {
		out = append(out, fmt.Sprintf("Proudly serving %s.", loc))
	}
	if len(cfg.TargetAudiences) > 0 {
		out = append(out, fmt.Sprintf("Trusted by %s.", joinList(cfg.TargetAudiences)))
	}
	out = append(out,
		fmt.Sprintf("Contact %s today.", cfg.ProjectName),
		"Get in touch to learn more.",
		"Friendly, professional service.",
		genericFiller,
	)
	return out
}

// trimWords cuts s to at most limit runes, preferring the last word
// boundary. The boundary is used only if it keeps at least floor runes (or
// three quarters of limit when floor is 0); otherwise s is cut mid-word.
func trimWords(s string, limit, floor int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if floor <= 0 {
		floor = limit * 3 / 4
	}
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i >= 0 && utf8.RuneCountInString(cut[:i]) >= floor {
		cut = cut[:i]
	}
	cut = strings.TrimRight(cut, " ,;:-|")
	if utf8.RuneCountInString(cut) < floor {
		cut = string(runes[:limit])
	}
	return cut
}

func normalizeKeywords(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range in {
		k = strings.ToLower(strings.Join(strings.Fields(k), " "))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func fallbackKeywords(cfg site.BusinessConfiguration, strategy site.DesignStrategy) []string {
	industry := strings.TrimSpace(cfg.Industry)
	city := strings.TrimSpace(cfg.Location.City)
	kws := []string{industry}
	if city != "" {
		kws = append(kws, industry+" "+city)
	}
	for _, svc := range cfg.Services {
		kws = append(kws, svc)
		if city != "" {
			kws = append(kws, svc+" "+city)
		}
	}
	kws = append(kws, cfg.ProjectName)
	if len(strategy.Personality) > 0 {
		kws = append(kws, strategy.Personality[0]+" "+industry)
	}
	return normalizeKeywords(kws)
}

// schemaTypes maps industry keywords to schema.org types. First match wins.
var schemaTypes = []struct {
	keywords []string
	typ      string
}{
	{[]string{"legal", "law", "attorney*", "lawyer*"}, "LegalService"},
	{[]string{"dental", "dentist*"}, "Dentist"},
	{[]string{"medical", "clinic*", "health*", "doctor*"}, "MedicalBusiness"},
	{[]string{"restaurant*", "food", "dining"}, "Restaurant"},
	{[]string{"cafe*", "coffee", "bakery"}, "CafeOrCoffeeShop"},
	{[]string{"real estate", "realt*"}, "RealEstateAgent"},
	{[]string{"plumb*"}, "Plumber"},
	{[]string{"electric*"}, "Electrician"},
	{[]string{"auto*", "mechanic*"}, "AutoRepair"},
	{[]string{"fitness", "gym*"}, "ExerciseGym"},
	{[]string{"salon*", "beauty", "spa"}, "BeautySalon"},
	{[]string{"hotel"}, "Hotel"},
	{[]string{"accounting", "bookkeep*", "tax"}, "AccountingService"},
	{[]string{"insurance"}, "InsuranceAgency"},
}

// DefaultSchemaType is used when no industry keyword matches.
const DefaultSchemaType = "LocalBusiness"

// SchemaTypeFor returns the schema.org type for an industry.
func SchemaTypeFor(industry string) string {
	norm := normalizeWords(industry)
	for _, st := range schemaTypes {
		for _, kw := range st.keywords {
			if matchKeyword(norm, kw) {
				return st.typ
			}
		}
	}
	return DefaultSchemaType
}

func structuredData(cfg site.BusinessConfiguration, description, image string, keywords []string) map[string]any {
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       SchemaTypeFor(cfg.Industry),
		"name":        cfg.ProjectName,
		"description": description,
		"url":         "/",
		"keywords":    strings.Join(keywords, ", "),
	}
	if image != "" {
		data["image"] = image
	}
	if cfg.Location.String() != "" {
		addr := map[string]any{"@type": "PostalAddress"}
		if cfg.Location.City != "" {
			addr["addressLocality"] = cfg.Location.City
			data["areaServed"] = cfg.Location.City
		}
		if cfg.Location.Region != "" {
			addr["addressRegion"] = cfg.Location.Region
		}
		if cfg.Location.Country != "" {
			addr["addressCountry"] = cfg.Location.Country
		}
		data["address"] = addr
	}
	var offers []any
	for _, svc := range cfg.Services {
		if svc = strings.TrimSpace(svc); svc == "" {
			continue
		}
		offers = append(offers, map[string]any{
			"@type":       "Offer",
			"itemOffered": map[string]any{"@type": "Service", "name": svc},
		})
	}
	if len(offers) > 0 {
		data["makesOffer"] = offers
	}
	return data
}

func heroCopy(sections []site.SectionCopy) (site.SectionCopy, bool) {
	for _, c := range sections {
		if c.Section == site.SectionHero {
			return c, true
		}
	}
	return site.SectionCopy{}, false
}
