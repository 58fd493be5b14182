package site

// StageName identifies a pipeline stage in artifacts and events.
type StageName string

const (
	StageDesignStrategy StageName = "design-strategy"
	StageSectionPlanner StageName = "section-planner"
	StageStyleDesigner  StageName = "style-designer"
	StageLayout         StageName = "layout-generator"
	StageImagePlanner   StageName = "image-planner"
	StageImageGenerator StageName = "image-generator"
	StageCopywriter     StageName = "copywriter"
	StageSEO            StageName = "seo-generator"
	StageCodeAssembler  StageName = "code-assembler"
)

// DesignStrategy is the brand reasoning that seeds the other stages.
type DesignStrategy struct {
	Personality     []string `json:"personality"`
	ColorMood       []string `json:"colorMood"`
	SectionPriority []string `json:"sectionPriority"`
	VisualStyle     string   `json:"visualStyle"`
}

// Importance ranks a planned section.
type Importance string

const (
	ImportancePrimary    Importance = "primary"
	ImportanceSecondary  Importance = "secondary"
	ImportanceSupporting Importance = "supporting"
)

// Rank orders importance tiers; lower ranks are displayed first.
func (i Importance) Rank() int {
	switch i {
	case ImportancePrimary:
		return 0
	case ImportanceSecondary:
		return 1
	default:
		return 2
	}
}

// Common section types.
const (
	SectionHero         = "hero"
	SectionAbout        = "about"
	SectionServices     = "services"
	SectionTestimonials = "testimonials"
	SectionFAQ          = "faq"
	SectionContact      = "contact"
	SectionTeam         = "team"
	SectionGallery      = "gallery"
	SectionMenu         = "menu"
	SectionPricing      = "pricing"
	SectionProcess      = "process"
	SectionCTA          = "cta"
)

// SectionSpec is one planned section.
type SectionSpec struct {
	Type       string     `json:"type"`
	Importance Importance `json:"importance"`
	Order      int        `json:"order"`
	Purpose    string     `json:"purpose,omitempty"`
}

// SectionPlan is the ordered list of sections for the site.
type SectionPlan struct {
	Sections []SectionSpec `json:"sections"`
}

// Has reports whether the plan contains a section of the given type.
func (p SectionPlan) Has(sectionType string) bool {
	for _, s := range p.Sections {
		if s.Type == sectionType {
			return true
		}
	}
	return false
}

// Palette is the five-color scheme of a style system.
type Palette struct {
	Primary    string `json:"primaryColor"`
	Secondary  string `json:"secondaryColor"`
	Accent     string `json:"accentColor"`
	Background string `json:"backgroundColor"`
	Text       string `json:"textColor"`
}

// Colors returns the palette in a fixed order.
func (p Palette) Colors() []string {
	return []string{p.Primary, p.Secondary, p.Accent, p.Background, p.Text}
}

// StyleSystem is the palette plus typography.
type StyleSystem struct {
	Palette     Palette `json:"palette"`
	HeadingFont string  `json:"headingFont"`
	BodyFont    string  `json:"bodyFont"`
}

// LayoutSection places a planned section on a page.
type LayoutSection struct {
	Type    string `json:"type"`
	Variant string `json:"variant"`
	Columns int    `json:"columns"`
	Order   int    `json:"order"`
}

// Page is one page of the generated site.
type Page struct {
	Slug     string          `json:"slug"`
	Title    string          `json:"title"`
	Sections []LayoutSection `json:"sections"`
}

// Layout is the page structure of the site. The first page is the home page.
type Layout struct {
	Pages []Page `json:"pages"`
}

// Home returns the home page, or a zero Page when the layout is empty.
func (l Layout) Home() Page {
	if len(l.Pages) == 0 {
		return Page{}
	}
	return l.Pages[0]
}

// ImageSpec describes one image to generate.
type ImageSpec struct {
	ID        string `json:"id"`
	Purpose   string `json:"purpose"`
	Prompt    string `json:"prompt"`
	Placement string `json:"placement"` // section type the image belongs to
	Alt       string `json:"alt"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// AssetPath is where the image lives in the exported site.
func (s ImageSpec) AssetPath() string {
	return "/images/" + s.ID + ".png"
}

// ImagePlan is the list of images the site needs.
type ImagePlan struct {
	Specs []ImageSpec `json:"specs"`
}

// Hero returns the hero image spec, if planned.
func (p ImagePlan) Hero() (ImageSpec, bool) {
	for _, s := range p.Specs {
		if s.Placement == SectionHero {
			return s, true
		}
	}
	return ImageSpec{}, false
}

// GeneratedImage is a produced (or placeholder) image.
type GeneratedImage struct {
	Spec     ImageSpec `json:"spec"`
	URL      string    `json:"url"`
	Provider string    `json:"provider,omitempty"`
}

// SectionCopy is the written content of one section.
type SectionCopy struct {
	Section     string   `json:"section"`
	Headline    string   `json:"headline"`
	Subheadline string   `json:"subheadline,omitempty"`
	Body        string   `json:"body"`
	Bullets     []string `json:"bullets,omitempty"`
	CTA         string   `json:"cta,omitempty"`
}

// OpenGraph holds social preview metadata.
type OpenGraph struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Type        string `json:"type"`
}

// SEOMetadata is the search metadata of the site.
type SEOMetadata struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Keywords       []string       `json:"keywords"`
	Slug           string         `json:"slug"`
	CanonicalPath  string         `json:"canonicalPath"`
	OpenGraph      OpenGraph      `json:"openGraph"`
	StructuredData map[string]any `json:"structuredData"`
}

// SchemaType returns the JSON-LD @type, or "".
func (m SEOMetadata) SchemaType() string {
	t, _ := m.StructuredData["@type"].(string)
	return t
}

// GeneratedFile is one file of assembled site code.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// CodeBundle is the assembled markup and styles.
type CodeBundle struct {
	Files []GeneratedFile `json:"files"`
}

// Outcome summarizes how a stage terminated.
type Outcome struct {
	Status       string    `json:"status"`
	UsedFallback bool      `json:"usedFallback"`
	Error        ErrorKind `json:"error,omitempty"`
}

// SiteArtifact is the assembled output of a generation run.
type SiteArtifact struct {
	Slug        string                   `json:"slug"`
	ProjectName string                   `json:"projectName"`
	Strategy    *DesignStrategy          `json:"strategy,omitempty"`
	SectionPlan *SectionPlan             `json:"sectionPlan,omitempty"`
	Style       *StyleSystem             `json:"styleSystem,omitempty"`
	Layout      *Layout                  `json:"layout,omitempty"`
	Images      []Result[GeneratedImage] `json:"images"`
	Copy        []SectionCopy            `json:"copy"`
	SEO         *SEOMetadata             `json:"seoMetadata,omitempty"`
	Code        *CodeBundle              `json:"code,omitempty"`
	Outcomes    map[StageName]Outcome    `json:"outcomes"`

	// Degraded is set when any provider-backed stage used its fallback.
	Degraded bool `json:"degraded"`

	// Partial is set when some stages never ran (cancellation or deadline).
	Partial bool `json:"partial"`
}
