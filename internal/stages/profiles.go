package stages

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dusk-indust/sitegen/internal/site"
)

// industryProfile drives every deterministic fallback for an industry.
type industryProfile struct {
	keywords    []string
	personality []string
	colorMood   []string
	sections    []string // middle sections, in priority order
	visualStyle string
	palette     site.Palette
	headingFont string
	bodyFont    string
	cta         string
}

// Keywords ending in "*" match any word with that prefix; others match whole
// words or phrases.
var profiles = []industryProfile{
	{
		keywords:    []string{"legal", "law", "attorney*", "lawyer*", "solicitor*", "notary"},
		personality: []string{"trustworthy", "authoritative", "professional"},
		colorMood:   []string{"navy", "deep", "conservative"},
		sections:    []string{site.SectionServices, site.SectionAbout, site.SectionTeam, site.SectionTestimonials, site.SectionFAQ},
		visualStyle: "classic",
		palette:     site.Palette{Primary: "#1E3A5F", Secondary: "#2C5282", Accent: "#C9A227", Background: "#FFFFFF", Text: "#1A202C"},
		headingFont: "Playfair Display",
		bodyFont:    "Source Sans Pro",
		cta:         "Book a Consultation",
	},
	{
		keywords:    []string{"restaurant*", "food", "cafe*", "coffee", "bakery", "bistro", "bar", "dining", "catering"},
		personality: []string{"warm", "inviting", "vibrant"},
		colorMood:   []string{"warm", "appetizing", "earthy"},
		sections:    []string{site.SectionMenu, site.SectionAbout, site.SectionGallery, site.SectionTestimonials},
		visualStyle: "organic",
		palette:     site.Palette{Primary: "#9B2C2C", Secondary: "#DD6B20", Accent: "#F6AD55", Background: "#FFFAF0", Text: "#2D3748"},
		headingFont: "Lora",
		bodyFont:    "Open Sans",
		cta:         "Reserve a Table",
	},
	{
		keywords:    []string{"dental", "dentist*", "medical", "clinic*", "health*", "doctor*", "therap*", "veterinar*"},
		personality: []string{"caring", "clean", "reassuring"},
		colorMood:   []string{"calm", "fresh", "clinical"},
		sections:    []string{site.SectionServices, site.SectionTeam, site.SectionAbout, site.SectionTestimonials, site.SectionFAQ},
		visualStyle: "clean",
		palette:     site.Palette{Primary: "#2B6CB0", Secondary: "#38B2AC", Accent: "#68D391", Background: "#F7FAFC", Text: "#1A202C"},
		headingFont: "Montserrat",
		bodyFont:    "Open Sans",
		cta:         "Book an Appointment",
	},
	{
		keywords:    []string{"tech*", "software", "saas", "it", "startup*", "digital", "app*", "agency"},
		personality: []string{"innovative", "precise", "modern"},
		colorMood:   []string{"electric", "cool", "bold"},
		sections:    []string{site.SectionServices, site.SectionProcess, site.SectionPricing, site.SectionTestimonials, site.SectionFAQ},
		visualStyle: "modern",
		palette:     site.Palette{Primary: "#4C51BF", Secondary: "#667EEA", Accent: "#ED64A6", Background: "#FFFFFF", Text: "#1A202C"},
		headingFont: "Inter",
		bodyFont:    "Inter",
		cta:         "Get Started",
	},
	{
		keywords:    []string{"fitness", "gym*", "yoga", "pilates", "wellness", "personal training", "crossfit"},
		personality: []string{"energetic", "motivating", "bold"},
		colorMood:   []string{"vivid", "high-contrast", "dynamic"},
		sections:    []string{site.SectionServices, site.SectionPricing, site.SectionTeam, site.SectionTestimonials},
		visualStyle: "bold",
		palette:     site.Palette{Primary: "#C53030", Secondary: "#1A202C", Accent: "#ECC94B", Background: "#FFFFFF", Text: "#1A202C"},
		headingFont: "Oswald",
		bodyFont:    "Roboto",
		cta:         "Start Your Free Trial",
	},
	{
		keywords:    []string{"beauty", "salon*", "spa", "barber*", "nail*", "cosmetic*"},
		personality: []string{"elegant", "relaxing", "refined"},
		colorMood:   []string{"soft", "luxurious", "rosy"},
		sections:    []string{site.SectionServices, site.SectionGallery, site.SectionPricing, site.SectionTestimonials},
		visualStyle: "elegant",
		palette:     site.Palette{Primary: "#97266D", Secondary: "#D53F8C", Accent: "#F6E05E", Background: "#FFF5F7", Text: "#2D3748"},
		headingFont: "Cormorant Garamond",
		bodyFont:    "Lato",
		cta:         "Book Now",
	},
	{
		keywords:    []string{"real estate", "realt*", "property", "properties", "mortgage*"},
		personality: []string{"trustworthy", "aspirational", "polished"},
		colorMood:   []string{"rich", "green", "grounded"},
		sections:    []string{site.SectionServices, site.SectionGallery, site.SectionAbout, site.SectionTestimonials},
		visualStyle: "modern",
		palette:     site.Palette{Primary: "#22543D", Secondary: "#2F855A", Accent: "#D69E2E", Background: "#FFFFFF", Text: "#1A202C"},
		headingFont: "Merriweather",
		bodyFont:    "Lato",
		cta:         "Schedule a Viewing",
	},
	{
		keywords:    []string{"construction", "contractor*", "plumb*", "electric*", "roof*", "hvac", "landscap*", "auto*", "mechanic*", "repair*", "cleaning"},
		personality: []string{"reliable", "sturdy", "practical"},
		colorMood:   []string{"strong", "industrial", "confident"},
		sections:    []string{site.SectionServices, site.SectionProcess, site.SectionGallery, site.SectionTestimonials, site.SectionFAQ},
		visualStyle: "bold",
		palette:     site.Palette{Primary: "#2C5282", Secondary: "#DD6B20", Accent: "#F6E05E", Background: "#FFFFFF", Text: "#1A202C"},
		headingFont: "Roboto Slab",
		bodyFont:    "Roboto",
		cta:         "Request a Quote",
	},
}

var defaultProfile = industryProfile{
	personality: []string{"professional", "approachable", "reliable"},
	colorMood:   []string{"balanced", "confident", "fresh"},
	sections:    []string{site.SectionServices, site.SectionAbout, site.SectionTestimonials, site.SectionFAQ},
	visualStyle: "modern",
	palette:     site.Palette{Primary: "#2B6CB0", Secondary: "#4A5568", Accent: "#ED8936", Background: "#FFFFFF", Text: "#1A202C"},
	headingFont: "Poppins",
	bodyFont:    "Inter",
	cta:         "Contact Us",
}

// profileFor returns the first profile whose keywords match industry.
func profileFor(industry string) industryProfile {
	norm := normalizeWords(industry)
	for _, p := range profiles {
		for _, kw := range p.keywords {
			if matchKeyword(norm, kw) {
				return p
			}
		}
	}
	return defaultProfile
}

// normalizeWords lowercases s and joins its alphanumeric words with single
// spaces, padded so every word is delimited on both sides.
func normalizeWords(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(words, " ") + " "
}

func matchKeyword(norm, kw string) bool {
	if prefix, ok := strings.CutSuffix(kw, "*"); ok {
		return strings.Contains(norm, " "+prefix)
	}
	return strings.Contains(norm, " "+kw+" ")
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// validHex reports whether c is a #RRGGBB color.
func validHex(c string) bool { return hexColor.MatchString(c) }

// titleCase upper-cases the first letter of every word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// joinList renders items as "a, b and c".
func joinList(items []string) string {
	var clean []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			clean = append(clean, it)
		}
	}
	switch len(clean) {
	case 0:
		return ""
	case 1:
		return clean[0]
	default:
		return strings.Join(clean[:len(clean)-1], ", ") + " and " + clean[len(clean)-1]
	}
}
