package stages

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"unicode"

	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/tsx"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	tmplOnce sync.Once
	tmpl     *template.Template
	tmplErr  error
)

func templates() (*template.Template, error) {
	tmplOnce.Do(func() {
		tmpl, tmplErr = template.New("site").Funcs(template.FuncMap{
			"expr": jsxExpr,
			"json": jsonIndent,
			"font": fontName,
			"cls":  className,
		}).ParseFS(templateFS, "templates/*.tmpl")
	})
	return tmpl, tmplErr
}

// Generated file paths.
const (
	HomePagePath = "src/pages/index.tsx"
	ThemePath    = "src/styles/theme.css"
	MetadataPath = "src/metadata.ts"
)

// CodeInput is the input of the code assembler.
type CodeInput struct {
	Config site.BusinessConfiguration
	Style  site.StyleSystem
	Layout site.Layout
	Copy   []site.SectionCopy
	Images []site.Result[site.GeneratedImage]
	SEO    site.SEOMetadata
}

// CodeAssembler renders the site as TSX pages, a theme stylesheet and a
// metadata module. Every TSX file is syntax-checked before it is accepted.
type CodeAssembler struct {
	base
	validator *tsx.Validator
}

var _ Executor[CodeInput, site.CodeBundle] = (*CodeAssembler)(nil)

// NewCodeAssembler creates the stage.
func NewCodeAssembler(env Env, chain provider.Chain) *CodeAssembler {
	return &CodeAssembler{
		base:      newBase(site.StageCodeAssembler, env, chain),
		validator: tsx.NewValidator(),
	}
}

const codeSystem = `You are a React developer writing a single self-contained TSX page component.
Answer with a JSON object: {"component": "<TSX source>"}. The source must
export default a function component named HomePage, import React from "react"
and "../styles/theme.css", use only the copy and image URLs given, and use the
CSS variables --color-primary, --color-secondary, --color-accent,
--color-background, --color-text, --font-heading and --font-body.`

// BuildCodeRequest builds the provider request for the home page component.
func BuildCodeRequest(in CodeInput) (system, prompt string) {
	home := homePage(in.Layout, in.Copy)
	data := buildPage(home, in, true)
	doc, _ := json.MarshalIndent(data.Sections, "", "  ")
	return codeSystem, fmt.Sprintf("Write the home page for %s (%s).\nSections in order:\n%s\n",
		in.Config.ProjectName, in.Config.Industry, doc)
}

// Execute runs the stage.
func (s *CodeAssembler) Execute(ctx context.Context, in CodeInput, r Reporter) (res site.Result[site.CodeBundle]) {
	fallback := func() site.CodeBundle {
		b, err := s.Render(in)
		if err != nil {
			s.logger.Error("template render failed", "error", err)
		}
		return b
	}
	defer recoverTo(&s.base, &res, fallback)

	bundle, err := s.Render(in)
	if err != nil {
		s.logger.Error("template render failed", "error", err)
		return succeed(&s.base, r, bundle, PathFallback, "")
	}

	req := s.textRequest(BuildCodeRequest(in))
	if req.MaxTokens < 4096 {
		req.MaxTokens = 4096
	}
	r.Report(ProgressRequestBuilt, "request built")

	ai, ok, err := generate(ctx, &s.base, req, r, s.parseComponent)
	if err != nil {
		return cancelled[site.CodeBundle](&s.base, err)
	}
	if !ok {
		return succeed(&s.base, r, bundle, PathFallback, "")
	}
	for i := range bundle.Files {
		if bundle.Files[i].Path == HomePagePath {
			bundle.Files[i].Content = ai.value
		}
	}
	return succeed(&s.base, r, bundle, ai.path, ai.provider)
}

type codeResponse struct {
	Component string `json:"component"`
}

func (s *CodeAssembler) parseComponent(raw []byte) (string, error) {
	if err := validateSchema("code", raw); err != nil {
		return "", err
	}
	var resp codeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	src := strings.TrimSpace(resp.Component) + "\n"
	report, err := s.validator.Validate([]byte(src))
	if err != nil {
		return "", err
	}
	if err := report.Err(); err != nil {
		return "", err
	}
	return src, nil
}

// Render produces the deterministic template bundle: one TSX file per page,
// the theme stylesheet and the metadata module.
func (s *CodeAssembler) Render(in CodeInput) (site.CodeBundle, error) {
	t, err := templates()
	if err != nil {
		return site.CodeBundle{}, fmt.Errorf("stages: parse templates: %w", err)
	}

	var files []site.GeneratedFile
	pages := in.Layout.Pages
	if len(pages) == 0 {
		pages = []site.Page{homePage(in.Layout, in.Copy)}
	}
	for i, p := range pages {
		data := buildPage(p, in, i == 0)
		if i == 0 {
			data.Nav = navigation(pages)
		}
		content, err := execute(t, "page.tsx.tmpl", data)
		if err != nil {
			return site.CodeBundle{}, err
		}
		path := HomePagePath
		if i > 0 {
			path = "src/pages/" + p.Slug + ".tsx"
		}
		if report, verr := s.validator.Validate([]byte(content)); verr != nil || !report.Valid() {
			s.logger.Error("rendered page failed syntax check", "file", path, "error", firstErr(verr, report.Err()))
		}
		files = append(files, site.GeneratedFile{Path: path, Content: content})
	}

	theme, err := execute(t, "theme.css.tmpl", in.Style)
	if err != nil {
		return site.CodeBundle{}, err
	}
	files = append(files, site.GeneratedFile{Path: ThemePath, Content: theme})

	meta, err := execute(t, "metadata.ts.tmpl", in.SEO)
	if err != nil {
		return site.CodeBundle{}, err
	}
	files = append(files, site.GeneratedFile{Path: MetadataPath, Content: meta})

	return site.CodeBundle{Files: files}, nil
}

func execute(t *template.Template, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("stages: render %s: %w", name, err)
	}
	return buf.String(), nil
}

type navLink struct {
	Href  string
	Title string
}

type imageData struct {
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type sectionData struct {
	Type    string           `json:"type"`
	Variant string           `json:"variant"`
	Columns int              `json:"columns"`
	Heading string           `json:"-"`
	Copy    site.SectionCopy `json:"copy"`
	Image   *imageData       `json:"image,omitempty"`
}

type pageData struct {
	Component string
	Slug      string
	Nav       []navLink
	Sections  []sectionData
}

// homePage returns the layout's home page, or a page listing every section
// with copy when the layout is empty.
func homePage(layout site.Layout, sections []site.SectionCopy) site.Page {
	if len(layout.Pages) > 0 {
		return layout.Pages[0]
	}
	p := site.Page{Slug: "home", Title: "Home"}
	for i, c := range sections {
		p.Sections = append(p.Sections, site.LayoutSection{Type: c.Section, Variant: "default", Columns: 1, Order: i + 1})
	}
	return p
}

func buildPage(p site.Page, in CodeInput, home bool) pageData {
	copyByType := make(map[string]site.SectionCopy, len(in.Copy))
	for _, c := range in.Copy {
		copyByType[c.Section] = c
	}
	imageByPlacement := make(map[string]site.GeneratedImage)
	for _, img := range in.Images {
		if !img.OK() {
			continue
		}
		if _, seen := imageByPlacement[img.Value.Spec.Placement]; !seen {
			imageByPlacement[img.Value.Spec.Placement] = img.Value
		}
	}

	component := "HomePage"
	if !home {
		component = componentName(p.Slug) + "Page"
	}
	data := pageData{Component: component, Slug: p.Slug}
	for _, ls := range p.Sections {
		c, ok := copyByType[ls.Type]
		if !ok {
			c = site.SectionCopy{Section: ls.Type, Headline: titleCase(strings.ReplaceAll(ls.Type, "-", " "))}
		}
		sd := sectionData{Type: ls.Type, Variant: ls.Variant, Columns: ls.Columns, Heading: "h2", Copy: c}
		if home && ls.Type == site.SectionHero {
			sd.Heading = "h1"
		}
		if img, ok := imageByPlacement[ls.Type]; ok {
			sd.Image = &imageData{URL: img.URL, Alt: img.Spec.Alt, Width: img.Spec.Width, Height: img.Spec.Height}
		}
		data.Sections = append(data.Sections, sd)
	}
	return data
}

func navigation(pages []site.Page) []navLink {
	if len(pages) < 2 {
		return nil
	}
	links := make([]navLink, 0, len(pages))
	for i, p := range pages {
		href := "/" + p.Slug
		if i == 0 {
			href = "/"
		}
		links = append(links, navLink{Href: href, Title: p.Title})
	}
	return links
}

// componentName turns a page slug into a PascalCase identifier.
func componentName(slug string) string {
	var b strings.Builder
	upper := true
	for _, r := range slug {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if b.Len() == 0 && unicode.IsDigit(r) {
			b.WriteString("Page")
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "Content"
	}
	return b.String()
}

// jsxExpr renders v as a braced JSX expression. JSON string escaping covers
// quotes, braces and angle brackets.
func jsxExpr(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return "{" + string(b) + "}", nil
}

func jsonIndent(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// fontName strips characters that could break out of a CSS string.
func fontName(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' {
			return r
		}
		return -1
	}, s)
	if s = strings.TrimSpace(s); s == "" {
		return "system-ui"
	}
	return s
}

// className keeps the characters valid in a CSS class token.
func className(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return unicode.ToLower(r)
		case r == ' ' || r == '_':
			return '-'
		}
		return -1
	}, s)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
