package mcptools

import (
	"github.com/dusk-indust/sitegen/internal/site"
)

// GenerateSiteInput is the input of the generate_site tool.
type GenerateSiteInput struct {
	ProjectName     string   `json:"projectName" jsonschema:"the business or project name; also determines the site slug"`
	Industry        string   `json:"industry" jsonschema:"the business industry, e.g. legal services, restaurant, dental"`
	TargetAudiences []string `json:"targetAudiences,omitempty" jsonschema:"who the site is written for"`
	Tone            string   `json:"tone,omitempty" jsonschema:"voice of the copy, e.g. professional, friendly"`
	City            string   `json:"city,omitempty"`
	Region          string   `json:"region,omitempty"`
	Country         string   `json:"country,omitempty"`
	Services        []string `json:"services,omitempty" jsonschema:"services or products to feature"`
	PrimaryColor    string   `json:"primaryColor,omitempty" jsonschema:"preferred brand color as a hex value"`
	Style           string   `json:"style,omitempty" jsonschema:"visual style hint, e.g. modern, classic, playful"`
	SpecialNotes    string   `json:"specialNotes,omitempty"`
}

func (in GenerateSiteInput) config() site.BusinessConfiguration {
	return site.BusinessConfiguration{
		ProjectName:     in.ProjectName,
		Industry:        in.Industry,
		TargetAudiences: in.TargetAudiences,
		Tone:            in.Tone,
		Location:        site.Location{City: in.City, Region: in.Region, Country: in.Country},
		Services:        in.Services,
		Brand:           site.BrandPreferences{PrimaryColor: in.PrimaryColor, Style: in.Style},
		SpecialNotes:    in.SpecialNotes,
	}
}

// StageSummary is how one stage ended.
type StageSummary struct {
	Stage        string `json:"stage"`
	Status       string `json:"status"`
	UsedFallback bool   `json:"usedFallback"`
	Error        string `json:"error,omitempty"`
}

// GenerateSiteOutput is the result of the generate_site tool.
type GenerateSiteOutput struct {
	SessionID string         `json:"sessionId"`
	Slug      string         `json:"slug"`
	State     string         `json:"state"`
	Degraded  bool           `json:"degraded"`
	Partial   bool           `json:"partial"`
	Stages    []StageSummary `json:"stages"`
	Files     []string       `json:"files"`
	ErrorKind string         `json:"errorKind,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// GetSessionInput is the input of the get_session tool.
type GetSessionInput struct {
	SessionID string `json:"sessionId" jsonschema:"the session ID returned by generate_site"`
}

// EventSummary is one recorded progress event.
type EventSummary struct {
	Stage     string `json:"stage"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Aggregate int    `json:"aggregate"`
	Message   string `json:"message,omitempty"`
}

// GetSessionOutput is the result of the get_session tool.
type GetSessionOutput struct {
	SessionID string         `json:"sessionId"`
	Project   string         `json:"project"`
	Slug      string         `json:"slug"`
	State     string         `json:"state"`
	Aggregate int            `json:"aggregate"`
	Events    []EventSummary `json:"events"`
	Stages    []StageSummary `json:"stages"`
	ErrorKind string         `json:"errorKind,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ListSessionsInput is the input of the list_sessions tool.
type ListSessionsInput struct {
	State string `json:"state,omitempty" jsonschema:"filter by state: running, succeeded, failed, cancelled"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of sessions to return (default 20)"`
}

// SessionSummary is one entry of list_sessions.
type SessionSummary struct {
	SessionID string `json:"sessionId"`
	Project   string `json:"project"`
	State     string `json:"state"`
	Aggregate int    `json:"aggregate"`
	Degraded  bool   `json:"degraded"`
	Partial   bool   `json:"partial"`
	Created   string `json:"created"`
}

// ListSessionsOutput is the result of the list_sessions tool.
type ListSessionsOutput struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}

// QuerySiteInput is the input of the query_site tool.
type QuerySiteInput struct {
	Slug    string `json:"slug" jsonschema:"the site slug"`
	Section string `json:"section,omitempty" jsonschema:"only return images shown in sections of this type"`
}

// SectionEntry is one indexed section.
type SectionEntry struct {
	Page     string `json:"page"`
	Type     string `json:"type"`
	Variant  string `json:"variant"`
	Headline string `json:"headline,omitempty"`
}

// ImageEntry is one indexed image.
type ImageEntry struct {
	ID          string `json:"id"`
	Placement   string `json:"placement"`
	URL         string `json:"url"`
	Placeholder bool   `json:"placeholder"`
}

// QuerySiteOutput is the result of the query_site tool.
type QuerySiteOutput struct {
	Slug     string         `json:"slug"`
	Sections []SectionEntry `json:"sections"`
	Images   []ImageEntry   `json:"images"`
}
