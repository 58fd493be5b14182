package site

import (
	"fmt"
	"strings"
)

// Location is where the business operates.
type Location struct {
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
	Region  string `json:"region,omitempty" yaml:"region,omitempty"`
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
}

// String renders the location as "City, Region, Country", skipping blanks.
func (l Location) String() string {
	var parts []string
	for _, p := range []string{l.City, l.Region, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// BrandPreferences carries optional styling hints from the wizard.
type BrandPreferences struct {
	PrimaryColor string   `json:"primaryColor,omitempty" yaml:"primaryColor,omitempty"`
	Style        string   `json:"style,omitempty" yaml:"style,omitempty"`
	Fonts        []string `json:"fonts,omitempty" yaml:"fonts,omitempty"`
}

// BusinessConfiguration is the immutable input of one generation run.
// Stages receive it by value and must not retain mutable references into it.
type BusinessConfiguration struct {
	ProjectName     string           `json:"projectName" yaml:"projectName"`
	Industry        string           `json:"industry" yaml:"industry"`
	TargetAudiences []string         `json:"targetAudiences,omitempty" yaml:"targetAudiences,omitempty"`
	Tone            string           `json:"tone,omitempty" yaml:"tone,omitempty"`
	Location        Location         `json:"location" yaml:"location"`
	Services        []string         `json:"services,omitempty" yaml:"services,omitempty"`
	Brand           BrandPreferences `json:"brand" yaml:"brand"`
	SpecialNotes    string           `json:"specialNotes,omitempty" yaml:"specialNotes,omitempty"`
}

// Validate checks the fields every stage depends on. A failure is
// pipeline-fatal and carries KindConfigurationInvalid.
func (c BusinessConfiguration) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ProjectName) == "" {
		missing = append(missing, "projectName")
	}
	if strings.TrimSpace(c.Industry) == "" {
		missing = append(missing, "industry")
	}
	if len(missing) > 0 {
		return NewError(KindConfigurationInvalid, "validate configuration",
			fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", ")))
	}
	if Slugify(c.ProjectName) == "" {
		return NewError(KindConfigurationInvalid, "validate configuration",
			fmt.Errorf("projectName %q does not produce a usable slug", c.ProjectName))
	}
	return nil
}

// Slug returns the URL slug derived from the project name.
func (c BusinessConfiguration) Slug() string {
	return Slugify(c.ProjectName)
}

// Clone returns a deep copy so callers can hand the configuration to
// concurrent stages without sharing slice backing arrays.
func (c BusinessConfiguration) Clone() BusinessConfiguration {
	out := c
	out.TargetAudiences = append([]string(nil), c.TargetAudiences...)
	out.Services = append([]string(nil), c.Services...)
	out.Brand.Fonts = append([]string(nil), c.Brand.Fonts...)
	return out
}

// PrimaryService returns the first listed service, or the industry when no
// services were given.
func (c BusinessConfiguration) PrimaryService() string {
	for _, s := range c.Services {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return strings.TrimSpace(c.Industry)
}
