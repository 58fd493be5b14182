package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/dusk-indust/sitegen/internal/site"
)

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid field found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidKinds lists the provider kinds accepted in providers[].kind.
func ValidKinds() []string {
	return []string{KindOpenAI, KindAnthropic, KindImage, KindAgent}
}

// StageNames lists the stages that may carry a provider chain.
func StageNames() []string {
	return []string{
		string(site.StageDesignStrategy),
		string(site.StageSectionPlanner),
		string(site.StageStyleDesigner),
		string(site.StageLayout),
		string(site.StageImageGenerator),
		string(site.StageCopywriter),
		string(site.StageSEO),
		string(site.StageCodeAssembler),
	}
}

// Validate checks the Config and returns every problem found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		add("logging.level", c.Logging.Level, "must be one of debug, info, warn, error")
	}
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "text" {
		add("logging.format", c.Logging.Format, "must be json or text")
	}

	ids := make(map[string]string, len(c.Providers))
	for i, p := range c.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		if p.ID == "" {
			add(field+".id", p.ID, "must not be empty")
		} else if _, dup := ids[p.ID]; dup {
			add(field+".id", p.ID, "duplicate provider id")
		}
		ids[p.ID] = p.Kind
		if !slices.Contains(ValidKinds(), p.Kind) {
			add(field+".kind", p.Kind, "must be one of "+strings.Join(ValidKinds(), ", "))
		}
		if p.Kind == KindAgent && p.BaseURL == "" {
			add(field+".base_url", p.BaseURL, "agent providers need the agent endpoint")
		}
		if p.Timeout < 0 {
			add(field+".timeout", p.Timeout, "must not be negative")
		}
	}

	for stage, chain := range c.Chains {
		field := "chains." + stage
		if stage != DefaultChain && !slices.Contains(StageNames(), stage) {
			add(field, stage, "unknown stage")
			continue
		}
		for _, id := range chain {
			kind, ok := ids[id]
			if !ok {
				add(field, id, "unknown provider id")
				continue
			}
			if stage == string(site.StageImageGenerator) && kind != KindImage && kind != KindAgent {
				add(field, id, "image generation needs an image or agent provider")
			}
		}
	}

	if c.Pipeline.ImageConcurrency < 1 {
		add("pipeline.image_concurrency", c.Pipeline.ImageConcurrency, "must be at least 1")
	}
	if c.Pipeline.Deadline < 0 {
		add("pipeline.deadline", c.Pipeline.Deadline, "must not be negative")
	}
	if c.Pipeline.MaxTokens < 1 {
		add("pipeline.max_tokens", c.Pipeline.MaxTokens, "must be at least 1")
	}
	if c.Pipeline.Temperature < 0 || c.Pipeline.Temperature > 2 {
		add("pipeline.temperature", c.Pipeline.Temperature, "must be between 0 and 2")
	}

	if c.Sessions.TTL <= 0 {
		add("sessions.ttl", c.Sessions.TTL, "must be positive")
	}
	if c.Sessions.MaxSessions < 1 {
		add("sessions.max_sessions", c.Sessions.MaxSessions, "must be at least 1")
	}
	if _, err := cron.ParseStandard(c.Sessions.EvictSchedule); err != nil {
		add("sessions.evict_schedule", c.Sessions.EvictSchedule, "invalid cron schedule: "+err.Error())
	}

	if c.Server.Addr == "" {
		add("server.addr", c.Server.Addr, "must not be empty")
	}
	return errs
}
