package orchestrator

import "github.com/dusk-indust/sitegen/internal/site"

// Mode describes which stages can reach a provider.
type Mode int

const (
	// ModeOffline has no providers: every stage runs its fallback.
	ModeOffline Mode = iota

	// ModeTextOnly has text providers but no image provider; images are
	// placeholders.
	ModeTextOnly

	// ModePartial has providers for some but not all provider-backed stages.
	ModePartial

	// ModeFull has providers for every provider-backed stage.
	ModeFull
)

func (m Mode) String() string {
	switch m {
	case ModeOffline:
		return "offline"
	case ModeTextOnly:
		return "text-only"
	case ModePartial:
		return "partial"
	case ModeFull:
		return "full"
	default:
		return "unknown"
	}
}

// providerStages are the stages that consult a provider chain.
var providerStages = []site.StageName{
	site.StageDesignStrategy,
	site.StageSectionPlanner,
	site.StageStyleDesigner,
	site.StageLayout,
	site.StageCopywriter,
	site.StageImageGenerator,
	site.StageSEO,
	site.StageCodeAssembler,
}

// DetectMode classifies the configured chains.
func DetectMode(o Options) Mode {
	configured := 0
	for _, s := range providerStages {
		if len(o.Chain(s)) > 0 {
			configured++
		}
	}
	switch {
	case configured == 0:
		return ModeOffline
	case configured == len(providerStages):
		return ModeFull
	case len(o.Chain(site.StageImageGenerator)) == 0 && configured == len(providerStages)-1:
		return ModeTextOnly
	default:
		return ModePartial
	}
}
