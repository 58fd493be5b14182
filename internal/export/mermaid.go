package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/sitegen/internal/sitegraph"
)

// DiagramName is the structure diagram file inside a site directory.
const DiagramName = "structure.mmd"

// GenerateMermaid renders the indexed structure of a site as a Mermaid
// flowchart: one subgraph per page, sections in order, and arrows from
// sections to the images they show.
func GenerateMermaid(ctx context.Context, store sitegraph.Store, slug string) (string, error) {
	sections, err := store.Sections(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("get sections: %w", err)
	}

	ids := make(map[string]string)
	nodeID := func(key string) string {
		if id, ok := ids[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", len(ids))
		ids[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", nodeID(slug), label(slug)))

	page := ""
	for _, s := range sections {
		if s.Page != page {
			if page != "" {
				sb.WriteString("  end\n")
			}
			page = s.Page
			sb.WriteString(fmt.Sprintf("  subgraph %s[\"%s\"]\n", nodeID("page:"+page), label(page)))
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s (%s)\"]\n", nodeID(s.ID), label(s.Type), label(s.Variant)))
	}
	if page != "" {
		sb.WriteString("  end\n")
	}

	seenPage := make(map[string]bool)
	for _, s := range sections {
		if !seenPage[s.Page] {
			seenPage[s.Page] = true
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", nodeID(slug), nodeID("page:"+s.Page)))
		}
	}

	seenType := make(map[string]bool)
	for _, s := range sections {
		if seenType[s.Type] {
			continue
		}
		seenType[s.Type] = true
		imgs, err := store.Images(ctx, slug, s.Type)
		if err != nil {
			return "", fmt.Errorf("get images: %w", err)
		}
		for _, img := range imgs {
			if _, ok := ids[img.ID]; !ok {
				sb.WriteString(fmt.Sprintf("  %s([\"%s\"])\n", nodeID(img.ID), label(shortID(img.ID))))
			}
			for _, x := range sections {
				if x.Type == s.Type {
					sb.WriteString(fmt.Sprintf("  %s -.-> %s\n", nodeID(x.ID), nodeID(img.ID)))
				}
			}
		}
	}
	return sb.String(), nil
}

// label escapes text for a quoted Mermaid label.
func label(s string) string {
	return fmt.Sprintf("%.40s", strings.ReplaceAll(s, `"`, "#quot;"))
}

// shortID drops the site prefix of a node ID.
func shortID(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}
