package memory

import (
	"fmt"
	"sort"
	"strings"
)

// Bounds for retrieval parameters. Out-of-range values are clamped, not
// rejected, so callers with odd defaults still get a usable context block.
const (
	minLimit    = 1
	maxLimit    = 30
	minMaxChars = 300
	maxMaxChars = 12000
)

const blockSeparator = "\n\n"

func clampLimit(limit int) int {
	if limit < minLimit {
		return minLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func clampMaxChars(maxChars int) int {
	if maxChars < minMaxChars {
		return minMaxChars
	}
	if maxChars > maxMaxChars {
		return maxMaxChars
	}
	return maxChars
}

// renderBlock formats one entry for the assembled context: a header naming
// the type and id (and title when present) above the content.
func renderBlock(e Entry) string {
	header := fmt.Sprintf("### [%s] %s", e.Type, e.ID)
	if e.Title != "" {
		header += ": " + e.Title
	}
	return header + "\n" + strings.TrimSpace(e.Content)
}

// assembleResult is the output of the budgeted packer.
type assembleResult struct {
	entries       []Entry
	context       string
	skippedBudget int
	pinnedForced  int
}

// assembleContext greedily packs ranked candidates into a character-bounded
// context block.
//
// When includePinned is set, all pinned candidates are moved ahead of the
// ranked list (ordered by UpdatedAt descending) so relevance scoring can
// never displace them. The walk then selects entries in order, skipping any
// whose rendered block would push the total past maxChars — a smaller later
// entry may still fit — until limit entries are selected or the candidates
// run out. Skipped blocks are never truncated.
func assembleContext(ranked []Entry, includePinned bool, limit, maxChars int) assembleResult {
	limit = clampLimit(limit)
	maxChars = clampMaxChars(maxChars)

	candidates := ranked
	if includePinned {
		var pinned []Entry
		for _, e := range ranked {
			if e.Pinned {
				pinned = append(pinned, e)
			}
		}
		sort.SliceStable(pinned, func(i, j int) bool {
			if !pinned[i].UpdatedAt.Equal(pinned[j].UpdatedAt) {
				return pinned[i].UpdatedAt.After(pinned[j].UpdatedAt)
			}
			return pinned[i].ID < pinned[j].ID
		})

		combined := make([]Entry, 0, len(ranked))
		combined = append(combined, pinned...)
		for _, e := range ranked {
			if !e.Pinned {
				combined = append(combined, e)
			}
		}
		candidates = combined
	}

	var (
		selected []Entry
		blocks   []string
		total    int
		skipped  int
	)
	for _, e := range candidates {
		if len(selected) >= limit {
			break
		}
		block := renderBlock(e)
		cost := len(block)
		if len(blocks) > 0 {
			cost += len(blockSeparator)
		}
		if total+cost > maxChars {
			skipped++
			continue
		}
		selected = append(selected, e)
		blocks = append(blocks, block)
		total += cost
	}

	pinnedForced := 0
	if includePinned {
		for _, e := range selected {
			if e.Pinned {
				pinnedForced++
			}
		}
	}

	return assembleResult{
		entries:       selected,
		context:       strings.Join(blocks, blockSeparator),
		skippedBudget: skipped,
		pinnedForced:  pinnedForced,
	}
}
