// Package distill turns the raw union of gathered evidence into a clean,
// deduplicated, citation-bearing bundle. Three ordered passes run over the
// units: exact dedup on normalized text, a low-content filter, and near-dedup
// keeping the longest variant. The passes are idempotent: distilling the
// distiller's own output changes nothing.
package distill

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/latticehq/lattice/internal/util"
	"github.com/latticehq/lattice/pkg/common"
)

// Kind classifies an evidence unit by origin.
type Kind string

const (
	KindChunk    Kind = "chunk"
	KindKeyValue Kind = "keyvalue"
	KindPath     Kind = "path"
)

// Unit is one piece of evidence headed for synthesis. SoleCarrier marks units
// that are the only carrier of a fact (extracted key-values); the low-content
// filter never drops them.
type Unit struct {
	Citation    common.Citation `json:"citation"`
	Kind        Kind            `json:"kind"`
	Text        string          `json:"text"`
	TokenCount  int             `json:"token_count,omitempty"`
	SoleCarrier bool            `json:"-"`
}

// Config holds the empirically tuned filter thresholds. They are surfaced as
// configuration rather than constants because the right values depend on the
// corpus.
type Config struct {
	// MaxLabelLength bounds the form-label heuristic: a unit at most this
	// long that ends in a colon carries no content of its own.
	MaxLabelLength int
	// MaxHeadingLength bounds the bare-heading heuristic.
	MaxHeadingLength int
	// NearDupOverlap is the minimum token overlap for two units to count
	// as near-duplicates.
	NearDupOverlap float64
	// TokenBudget caps the total token count of the distilled bundle;
	// zero disables the cap.
	TokenBudget int
}

// DefaultConfig is the production tuning.
var DefaultConfig = Config{
	MaxLabelLength:   48,
	MaxHeadingLength: 80,
	NearDupOverlap:   0.9,
	TokenBudget:      0,
}

var signatureBlockRe = regexp.MustCompile(`(?i)^\s*(signature|signed by|witnessed by|notary)\b[\s:_]*$|^[\s_]{4,}$`)

const encodingName = "o200k_base"

// Distiller applies the three passes and the optional token budget.
type Distiller struct {
	cfg Config
}

func NewDistiller(cfg Config) *Distiller {
	if cfg.MaxLabelLength <= 0 {
		cfg.MaxLabelLength = DefaultConfig.MaxLabelLength
	}
	if cfg.MaxHeadingLength <= 0 {
		cfg.MaxHeadingLength = DefaultConfig.MaxHeadingLength
	}
	if cfg.NearDupOverlap <= 0 || cfg.NearDupOverlap > 1 {
		cfg.NearDupOverlap = DefaultConfig.NearDupOverlap
	}
	return &Distiller{cfg: cfg}
}

// Distill runs the passes in order. Input ordering is preserved for the
// surviving units so citations stay grouped by source document and section.
func (d *Distiller) Distill(units []Unit) []Unit {
	units = dedupExact(units)
	units = d.filterLowContent(units)
	units = d.dedupNear(units)
	if d.cfg.TokenBudget > 0 {
		units = d.applyBudget(units)
	}
	return units
}

// dedupExact drops units whose normalized text (citation markers stripped,
// whitespace collapsed, case folded) hashes identically to an earlier unit.
func dedupExact(units []Unit) []Unit {
	seen := make(map[string]bool, len(units))
	kept := make([]Unit, 0, len(units))
	for _, u := range units {
		sum := sha256.Sum256([]byte(normalizeText(u.Text)))
		key := hex.EncodeToString(sum[:])
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, u)
	}
	return kept
}

func normalizeText(s string) string {
	return strings.ToLower(util.NormalizeWhitespace(util.StripCitationMarkers(s)))
}

// filterLowContent drops units that contribute no distinguishing content:
// bare form labels, section headings with no body, and signature-block
// boilerplate. Sole carriers of a fact always survive, and path units are
// rendered rather than quoted, so the boilerplate heuristics do not apply.
func (d *Distiller) filterLowContent(units []Unit) []Unit {
	kept := make([]Unit, 0, len(units))
	for _, u := range units {
		if u.SoleCarrier || u.Kind == KindPath || !d.isLowContent(u.Text) {
			kept = append(kept, u)
		}
	}
	return kept
}

func (d *Distiller) isLowContent(text string) bool {
	trimmed := strings.TrimSpace(util.StripCitationMarkers(text))
	if trimmed == "" {
		return true
	}
	if signatureBlockRe.MatchString(trimmed) {
		return true
	}
	// Form label: short, colon-terminated, no body after the colon.
	if len(trimmed) <= d.cfg.MaxLabelLength && strings.HasSuffix(trimmed, ":") {
		return true
	}
	// Bare heading: short single line without sentence punctuation.
	if len(trimmed) <= d.cfg.MaxHeadingLength &&
		!strings.ContainsAny(trimmed, ".!?;") &&
		!strings.Contains(trimmed, "\n") &&
		len(util.Tokenize(trimmed)) <= 6 &&
		!strings.ContainsAny(trimmed, "0123456789") {
		return true
	}
	return false
}

// dedupNear collapses units with very high textual overlap, keeping only the
// longest variant of each overlap group. Survivors keep their input order.
func (d *Distiller) dedupNear(units []Unit) []Unit {
	drop := make([]bool, len(units))
	for i := range units {
		if drop[i] {
			continue
		}
		for j := i + 1; j < len(units); j++ {
			if drop[j] {
				continue
			}
			a := normalizeText(units[i].Text)
			b := normalizeText(units[j].Text)
			if util.TokenOverlap(a, b) < d.cfg.NearDupOverlap {
				continue
			}
			if len(b) > len(a) {
				drop[i] = true
				break
			}
			drop[j] = true
		}
	}
	kept := make([]Unit, 0, len(units))
	for i, u := range units {
		if !drop[i] {
			kept = append(kept, u)
		}
	}
	return kept
}

// applyBudget keeps units in order until the token budget is exhausted.
func (d *Distiller) applyBudget(units []Unit) []Unit {
	total := 0
	kept := make([]Unit, 0, len(units))
	for _, u := range units {
		tokens := u.TokenCount
		if tokens <= 0 {
			tokens = countTokens(u.Text)
		}
		if total+tokens > d.cfg.TokenBudget && len(kept) > 0 {
			break
		}
		total += tokens
		u.TokenCount = tokens
		kept = append(kept, u)
	}
	return kept
}

func countTokens(text string) int {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		// Rough fallback when the encoding is unavailable offline.
		return len(strings.Fields(text)) * 2
	}
	return len(enc.Encode(text, nil, nil))
}
