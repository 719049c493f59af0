package markup

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// TraceEventKind tags the record variants in a reconciliation trace.
type TraceEventKind string

const (
	EventDedupGroup     TraceEventKind = "dedup_group"
	EventIconMapped     TraceEventKind = "icon_mapped"
	EventColorMapped    TraceEventKind = "color_mapped"
	EventUnmappedSymbol TraceEventKind = "unmapped_symbol"
)

// TraceEvent is one ordered record in the reconciliation trace. The zero
// fields of variants that do not apply are omitted from serialization, so a
// trace line carries only its own variant's payload. Traces intentionally
// carry no wall-clock timestamps: two runs over identical input and
// configuration serialize byte-identically.
type TraceEvent struct {
	Kind TraceEventKind `json:"kind"`
	Seq  int            `json:"seq"`

	// dedup_group
	GroupID    string     `json:"group_id,omitempty"`
	Reason     DropReason `json:"reason,omitempty"`
	KeptID     string     `json:"kept_id,omitempty"`
	DroppedIDs []string   `json:"dropped_ids,omitempty"`

	// icon_mapped / color_mapped
	FeatureID  string      `json:"feature_id,omitempty"`
	Icon       string      `json:"icon,omitempty"`
	Tier       MappingTier `json:"tier,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
	Color      string      `json:"color,omitempty"`
	Distance   float64     `json:"distance,omitempty"`
	Defaulted  bool        `json:"defaulted,omitempty"`

	// unmapped_symbol (aggregated: one event per distinct symbol)
	Symbol           string `json:"symbol,omitempty"`
	Count            int    `json:"count,omitempty"`
	ExampleFeatureID string `json:"example_feature_id,omitempty"`
}

// WriteTrace serializes events as JSON Lines, one object per line. The format
// is meant for replay and diffing, not for reading.
func WriteTrace(w io.Writer, events []TraceEvent) error {
	enc := json.NewEncoder(w)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("writing trace event %d: %w", ev.Seq, err)
		}
	}
	return nil
}

// WriteSummary renders a human-readable account of a reconciliation run:
// per-group dedup decisions, unmapped symbols, and malformed-feature
// warnings.
func WriteSummary(w io.Writer, res *Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Reconciliation summary\n")
	fmt.Fprintf(&b, "  kept:    %d\n", len(res.Kept))
	fmt.Fprintf(&b, "  dropped: %d\n", len(res.Dropped))

	if len(res.Groups) > 0 {
		fmt.Fprintf(&b, "\nDuplicate groups (%d):\n", len(res.Groups))
		for _, g := range res.Groups {
			fmt.Fprintf(&b, "  %s [%s] kept %s, dropped %s\n",
				g.ID, g.Reason, g.KeptID, strings.Join(g.DroppedIDs, ", "))
		}
	}

	if len(res.UnmappedSymbols) > 0 {
		fmt.Fprintf(&b, "\nUnmapped symbols (%d):\n", len(res.UnmappedSymbols))
		for _, sym := range sortedSymbols(res.UnmappedSymbols) {
			u := res.UnmappedSymbols[sym]
			fmt.Fprintf(&b, "  %-24s x%d (e.g. feature %s)\n", sym, u.Count, u.ExampleFeatureID)
		}
		fmt.Fprintf(&b, "  add symbol_map entries to the mapping config and re-run\n")
	}

	if len(res.Malformed) > 0 {
		fmt.Fprintf(&b, "\nSkipped malformed features (%d):\n", len(res.Malformed))
		for _, e := range res.Malformed {
			fmt.Fprintf(&b, "  %s\n", e.Error())
		}
	}

	if len(res.MissingFolderRefs) > 0 {
		fmt.Fprintf(&b, "\nDangling folder references: %s\n", strings.Join(res.MissingFolderRefs, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
