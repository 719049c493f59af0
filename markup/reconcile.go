package markup

import (
	"fmt"
	"sort"
)

// Result is everything a reconciliation run produces. Kept and Dropped
// together contain every valid input feature exactly once; the writers that
// serialize them back to disk are the caller's concern.
type Result struct {
	Kept    []Feature
	Dropped []Feature
	Groups  []DedupGroup
	Trace   []TraceEvent

	Malformed       []*MalformedFeatureError
	SignatureErrors []*UnsupportedGeometryClassError

	// UnmappedSymbols aggregates unresolved source symbols so a user can
	// extend the mapping table and re-run before committing to an import.
	UnmappedSymbols map[string]*UnmappedSymbol

	Folders           FolderIndex
	MissingFolderRefs []string
}

// Reconciler sequences the pipeline over a batch of ingested features:
//
//	Ingest -> Validate -> Map(icon,color) -> Dedup -> Partition -> Emit
//
// It is single-threaded and does no I/O. Output is deterministic for
// identical input and configuration; dedup and mapping decisions must be
// reproducible for audit.
//
// Configuration is validated at construction, so a broken palette or icon
// table fails before any feature is touched.
type Reconciler struct {
	cfg    *MappingConfig
	mapper *IconMapper
	signer *Signer
}

// NewReconciler validates the configuration and builds the pipeline. The
// matcher may be nil to use the stock similarity matcher. Configuration
// errors (empty palette, missing default icon) are fatal and returned here,
// never from Reconcile.
func NewReconciler(cfg *MappingConfig, matcher SymbolMatcher) (*Reconciler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("reconciler: nil mapping config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mapper, err := NewIconMapper(cfg, matcher)
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		cfg:    cfg,
		mapper: mapper,
		signer: NewSigner(cfg.Precision),
	}, nil
}

// Reconcile runs the pipeline over one or more provenance-tagged batches.
// preferred names the source format whose member wins inside a duplicate
// group; it may be empty.
func (r *Reconciler) Reconcile(batches []Batch, preferred SourceFormat) *Result {
	res := &Result{UnmappedSymbols: make(map[string]*UnmappedSymbol)}

	// Ingest: validate each batch while its source file is still known,
	// stamping provenance the parser left implicit. Malformed features
	// are excluded and reported, never silently dropped.
	var valid []Feature
	var folders []Folder
	for _, b := range batches {
		ok, malformed := ValidateBatch(b.Features)
		for _, m := range malformed {
			m.Path = b.Path
		}
		res.Malformed = append(res.Malformed, malformed...)
		for _, f := range ok {
			if f.Source == "" {
				f.Source = b.Source
			}
			valid = append(valid, f)
		}
		folders = append(folders, b.Folders...)
	}
	res.Folders = NewFolderIndex(folders)

	// Map: icons and colors are assigned before dedup so both kept and
	// dropped features carry their final annotations.
	seq := 0
	for i := range valid {
		seq = r.mapFeature(&valid[i], res, seq)
	}

	// Dedup over the full merged batch, cross-file.
	resolver := NewResolver(r.signer, preferred)
	dedup, sigErrs := resolver.Resolve(valid)
	res.SignatureErrors = sigErrs
	res.Kept = dedup.Kept
	res.Dropped = dedup.Dropped
	res.Groups = dedup.Groups

	for _, g := range dedup.Groups {
		seq++
		res.Trace = append(res.Trace, TraceEvent{
			Kind:       EventDedupGroup,
			Seq:        seq,
			GroupID:    g.ID,
			Reason:     g.Reason,
			KeptID:     g.KeptID,
			DroppedIDs: g.DroppedIDs,
		})
	}

	// One aggregated event per distinct unresolved symbol.
	for _, sym := range sortedSymbols(res.UnmappedSymbols) {
		u := res.UnmappedSymbols[sym]
		seq++
		res.Trace = append(res.Trace, TraceEvent{
			Kind:             EventUnmappedSymbol,
			Seq:              seq,
			Symbol:           sym,
			Count:            u.Count,
			ExampleFeatureID: u.ExampleFeatureID,
		})
	}

	res.MissingFolderRefs = missingFolderRefs(valid, res.Folders)
	return res
}

// mapFeature assigns the icon and quantized color for one feature and emits
// the corresponding trace events. Shapes get color only; folder markers are
// untouched.
func (r *Reconciler) mapFeature(f *Feature, res *Result, seq int) int {
	switch f.Kind {
	case KindWaypoint, KindTrack:
		mr, unresolved := r.mapper.Resolve(f.RawSymbol, f.Name, f.Description)
		f.Icon = &mr
		seq++
		res.Trace = append(res.Trace, TraceEvent{
			Kind:       EventIconMapped,
			Seq:        seq,
			FeatureID:  f.ID,
			Icon:       mr.Icon,
			Tier:       mr.Tier,
			Confidence: mr.Confidence,
			Suggestion: mr.Suggestion,
		})
		if unresolved {
			u := res.UnmappedSymbols[f.RawSymbol]
			if u == nil {
				u = &UnmappedSymbol{ExampleFeatureID: f.ID}
				res.UnmappedSymbols[f.RawSymbol] = u
			}
			u.Count++
		}

		pal := r.cfg.WaypointPalette
		if f.Kind == KindTrack {
			pal = r.cfg.TrackPalette
		}
		seq = r.mapColor(f, pal, res, seq)
	case KindShape:
		// Shapes take the track palette: the platform colors areas with
		// its line palette and shapes carry no icon.
		seq = r.mapColor(f, r.cfg.TrackPalette, res, seq)
	}
	return seq
}

func (r *Reconciler) mapColor(f *Feature, pal Palette, res *Result, seq int) int {
	qc := pal.Quantize(f.RawColor)
	f.Color = &qc
	seq++
	res.Trace = append(res.Trace, TraceEvent{
		Kind:      EventColorMapped,
		Seq:       seq,
		FeatureID: f.ID,
		Color:     qc.Color.RGBA,
		Distance:  qc.Distance,
		Defaulted: qc.Defaulted,
	})
	return seq
}

func missingFolderRefs(features []Feature, idx FolderIndex) []string {
	seen := make(map[string]struct{})
	var missing []string
	for _, f := range features {
		if f.FolderRef == "" {
			continue
		}
		if _, ok := idx.Lookup(f.FolderRef); ok {
			continue
		}
		if _, dup := seen[f.FolderRef]; dup {
			continue
		}
		seen[f.FolderRef] = struct{}{}
		missing = append(missing, f.FolderRef)
	}
	sort.Strings(missing)
	return missing
}

func sortedSymbols(m map[string]*UnmappedSymbol) []string {
	out := make([]string, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
