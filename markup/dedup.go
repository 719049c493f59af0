package markup

import (
	"fmt"

	"github.com/paulmach/orb"
)

// DedupGroup records one dedup decision: the members believed to be the same
// logical object, which one was kept, and why the rest were dropped. Groups
// are numbered in resolution order.
type DedupGroup struct {
	ID         string
	Reason     DropReason
	KeptID     string
	DroppedIDs []string
}

// DedupResult is the resolver's output contract: every input feature appears
// in exactly one of Kept or Dropped, never discarded outright. Dropped
// features keep their full content plus a back-reference to their group.
type DedupResult struct {
	Kept    []Feature
	Dropped []Feature
	Groups  []DedupGroup
}

// Resolver groups features by logical identity and partitions them. Two
// independent duplicate sources are resolved in strict order:
//
//  1. representation preference: the same upstream id exported as both a
//     polygon and a line keeps the polygon. Id equality is a stronger
//     identity signal than geometry similarity, so this runs first.
//  2. fuzzy geometry grouping: remaining tracks and shapes of the same kind
//     and geometry class group by canonical signature.
//
// Waypoints never group fuzzily: a lone point coordinate is not a meaningful
// duplicate signal, so waypoint dedup demands rounded-coordinate equality
// AND exact-name equality.
type Resolver struct {
	signer    *Signer
	preferred SourceFormat
}

// NewResolver builds a resolver. preferred names the source format whose
// member wins within a duplicate group (the earliest-created export passed
// to the run); ties break on lexicographically smallest id.
func NewResolver(signer *Signer, preferred SourceFormat) *Resolver {
	if signer == nil {
		signer = NewSigner(DefaultPrecision)
	}
	return &Resolver{signer: signer, preferred: preferred}
}

// Resolve partitions the merged batch. Features whose geometry cannot be
// signed are passed through kept (unsigned geometry is not a duplicate
// signal) and reported in the returned error list.
func (r *Resolver) Resolve(features []Feature) (*DedupResult, []*UnsupportedGeometryClassError) {
	n := len(features)
	work := make([]Feature, n)
	copy(work, features)

	dropped := make([]bool, n)
	var groups []DedupGroup
	var sigErrs []*UnsupportedGeometryClassError
	seq := 0

	newGroup := func(reason DropReason, keptIdx int, dropIdxs []int) {
		seq++
		g := DedupGroup{
			ID:     fmt.Sprintf("group-%04d", seq),
			Reason: reason,
			KeptID: work[keptIdx].ID,
		}
		for _, di := range dropIdxs {
			dropped[di] = true
			work[di].GroupID = g.ID
			work[di].DropReason = reason
			g.DroppedIDs = append(g.DroppedIDs, work[di].ID)
		}
		work[keptIdx].GroupID = g.ID
		groups = append(groups, g)
	}

	// Stage 1: representation preference by shared upstream id.
	byID := make(map[string][]int)
	var idOrder []string
	for i, f := range work {
		if f.Kind == KindFolderMarker || f.ID == "" {
			continue
		}
		if _, seen := byID[f.ID]; !seen {
			idOrder = append(idOrder, f.ID)
		}
		byID[f.ID] = append(byID[f.ID], i)
	}
	for _, id := range idOrder {
		members := byID[id]
		if len(members) < 2 {
			continue
		}
		var polys, lines []int
		for _, i := range members {
			switch work[i].Geometry.(type) {
			case orb.Polygon:
				polys = append(polys, i)
			case orb.LineString:
				lines = append(lines, i)
			}
		}
		if len(polys) == 0 || len(lines) == 0 {
			continue
		}
		kept := polys[0]
		for _, i := range polys[1:] {
			if r.preferMember(work[i], work[kept]) {
				kept = i
			}
		}
		newGroup(ReasonPolygonOverLine, kept, lines)
	}

	// Stage 2: exact waypoint dedup by rounded coordinate + exact name.
	type wpKey struct {
		lon, lat float64
		name     string
	}
	wpGroups := make(map[wpKey][]int)
	var wpOrder []wpKey
	for i, f := range work {
		if dropped[i] || f.Kind != KindWaypoint {
			continue
		}
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		lon, lat := r.signer.RoundPoint(pt)
		k := wpKey{lon: lon, lat: lat, name: f.Name}
		if _, seen := wpGroups[k]; !seen {
			wpOrder = append(wpOrder, k)
		}
		wpGroups[k] = append(wpGroups[k], i)
	}
	for _, k := range wpOrder {
		members := wpGroups[k]
		if len(members) < 2 {
			continue
		}
		kept, rest := r.splitKept(work, members)
		newGroup(ReasonExactWaypoint, kept, rest)
	}

	// Stage 3: fuzzy geometry grouping for tracks and shapes.
	type sigKey struct {
		kind Kind
		sig  Signature
	}
	sigGroups := make(map[sigKey][]int)
	var sigOrder []sigKey
	for i, f := range work {
		if dropped[i] || (f.Kind != KindTrack && f.Kind != KindShape) {
			continue
		}
		sig, err := r.signer.Sign(f)
		if err != nil {
			if ue, ok := err.(*UnsupportedGeometryClassError); ok {
				sigErrs = append(sigErrs, ue)
			}
			continue
		}
		k := sigKey{kind: f.Kind, sig: sig}
		if _, seen := sigGroups[k]; !seen {
			sigOrder = append(sigOrder, k)
		}
		sigGroups[k] = append(sigGroups[k], i)
	}
	for _, k := range sigOrder {
		members := sigGroups[k]
		if len(members) < 2 {
			continue
		}
		kept, rest := r.splitKept(work, members)
		newGroup(ReasonFuzzySignature, kept, rest)
	}

	res := &DedupResult{Groups: groups}
	for i, f := range work {
		if dropped[i] {
			res.Dropped = append(res.Dropped, f)
		} else {
			res.Kept = append(res.Kept, f)
		}
	}
	return res, sigErrs
}

// splitKept picks the kept member of a group deterministically and returns
// its index plus the remaining (dropped) indices, preserving input order.
func (r *Resolver) splitKept(work []Feature, members []int) (kept int, rest []int) {
	kept = members[0]
	for _, i := range members[1:] {
		if r.preferMember(work[i], work[kept]) {
			kept = i
		}
	}
	for _, i := range members {
		if i != kept {
			rest = append(rest, i)
		}
	}
	return kept, rest
}

// preferMember reports whether a should be kept over b: preferred source
// format first, then lexicographically smallest id. Equal on both counts
// keeps the earlier input member.
func (r *Resolver) preferMember(a, b Feature) bool {
	if r.preferred != "" {
		ap, bp := a.Source == r.preferred, b.Source == r.preferred
		if ap != bp {
			return ap
		}
	}
	return a.ID < b.ID
}
