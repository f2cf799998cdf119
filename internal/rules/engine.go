package rules

import (
	"fmt"
	"sort"
)

// Axis is one attribute type together with its candidate value ids, in the
// order combinations should be enumerated.
type Axis struct {
	TypeID   int64
	ValueIDs []int64
}

// Index is an immutable lookup structure compiled from a rule set. Build it
// once per rule-set version and share it across goroutines.
type Index struct {
	// allowed[valueID][partnerTypeID] holds the partner values explicitly
	// compatible with valueID.
	allowed map[int64]map[int64]map[int64]bool
	// restricted[valueID][partnerTypeID] marks that valueID participates in
	// at least one compatibility rule against that partner type, making the
	// allow list authoritative.
	restricted map[int64]map[int64]bool
	// requires[valueID] lists dependency rules fired when valueID is chosen.
	requires map[int64][]Rule
	// excludes maps an unordered value pair to its exclusion rule.
	excludes map[[2]int64]Rule
}

// BuildIndex compiles active rules into an Index. Inactive rules are ignored.
func BuildIndex(ruleSet []Rule) *Index {
	idx := &Index{
		allowed:    map[int64]map[int64]map[int64]bool{},
		restricted: map[int64]map[int64]bool{},
		requires:   map[int64][]Rule{},
		excludes:   map[[2]int64]Rule{},
	}
	for _, r := range ruleSet {
		if !r.IsActive || !r.Kind.Valid() {
			continue
		}
		switch r.Kind {
		case KindCompatibility:
			idx.allow(r.PrimaryValueID, r.SecondaryTypeID, r.SecondaryValueID)
			idx.allow(r.SecondaryValueID, r.PrimaryTypeID, r.PrimaryValueID)
		case KindDependency:
			idx.requires[r.PrimaryValueID] = append(idx.requires[r.PrimaryValueID], r)
		case KindExclusion:
			idx.excludes[pairKey(r.PrimaryValueID, r.SecondaryValueID)] = r
		}
	}
	return idx
}

func (idx *Index) allow(valueID, partnerTypeID, partnerValueID int64) {
	byType, ok := idx.allowed[valueID]
	if !ok {
		byType = map[int64]map[int64]bool{}
		idx.allowed[valueID] = byType
	}
	partners, ok := byType[partnerTypeID]
	if !ok {
		partners = map[int64]bool{}
		byType[partnerTypeID] = partners
	}
	partners[partnerValueID] = true

	marks, ok := idx.restricted[valueID]
	if !ok {
		marks = map[int64]bool{}
		idx.restricted[valueID] = marks
	}
	marks[partnerTypeID] = true
}

func pairKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

// Validate checks a complete selection against the rule set. All violations
// are collected, not just the first.
func (idx *Index) Validate(sel Selection) Result {
	var violations []Violation

	typeIDs := make([]int64, 0, len(sel))
	for typeID := range sel {
		typeIDs = append(typeIDs, typeID)
	}
	sort.Slice(typeIDs, func(i, j int) bool { return typeIDs[i] < typeIDs[j] })

	for i, typeA := range typeIDs {
		valA := sel[typeA]
		for _, typeB := range typeIDs[i+1:] {
			valB := sel[typeB]
			if r, ok := idx.excludes[pairKey(valA, valB)]; ok {
				violations = append(violations, Violation{
					RuleID: r.ID,
					Kind:   KindExclusion,
					Reason: fmt.Sprintf("values %d and %d cannot be combined", valA, valB),
				})
				continue
			}
			if v, bad := idx.compatViolation(valA, typeB, valB); bad {
				violations = append(violations, v)
			}
			if v, bad := idx.compatViolation(valB, typeA, valA); bad {
				violations = append(violations, v)
			}
		}
		for _, r := range idx.requires[valA] {
			if sel[r.SecondaryTypeID] != r.SecondaryValueID {
				violations = append(violations, Violation{
					RuleID: r.ID,
					Kind:   KindDependency,
					Reason: fmt.Sprintf("value %d requires value %d", valA, r.SecondaryValueID),
				})
			}
		}
	}
	return Result{Valid: len(violations) == 0, Violations: violations}
}

func (idx *Index) compatViolation(valueID, partnerTypeID, partnerValueID int64) (Violation, bool) {
	if !idx.restricted[valueID][partnerTypeID] {
		return Violation{}, false
	}
	if idx.allowed[valueID][partnerTypeID][partnerValueID] {
		return Violation{}, false
	}
	return Violation{
		Kind:   KindCompatibility,
		Reason: fmt.Sprintf("value %d is not compatible with value %d", valueID, partnerValueID),
	}, true
}

// Admits reports whether adding candidate (of candidateType) to the partial
// selection keeps it free of violations. Dependencies fire only against
// attribute types already present in the partial selection, so an unmet
// dependency on a not-yet-chosen axis does not prune the branch.
func (idx *Index) Admits(partial Selection, candidateType, candidate int64) bool {
	for typeID, valueID := range partial {
		if typeID == candidateType {
			continue
		}
		if _, ok := idx.excludes[pairKey(candidate, valueID)]; ok {
			return false
		}
		if _, bad := idx.compatViolation(candidate, typeID, valueID); bad {
			return false
		}
		if _, bad := idx.compatViolation(valueID, candidateType, candidate); bad {
			return false
		}
		for _, r := range idx.requires[valueID] {
			if r.SecondaryTypeID == candidateType && r.SecondaryValueID != candidate {
				return false
			}
		}
	}
	for _, r := range idx.requires[candidate] {
		if chosen, ok := partial[r.SecondaryTypeID]; ok && chosen != r.SecondaryValueID {
			return false
		}
	}
	return true
}

// CompatibleValues filters the candidate values of one axis down to those
// admissible against the partial selection.
func (idx *Index) CompatibleValues(partial Selection, axis Axis) []int64 {
	var out []int64
	for _, valueID := range axis.ValueIDs {
		if idx.Admits(partial, axis.TypeID, valueID) {
			out = append(out, valueID)
		}
	}
	return out
}

// ValidSelections enumerates every complete selection over the axes that
// satisfies the rule set, pruning invalid branches early. Enumeration stops
// once limit selections are collected; limit <= 0 means unbounded.
func (idx *Index) ValidSelections(axes []Axis, limit int) []Selection {
	var results []Selection
	partial := Selection{}

	var walk func(depth int) bool
	walk = func(depth int) bool {
		if limit > 0 && len(results) >= limit {
			return false
		}
		if depth == len(axes) {
			if res := idx.Validate(partial); res.Valid {
				complete := make(Selection, len(partial))
				for k, v := range partial {
					complete[k] = v
				}
				results = append(results, complete)
			}
			return true
		}
		axis := axes[depth]
		for _, valueID := range axis.ValueIDs {
			if !idx.Admits(partial, axis.TypeID, valueID) {
				continue
			}
			partial[axis.TypeID] = valueID
			proceed := walk(depth + 1)
			delete(partial, axis.TypeID)
			if !proceed {
				return false
			}
		}
		return true
	}
	walk(0)
	return results
}
