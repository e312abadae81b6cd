// Package diff computes categorized change sets between two character
// snapshot batches of the same account.
package diff

import (
	"fmt"
	"sort"

	"github.com/emunchies/Hoyo-Notifications/internal/models"
)

// ChangeSet is the categorized result of comparing an earlier batch against
// a later one. Categories keep their fixed report order; empty categories
// produce no output.
type ChangeSet struct {
	NewCharacters        []string
	LevelUps             []string
	FriendshipGains      []string
	ConstellationChanges []string
	WeaponChanges        []string
	WeaponLevelUps       []string
	RefinementChanges    []string
	TotalLine            string
}

// Empty reports whether the change set carries nothing worth sending.
func (c ChangeSet) Empty() bool {
	return len(c.NewCharacters) == 0 &&
		len(c.LevelUps) == 0 &&
		len(c.FriendshipGains) == 0 &&
		len(c.ConstellationChanges) == 0 &&
		len(c.WeaponChanges) == 0 &&
		len(c.WeaponLevelUps) == 0 &&
		len(c.RefinementChanges) == 0 &&
		c.TotalLine == ""
}

// Section is one (title, entries) pair in report order.
type Section struct {
	Title   string
	Entries []string
}

// Sections returns the non-empty categories in their fixed order. The total
// line is not included; renderers place it under its own heading.
func (c ChangeSet) Sections() []Section {
	all := []Section{
		{"New Characters", c.NewCharacters},
		{"Level Ups", c.LevelUps},
		{"Friendship Gains", c.FriendshipGains},
		{"Constellation Changes", c.ConstellationChanges},
		{"Weapon Changes", c.WeaponChanges},
		{"Weapon Level Ups", c.WeaponLevelUps},
		{"Refinement Changes", c.RefinementChanges},
	}
	out := make([]Section, 0, len(all))
	for _, s := range all {
		if len(s.Entries) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Compare diffs two character batches, reference being the earlier one.
// Characters are visited in lexicographic name order so output is
// deterministic.
func Compare(reference, target map[string]models.CharacterRecord) ChangeSet {
	return CompareWindow(reference, target, nil)
}

// CompareWindow is Compare with period-summary semantics: a character absent
// from the reference batch is only reported as new when its name is not in
// seenBefore (characters that existed before the window start are not news).
// A nil seenBefore disables the suppression.
func CompareWindow(reference, target map[string]models.CharacterRecord, seenBefore map[string]bool) ChangeSet {
	var cs ChangeSet

	names := make([]string, 0, len(reference)+len(target))
	seen := make(map[string]bool, len(reference)+len(target))
	for name := range reference {
		names = append(names, name)
		seen[name] = true
	}
	for name := range target {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		cur, inTarget := target[name]
		if !inTarget {
			// Removals are never reported.
			continue
		}

		old, inRef := reference[name]
		if !inRef {
			if seenBefore == nil || !seenBefore[name] {
				cs.NewCharacters = append(cs.NewCharacters, fmt.Sprintf(
					"%s: Lv%d C%d F%d — %s (Lv%d R%d)",
					name, cur.Level, cur.Constellation, cur.Friendship,
					weaponOr(cur.WeaponName), cur.WeaponLevel, cur.WeaponRefinement,
				))
			}
			continue
		}

		// Level and friendship only ever go up in the domain; the strict
		// comparison keeps bad reads from producing nonsense entries.
		if cur.Level > old.Level {
			cs.LevelUps = append(cs.LevelUps, fmt.Sprintf("%s: Lv%d → Lv%d", name, old.Level, cur.Level))
		}
		if cur.Friendship > old.Friendship {
			cs.FriendshipGains = append(cs.FriendshipGains, fmt.Sprintf("%s: F%d → F%d", name, old.Friendship, cur.Friendship))
		}
		if cur.Constellation != old.Constellation {
			cs.ConstellationChanges = append(cs.ConstellationChanges, fmt.Sprintf("%s: C%d → C%d", name, old.Constellation, cur.Constellation))
		}

		if cur.WeaponName != old.WeaponName {
			// A swapped weapon supersedes its level/refinement deltas.
			cs.WeaponChanges = append(cs.WeaponChanges, fmt.Sprintf(
				"%s: %s → %s (Lv%d R%d)",
				name, weaponOr(old.WeaponName), weaponOr(cur.WeaponName),
				cur.WeaponLevel, cur.WeaponRefinement,
			))
			continue
		}
		if cur.WeaponLevel > old.WeaponLevel {
			cs.WeaponLevelUps = append(cs.WeaponLevelUps, fmt.Sprintf(
				"%s (%s): Lv%d → Lv%d", name, weaponOr(cur.WeaponName), old.WeaponLevel, cur.WeaponLevel))
		}
		if cur.WeaponRefinement != old.WeaponRefinement {
			cs.RefinementChanges = append(cs.RefinementChanges, fmt.Sprintf(
				"%s (%s): R%d → R%d", name, weaponOr(cur.WeaponName), old.WeaponRefinement, cur.WeaponRefinement))
		}
	}

	if len(reference) != len(target) {
		cs.TotalLine = fmt.Sprintf("Characters: %d → %d (%+d)", len(reference), len(target), len(target)-len(reference))
	}

	return cs
}

func weaponOr(name string) string {
	if name == "" {
		return "No weapon"
	}
	return name
}
