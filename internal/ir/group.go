package ir

// Group is a set of captures judged similar to a representative capture.
// Members are indexes into the slice passed to GroupSimilar, so two captures
// with identical content are still tracked as separate members.
type Group struct {
	Representative int
	Members        []int

	signals []RawSignal
}

// Signal returns the representative capture.
func (g Group) Signal() RawSignal {
	return g.signals[g.Representative]
}

// Size returns the number of members.
func (g Group) Size() int {
	return len(g.Members)
}

// Signals returns the member captures in insertion order.
func (g Group) Signals() []RawSignal {
	out := make([]RawSignal, len(g.Members))
	for i, idx := range g.Members {
		out[i] = g.signals[idx]
	}
	return out
}

type groupBuilder struct {
	key     int
	members []int
	seen    map[int]struct{}
}

func (b *groupBuilder) add(idx int) {
	if _, ok := b.seen[idx]; ok {
		return
	}
	b.seen[idx] = struct{}{}
	b.members = append(b.members, idx)
}

// GroupSimilar clusters signals with DefaultMatcher.
func GroupSimilar(signals []RawSignal, minMatches int) []Group {
	return DefaultMatcher.GroupSimilar(signals, minMatches)
}

// GroupSimilar clusters captures by pairwise similarity.
//
// Every unordered pair is compared. A similar pair joins the group keyed by
// either member, otherwise every existing group whose representative matches
// either member, otherwise it starts a new group keyed by the first member.
// A capture may therefore end up in more than one group. Groups smaller than
// minMatches are dropped; minMatches <= 0 means DefaultMinMatches. Groups are
// returned in creation order.
func (m Matcher) GroupSimilar(signals []RawSignal, minMatches int) []Group {
	if minMatches <= 0 {
		minMatches = DefaultMinMatches
	}

	var order []*groupBuilder
	byKey := make(map[int]*groupBuilder)

	for i := 0; i < len(signals); i++ {
		for j := i + 1; j < len(signals); j++ {
			if !m.Similar(signals[i], signals[j]) {
				continue
			}

			if g, ok := byKey[i]; ok {
				g.add(j)
				continue
			}
			if g, ok := byKey[j]; ok {
				g.add(i)
				continue
			}

			matched := false
			for _, g := range order {
				rep := signals[g.key]
				if m.Similar(rep, signals[i]) || m.Similar(rep, signals[j]) {
					matched = true
					g.add(i)
					g.add(j)
				}
			}
			if matched {
				continue
			}

			g := &groupBuilder{key: i, seen: make(map[int]struct{})}
			g.add(i)
			g.add(j)
			order = append(order, g)
			byKey[i] = g
		}
	}

	groups := make([]Group, 0, len(order))
	for _, g := range order {
		if len(g.members) < minMatches {
			continue
		}
		groups = append(groups, Group{
			Representative: g.key,
			Members:        g.members,
			signals:        signals,
		})
	}
	return groups
}

// Largest returns the group with the most members. Ties go to the group
// created first.
func Largest(groups []Group) (Group, bool) {
	var best Group
	found := false
	for _, g := range groups {
		if !found || g.Size() > best.Size() {
			best = g
			found = true
		}
	}
	return best, found
}
