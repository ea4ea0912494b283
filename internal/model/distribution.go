package model

// BuildDistribution expands the per-node initial-state mixtures parsed
// from a configuration into the model-wide joint distribution: the
// cartesian product of each node's independent mixture, matching
// original_source/src/main.cpp's initial-state construction. A node with
// no mixture entry defaults to a fixed bit 0 (off), probability 1.
func BuildDistribution(nodes []Node, istates map[string][]IstateEntry) []InitialStateEntry {
	dist := []InitialStateEntry{{Probability: 1}}

	for i, n := range nodes {
		entries, ok := istates[n.Name]
		if !ok || len(entries) == 0 {
			continue
		}
		var next []InitialStateEntry
		for _, base := range dist {
			for _, e := range entries {
				bits := base.Bits
				if e.Bit != 0 {
					bits = append(append([]int(nil), base.Bits...), i)
				}
				next = append(next, InitialStateEntry{
					Probability: base.Probability * e.Probability,
					Bits:        bits,
				})
			}
		}
		dist = next
	}
	return dist
}
