package protocol

// DetectHits returns the zone indices whose counter increased between two
// consecutive frames. Zones that stayed equal or went down never report.
// Only the common prefix of the two slices is compared.
func DetectHits(previous, current []int) []int {
	n := len(current)
	if len(previous) < n {
		n = len(previous)
	}

	var hits []int
	for zone := 0; zone < n; zone++ {
		if current[zone] > previous[zone] {
			hits = append(hits, zone)
		}
	}
	return hits
}
