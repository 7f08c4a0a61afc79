package orchestrator

// MergeProfile overlays the values saved this turn on the stored profile.
// Neither input is modified.
func MergeProfile(existing, saved map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(saved))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range saved {
		out[k] = v
	}
	return out
}
