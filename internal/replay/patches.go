package replay

import "textreplay/internal/event"

// Session-specific empirical patches. Each one was observed in a single
// recorded session and is kept out of the general classification rules so the
// decision table stays auditable. Do not extend these without a log that
// shows the behaviour.

// tokenRewrites maps keystroke outputs that reached the logger garbled onto
// the character that was actually typed. Observed once: "LEFT + z" for "z".
var tokenRewrites = map[string]string{
	"LEFT + z": "z",
}

func rewriteToken(output string) string {
	if s, ok := tokenRewrites[output]; ok {
		return s
	}
	return output
}

// needsNewlineCompensation reports whether a length mismatch after inserting
// curr should be repaired with a newline at the cursor. Some editor builds
// report a length bump on the DOWN arrow that matches an unlogged line-wrap
// newline.
func needsNewlineCompensation(curr *event.Event) bool {
	return event.IsKey(curr, event.OutputDown)
}
