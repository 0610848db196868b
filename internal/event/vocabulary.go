package event

// Output tokens with a fixed meaning to the replay.
const (
	OutputBackspace = "BACK"
	OutputDelete    = "DELETE"
	OutputDown      = "DOWN"
	OutputSpace     = "SPACE"
	OutputReturn    = "RETURN"
	OutputLeftClick = "LEFT Click"
	OutputTaskbar   = "TASKBAR"
)

// specialOutputs never add or remove document text by themselves. The set is
// closed: extend it only by listing the new token here.
var specialOutputs = map[string]struct{}{
	// navigation and editing keys
	"BACK":   {},
	"DELETE": {},
	"RIGHT":  {},
	"LEFT":   {},
	"DOWN":   {},
	"UP":     {},
	"END":    {},
	"ESCAPE": {},

	// modifier combinations
	"LSHIFT":           {},
	"LCTRL + LALT":     {},
	"LCTRL + LALT + @": {},
	"LALT + LCTRL":     {},
	"LALT + LCTRL + @": {},

	// non-keyboard tokens
	"LEFT Click": {},
	"TASKBAR":    {},
}

// IsSpecialOutput reports whether output belongs to the special token set.
func IsSpecialOutput(output string) bool {
	_, ok := specialOutputs[output]
	return ok
}

// SpecialOutputs returns a copy of the special token set.
func SpecialOutputs() []string {
	out := make([]string, 0, len(specialOutputs))
	for k := range specialOutputs {
		out = append(out, k)
	}
	return out
}
