package memory

import "strings"

// FormatHistory renders turns as prompt-ready lines, one per turn:
//
//	User: how do I rotate the API key?
//	Assistant: go to the settings page ...
//
// An empty slice renders as the empty string.
func FormatHistory(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	lines := make([]string, len(turns))
	for i, turn := range turns {
		lines[i] = capitalizeRole(turn.Role) + ": " + turn.Message
	}
	return strings.Join(lines, "\n")
}

func capitalizeRole(role string) string {
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
