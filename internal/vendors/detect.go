package vendors

import "strings"

// Detect classifies an inbound document's source against the registry.
// Sender, subject and snippet are concatenated and lower-cased; profiles are
// tried in registry order and the first detection pattern hit wins.
func Detect(sender, subject, snippet string) *Profile {
	haystack := strings.ToLower(sender + " " + subject + " " + snippet)
	for i := range registry {
		for _, pattern := range registry[i].DetectPatterns {
			if strings.Contains(haystack, pattern) {
				return &registry[i]
			}
		}
	}
	return nil
}
