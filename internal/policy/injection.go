package policy

import (
	"regexp"
	"strings"
)

// injectionPatterns matches common prompt-injection phrasings.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore (all )?previous instructions`),
	regexp.MustCompile(`(?i)reveal (the )?system prompt`),
	regexp.MustCompile(`(?i)disregard (your|all) (rules|guidelines|instructions)`),
	regexp.MustCompile(`(?i)you are now (in )?(dan|jailbreak|developer) mode`),
	regexp.MustCompile(`(?i)pretend (you have|to have) no restrictions`),
}

// DetectInjection reports whether prompt contains a recognized
// prompt-injection pattern.
func DetectInjection(prompt string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(prompt) {
			return true
		}
	}
	return false
}

// contentSafetyLexicon is a minimal category->phrase lexical filter.
var contentSafetyLexicon = map[string][]string{
	"violence":      {"how to build a bomb", "how to make a weapon"},
	"self_harm":     {"how to end my life"},
	"illicit_goods": {"how to synthesize methamphetamine"},
}

// DetectContentSafety reports the first unsafe category matched in prompt,
// or "" if none.
func DetectContentSafety(prompt string) string {
	lower := strings.ToLower(prompt)
	for category, phrases := range contentSafetyLexicon {
		for _, phrase := range phrases {
			if strings.Contains(lower, phrase) {
				return category
			}
		}
	}
	return ""
}
