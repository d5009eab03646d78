// Package qualitygate cleans up generated drafts and blocks repetitive
// replies. Drafts flow through post-processing, a phrase-level signature
// comparison against the previous turn, and an embedding-based semantic
// check against recent replies in the same thread. Each check may trigger
// at most one regeneration.
package qualitygate

import (
	"fmt"
	"regexp"
	"strings"
)

// Rules configures the post-processing stage for one agent persona.
type Rules struct {
	Format        string // questions_only, numbered_list, qa_pairs, bullet_points
	Validation    string // mcq_only, yes_no_only, numeric_only
	MaxSentences  int
	StripMarkdown bool
}

var verbosityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^As an AI (language model|assistant),?\s*`),
	regexp.MustCompile(`(?im)^I('m| am) (an AI|here to help|happy to assist),?\s*`),
	regexp.MustCompile(`(?im)I hope (this helps|that helps)\.?\s*$`),
	regexp.MustCompile(`(?im)Let me know if you (need|want|would like|have).*$`),
	regexp.MustCompile(`(?im)Feel free to ask.*$`),
	regexp.MustCompile(`(?im)Is there anything else.*$`),
}

var disclaimerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)\*\*Disclaimer:?\*\*.*$`),
	regexp.MustCompile(`(?im)Please note:.*$`),
	regexp.MustCompile(`(?is)\(Note:.*?\)`),
}

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// ApplyCommonFilters strips AI preambles, sign-offs, and disclaimers.
// Always runs regardless of agent settings.
func ApplyCommonFilters(text string) string {
	if text == "" {
		return text
	}
	cleaned := text
	for _, p := range verbosityPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	for _, p := range disclaimerPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = excessNewlines.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

var (
	listNumberPrefix = regexp.MustCompile(`^\d+[\.)]\s*`)
	bulletPrefix     = regexp.MustCompile(`^[-•*]\s*`)
	qPrefix          = regexp.MustCompile(`(?i)^Q(uestion)?:?\s*`)
	aPrefix          = regexp.MustCompile(`(?i)^A(nswer)?:?\s*`)
)

// ApplyFormat enforces one of the supported output formats. Unknown format
// names pass the text through unchanged.
func ApplyFormat(text, format string) string {
	if text == "" || format == "" {
		return text
	}

	switch format {
	case "questions_only":
		var questions []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && (strings.Contains(line, "?") || listNumberPrefix.MatchString(line)) {
				questions = append(questions, line)
			}
		}
		return strings.Join(questions, "\n")

	case "numbered_list":
		var out []string
		counter := 1
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			line = listNumberPrefix.ReplaceAllString(line, "")
			line = bulletPrefix.ReplaceAllString(line, "")
			out = append(out, fmt.Sprintf("%d. %s", counter, line))
			counter++
		}
		return strings.Join(out, "\n")

	case "qa_pairs":
		var pairs []string
		var currentQ, currentA string
		haveA := false
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case qPrefix.MatchString(line):
				if currentQ != "" && haveA {
					pairs = append(pairs, fmt.Sprintf("Q: %s\nA: %s", currentQ, currentA))
				}
				currentQ = qPrefix.ReplaceAllString(line, "")
				currentA = ""
				haveA = false
			case aPrefix.MatchString(line):
				currentA = aPrefix.ReplaceAllString(line, "")
				haveA = true
			}
		}
		if currentQ != "" && haveA {
			pairs = append(pairs, fmt.Sprintf("Q: %s\nA: %s", currentQ, currentA))
		}
		if len(pairs) == 0 {
			return text
		}
		return strings.Join(pairs, "\n\n")

	case "bullet_points":
		var out []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			line = listNumberPrefix.ReplaceAllString(line, "")
			line = bulletPrefix.ReplaceAllString(line, "")
			out = append(out, "• "+line)
		}
		return strings.Join(out, "\n")
	}
	return text
}

var (
	mcqLetterRe = regexp.MustCompile(`(?i)\b([A-D])\b`)
	numericRe   = regexp.MustCompile(`-?\d+\.?\d*`)
)

// Validate applies the configured answer-shape rule. It returns the text
// reduced to the expected shape and whether the draft satisfied the rule.
func Validate(text, validation string) (string, bool) {
	if text == "" || validation == "" {
		return text, true
	}
	cleaned := strings.TrimSpace(text)

	switch validation {
	case "mcq_only":
		if m := mcqLetterRe.FindStringSubmatch(cleaned); m != nil {
			return strings.ToUpper(m[1]), true
		}
		return cleaned, false

	case "yes_no_only":
		lower := strings.ToLower(cleaned)
		hasYes := strings.Contains(lower, "yes")
		hasNo := strings.Contains(lower, "no")
		switch {
		case hasYes && !hasNo:
			return "Yes", true
		case hasNo && !hasYes:
			return "No", true
		}
		return cleaned, false

	case "numeric_only":
		if m := numericRe.FindString(cleaned); m != "" {
			return m, true
		}
		return cleaned, false
	}
	return cleaned, true
}

var sentenceSplitRe = regexp.MustCompile(`([.!?]+\s+)`)

// LimitSentences truncates the text to the first max sentences.
func LimitSentences(text string, max int) string {
	if text == "" || max <= 0 {
		return text
	}
	boundaries := sentenceSplitRe.FindAllStringIndex(text, -1)
	if len(boundaries) < max {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:boundaries[max-1][1]])
}

var (
	mdBold    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdItalic  = regexp.MustCompile(`\*([^*]+)\*`)
	mdBoldU   = regexp.MustCompile(`__([^_]+)__`)
	mdItalicU = regexp.MustCompile(`_([^_]+)_`)
	mdLink    = regexp.MustCompile(`\[([^\]]+)\]\([^\)]+\)`)
	mdCodeBlk = regexp.MustCompile("```[^`]*```")
	mdCode    = regexp.MustCompile("`([^`]+)`")
	mdHeader  = regexp.MustCompile(`(?m)^#+\s*`)
)

// StripMarkdown removes markdown formatting, keeping link and emphasis text.
func StripMarkdown(text string) string {
	if text == "" {
		return text
	}
	text = mdBold.ReplaceAllString(text, "$1")
	text = mdItalic.ReplaceAllString(text, "$1")
	text = mdBoldU.ReplaceAllString(text, "$1")
	text = mdItalicU.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdCodeBlk.ReplaceAllString(text, "")
	text = mdCode.ReplaceAllString(text, "$1")
	text = mdHeader.ReplaceAllString(text, "")
	return text
}

// PostProcess runs the full cleanup pipeline and reports whether the
// validation rule (if any) passed.
func PostProcess(text string, rules Rules) (string, bool) {
	cleaned := ApplyCommonFilters(text)
	cleaned = ApplyFormat(cleaned, rules.Format)
	cleaned, valid := Validate(cleaned, rules.Validation)
	cleaned = LimitSentences(cleaned, rules.MaxSentences)
	if rules.StripMarkdown {
		cleaned = StripMarkdown(cleaned)
	}
	return cleaned, valid
}
