package qualitygate

import (
	"regexp"
	"strings"
)

// PatternExtractor pulls one named pattern out of a draft. Extractors are
// small, swappable strategies so the repetition control flow stays
// independent of the string scanning heuristics.
type PatternExtractor interface {
	Extract(text string) (string, bool)
}

// ResponseSignature captures how a reply opens and how it structures its
// conclusion. Two replies repeat only when both halves are present and
// equal, so a shared opener alone (common for a persona) is not flagged.
type ResponseSignature struct {
	RolePattern      string
	StructurePattern string
}

func (s ResponseSignature) Matches(other ResponseSignature) bool {
	roleMatch := s.RolePattern != "" && s.RolePattern == other.RolePattern
	structureMatch := s.StructurePattern != "" && s.StructurePattern == other.StructurePattern
	return roleMatch && structureMatch
}

const minSignatureLength = 50

// ExtractResponseSignature derives a signature with the default extractors.
// Texts shorter than 50 chars yield an empty signature.
func ExtractResponseSignature(text string) ResponseSignature {
	if len(text) < minSignatureLength {
		return ResponseSignature{}
	}
	var sig ResponseSignature
	if role, ok := (RoleOpenerExtractor{}).Extract(text); ok {
		sig.RolePattern = role
	}
	if structure, ok := (StructureMarkerExtractor{}).Extract(text); ok {
		sig.StructurePattern = structure
	}
	return sig
}

var roleMarkers = []*regexp.Regexp{
	regexp.MustCompile(`as an? \w+`),
	regexp.MustCompile(`i am an? \w+`),
	regexp.MustCompile(`being an? \w+`),
	regexp.MustCompile(`as your \w+`),
}

// RoleOpenerExtractor finds a self-referential opener phrase in the first
// two sentences.
type RoleOpenerExtractor struct{}

func (RoleOpenerExtractor) Extract(text string) (string, bool) {
	sentences := strings.SplitN(text, ".", 3)
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}
	opening := strings.ToLower(strings.Join(sentences, "."))
	for _, marker := range roleMarkers {
		if m := marker.FindString(opening); m != "" {
			return m, true
		}
	}
	return "", false
}

// structureMarker pairs a marker name with its pattern. The name is the
// signature value, so two drafts using the same marker compare equal even
// when the surrounding words differ.
type structureMarker struct {
	name    string
	pattern *regexp.Regexp
}

var structureMarkers = []structureMarker{
	{"belief_answer", regexp.MustCompile(`i (believe|think) (the answer is|that)`)},
	{"conclusion", regexp.MustCompile(`(therefore|thus|hence)`)},
	{"based_on", regexp.MustCompile(`based on`)},
	{"answer_is", regexp.MustCompile(`the (correct |best )?answer is`)},
	{"choice_marker", regexp.MustCompile(`(?m)^[a-d]\)`)},
	{"numbered_list", regexp.MustCompile(`(?m)^\d+\.`)},
	{"bullet_list", regexp.MustCompile(`(?m)^[-•]`)},
}

// StructureMarkerExtractor finds the first decision or formatting marker
// anywhere in the text.
type StructureMarkerExtractor struct{}

func (StructureMarkerExtractor) Extract(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, marker := range structureMarkers {
		if marker.pattern.MatchString(lower) {
			return marker.name, true
		}
	}
	return "", false
}

var answerLetterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Correct|Answer):\s*([A-D])`),
	regexp.MustCompile(`(?i)\*\*([A-D])\*\*`),
	regexp.MustCompile(`(?im)^([A-D])\)`),
}

// QuestionStemExtractor returns the first line containing a question mark.
type QuestionStemExtractor struct{}

func (QuestionStemExtractor) Extract(text string) (string, bool) {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.Contains(line, "?") {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}

// AnswerLetterExtractor returns the marked correct-answer letter.
type AnswerLetterExtractor struct{}

func (AnswerLetterExtractor) Extract(text string) (string, bool) {
	for _, p := range answerLetterPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

// ExtractQuestionSignature builds the "stem\nCorrect: X" signature used for
// semantic comparison. Both halves must be present or the signature is
// unusable and the semantic check is skipped.
func ExtractQuestionSignature(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	stem, ok := (QuestionStemExtractor{}).Extract(text)
	if !ok {
		return "", false
	}
	letter, ok := (AnswerLetterExtractor{}).Extract(text)
	if !ok {
		return "", false
	}
	return stem + "\nCorrect: " + letter, true
}
