package qualitygate

import "testing"

func TestExtractResponseSignature(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantRole      string
		wantStructure string
	}{
		{
			name:          "role_and_structure",
			text:          "As a cybersecurity expert, I can say the answer is B because MAC uses labels.",
			wantRole:      "as a cybersecurity",
			wantStructure: "answer_is",
		},
		{
			name:          "structure_only",
			text:          "Based on the scenario described above, option B fits the requirement best.",
			wantRole:      "",
			wantStructure: "based_on",
		},
		{
			name:          "short_text_empty_signature",
			text:          "As a pro, therefore B.",
			wantRole:      "",
			wantStructure: "",
		},
		{
			name:          "numbered_list_marker",
			text:          "Consider the following points about access control.\n1. Labels are central\n2. Owners do not decide",
			wantRole:      "",
			wantStructure: "numbered_list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := ExtractResponseSignature(tt.text)
			if sig.RolePattern != tt.wantRole {
				t.Errorf("RolePattern = %q, want %q", sig.RolePattern, tt.wantRole)
			}
			if sig.StructurePattern != tt.wantStructure {
				t.Errorf("StructurePattern = %q, want %q", sig.StructurePattern, tt.wantStructure)
			}
		})
	}
}

func TestResponseSignatureMatches(t *testing.T) {
	tests := []struct {
		name string
		a, b ResponseSignature
		want bool
	}{
		{
			name: "both_halves_equal",
			a:    ResponseSignature{"as a expert", "answer_is"},
			b:    ResponseSignature{"as a expert", "answer_is"},
			want: true,
		},
		{
			name: "role_only_not_repeat",
			a:    ResponseSignature{"as a expert", "answer_is"},
			b:    ResponseSignature{"as a expert", "conclusion"},
			want: false,
		},
		{
			name: "empty_halves_never_repeat",
			a:    ResponseSignature{"", ""},
			b:    ResponseSignature{"", ""},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Matches(tt.b); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractQuestionSignature(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantHit bool
	}{
		{
			name:    "correct_marker",
			text:    "Which model uses labels?\nA) DAC\nB) MAC\nCorrect: B",
			want:    "Which model uses labels?\nCorrect: B",
			wantHit: true,
		},
		{
			name:    "bold_letter",
			text:    "Which cipher is symmetric?\nThe answer is **C** here.",
			want:    "Which cipher is symmetric?\nCorrect: C",
			wantHit: true,
		},
		{
			name:    "lowercase_bold_letter",
			text:    "Which hash is considered broken?\nThe answer is **b** for this one.",
			want:    "Which hash is considered broken?\nCorrect: B",
			wantHit: true,
		},
		{
			name:    "lowercase_choice_marker",
			text:    "Which port does TLS use by default?\nc) 443 is the right option",
			want:    "Which port does TLS use by default?\nCorrect: C",
			wantHit: true,
		},
		{
			name:    "missing_question",
			text:    "The answer is B.\nCorrect: B",
			wantHit: false,
		},
		{
			name:    "missing_answer",
			text:    "Which model uses labels?\nMandatory access control does.",
			wantHit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractQuestionSignature(tt.text)
			if ok != tt.wantHit {
				t.Fatalf("ExtractQuestionSignature() hit = %v, want %v", ok, tt.wantHit)
			}
			if ok && got != tt.want {
				t.Errorf("ExtractQuestionSignature() = %q, want %q", got, tt.want)
			}
		})
	}
}
