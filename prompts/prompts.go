package prompts

import _ "embed"

// Embedded prompt files

//go:embed agent_system.txt
var agentSystem string

//go:embed semantic_corrective.txt
var semanticCorrective string

//go:embed quiz_instruction.txt
var quizInstruction string

func AgentSystem() string        { return agentSystem }
func SemanticCorrective() string { return semanticCorrective }
func QuizInstruction() string    { return quizInstruction }
