package optimization

// Stage is one step of an optimization run. Stages execute in declaration
// order.
type Stage int

const (
	Explanation Stage = iota
	Bottlenecks
	Rationale
	OptimizedIR
)

// Stages lists every stage in execution order.
var Stages = []Stage{Explanation, Bottlenecks, Rationale, OptimizedIR}

var stageNames = [...]string{
	Explanation: "CODE EXPLANATION",
	Bottlenecks: "BOTTLENECKS",
	Rationale:   "OPTIMIZATION RATIONALE",
	OptimizedIR: "OPTIMIZED IR",
}

// String returns the section heading shown for the stage.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}

// MarshalText encodes the stage as its section heading.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// System instructions sent with each stage.
const (
	ExplainInstruction = "Explain what this LLVM IR code does in detail, focusing on its functionality and purpose."

	BottlenecksInstruction = "Identify and explain performance bottlenecks in this LLVM IR code."

	RationaleInstruction = "Suggest specific optimization changes for this LLVM IR code and explain why they would help improve performance."

	SynthesizeInstruction = "Generate an optimized version of this LLVM IR code, applying appropriate optimization techniques " +
		"mentioned in the optimization suggestions. Always give the optimized LLVM IR code in the format of a code block. " +
		"Start the code block with 'define' and end it with 'attributes'. Keep the function name and signature unchanged."

	ExtractInstruction = "Extract the valid LLVM IR function definition from the optimized code. " +
		"Put " + StartMarker + " immediately before the function and " + EndMarker + " immediately after it, " +
		"and return only that span."
)

// Instruction returns the system instruction of a streamed or synthesized
// stage.
func (s Stage) Instruction() string {
	switch s {
	case Explanation:
		return ExplainInstruction
	case Bottlenecks:
		return BottlenecksInstruction
	case Rationale:
		return RationaleInstruction
	case OptimizedIR:
		return SynthesizeInstruction
	default:
		return ""
	}
}

// synthesisPayload is the user text of the OPTIMIZED_IR stage.
func synthesisPayload(ir, rationale string) string {
	return "Original LLVM IR: \"" + ir + "\"\n\nSuggested optimizations to apply: \"" + rationale + "\""
}
