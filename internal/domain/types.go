package domain

// Lifecycle is the coarse state exposed to the UI.
type Lifecycle string

const (
	LifecycleIdle       Lifecycle = "idle"
	LifecycleListening  Lifecycle = "listening"
	LifecycleProcessing Lifecycle = "processing"
	LifecycleSpeaking   Lifecycle = "speaking"
)

// Mode controls what happens when capture stops.
type Mode string

const (
	// ModeGrading holds the transcript until the user submits it.
	ModeGrading Mode = "grading"
	// ModeConversational dispatches the transcript as a question as soon as capture stops.
	ModeConversational Mode = "conversational"
)

// ParseMode maps a UI string onto a Mode, defaulting to grading.
func ParseMode(value string) Mode {
	switch Mode(value) {
	case ModeConversational:
		return ModeConversational
	default:
		return ModeGrading
	}
}

// ImmediateDispatch reports whether stopping capture submits right away.
func (m Mode) ImmediateDispatch() bool {
	return m == ModeConversational
}

// InstructionKind selects the prompt template and the result shape.
type InstructionKind string

const (
	KindGrade        InstructionKind = "grade"
	KindQuiz         InstructionKind = "quiz"
	KindFreeAsk      InstructionKind = "ask"
	KindNotesSummary InstructionKind = "notes"
)

// Kinds lists every instruction kind in a stable order.
func Kinds() []InstructionKind {
	return []InstructionKind{KindGrade, KindQuiz, KindFreeAsk, KindNotesSummary}
}

// Structured reports whether responses for the kind are JSON payloads.
func (k InstructionKind) Structured() bool {
	return k != KindFreeAsk
}

// Valid reports whether k is a known kind.
func (k InstructionKind) Valid() bool {
	switch k {
	case KindGrade, KindQuiz, KindFreeAsk, KindNotesSummary:
		return true
	default:
		return false
	}
}

// ErrorCode identifies errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeCapture     ErrorCode = "capture"
	ErrorCodePermission  ErrorCode = "permission"
	ErrorCodeUnsupported ErrorCode = "unsupported"
	ErrorCodeRequest     ErrorCode = "request"
	ErrorCodeInput       ErrorCode = "input"
)

// Status summarizes the coordinator for the UI.
type Status struct {
	State      Lifecycle `json:"state"`
	Mode       Mode      `json:"mode"`
	Listening  bool      `json:"listening"`
	Processing bool      `json:"processing"`
	Speaking   bool      `json:"speaking"`
	Transcript string    `json:"transcript"`
	Images     int       `json:"images"`
	Error      string    `json:"error,omitempty"`
}
