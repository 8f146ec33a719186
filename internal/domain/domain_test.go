package domain

import (
	"errors"
	"testing"
)

func TestImageFromDataURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantMIME string
		wantData string
		wantErr  bool
	}{
		{name: "data url", input: "data:image/png;base64,aGVsbG8=", wantMIME: "image/png", wantData: "hello"},
		{name: "bare base64", input: "aGVsbG8=", wantMIME: DefaultImageMIME, wantData: "hello"},
		{name: "empty", input: "  ", wantErr: true},
		{name: "no payload", input: "data:image/png;base64", wantErr: true},
		{name: "bad base64", input: "data:image/png;base64,***", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			img, err := ImageFromDataURL(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.MIMEType != tc.wantMIME || string(img.Data) != tc.wantData {
				t.Fatalf("unexpected image: %+v", img)
			}
		})
	}
}

func TestNewRequestPayloadCopiesImages(t *testing.T) {
	t.Parallel()

	images := []Image{{Data: []byte("abc")}}
	payload, err := NewRequestPayload(KindGrade, "text", images, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	images[0].Data[0] = 'z'

	got := payload.Images()
	if string(got[0].Data) != "abc" {
		t.Fatalf("payload shares image memory with caller: %q", got[0].Data)
	}
	if got[0].MIMEType != DefaultImageMIME {
		t.Fatalf("expected default mime, got %q", got[0].MIMEType)
	}
}

func TestNewRequestPayloadBounds(t *testing.T) {
	t.Parallel()

	if _, err := NewRequestPayload(KindQuiz, "", make([]Image, 3), 2); err == nil {
		t.Fatalf("expected image bound error")
	}
	if _, err := NewRequestPayload(InstructionKind("poem"), "", nil, 0); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestQuizQuestionValidate(t *testing.T) {
	t.Parallel()

	ok := QuizQuestion{Question: "q", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 3}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outOfRange := ok
	outOfRange.CorrectIndex = 4
	if err := outOfRange.Validate(); err == nil {
		t.Fatalf("expected range error")
	}

	short := ok
	short.Options = []string{"a", "b"}
	short.CorrectIndex = 0
	if err := short.Validate(); err == nil {
		t.Fatalf("expected option count error")
	}
}

func TestResultValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		result  Result
		wantErr bool
	}{
		{name: "grade", result: Result{Kind: KindGrade, Grade: &GradeResult{Score: 85}}},
		{name: "grade out of range", result: Result{Kind: KindGrade, Grade: &GradeResult{Score: 101}}, wantErr: true},
		{name: "grade missing", result: Result{Kind: KindGrade}, wantErr: true},
		{name: "ask", result: Result{Kind: KindFreeAsk, Text: "bet"}},
		{name: "ask empty", result: Result{Kind: KindFreeAsk}, wantErr: true},
		{name: "notes", result: Result{Kind: KindNotesSummary, Notes: &NotesSummary{Title: "t"}}},
		{name: "quiz empty", result: Result{Kind: KindQuiz}, wantErr: true},
		{name: "unknown", result: Result{Kind: "x"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.result.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRequestErrorUnwrapsReasonAndCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("model is overloaded")
	err := error(&RequestError{Kind: KindGrade, Reason: ErrExhaustedRetries, Attempts: 3, Cause: cause})

	if !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("expected exhausted reason")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if got := UserMessage(err); got != "model is overloaded" {
		t.Fatalf("unexpected user message: %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	if got := UserMessage(nil); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
	if got := UserMessage(ErrPermissionDenied); got != "Microphone access denied." {
		t.Fatalf("unexpected permission message: %q", got)
	}
	malformed := &RequestError{Kind: KindQuiz, Reason: ErrMalformedResponse, Cause: errors.New("unexpected end")}
	if got := UserMessage(malformed); got == "unexpected end" {
		t.Fatalf("malformed responses should not leak parser detail")
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	if ParseMode("conversational") != ModeConversational {
		t.Fatalf("expected conversational")
	}
	if ParseMode("anything") != ModeGrading {
		t.Fatalf("expected grading default")
	}
	if !ModeConversational.ImmediateDispatch() || ModeGrading.ImmediateDispatch() {
		t.Fatalf("unexpected immediate dispatch flags")
	}
}
