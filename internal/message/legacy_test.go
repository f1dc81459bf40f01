package message

import "testing"

func TestParseLegacyFinalAnswers(t *testing.T) {
	in := "<thinking>plan it</thinking>\n<stress_test_2>check</stress_test_2>\n" +
		"<final_answer> first </final_answer><final_answer>second</final_answer>\n" +
		"<sources>\n- https://a.com A\n</sources>"
	got := ParseLegacy(in)
	if len(got.Reasoning) != 2 {
		t.Fatalf("expected two reasoning blocks, got %+v", got.Reasoning)
	}
	if got.Reasoning[0].Type != ReasoningThinking || got.Reasoning[0].Iteration != 1 || got.Reasoning[0].Content != "plan it" {
		t.Fatalf("unexpected first block %+v", got.Reasoning[0])
	}
	if got.Reasoning[1].Type != ReasoningStressTest || got.Reasoning[1].Iteration != 2 {
		t.Fatalf("unexpected second block %+v", got.Reasoning[1])
	}
	if got.FinalResponse != "first\nsecond" {
		t.Fatalf("unexpected final response %q", got.FinalResponse)
	}
	if len(got.Sources) != 1 || got.Sources[0].Title != "A" {
		t.Fatalf("unexpected sources %+v", got.Sources)
	}
}

func TestParseLegacyWithoutFinalAnswer(t *testing.T) {
	got := ParseLegacy("<thinking_3>hidden</thinking_3> visible </final_answer>")
	if got.FinalResponse != "visible" {
		t.Fatalf("unexpected final response %q", got.FinalResponse)
	}
	if got.Reasoning[0].Iteration != 3 {
		t.Fatalf("unexpected iteration %d", got.Reasoning[0].Iteration)
	}
}

func TestParseLegacyWithoutFinalAnswerDropsSources(t *testing.T) {
	got := ParseLegacy("<thinking>plan</thinking> answer text\n<sources>\n- https://a.com A\n</sources>")
	if got.FinalResponse != "answer text" {
		t.Fatalf("unexpected final response %q", got.FinalResponse)
	}
	if len(got.Sources) != 1 || got.Sources[0].URL != "https://a.com" {
		t.Fatalf("unexpected sources %+v", got.Sources)
	}
	if len(got.Reasoning) != 1 || got.Reasoning[0].Content != "plan" {
		t.Fatalf("unexpected reasoning %+v", got.Reasoning)
	}
}

func TestParseLegacyMismatchedIteration(t *testing.T) {
	got := ParseLegacy("<thinking_1>a</thinking_2> tail")
	if len(got.Reasoning) != 0 {
		t.Fatalf("expected no reasoning blocks, got %+v", got.Reasoning)
	}
}
