package recognize

import "testing"

func TestGenerateNameCandidatesTopLineWins(t *testing.T) {
	text := mustNormalize(t, "Lightning Bolt\n2R Instant\nDMU 142/281")
	cands := GenerateNameCandidates(text, 3)
	if len(cands) != 3 {
		t.Fatalf("expected 3 candidates got %d", len(cands))
	}
	if cands[0].Text != "Lightning Bolt" {
		t.Fatalf("expected Lightning Bolt first, got %q", cands[0].Text)
	}
}

func TestGenerateNameCandidatesNonIncreasing(t *testing.T) {
	text := mustNormalize(t, "142/281\nOb Nixilis, the Adversary\nPlaneswalker")
	cands := GenerateNameCandidates(text, 3)
	for i := 1; i < len(cands); i++ {
		if cands[i].Score > cands[i-1].Score {
			t.Fatalf("scores not non-increasing at %d: %v then %v",
				i, cands[i-1].Score, cands[i].Score)
		}
	}
}

func TestGenerateNameCandidatesPenalizesDigits(t *testing.T) {
	letters := scoreNameLine("Giant Growth", 0)
	digits := scoreNameLine("142/281", 0)
	if digits >= letters {
		t.Fatalf("digit line scored %v >= letter line %v", digits, letters)
	}
}

func TestGenerateNameCandidatesNeverEmpty(t *testing.T) {
	text := mustNormalize(t, "#$%^&*\n!!??!!")
	cands := GenerateNameCandidates(text, 3)
	if len(cands) == 0 {
		t.Fatalf("expected floor-scored candidates, got none")
	}
	for _, c := range cands {
		if c.Score < nameScoreFloor {
			t.Fatalf("candidate below floor: %+v", c)
		}
	}
}

func TestGenerateNameCandidatesEmptyInput(t *testing.T) {
	if got := GenerateNameCandidates(NormalizedText{}, 3); got != nil {
		t.Fatalf("expected nil for empty input, got %+v", got)
	}
}

func TestGenerateNameCandidatesLimitsLines(t *testing.T) {
	text := mustNormalize(t, "One Card\nTwo Card\nThree Card\nFour Card")
	cands := GenerateNameCandidates(text, 3)
	if len(cands) != 3 {
		t.Fatalf("expected 3 candidates got %d", len(cands))
	}
	for _, c := range cands {
		if c.Line > 2 {
			t.Fatalf("candidate from line %d beyond limit", c.Line)
		}
	}
}
