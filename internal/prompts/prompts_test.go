package prompts

import (
	"strings"
	"testing"
)

func TestLoad_AllTemplatesPresent(t *testing.T) {
	lib, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range []string{JDEnrich, CVEnrich, CVRanking, CandidateQuestions, CVParse, JDKeywords} {
		if _, err := lib.Text(name); err != nil {
			t.Errorf("Text(%s): %v", name, err)
		}
	}
}

func TestRender_SubstitutesAllPlaceholders(t *testing.T) {
	lib, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	out, err := lib.Render(CVRanking, map[string]string{
		"JD_TEXT": "senior gopher wanted",
		"CV_TEXT": "ten years of Go",
		"CV_ID":   "cv-123",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if strings.Contains(out, "{{") {
		t.Errorf("rendered prompt still contains placeholders:\n%s", out)
	}
	if !strings.Contains(out, "cv-123") || !strings.Contains(out, "senior gopher wanted") {
		t.Error("rendered prompt missing substituted values")
	}
}

func TestRender_MissingValueFails(t *testing.T) {
	lib, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := lib.Render(CVRanking, map[string]string{"JD_TEXT": "x", "CV_TEXT": "y"}); err == nil {
		t.Error("Render without CV_ID: expected error")
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	lib, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := lib.Render("nope", nil); err == nil {
		t.Error("Render(nope): expected error")
	}
}
