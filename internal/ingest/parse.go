package ingest

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/chunker"
	"github.com/talentsift/talentsift/internal/llm"
	"github.com/talentsift/talentsift/internal/prompts"
)

// ExperienceDetail is one position in a parsed CV.
type ExperienceDetail struct {
	PreviousCompany string   `json:"previous_company,omitempty"`
	Role            string   `json:"role,omitempty"`
	Duration        string   `json:"duration,omitempty"`
	PointsAboutIt   []string `json:"points_about_it,omitempty"`
}

// ContactInfo holds a candidate's contact details.
type ContactInfo struct {
	MobileNumber string   `json:"mobile_number,omitempty"`
	Email        string   `json:"email,omitempty"`
	OtherLinks   []string `json:"other_links,omitempty"`
}

// PersonalDetails holds the rest of the candidate's personal section.
type PersonalDetails struct {
	DateOfBirth      string   `json:"date_of_birth,omitempty"`
	Place            string   `json:"place,omitempty"`
	Language         []string `json:"language,omitempty"`
	AdditionalPoints []string `json:"additional_points,omitempty"`
}

// ParsedCV is the structured data the LLM extracts from a CV.
type ParsedCV struct {
	CandidateName   string             `json:"candidate_name,omitempty"`
	Skills          []string           `json:"skills,omitempty"`
	Experience      []ExperienceDetail `json:"experience,omitempty"`
	ContactInfo     *ContactInfo       `json:"contact_info,omitempty"`
	PersonalDetails *PersonalDetails   `json:"personal_details,omitempty"`
}

// JDKeywords is the searchable keyword set extracted from a JD.
type JDKeywords struct {
	Keywords []string `json:"keywords"`
}

// parseCV asks the LLM for structured CV data. It returns both the decoded
// struct and the raw JSON for registry storage.
func (p *Pipeline) parseCV(ctx context.Context, content chunker.Content) (*ParsedCV, string, error) {
	promptText, err := p.library.Text(prompts.CVParse)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, err, "loading CV parse prompt")
	}

	msg := llm.Message{Role: llm.RoleUser}
	if content.RawText != "" {
		msg.Content = promptText + "\n\n" + content.RawText
	} else {
		msg.Content = promptText
		msg.Attachment = &llm.Attachment{MIME: content.MIME, Base64: content.Base64}
	}

	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{msg},
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindUpstream, err, "CV parse call failed")
	}

	raw := llm.StripFences(resp.Content)
	var parsed ParsedCV
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, "", apperr.Wrap(apperr.KindUpstream, err, "CV parse returned unparseable output")
	}
	return &parsed, raw, nil
}

// extractKeywords asks the LLM for searchable keywords covering the JD text.
func (p *Pipeline) extractKeywords(ctx context.Context, jdText string) (*JDKeywords, string, error) {
	if strings.TrimSpace(jdText) == "" {
		return nil, "", apperr.New(apperr.KindInput, "JD text is empty, cannot extract keywords")
	}

	prompt, err := p.library.Render(prompts.JDKeywords, map[string]string{"JD_TEXT": jdText})
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, err, "rendering JD keywords prompt")
	}

	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindUpstream, err, "JD keyword extraction call failed")
	}

	raw := llm.StripFences(resp.Content)
	var keywords JDKeywords
	if err := json.Unmarshal([]byte(raw), &keywords); err != nil {
		return nil, "", apperr.Wrap(apperr.KindUpstream, err, "JD keyword extraction returned unparseable output")
	}
	return &keywords, raw, nil
}
