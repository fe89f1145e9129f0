package ranker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/docstore"
	"github.com/talentsift/talentsift/internal/llm"
	"github.com/talentsift/talentsift/internal/logger"
	"github.com/talentsift/talentsift/internal/prompts"
)

// Question is one suggested interview question with pointers for judging
// the candidate's answer.
type Question struct {
	Question             string   `json:"question"`
	Category             string   `json:"category"`
	GoodAnswerPointers   []string `json:"good_answer_pointers"`
	UnsureAnswerPointers []string `json:"unsure_answer_pointers"`
}

// Questions groups the generated questions by kind.
type Questions struct {
	Technical         []Question `json:"technical_questions"`
	GeneralBehavioral []Question `json:"general_behavioral_questions"`
}

// QuestionGenerator produces interview questions for a candidate from the
// reconstructed JD and CV texts. A thin sibling of the ranker: it consumes
// the same store and LLM provider but performs no scoring.
type QuestionGenerator struct {
	store    ChunkStore
	provider llm.Provider
	library  *prompts.Library
	log      *zap.Logger
}

// NewQuestionGenerator creates a QuestionGenerator.
func NewQuestionGenerator(store ChunkStore, provider llm.Provider, library *prompts.Library, log *zap.Logger) *QuestionGenerator {
	return &QuestionGenerator{store: store, provider: provider, library: library, log: log}
}

// Generate asks the LLM for interview questions tailored to the JD and the
// candidate's CV.
func (g *QuestionGenerator) Generate(ctx context.Context, jdID, cvID string) (*Questions, error) {
	if jdID == "" || cvID == "" {
		return nil, apperr.New(apperr.KindInput, "both JD ID and CV ID are required")
	}

	jdText, err := g.store.ReconstructFullText(ctx, jdID, docstore.KindJD)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOf(err), err, "reconstructing JD %s", jdID)
	}
	cvText, err := g.store.ReconstructFullText(ctx, cvID, docstore.KindCV)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOf(err), err, "reconstructing CV %s", cvID)
	}

	prompt, err := g.library.Render(prompts.CandidateQuestions, map[string]string{
		"JD_TEXT":              jdText,
		"CV_TEXT":              cvText,
		"CANDIDATE_NAME_OR_ID": cvID,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "rendering questions prompt")
	}

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "question generation call failed for CV %s", cvID)
	}

	var out Questions
	if err := json.Unmarshal([]byte(llm.StripFences(resp.Content)), &out); err != nil {
		g.log.Error("question generation returned unparseable JSON",
			zap.String("cv_id", cvID),
			zap.String("preview", logger.Truncate(resp.Content, 500)))
		return nil, apperr.Wrap(apperr.KindUpstream, fmt.Errorf("decoding questions response: %w", err),
			"question generation returned unparseable output for CV %s", cvID)
	}

	g.log.Info("candidate questions generated",
		zap.String("jd_id", jdID), zap.String("cv_id", cvID),
		zap.Int("technical", len(out.Technical)),
		zap.Int("behavioral", len(out.GeneralBehavioral)))
	return &out, nil
}
