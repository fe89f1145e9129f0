// Package ranker scores candidate CVs against a job description in two
// stages: an optional chunk-level vector prefilter that narrows the pool,
// and a mandatory LLM comparator that produces the final order.
package ranker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/docstore"
	"github.com/talentsift/talentsift/internal/llm"
	"github.com/talentsift/talentsift/internal/logger"
	"github.com/talentsift/talentsift/internal/prompts"
)

// ChunkStore is the slice of the document store the ranker reads through.
// The ranker never writes chunks.
type ChunkStore interface {
	FetchChunks(ctx context.Context, docID string, kind docstore.Kind) ([]docstore.StoredChunk, error)
	ReconstructFullText(ctx context.Context, docID string, kind docstore.Kind) (string, error)
	Search(ctx context.Context, query string, kind docstore.Kind, topK int, allowDocIDs []string) ([]docstore.StoredChunk, error)
}

// Candidate identifies one CV entering a ranking request.
type Candidate struct {
	CVID     string
	Filename string
}

// RankedCV is one candidate's full scoring record: the prefilter score (or
// its neutral placeholder), the comparator's structured verdict, and the
// final ranking score.
type RankedCV struct {
	CVID               string   `json:"cv_id"`
	Filename           string   `json:"filename"`
	InitialVectorScore float64  `json:"initial_vector_score"`
	VectorMatchDetails string   `json:"vector_match_details"`
	MatchCount         int      `json:"match_count"`
	SkillsEvaluation   []string `json:"llm_skills_evaluation"`
	ExperienceEval     []string `json:"llm_experience_evaluation"`
	AdditionalPoints   []string `json:"llm_additional_points"`
	OverallAssessment  string   `json:"llm_overall_assessment"`
	LLMRankingScore    float64  `json:"llm_ranking_score"`
}

// Ranker runs the two-stage ranking pipeline.
type Ranker struct {
	store    ChunkStore
	provider llm.Provider
	library  *prompts.Library
	cfg      config.RankingConfig
	log      *zap.Logger
}

// New creates a Ranker.
func New(store ChunkStore, provider llm.Provider, library *prompts.Library, cfg config.RankingConfig, log *zap.Logger) *Ranker {
	return &Ranker{store: store, provider: provider, library: library, cfg: cfg, log: log}
}

// Rank orders the candidate CVs against the JD. topN <= 0 means "rank all
// candidates". When topN covers the whole pool the vector prefilter adds
// cost without narrowing anything, so it is bypassed and every candidate
// goes straight to LLM scoring with a neutral placeholder vector score.
func (r *Ranker) Rank(ctx context.Context, jdID string, candidates []Candidate, topN int) ([]RankedCV, error) {
	if jdID == "" {
		return nil, apperr.New(apperr.KindInput, "JD ID is required")
	}
	if len(candidates) == 0 {
		r.log.Warn("no candidates to rank", zap.String("jd_id", jdID))
		return []RankedCV{}, nil
	}

	var pool []RankedCV
	if topN <= 0 || topN >= len(candidates) {
		r.log.Info("ranking all candidates, skipping vector prefilter",
			zap.String("jd_id", jdID), zap.Int("candidates", len(candidates)))
		pool = make([]RankedCV, len(candidates))
		for i, c := range candidates {
			pool[i] = RankedCV{
				CVID:               c.CVID,
				Filename:           c.Filename,
				InitialVectorScore: 0.5,
				VectorMatchDetails: "Skipped vector similarity - ranking all CVs for efficiency",
			}
		}
	} else {
		var err error
		pool, err = r.prefilter(ctx, jdID, candidates, topN)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			r.log.Warn("vector prefilter left no candidates", zap.String("jd_id", jdID))
			return []RankedCV{}, nil
		}
	}

	return r.score(ctx, jdID, pool)
}

// prefilter ranks candidates by chunk-level vector similarity and keeps the
// top N. Each JD chunk queries the CV collection restricted to the candidate
// pool; a CV's prefilter score is the single best weighted contribution it
// achieved across all JD-chunk queries. Taking the maximum instead of the
// sum means one excellent match on a critical requirement beats many
// mediocre ones.
func (r *Ranker) prefilter(ctx context.Context, jdID string, candidates []Candidate, topN int) ([]RankedCV, error) {
	jdChunks, err := r.store.FetchChunks(ctx, jdID, docstore.KindJD)
	if err != nil {
		return nil, err
	}
	if len(jdChunks) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "JD %s has no stored chunks", jdID)
	}

	type aggregate struct {
		max     float64
		total   float64
		matches int
		details []string
	}
	agg := make(map[string]*aggregate, len(candidates))
	filenames := make(map[string]string, len(candidates))
	cvIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		agg[c.CVID] = &aggregate{}
		filenames[c.CVID] = c.Filename
		cvIDs = append(cvIDs, c.CVID)
	}

	for i, jdChunk := range jdChunks {
		text := jdChunk.EnrichedText
		if strings.TrimSpace(text) == "" {
			r.log.Warn("JD chunk has empty enriched text, skipping search",
				zap.String("jd_id", jdID), zap.Int("chunk", i))
			continue
		}
		weight := jdChunk.Weight
		if weight < 1 || weight > 3 {
			weight = 1
		}

		hits, err := r.store.Search(ctx, text, docstore.KindCV, r.cfg.ChunkTopK, cvIDs)
		if err != nil {
			r.log.Warn("CV chunk search failed for JD chunk, skipping it",
				zap.String("jd_id", jdID), zap.Int("chunk", i), zap.Error(err))
			continue
		}

		for _, hit := range hits {
			a, ok := agg[hit.DocID]
			if !ok {
				continue
			}
			sim := float64(hit.Score)
			// Squaring sharpens the gap between strong and weak matches
			// before the JD weight is applied.
			contribution := sim * sim * float64(weight)
			a.total += contribution
			a.matches++
			if contribution > a.max {
				a.max = contribution
			}
			if len(a.details) < 3 {
				a.details = append(a.details,
					fmt.Sprintf("JD chunk %d (weight: %d) matched CV (raw score: %.3f)", i+1, weight, sim))
			}
		}
	}

	ranked := make([]RankedCV, 0, len(candidates))
	for _, id := range cvIDs {
		a := agg[id]
		ranked = append(ranked, RankedCV{
			CVID:               id,
			Filename:           filenames[id],
			InitialVectorScore: a.max,
			VectorMatchDetails: fmt.Sprintf("Max contribution score. Aggregated from %d vector matches. Details: %s",
				a.matches, strings.Join(a.details, "; ")),
			MatchCount: a.matches,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].InitialVectorScore > ranked[j].InitialVectorScore
	})

	keep := topN
	if keep <= 0 {
		keep = r.cfg.DefaultPool
	}
	if keep < len(ranked) {
		ranked = ranked[:keep]
	}

	for _, c := range ranked {
		r.log.Debug("prefilter candidate kept",
			zap.String("cv_id", c.CVID),
			zap.Float64("score", c.InitialVectorScore),
			zap.Int("matches", c.MatchCount))
	}
	return ranked, nil
}

// comparison mirrors the comparator's structured JSON verdict.
type comparison struct {
	CVID              string   `json:"cv_id"`
	SkillsEvaluation  []string `json:"skills_evaluation"`
	ExperienceEval    []string `json:"experience_evaluation"`
	AdditionalPoints  []string `json:"additional_points"`
	OverallAssessment string   `json:"overall_assessment"`
	LLMRankingScore   *float64 `json:"llm_ranking_score"`
}

// score runs the LLM comparator over the pool concurrently and sorts the
// results descending by the comparator's ranking score. A candidate whose
// text cannot be reconstructed or whose comparator call fails is demoted to
// score 0, never dropped.
func (r *Ranker) score(ctx context.Context, jdID string, pool []RankedCV) ([]RankedCV, error) {
	jdText, err := r.store.ReconstructFullText(ctx, jdID, docstore.KindJD)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOf(err), err, "reconstructing JD %s for comparison", jdID)
	}

	results := make([]RankedCV, len(pool))
	var wg sync.WaitGroup
	for i, candidate := range pool {
		wg.Add(1)
		go func(i int, c RankedCV) {
			defer wg.Done()
			results[i] = r.scoreOne(ctx, jdText, c)
		}(i, candidate)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].LLMRankingScore > results[j].LLMRankingScore
	})

	r.log.Info("ranking completed", zap.String("jd_id", jdID), zap.Int("candidates", len(results)))
	return results, nil
}

func (r *Ranker) scoreOne(ctx context.Context, jdText string, c RankedCV) RankedCV {
	cvText, err := r.store.ReconstructFullText(ctx, c.CVID, docstore.KindCV)
	if err != nil {
		r.log.Error("failed to reconstruct CV text, demoting candidate",
			zap.String("cv_id", c.CVID), zap.Error(err))
		c.SkillsEvaluation = []string{"Error: Could not retrieve full CV text."}
		c.ExperienceEval = []string{}
		c.AdditionalPoints = []string{}
		c.OverallAssessment = "N/A: Could not retrieve full CV text."
		c.LLMRankingScore = 0.0
		return c
	}

	verdict, err := r.compare(ctx, jdText, cvText, c.CVID)
	if err != nil {
		r.log.Error("LLM comparison failed, demoting candidate",
			zap.String("cv_id", c.CVID), zap.Error(err))
		c.SkillsEvaluation = []string{"Error: LLM reasoning failed."}
		c.ExperienceEval = []string{}
		c.AdditionalPoints = []string{}
		c.OverallAssessment = "N/A: LLM reasoning failed."
		c.LLMRankingScore = 0.0
		return c
	}

	c.SkillsEvaluation = verdict.SkillsEvaluation
	c.ExperienceEval = verdict.ExperienceEval
	c.AdditionalPoints = verdict.AdditionalPoints
	c.OverallAssessment = verdict.OverallAssessment
	if verdict.LLMRankingScore != nil {
		c.LLMRankingScore = *verdict.LLMRankingScore
	}
	return c
}

// compare invokes the comparator prompt for one CV.
func (r *Ranker) compare(ctx context.Context, jdText, cvText, cvID string) (*comparison, error) {
	prompt, err := r.library.Render(prompts.CVRanking, map[string]string{
		"JD_TEXT": jdText,
		"CV_TEXT": cvText,
		"CV_ID":   cvID,
	})
	if err != nil {
		return nil, err
	}

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("comparator call for CV %s: %w", cvID, err)
	}

	var verdict comparison
	if err := json.Unmarshal([]byte(llm.StripFences(resp.Content)), &verdict); err != nil {
		r.log.Error("comparator returned unparseable JSON",
			zap.String("cv_id", cvID),
			zap.String("preview", logger.Truncate(resp.Content, 500)))
		return nil, fmt.Errorf("decoding comparator response for CV %s: %w", cvID, err)
	}

	// The comparator echoes the candidate ID; trust ours over the LLM's.
	if verdict.CVID != cvID {
		r.log.Warn("comparator echoed a different cv_id, overriding with the requested one",
			zap.String("expected", cvID), zap.String("got", verdict.CVID))
		verdict.CVID = cvID
	}
	return &verdict, nil
}
