package orchestrator

import "strings"

// ScoringConfig holds the scoring weights. Weights are tunable so
// deployments can re-balance keyword hits against skill hits without a
// rebuild.
type ScoringConfig struct {
	// KeywordWeight is added once per descriptor keyword found in the
	// request text.
	KeywordWeight float64
	// SkillWeight is multiplied by a skill's confidence weight and added
	// once per relevant skill.
	SkillWeight float64
	// Normalization divides the raw score when deriving confidence.
	Normalization float64
}

// DefaultScoringConfig returns the standard weights.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		KeywordWeight: 1.0,
		SkillWeight:   1.5,
		Normalization: 5.0,
	}
}

// ScoringEngine scores descriptors against request text. It is pure and
// deterministic: identical inputs always produce identical outputs, and
// scoring neither mutates the descriptor nor keeps state between calls.
type ScoringEngine struct {
	config ScoringConfig
}

// NewScoringEngine creates an engine with the given weights. Non-positive
// weights fall back to their defaults.
func NewScoringEngine(config ScoringConfig) *ScoringEngine {
	defaults := DefaultScoringConfig()
	if config.KeywordWeight <= 0 {
		config.KeywordWeight = defaults.KeywordWeight
	}
	if config.SkillWeight <= 0 {
		config.SkillWeight = defaults.SkillWeight
	}
	if config.Normalization <= 0 {
		config.Normalization = defaults.Normalization
	}
	return &ScoringEngine{config: config}
}

// Config returns the weights the engine was built with.
func (e *ScoringEngine) Config() ScoringConfig {
	return e.config
}

// ScoreResult is the outcome of scoring one descriptor. MatchedKeywords and
// MatchedSkills preserve declaration order.
type ScoreResult struct {
	Raw             float64
	MatchedKeywords []string
	MatchedSkills   []string
}

// Score rates how well descriptor fits requestText. Matching is
// case-insensitive substring containment: each matching keyword adds the
// keyword weight, and each skill with at least one tag found in the request
// adds the skill weight scaled by the skill's confidence weight. Empty
// keywords and tags never match.
func (e *ScoringEngine) Score(requestText string, descriptor *CapabilityDescriptor) ScoreResult {
	requestLower := strings.ToLower(requestText)
	var result ScoreResult

	for _, keyword := range descriptor.Keywords {
		kw := strings.ToLower(keyword)
		if kw == "" {
			continue
		}
		if strings.Contains(requestLower, kw) {
			result.Raw += e.config.KeywordWeight
			result.MatchedKeywords = append(result.MatchedKeywords, keyword)
		}
	}

	for _, skill := range descriptor.Skills {
		if skillMatches(requestLower, skill) {
			result.Raw += e.config.SkillWeight * skill.ConfidenceWeight
			result.MatchedSkills = append(result.MatchedSkills, skill.Name)
		}
	}

	return result
}

// Confidence derives the normalized confidence for a raw score, clamped
// into [0, 1]. Confidence is always derived this way; nothing assigns it
// directly.
func (e *ScoringEngine) Confidence(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	confidence := raw / e.config.Normalization
	if confidence > 1 {
		return 1
	}
	return confidence
}

// skillMatches reports whether any of the skill's own tags occurs in the
// lower-cased request text.
func skillMatches(requestLower string, skill Skill) bool {
	for _, tag := range skill.Tags {
		t := strings.ToLower(tag)
		if t == "" {
			continue
		}
		if strings.Contains(requestLower, t) {
			return true
		}
	}
	return false
}
