package domain

import (
	"encoding/json"
	"fmt"
)

// ToxicityAnalysis is the structured result produced by the contextual model
// for one piece of content. All scores are on a 0.0–1.0 scale.
type ToxicityAnalysis struct {
	Toxicity       float64 `json:"toxicity"`
	SevereToxicity float64 `json:"severe_toxicity"`
	Obscene        float64 `json:"obscene"`
	Threat         float64 `json:"threat"`
	Insult         float64 `json:"insult"`
	IdentityAttack float64 `json:"identity_attack"`
	SexualExplicit float64 `json:"sexual_explicit"`

	DecidingFragments  []string `json:"deciding_fragments"`
	AmbiguousFragments []string `json:"ambiguous_fragments,omitempty"`
	Justification      string   `json:"justification"`
}

// Validate checks that every score is within the 0.0–1.0 range.
func (a *ToxicityAnalysis) Validate() error {
	scores := map[string]float64{
		"toxicity":        a.Toxicity,
		"severe_toxicity": a.SevereToxicity,
		"obscene":         a.Obscene,
		"threat":          a.Threat,
		"insult":          a.Insult,
		"identity_attack": a.IdentityAttack,
		"sexual_explicit": a.SexualExplicit,
	}
	for name, v := range scores {
		if v < 0 || v > 1 {
			return fmt.Errorf("score %s out of range [0,1]: %f: %w", name, v, ErrInvalidBatch)
		}
	}
	return nil
}

// AnalysisSchema is the JSON schema the backend model must follow when
// producing a ToxicityAnalysis. Sent as response_json_schema on every request.
var AnalysisSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "toxicity": {"type": "number", "description": "General toxicity score (0-1). Is the comment rude, disrespectful, or unreasonable?"},
    "severe_toxicity": {"type": "number", "description": "Severe toxicity score (0-1). Very hateful, aggressive, or violent content."},
    "obscene": {"type": "number", "description": "Obscenity score (0-1). Profanity, vulgarity, or offensive language."},
    "threat": {"type": "number", "description": "Threat score (0-1). Suggestions of physical harm or violence."},
    "insult": {"type": "number", "description": "Insult score (0-1). Disrespectful or inflammatory language towards others."},
    "identity_attack": {"type": "number", "description": "Identity attack score (0-1). Attacks based on race, religion, sexual orientation, gender, or disability."},
    "sexual_explicit": {"type": "number", "description": "Sexually explicit score (0-1). References to sexual acts, body parts, or sexual content."},
    "deciding_fragments": {"type": "array", "items": {"type": "string"}, "description": "Text fragments that were decisive in classifying the text as toxic."},
    "ambiguous_fragments": {"type": "array", "items": {"type": "string"}, "description": "Fragments that were hard to classify, e.g. irony, sarcasm, or context-dependent slang."},
    "justification": {"type": "string", "description": "Reasoning for the classification decisions."}
  },
  "required": ["toxicity", "severe_toxicity", "obscene", "threat", "insult", "identity_attack", "sexual_explicit", "deciding_fragments", "justification"]
}`)
