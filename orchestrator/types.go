package orchestrator

import "fmt"

// Skill is one capability a registered agent advertises. Tags are the
// match surface: a skill is considered relevant to a request when any of
// its tags occurs in the request text.
type Skill struct {
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
	// ConfidenceWeight scales the skill's scoring contribution and is
	// expected in [0, 1]. A zero weight disables the skill's contribution;
	// use NewSkill when the default full weight is wanted.
	ConfidenceWeight float64 `json:"confidence_weight"`
}

// NewSkill builds a skill with full confidence weight.
func NewSkill(name string, tags ...string) Skill {
	return Skill{Name: name, Tags: tags, ConfidenceWeight: 1.0}
}

// CapabilityDescriptor describes one registered agent: identity, transport
// endpoint, and the skills and keywords the scoring engine matches against.
// The registry stores descriptors immutably; updating an agent means
// registering a replacement descriptor under the same ID.
type CapabilityDescriptor struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"name"`
	Endpoint    string            `json:"endpoint"`
	Skills      []Skill           `json:"skills,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy whose slices and map share no storage with the
// receiver.
func (d *CapabilityDescriptor) Clone() CapabilityDescriptor {
	out := CapabilityDescriptor{
		ID:          d.ID,
		DisplayName: d.DisplayName,
		Endpoint:    d.Endpoint,
	}
	if d.Skills != nil {
		out.Skills = make([]Skill, len(d.Skills))
		for i, s := range d.Skills {
			out.Skills[i] = Skill{
				Name:             s.Name,
				ConfidenceWeight: s.ConfidenceWeight,
			}
			if s.Tags != nil {
				out.Skills[i].Tags = append([]string(nil), s.Tags...)
			}
		}
	}
	if d.Keywords != nil {
		out.Keywords = append([]string(nil), d.Keywords...)
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// SkillNames returns the skill names in declaration order.
func (d *CapabilityDescriptor) SkillNames() []string {
	if len(d.Skills) == 0 {
		return nil
	}
	names := make([]string, len(d.Skills))
	for i, s := range d.Skills {
		names[i] = s.Name
	}
	return names
}

// AgentSummary is the external view of a registered agent used by the
// inventory surfaces.
type AgentSummary struct {
	AgentID     string   `json:"agent_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Endpoint    string   `json:"endpoint"`
	Skills      []Skill  `json:"skills,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Summarize builds the external view of a descriptor.
func Summarize(d CapabilityDescriptor) AgentSummary {
	return AgentSummary{
		AgentID:     d.ID,
		Name:        d.DisplayName,
		Description: d.Metadata["description"],
		Endpoint:    d.Endpoint,
		Skills:      d.Skills,
		Keywords:    d.Keywords,
	}
}

// Phase is the lifecycle phase of a single routing request.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAnalyzing
	PhaseRouted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseRouted:
		return "routed"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// RouterState is the request-local working state of one routing request.
// It is created per request and discarded once the RoutingResult is
// assembled; nothing in it is shared between requests.
type RouterState struct {
	Phase        Phase
	RequestText  string
	SelectedID   string
	SelectedName string
	AgentSkills  []string
	Confidence   float64
	Reasoning    string
	Response     string
	Err          *Error

	// AgentScores and MatchedSkills record the full scoring pass for
	// result metadata, keyed by agent ID.
	AgentScores   map[string]float64
	MatchedSkills map[string][]string
}

// transition moves the state to the next phase. The workflow is a straight
// line with one fork; any other move is a programming error and panics.
func (s *RouterState) transition(to Phase) {
	valid := false
	switch s.Phase {
	case PhaseIdle:
		valid = to == PhaseAnalyzing || to == PhaseFailed
	case PhaseAnalyzing:
		valid = to == PhaseRouted || to == PhaseFailed
	}
	if !valid {
		panic(fmt.Sprintf("orchestrator: invalid phase transition %s -> %s", s.Phase, to))
	}
	s.Phase = to
}

// RoutingMetadata carries the scoring detail of a routing decision.
type RoutingMetadata struct {
	RequestID     string              `json:"request_id"`
	AgentScores   map[string]float64  `json:"agent_scores,omitempty"`
	MatchedSkills map[string][]string `json:"matched_skills,omitempty"`
}

// RoutingResult is the final outcome of one routing request. Reasoning is
// always populated, for failures as well as successes.
type RoutingResult struct {
	Success           bool             `json:"success"`
	RequestText       string           `json:"request"`
	SelectedAgentID   string           `json:"selected_agent_id,omitempty"`
	SelectedAgentName string           `json:"selected_agent_name,omitempty"`
	AgentSkills       []string         `json:"agent_skills,omitempty"`
	Confidence        float64          `json:"confidence"`
	Reasoning         string           `json:"reasoning"`
	Response          string           `json:"response,omitempty"`
	Err               *Error           `json:"error,omitempty"`
	Metadata          *RoutingMetadata `json:"metadata,omitempty"`
}
