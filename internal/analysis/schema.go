package analysis

import (
	"fmt"

	"github.com/spigell/resume-analyzer/internal/ai"

	"github.com/mitchellh/mapstructure"
	"google.golang.org/genai"
)

const (
	fieldHardSkills = "hard_skills"
	fieldSoftSkills = "soft_skills"
	fieldSkill      = "skill"
	fieldPresent    = "present"
)

func skillListSchema(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: description,
		Items:       &genai.Schema{Type: genai.TypeString},
	}
}

// taxonomySchema requests the two skill lists of a job description.
func taxonomySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			fieldHardSkills: skillListSchema("Technical, measurable skills required by the job. Atomic names."),
			fieldSoftSkills: skillListSchema("Interpersonal and behavioural skills required by the job. Atomic names."),
		},
		Required: []string{fieldHardSkills, fieldSoftSkills},
	}
}

func presenceListSchema(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: description,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				fieldSkill:   {Type: genai.TypeString, Description: "Skill name exactly as listed in the request."},
				fieldPresent: {Type: genai.TypeBoolean, Description: "True when the resume states or clearly implies the skill."},
			},
			Required: []string{fieldSkill, fieldPresent},
		},
	}
}

// matchSchema mirrors taxonomySchema with a presence flag per skill.
func matchSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			fieldHardSkills: presenceListSchema("One entry per listed hard skill, same order."),
			fieldSoftSkills: presenceListSchema("One entry per listed soft skill, same order."),
		},
		Required: []string{fieldHardSkills, fieldSoftSkills},
	}
}

type taxonomyPayload struct {
	Hard []string `mapstructure:"hard_skills"`
	Soft []string `mapstructure:"soft_skills"`
}

type presencePayload struct {
	Skill   string `mapstructure:"skill"`
	Present *bool  `mapstructure:"present"`
}

type matchPayload struct {
	Hard []presencePayload `mapstructure:"hard_skills"`
	Soft []presencePayload `mapstructure:"soft_skills"`
}

// decodeObject validates the top-level shape of a structured response and
// decodes it into target with strict typing. Violations become
// *ai.MalformedResponseError carrying the raw payload.
func decodeObject(op string, out *ai.Structured, required []string, target any) error {
	if out == nil {
		return &ai.MalformedResponseError{Op: op, Err: fmt.Errorf("empty structured response")}
	}

	obj, ok := out.Value.(map[string]any)
	if !ok {
		return &ai.MalformedResponseError{Op: op, Raw: out.Raw, Err: fmt.Errorf("expected JSON object, got %T", out.Value)}
	}

	for _, key := range required {
		value, ok := obj[key]
		if !ok {
			return &ai.MalformedResponseError{Op: op, Raw: out.Raw, Err: fmt.Errorf("missing required field %q", key)}
		}
		if value == nil {
			return &ai.MalformedResponseError{Op: op, Raw: out.Raw, Err: fmt.Errorf("required field %q is null", key)}
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("%s: build decoder: %w", op, err)
	}

	if err := decoder.Decode(obj); err != nil {
		return &ai.MalformedResponseError{Op: op, Raw: out.Raw, Err: fmt.Errorf("schema violation: %w", err)}
	}

	return nil
}
