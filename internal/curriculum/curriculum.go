// Package curriculum holds the fixed, ordered step tables that drive scripted lessons.
package curriculum

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedTopic = errors.New("unsupported topic")

const DefaultLearnerName = "estudiante"

type Step struct {
	Index  int
	Goal   string
	Prompt string
	// ExpectKeywords only enrich the grading prompt; they never gate progress.
	ExpectKeywords []string
}

// RenderPrompt fills the {name} placeholder, defaulting to DefaultLearnerName.
func (s Step) RenderPrompt(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultLearnerName
	}
	return strings.ReplaceAll(s.Prompt, "{name}", name)
}

// Curriculum is immutable after construction; lookups return copies.
type Curriculum struct {
	topic string
	steps []Step
}

func (c *Curriculum) Topic() string { return c.topic }

func (c *Curriculum) Len() int { return len(c.steps) }

func (c *Curriculum) StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(c.steps) {
		return Step{}, false
	}
	s := c.steps[i]
	s.ExpectKeywords = append([]string(nil), s.ExpectKeywords...)
	return s, true
}

func (c *Curriculum) IsFinal(i int) bool {
	return i == len(c.steps)-1
}

const TopicRestaurant = "restaurant"

var topics = map[string]*Curriculum{
	TopicRestaurant: {
		topic: TopicRestaurant,
		steps: []Step{
			{
				Index:          0,
				Goal:           "Saludar y pedir mesa",
				Prompt:         "Hola {name}, hoy practicaremos cómo pedir en un restaurante. Imagina que llegas y quieres una mesa. Dime: “Buenas tardes, ¿tienen una mesa para [número de personas]?”",
				ExpectKeywords: []string{"mesa", "personas", "buenas", "tardes"},
			},
			{
				Index:          1,
				Goal:           "Pedir bebida",
				Prompt:         "Perfecto. Ahora pide una bebida. Por ejemplo, “Me gustaría un agua sin gas, por favor” o “¿Tienen jugos naturales?”. Adelante.",
				ExpectKeywords: []string{"agua", "jugo", "bebida", "por favor"},
			},
			{
				Index:          2,
				Goal:           "Pedir plato principal y una recomendación",
				Prompt:         "Muy bien. Ahora pide el plato principal y pregunta por una recomendación del chef. Inténtalo.",
				ExpectKeywords: []string{"plato", "recomendación", "chef", "principal"},
			},
			{
				Index:          3,
				Goal:           "Pedir la cuenta",
				Prompt:         "Genial. Para terminar, pide la cuenta de forma cortés. Adelante.",
				ExpectKeywords: []string{"cuenta", "por favor", "gracias"},
			},
		},
	},
}

// NormalizeTopic trims and lower-cases a topic name.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

func ForTopic(topic string) (*Curriculum, error) {
	c, ok := topics[NormalizeTopic(topic)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTopic, topic)
	}
	return c, nil
}

// Topics lists the supported topic names.
func Topics() []string {
	out := make([]string, 0, len(topics))
	for k := range topics {
		out = append(out, k)
	}
	return out
}
