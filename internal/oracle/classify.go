package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/erazemk/odpadki/internal/model"
)

const classifyPrompt = `You are a lenient recycling assistant. Your goal is to encourage recycling whenever possible.

Analyze this image and classify it into one of these categories: "Recyclable", "E-Waste", or "Waste". Be generous in classification:
- If the item has ANY recyclable components (paper, cardboard, plastic, glass, metal), classify as "Recyclable"
- If it's any kind of electronics or contains electronic parts, classify as "E-Waste"
- Only classify as "Waste" if you're absolutely certain it cannot be recycled or contains hazardous materials

Provide your response in EXACTLY this format: "[Score] [Resale value] [Classification] [Disposal Instructions]". Include the square brackets in your answer.

Where:
- Score: A number 0-100 indicating recyclability (be generous, most items should score 50+)
- Resale value: Estimated value in dollars (0 if not resalable)
- Classification: ONLY use "Recyclable", "E-Waste", or "Waste"
- Disposal Instructions: 2-3 SPECIFIC, actionable steps for proper disposal

Here's what I see in the image: %s`

// Assessment is the structured result of classifying an item image.
type Assessment struct {
	Score        int
	ResaleValue  float64
	Class        model.Classification
	Instructions string
	// Malformed is set when the reply did not contain all four fields.
	Malformed bool
}

// Classifier asks a model to classify item images.
type Classifier struct {
	Model Model
}

// Classify sends the image and description to the model once and parses the reply.
// Only transport failures are returned; bad replies degrade to Waste with score 0.
func (c *Classifier) Classify(ctx context.Context, image []byte, mime, description string) (Assessment, error) {
	reply, err := c.Model.Generate(ctx, []Part{
		InlinePart(image, mime),
		TextPart(ClassifyPrompt(description)),
	})
	if err != nil {
		return Assessment{}, err
	}
	return ParseClassification(reply), nil
}

// ClassifyPrompt returns the classification prompt with the user description embedded.
func ClassifyPrompt(description string) string {
	return fmt.Sprintf(classifyPrompt, strings.TrimSpace(description))
}

var bracketToken = regexp.MustCompile(`\[(.*?)\]`)

// ParseClassification reads "[score] [resale] [class] [instructions]" positionally.
// It never fails: missing or unparseable fields take their zero defaults.
func ParseClassification(reply string) Assessment {
	var tokens []string
	for _, m := range bracketToken.FindAllStringSubmatch(reply, -1) {
		tokens = append(tokens, m[1])
	}

	c := Assessment{Class: model.ClassWaste, Malformed: len(tokens) < 4}

	if len(tokens) > 0 {
		c.Score = parseLeadingInt(tokens[0])
		if c.Score < 0 {
			c.Score = 0
		}
		if c.Score > 100 {
			c.Score = 100
		}
	}
	if len(tokens) > 1 {
		c.ResaleValue = parseLeadingFloat(tokens[1])
		if c.ResaleValue < 0 {
			c.ResaleValue = 0
		}
	}
	if len(tokens) > 2 {
		c.Class = model.NormalizeClassification(tokens[2])
	}
	if len(tokens) > 3 {
		c.Instructions = strings.TrimSpace(tokens[3])
	}

	return c
}

var (
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)`)
)

// parseLeadingInt parses the integer prefix of s ("85%" -> 85), or 0.
func parseLeadingInt(s string) int {
	m := leadingInt.FindString(strings.TrimSpace(s))
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// parseLeadingFloat parses the number prefix of s after an optional currency sign, or 0.
func parseLeadingFloat(s string) float64 {
	s = strings.TrimLeft(strings.TrimSpace(s), "$€£")
	m := leadingFloat.FindString(s)
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

// Err returns ErrMalformedReply for malformed assessments, for logging.
func (a Assessment) Err() error {
	if a.Malformed {
		return ErrMalformedReply
	}
	return nil
}
