// Package nlp provides rule-based intent detection over a fixed closed
// set of intents, plus basic entity extraction.
package nlp

import (
	"regexp"
	"strings"
)

// Intent labels. Detection only ever yields values from this set.
const (
	IntentGreeting  = "greeting"
	IntentQuestion  = "question"
	IntentRequest   = "request"
	IntentComplaint = "complaint"
	IntentThanks    = "thanks"
	IntentGoodbye   = "goodbye"
	IntentUnknown   = "unknown"
)

// Result holds the outcome of intent detection.
type Result struct {
	Primary    string
	All        []string
	Confidence float64
}

// Entities holds scalar values extracted from free text.
type Entities struct {
	Emails []string
	Phones []string
}

type intentPattern struct {
	intent   string
	patterns []*regexp.Regexp
}

// Detector matches message text against per-intent patterns. The zero
// value is not usable; construct with NewDetector.
type Detector struct {
	intents []intentPattern
}

// Ordered so that the first matching intent wins as primary.
var defaultPatterns = []struct {
	intent   string
	patterns []string
}{
	{IntentGreeting, []string{`\b(hello|hi|hey|good morning|good afternoon)\b`}},
	{IntentQuestion, []string{`\?`, `\b(what|how|when|where|why|who)\b`}},
	{IntentRequest, []string{`\b(please|can you|could you|would you)\b`}},
	{IntentComplaint, []string{`\b(problem|issue|error|bug|wrong)\b`}},
	{IntentThanks, []string{`\b(thank|thanks|appreciate)\b`}},
	{IntentGoodbye, []string{`\b(bye|goodbye|see you|farewell)\b`}},
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
)

// NewDetector creates a detector with the built-in intent patterns.
func NewDetector() *Detector {
	d := &Detector{}
	for _, p := range defaultPatterns {
		compiled := make([]*regexp.Regexp, 0, len(p.patterns))
		for _, expr := range p.patterns {
			compiled = append(compiled, regexp.MustCompile(expr))
		}
		d.intents = append(d.intents, intentPattern{intent: p.intent, patterns: compiled})
	}
	return d
}

// Detect classifies text. The first matching intent in pattern order
// becomes primary; confidence is 0.8 on any match and 0.1 otherwise,
// with IntentUnknown as the fallback primary.
func (d *Detector) Detect(text string) Result {
	lower := strings.ToLower(text)

	var detected []string
	for _, ip := range d.intents {
		for _, p := range ip.patterns {
			if p.MatchString(lower) {
				detected = append(detected, ip.intent)
				break
			}
		}
	}

	if len(detected) == 0 {
		return Result{Primary: IntentUnknown, All: nil, Confidence: 0.1}
	}
	return Result{Primary: detected[0], All: detected, Confidence: 0.8}
}

// Extract pulls email addresses and phone numbers out of text.
func (d *Detector) Extract(text string) Entities {
	return Entities{
		Emails: emailPattern.FindAllString(text, -1),
		Phones: phonePattern.FindAllString(text, -1),
	}
}
