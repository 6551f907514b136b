package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/assessor/internal/model"
)

// MaxInputRunes bounds free text that is placed into a prompt.
const MaxInputRunes = 10000

// Templates holds the built-in prompt templates.
//
//go:embed templates/*.tmpl
var Templates embed.FS

var (
	topicTagRegex           = regexp.MustCompile(`(?i)</?\s*(topic|context)\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

var templateNames = []string{"generate", "grade", "remediate"}

// GenerationData holds template data for the question generation prompt.
type GenerationData struct {
	Grade        string
	Subject      string
	Difficulty   model.Difficulty
	QuestionType model.QuestionType
	MinQuestions int
	// Excerpt is the extracted document text. Empty for native document calls.
	Excerpt string
}

// GradeData holds template data for the grading prompt.
type GradeData struct {
	IsManual      bool
	Subject       string
	Grade         string
	Topic         string
	QuestionsJSON string
	AnswersJSON   string
}

// RemediationData holds template data for the remediation prompt.
type RemediationData struct {
	Topic     string
	TopicJSON string
	Context   string
}

// Load loads prompt templates from fsys, which must contain
// templates/{generate,grade,remediate}.tmpl. Only the first call has effect;
// builders call Load(Templates) when nothing was loaded before them.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		loaded := make(map[string]*template.Template, len(templateNames))
		for _, name := range templateNames {
			file := "templates/" + name + ".tmpl"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			loaded[name] = tmpl
		}
		templates = loaded
	})
	return loadErr
}

// BuildGenerationPrompt renders the question generation prompt. The caller
// bounds the excerpt.
func BuildGenerationPrompt(data GenerationData) (string, error) {
	data.Excerpt = strings.TrimSpace(data.Excerpt)
	return execute("generate", data)
}

// BuildGradePrompt renders the grading prompt for an assignment and the
// student's answers. Both are embedded as JSON.
func BuildGradePrompt(a model.Assignment, answers []model.StudentAnswer) (string, error) {
	questions, err := json.Marshal(a.Questions)
	if err != nil {
		return "", fmt.Errorf("encode questions: %w", err)
	}
	if answers == nil {
		answers = []model.StudentAnswer{}
	}
	ans, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return execute("grade", GradeData{
		IsManual:      a.IsManual,
		Subject:       a.Subject,
		Grade:         a.Grade,
		Topic:         strings.TrimSpace(a.Topic),
		QuestionsJSON: string(questions),
		AnswersJSON:   string(ans),
	})
}

// BuildRemediationPrompt renders the remediation prompt. Topic and context are
// user input and are sanitized before use.
func BuildRemediationPrompt(topic, context string) (string, error) {
	topic = Sanitize(topic)
	if topic == "" {
		return "", errors.New("empty topic")
	}
	topicJSON, err := json.Marshal(topic)
	if err != nil {
		return "", err
	}
	return execute("remediate", RemediationData{
		Topic:     topic,
		TopicJSON: string(topicJSON),
		Context:   Sanitize(context),
	})
}

func execute(name string, data any) (string, error) {
	if err := Load(Templates); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", errors.New("unknown prompt template: " + name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Sanitize strips pseudo-tags that could break out of the prompt structure
// and bounds the result to MaxInputRunes.
func Sanitize(s string) string {
	s = topicTagRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	return Truncate(strings.TrimSpace(s), MaxInputRunes)
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
