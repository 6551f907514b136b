package model

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks struct tags on v.
func Validate(v any) error {
	return validatorInstance().Struct(v)
}

// Validate checks the struct tags plus the rule that the correct answer is
// one of the options.
func (q MCQ) Validate() error {
	if err := Validate(q); err != nil {
		return err
	}
	if !slices.Contains(q.Options, q.CorrectAnswer) {
		return fmt.Errorf("correct answer %q is not one of the options", q.CorrectAnswer)
	}
	return nil
}

// Validate checks every question of the set. An empty set is valid.
func (qs QuestionSet) Validate() error {
	var errs []error
	for i, q := range qs.MCQs {
		if err := q.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("mcqs[%d]: %w", i, err))
		}
	}
	for i, q := range qs.Subjective {
		if err := Validate(q); err != nil {
			errs = append(errs, fmt.Errorf("subjective[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Enforce empties the arrays that t does not allow.
func (qs QuestionSet) Enforce(t QuestionType) QuestionSet {
	out := QuestionSet{MCQs: []MCQ{}, Subjective: []SubjectiveQuestion{}}
	if t.AllowsMCQ() && qs.MCQs != nil {
		out.MCQs = qs.MCQs
	}
	if t.AllowsSubjective() && qs.Subjective != nil {
		out.Subjective = qs.Subjective
	}
	return out
}
