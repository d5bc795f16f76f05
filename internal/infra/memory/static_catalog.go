package memory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quiz-attempt-service/internal/domain"
)

// CatalogFile is the YAML layout of a seed catalog.
type CatalogFile struct {
	Quizzes   []domain.Quiz     `yaml:"quizzes"`
	Questions []domain.Question `yaml:"questions"`
}

// ReadCatalogFile parses and validates a YAML catalog from path.
func ReadCatalogFile(path string) (CatalogFile, error) {
	var file CatalogFile
	data, err := os.ReadFile(path)
	if err != nil {
		return file, err
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := file.Validate(); err != nil {
		return file, fmt.Errorf("catalog %s: %w", path, err)
	}
	return file, nil
}

// Validate checks every question and that quizzes only reference questions in the file.
func (f CatalogFile) Validate() error {
	known := make(map[string]struct{}, len(f.Questions))
	for _, q := range f.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
		known[q.ID] = struct{}{}
	}
	for _, quiz := range f.Quizzes {
		if quiz.ID == "" {
			return fmt.Errorf("%w: quiz without id", domain.ErrInvalidCatalog)
		}
		for _, id := range quiz.QuestionIDs {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("%w: quiz %s references unknown question %s", domain.ErrInvalidCatalog, quiz.ID, id)
			}
		}
	}
	return nil
}

// StaticCatalog is a simple loader backed by in-memory maps (useful for tests/demos).
type StaticCatalog struct {
	quizzes   map[string]domain.Quiz
	questions map[string]domain.Question
}

func NewStaticCatalog(quizzes []domain.Quiz, questions []domain.Question) *StaticCatalog {
	c := &StaticCatalog{
		quizzes:   make(map[string]domain.Quiz, len(quizzes)),
		questions: make(map[string]domain.Question, len(questions)),
	}
	for _, q := range quizzes {
		c.quizzes[q.ID] = q
	}
	for _, q := range questions {
		c.questions[q.ID] = q
	}
	return c
}

// LoadStaticCatalog builds a StaticCatalog from a YAML file.
func LoadStaticCatalog(path string) (*StaticCatalog, error) {
	file, err := ReadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticCatalog(file.Quizzes, file.Questions), nil
}

func (c *StaticCatalog) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.quizzes[quizID]; ok {
		return quiz.WithDefaults(), nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (c *StaticCatalog) LoadQuestions(_ context.Context, ids []string) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := c.questions[id]
		if !ok {
			return nil, domain.ErrQuestionNotFound
		}
		out = append(out, q)
	}
	return out, nil
}
