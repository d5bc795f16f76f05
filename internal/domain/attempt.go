package domain

import "time"

// AttemptStatus is the lifecycle state of an attempt.
type AttemptStatus string

const (
	StatusActive    AttemptStatus = "active"
	StatusCompleted AttemptStatus = "completed"
	StatusExpired   AttemptStatus = "expired"
	StatusAbandoned AttemptStatus = "abandoned"
)

// Terminal reports whether no further transitions are possible.
func (s AttemptStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusAbandoned
}

// ScoreFunc maps a question and a submitted choice (nil when unanswered) to points.
type ScoreFunc func(q Question, choice *int) int

// AnswerRecord is one append-only entry of an attempt, indexed by position.
type AnswerRecord struct {
	Position    int        `json:"position"`
	QuestionID  string     `json:"questionId"`
	Choice      *int       `json:"choice"`
	SubmittedAt *time.Time `json:"submittedAt"`
	Awarded     int        `json:"awarded"`
}

// Attempt is one user's run through a quiz. Questions and budgets are a snapshot
// taken at start, so catalog edits never reach an attempt in flight.
type Attempt struct {
	ID                   string         `json:"id"`
	QuizID               string         `json:"quizId"`
	UserID               string         `json:"userId"`
	Status               AttemptStatus  `json:"status"`
	Questions            []Question     `json:"questions"`
	TimeLimitSec         int            `json:"timeLimitSec"`
	QuestionTimeLimitSec int            `json:"questionTimeLimitSec,omitempty"`
	StartedAt            time.Time      `json:"startedAt"`
	Deadline             time.Time      `json:"deadline"`
	Answers              []AnswerRecord `json:"answers"`
	Score                int            `json:"score"`
	FinalizedAt          *time.Time     `json:"finalizedAt,omitempty"`
	ResultRecorded       bool           `json:"resultRecorded"`
	Version              int64          `json:"version"`
}

// NewAttempt snapshots quiz and questions into a fresh active attempt.
func NewAttempt(id, userID string, quiz Quiz, questions []Question, now time.Time) Attempt {
	budget := quiz.Budget(len(questions))
	snapshot := make([]Question, len(questions))
	copy(snapshot, questions)
	return Attempt{
		ID:                   id,
		QuizID:               quiz.ID,
		UserID:               userID,
		Status:               StatusActive,
		Questions:            snapshot,
		TimeLimitSec:         int(budget / time.Second),
		QuestionTimeLimitSec: quiz.QuestionTimeLimitSec,
		StartedAt:            now,
		Deadline:             now.Add(budget),
		Answers:              make([]AnswerRecord, 0, len(snapshot)),
	}
}

// Budget is the overall time the attempt was given.
func (a Attempt) Budget() time.Duration {
	return a.Deadline.Sub(a.StartedAt)
}

// NextPosition is the only position that may be answered next.
func (a Attempt) NextPosition() int {
	return len(a.Answers)
}

// Overdue reports whether now is strictly past the deadline.
func (a Attempt) Overdue(now time.Time) bool {
	return now.After(a.Deadline)
}

// Submit validates and records an answer for position. It does not handle expiry
// transitions; callers check Overdue first and finalize as Expired.
func (a *Attempt) Submit(position, choice int, now time.Time, score ScoreFunc) (AnswerRecord, error) {
	if a.Status != StatusActive {
		return AnswerRecord{}, NotActiveError(a.Status)
	}
	if a.Overdue(now) {
		return AnswerRecord{}, ErrAttemptExpired
	}
	next := a.NextPosition()
	if position != next {
		return AnswerRecord{}, OutOfOrderError(next, position)
	}
	question := a.Questions[position]
	if !question.ValidChoice(choice) {
		return AnswerRecord{}, InvalidChoiceError(choice, len(question.Choices))
	}

	c := choice
	at := now
	record := AnswerRecord{
		Position:    position,
		QuestionID:  question.ID,
		Choice:      &c,
		SubmittedAt: &at,
		Awarded:     score(question, &c),
	}
	a.Answers = append(a.Answers, record)
	a.recomputeScore()

	if len(a.Answers) == len(a.Questions) {
		if err := a.Finalize(StatusCompleted, now, score); err != nil {
			return AnswerRecord{}, err
		}
	}
	return record, nil
}

// Finalize moves an active attempt into a terminal status exactly once. Unanswered
// positions are recorded as null answers and the score is resummed from the records.
func (a *Attempt) Finalize(status AttemptStatus, now time.Time, score ScoreFunc) error {
	if a.Status != StatusActive {
		return NotActiveError(a.Status)
	}
	if !status.Terminal() {
		return NotActiveError(status)
	}
	for pos := len(a.Answers); pos < len(a.Questions); pos++ {
		q := a.Questions[pos]
		a.Answers = append(a.Answers, AnswerRecord{
			Position:   pos,
			QuestionID: q.ID,
			Awarded:    score(q, nil),
		})
	}
	a.recomputeScore()
	at := now
	a.Status = status
	a.FinalizedAt = &at
	return nil
}

func (a *Attempt) recomputeScore() {
	total := 0
	for _, r := range a.Answers {
		total += r.Awarded
	}
	a.Score = total
}

// Result projects a finalized attempt onto the leaderboard.
func (a Attempt) Result() AttemptResult {
	var elapsed time.Duration
	var finalizedAt time.Time
	if a.FinalizedAt != nil {
		finalizedAt = *a.FinalizedAt
		elapsed = finalizedAt.Sub(a.StartedAt)
	}
	if budget := a.Budget(); elapsed > budget {
		elapsed = budget
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return AttemptResult{
		AttemptID:        a.ID,
		QuizID:           a.QuizID,
		UserID:           a.UserID,
		Status:           a.Status,
		Score:            a.Score,
		CompletionMillis: elapsed.Milliseconds(),
		FinalizedAt:      finalizedAt,
	}
}

// View renders the attempt for its participant.
func (a Attempt) View() AttemptView {
	view := AttemptView{
		AttemptID:   a.ID,
		QuizID:      a.QuizID,
		UserID:      a.UserID,
		Status:      a.Status,
		Score:       a.Score,
		Answered:    a.answeredCount(),
		Total:       len(a.Questions),
		StartedAt:   a.StartedAt,
		Deadline:    a.Deadline,
		FinalizedAt: a.FinalizedAt,
	}
	if a.Status == StatusActive {
		view.Question = a.CurrentQuestion()
	}
	return view
}

// CurrentQuestion returns the next question to answer, or nil once all are answered.
func (a Attempt) CurrentQuestion() *QuestionView {
	pos := a.NextPosition()
	if pos >= len(a.Questions) {
		return nil
	}
	q := a.Questions[pos]
	choices := make([]string, len(q.Choices))
	copy(choices, q.Choices)
	return &QuestionView{
		Position:   pos,
		QuestionID: q.ID,
		Prompt:     q.Prompt,
		Choices:    choices,
		Points:     q.PointValue(),
		ExpiresAt:  a.questionExpiry(),
	}
}

// questionExpiry is advisory: the per-question window counted from the previous
// answer (or the start), never later than the overall deadline.
func (a Attempt) questionExpiry() time.Time {
	if a.QuestionTimeLimitSec <= 0 {
		return a.Deadline
	}
	from := a.StartedAt
	if n := len(a.Answers); n > 0 && a.Answers[n-1].SubmittedAt != nil {
		from = *a.Answers[n-1].SubmittedAt
	}
	exp := from.Add(time.Duration(a.QuestionTimeLimitSec) * time.Second)
	if exp.After(a.Deadline) {
		return a.Deadline
	}
	return exp
}

func (a Attempt) answeredCount() int {
	n := 0
	for _, r := range a.Answers {
		if r.Choice != nil {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no mutable storage with a.
func (a Attempt) Clone() Attempt {
	c := a
	c.Questions = make([]Question, len(a.Questions))
	for i, q := range a.Questions {
		q.Choices = append([]string(nil), q.Choices...)
		c.Questions[i] = q
	}
	c.Answers = make([]AnswerRecord, len(a.Answers))
	copy(c.Answers, a.Answers)
	if a.FinalizedAt != nil {
		at := *a.FinalizedAt
		c.FinalizedAt = &at
	}
	return c
}
