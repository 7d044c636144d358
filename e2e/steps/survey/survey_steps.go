package survey

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
	messages "github.com/cucumber/messages/go/v21"

	"welfare/internal/survey/models"
	"welfare/internal/survey/service"
	"welfare/internal/survey/store/memory"
	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	"welfare/pkg/requestcontext"
)

var clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// RegisterSteps registers survey step definitions. Each scenario gets a
// fresh service and store.
func RegisterSteps(ctx *godog.ScenarioContext) {
	steps := &surveySteps{}

	ctx.Before(func(c context.Context, _ *godog.Scenario) (context.Context, error) {
		return c, steps.reset()
	})

	// Authoring
	ctx.Step(`^a draft survey with questions:$`, steps.draftSurveyWithQuestions)
	ctx.Step(`^a published survey with questions:$`, steps.publishedSurveyWithQuestions)
	ctx.Step(`^the survey allows (\d+) attempts per participant$`, steps.allowAttempts)
	ctx.Step(`^back navigation is disabled$`, steps.disableBackNavigation)
	ctx.Step(`^the survey is published$`, steps.published)
	ctx.Step(`^I publish the survey$`, steps.publish)

	// Responses
	ctx.Step(`^participant "([^"]*)" starts a response$`, steps.startResponse)
	ctx.Step(`^participant "([^"]*)" tries to start a response$`, steps.tryStartResponse)
	ctx.Step(`^they answer "([^"]*)" repeat (\d+) with "([^"]*)"$`, steps.answerText)
	ctx.Step(`^they select "([^"]*)" for "([^"]*)"$`, steps.selectOption)
	ctx.Step(`^they move next$`, steps.next)
	ctx.Step(`^they move back$`, steps.previous)
	ctx.Step(`^they go to "([^"]*)" repeat (\d+)$`, steps.goTo)
	ctx.Step(`^they submit the response$`, steps.submit)

	// Assertions
	ctx.Step(`^the cursor is at "([^"]*)" repeat (\d+)$`, steps.cursorAt)
	ctx.Step(`^the cursor did not move$`, steps.cursorDidNotMove)
	ctx.Step(`^the next repeat of "([^"]*)" is (\d+)$`, steps.nextRepeatIs)
	ctx.Step(`^"([^"]*)" accepts more repeats: (yes|no)$`, steps.acceptsMoreRepeats)
	ctx.Step(`^the response is "([^"]*)"$`, steps.responseStatusIs)
	ctx.Step(`^the operation fails with code "([^"]*)"$`, steps.failsWithCode)
	ctx.Step(`^the error mentions "([^"]*)"$`, steps.errorMentions)
	ctx.Step(`^the error mentions question "([^"]*)"$`, steps.errorMentionsQuestion)
}

type surveySteps struct {
	svc        *service.Service
	ctx        context.Context
	surveyID   id.SurveyID
	questions  map[string]id.QuestionID
	responseID id.ResponseID
	policy     models.ParticipationPolicy
	specs      []questionRow
	last       service.Position
	err        error
}

type questionRow struct {
	key     string
	spec    models.QuestionSpec
	options []string
}

func (s *surveySteps) reset() error {
	svc, err := service.New(memory.New(), service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return err
	}
	*s = surveySteps{
		svc:       svc,
		ctx:       requestcontext.WithTime(context.Background(), clock),
		questions: map[string]id.QuestionID{},
		policy:    models.DefaultParticipationPolicy(),
	}
	return nil
}

func parseRepeat(raw string) (models.RepeatPolicy, error) {
	switch {
	case raw == "" || raw == "none":
		return models.NoRepeat(), nil
	case raw == "unbounded":
		return models.UnboundedRepeat(), nil
	case strings.HasPrefix(raw, "fixed:"):
		n, err := strconv.Atoi(strings.TrimPrefix(raw, "fixed:"))
		if err != nil {
			return models.RepeatPolicy{}, fmt.Errorf("bad repeat %q", raw)
		}
		return models.FixedRepeat(n)
	}
	return models.RepeatPolicy{}, fmt.Errorf("unknown repeat %q", raw)
}

// parseQuestions reads a table with columns key, kind, text, required,
// repeat and options (comma separated).
func parseQuestions(table *godog.Table) ([]questionRow, error) {
	if len(table.Rows) < 2 {
		return nil, fmt.Errorf("question table needs a header and at least one row")
	}
	header := map[string]int{}
	for i, c := range table.Rows[0].Cells {
		header[c.Value] = i
	}
	cell := func(row *messages.PickleTableRow, name string) string {
		if i, ok := header[name]; ok && i < len(row.Cells) {
			return strings.TrimSpace(row.Cells[i].Value)
		}
		return ""
	}

	var out []questionRow
	for order, row := range table.Rows[1:] {
		repeat, err := parseRepeat(cell(row, "repeat"))
		if err != nil {
			return nil, err
		}
		q := questionRow{
			key: cell(row, "key"),
			spec: models.QuestionSpec{
				Kind:         models.QuestionKind(cell(row, "kind")),
				Text:         cell(row, "text"),
				Order:        order + 1,
				Required:     cell(row, "required") == "yes",
				RepeatPolicy: repeat,
			},
		}
		if raw := cell(row, "options"); raw != "" {
			for _, o := range strings.Split(raw, ",") {
				q.options = append(q.options, strings.TrimSpace(o))
			}
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *surveySteps) draftSurveyWithQuestions(table *godog.Table) error {
	rows, err := parseQuestions(table)
	if err != nil {
		return err
	}
	s.specs = rows
	survey, err := s.svc.CreateSurvey(s.ctx, service.CreateSurveyCommand{Title: "Acceptance survey"})
	if err != nil {
		return err
	}
	s.surveyID = survey.ID()
	for _, row := range rows {
		questionID, err := s.svc.AddQuestion(s.ctx, s.surveyID, row.spec, row.options...)
		if err != nil {
			return fmt.Errorf("add question %s: %w", row.key, err)
		}
		s.questions[row.key] = questionID
	}
	return nil
}

func (s *surveySteps) publishedSurveyWithQuestions(table *godog.Table) error {
	if err := s.draftSurveyWithQuestions(table); err != nil {
		return err
	}
	return s.published()
}

func (s *surveySteps) updatePolicy(mutate func(*models.ParticipationPolicy)) error {
	mutate(&s.policy)
	_, err := s.svc.SetParticipationPolicy(s.ctx, s.surveyID, s.policy)
	return err
}

func (s *surveySteps) allowAttempts(n int) error {
	return s.updatePolicy(func(p *models.ParticipationPolicy) {
		p.MaxAttempts = n
		p.AllowMultipleSubmissions = n != 1
	})
}

func (s *surveySteps) disableBackNavigation() error {
	return s.updatePolicy(func(p *models.ParticipationPolicy) {
		p.AllowBackNavigation = false
	})
}

func (s *surveySteps) published() error {
	return s.svc.Publish(s.ctx, s.surveyID)
}

func (s *surveySteps) publish() error {
	s.err = s.svc.Publish(s.ctx, s.surveyID)
	return nil
}

func (s *surveySteps) startResponse(participant string) error {
	responseID, err := s.svc.StartResponse(s.ctx, service.StartResponseCommand{
		SurveyID:    s.surveyID,
		Participant: id.ParticipantRef(participant),
	})
	if err != nil {
		return err
	}
	s.responseID = responseID
	return nil
}

func (s *surveySteps) tryStartResponse(participant string) error {
	_, s.err = s.svc.StartResponse(s.ctx, service.StartResponseCommand{
		SurveyID:    s.surveyID,
		Participant: id.ParticipantRef(participant),
	})
	return nil
}

func (s *surveySteps) question(key string) (id.QuestionID, error) {
	questionID, ok := s.questions[key]
	if !ok {
		return id.QuestionID{}, fmt.Errorf("unknown question %q", key)
	}
	return questionID, nil
}

func (s *surveySteps) answerText(key string, repeat int, text string) error {
	questionID, err := s.question(key)
	if err != nil {
		return err
	}
	return s.svc.SetAnswer(s.ctx, service.AnswerCommand{
		SurveyID:    s.surveyID,
		ResponseID:  s.responseID,
		QuestionID:  questionID,
		RepeatIndex: repeat,
		Text:        &text,
	})
}

func (s *surveySteps) selectOption(option, key string) error {
	questionID, err := s.question(key)
	if err != nil {
		return err
	}
	survey, err := s.svc.GetSurvey(s.ctx, s.surveyID)
	if err != nil {
		return err
	}
	q, err := survey.Question(questionID)
	if err != nil {
		return err
	}
	for _, o := range q.Options() {
		if o.Text() == option {
			return s.svc.SelectOption(s.ctx, service.AnswerCommand{
				SurveyID:    s.surveyID,
				ResponseID:  s.responseID,
				QuestionID:  questionID,
				RepeatIndex: 1,
			}, o.ID())
		}
	}
	return fmt.Errorf("question %q has no option %q", key, option)
}

func (s *surveySteps) next() error {
	s.last, s.err = s.svc.NavigateNext(s.ctx, s.surveyID, s.responseID)
	return s.err
}

func (s *surveySteps) previous() error {
	s.last, s.err = s.svc.NavigatePrevious(s.ctx, s.surveyID, s.responseID)
	return nil
}

func (s *surveySteps) goTo(key string, repeat int) error {
	questionID, err := s.question(key)
	if err != nil {
		return err
	}
	s.last, s.err = s.svc.NavigateTo(s.ctx, s.surveyID, s.responseID, questionID, repeat)
	return nil
}

func (s *surveySteps) submit() error {
	s.err = s.svc.SubmitResponse(s.ctx, s.surveyID, s.responseID)
	return nil
}

func (s *surveySteps) response() (*models.Response, error) {
	return s.svc.GetResponse(s.ctx, s.surveyID, s.responseID)
}

func (s *surveySteps) cursorAt(key string, repeat int) error {
	questionID, err := s.question(key)
	if err != nil {
		return err
	}
	resp, err := s.response()
	if err != nil {
		return err
	}
	if resp.CurrentQuestionID() != questionID || resp.CurrentRepeatIndex() != repeat {
		return fmt.Errorf("expected cursor at %s repeat %d, got %s repeat %d",
			key, repeat, s.keyOf(resp.CurrentQuestionID()), resp.CurrentRepeatIndex())
	}
	return nil
}

func (s *surveySteps) keyOf(questionID id.QuestionID) string {
	for k, v := range s.questions {
		if v == questionID {
			return k
		}
	}
	return questionID.String()
}

func (s *surveySteps) cursorDidNotMove() error {
	if s.err != nil {
		return fmt.Errorf("navigation failed: %w", s.err)
	}
	if s.last.Moved {
		return fmt.Errorf("expected the cursor to stay, it moved to %s repeat %d", s.keyOf(s.last.QuestionID), s.last.RepeatIndex)
	}
	return nil
}

func (s *surveySteps) nextRepeatIs(key string, want int) error {
	questionID, err := s.question(key)
	if err != nil {
		return err
	}
	survey, err := s.svc.GetSurvey(s.ctx, s.surveyID)
	if err != nil {
		return err
	}
	q, err := survey.Question(questionID)
	if err != nil {
		return err
	}
	resp, err := survey.Response(s.responseID)
	if err != nil {
		return err
	}
	if got := resp.DetermineNextRepeatIndex(q); got != want {
		return fmt.Errorf("expected next repeat %d for %s, got %d", want, key, got)
	}
	return nil
}

func (s *surveySteps) acceptsMoreRepeats(key, answer string) error {
	questionID, err := s.question(key)
	if err != nil {
		return err
	}
	survey, err := s.svc.GetSurvey(s.ctx, s.surveyID)
	if err != nil {
		return err
	}
	q, err := survey.Question(questionID)
	if err != nil {
		return err
	}
	resp, err := survey.Response(s.responseID)
	if err != nil {
		return err
	}
	want := answer == "yes"
	if got := q.CanAddMoreRepeats(resp.AnsweredRepeatCount(questionID)); got != want {
		return fmt.Errorf("expected %s to accept more repeats: %v, got %v", key, want, got)
	}
	return nil
}

func (s *surveySteps) responseStatusIs(status string) error {
	if s.err != nil {
		return fmt.Errorf("last operation failed: %w", s.err)
	}
	resp, err := s.response()
	if err != nil {
		return err
	}
	if string(resp.Status()) != status {
		return fmt.Errorf("expected response %s, got %s", status, resp.Status())
	}
	return nil
}

func (s *surveySteps) failsWithCode(code string) error {
	if s.err == nil {
		return fmt.Errorf("expected the operation to fail with %s", code)
	}
	if got := dErrors.CodeOf(s.err); string(got) != code {
		return fmt.Errorf("expected code %s, got %s (%v)", code, got, s.err)
	}
	return nil
}

func (s *surveySteps) errorMentions(text string) error {
	if s.err == nil || !strings.Contains(s.err.Error(), text) {
		return fmt.Errorf("expected an error mentioning %q, got %v", text, s.err)
	}
	return nil
}

func (s *surveySteps) errorMentionsQuestion(key string) error {
	questionID, err := s.question(key)
	if err != nil {
		return err
	}
	return s.errorMentions(questionID.String())
}
