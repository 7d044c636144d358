package service

import (
	"context"
	"time"

	"welfare/internal/survey/models"
	id "welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
	"welfare/pkg/requestcontext"
)

// CreateSurveyCommand carries the fields of a new draft. A nil Policy uses
// models.DefaultParticipationPolicy.
type CreateSurveyCommand struct {
	Title       string
	Description string
	Policy      *models.ParticipationPolicy
	Anonymous   bool
	StartAt     *time.Time
	EndAt       *time.Time
}

// DetailsUpdate changes only the non-nil fields.
type DetailsUpdate struct {
	Title       *string
	Description *string
}

// QuestionUpdate changes only the non-nil fields.
type QuestionUpdate struct {
	Text         *string
	Order        *int
	Required     *bool
	RepeatPolicy *models.RepeatPolicy
}

// CreateSurvey stores a new draft survey.
func (s *Service) CreateSurvey(ctx context.Context, cmd CreateSurveyCommand) (*models.Survey, error) {
	ctx, span := s.startSpan(ctx, "CreateSurvey")
	defer span.End()
	defer s.observe("CreateSurvey", time.Now())

	now := requestcontext.Now(ctx)
	policy := models.DefaultParticipationPolicy()
	if cmd.Policy != nil {
		policy = *cmd.Policy
	}
	survey, err := models.NewSurvey(id.NewSurveyID(), cmd.Title, cmd.Description, policy, now)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if cmd.Anonymous {
		if err := survey.SetAnonymous(true, now); err != nil {
			return nil, s.fail(span, err)
		}
	}
	if cmd.StartAt != nil || cmd.EndAt != nil {
		if err := survey.SetSchedule(cmd.StartAt, cmd.EndAt, now); err != nil {
			return nil, s.fail(span, err)
		}
	}
	if err := s.store.Create(ctx, survey); err != nil {
		return nil, s.fail(span, translate(err))
	}
	s.logAudit(ctx, "survey_created", "survey_id", survey.ID())
	return survey, nil
}

// GetSurvey loads a survey by id.
func (s *Service) GetSurvey(ctx context.Context, surveyID id.SurveyID) (*models.Survey, error) {
	return s.load(ctx, "GetSurvey", surveyID)
}

func (s *Service) UpdateDetails(ctx context.Context, surveyID id.SurveyID, upd DetailsUpdate) (*models.Survey, error) {
	return s.mutate(ctx, "UpdateDetails", surveyID, func(survey *models.Survey, now time.Time) error {
		if upd.Title != nil {
			if err := survey.UpdateTitle(*upd.Title, now); err != nil {
				return err
			}
		}
		if upd.Description != nil {
			return survey.UpdateDescription(*upd.Description, now)
		}
		return nil
	})
}

func (s *Service) SetSchedule(ctx context.Context, surveyID id.SurveyID, startAt, endAt *time.Time) (*models.Survey, error) {
	return s.mutate(ctx, "SetSchedule", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.SetSchedule(startAt, endAt, now)
	})
}

func (s *Service) SetParticipationPolicy(ctx context.Context, surveyID id.SurveyID, policy models.ParticipationPolicy) (*models.Survey, error) {
	return s.mutate(ctx, "SetParticipationPolicy", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.SetParticipationPolicy(policy, now)
	})
}

// SetAudience restricts participation by demography. Empty criteria remove
// the restriction.
func (s *Service) SetAudience(ctx context.Context, surveyID id.SurveyID, criteria map[string][]string) (*models.Survey, error) {
	var filter *models.AudienceFilter
	if len(criteria) > 0 {
		f, err := models.NewAudienceFilter(criteria)
		if err != nil {
			return nil, err
		}
		filter = f
	}
	return s.mutate(ctx, "SetAudience", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.SetAudience(filter, now)
	})
}

// LinkCodes adds feature and capability codes. Codes already linked are ignored.
func (s *Service) LinkCodes(ctx context.Context, surveyID id.SurveyID, features, capabilities []string) (*models.Survey, error) {
	return s.mutate(ctx, "LinkCodes", surveyID, func(survey *models.Survey, now time.Time) error {
		for _, code := range features {
			if err := survey.AddFeature(code, now); err != nil {
				return err
			}
		}
		for _, code := range capabilities {
			if err := survey.AddCapability(code, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) UnlinkCodes(ctx context.Context, surveyID id.SurveyID, features, capabilities []string) (*models.Survey, error) {
	return s.mutate(ctx, "UnlinkCodes", surveyID, func(survey *models.Survey, now time.Time) error {
		for _, code := range features {
			if err := survey.RemoveFeature(code, now); err != nil {
				return err
			}
		}
		for _, code := range capabilities {
			if err := survey.RemoveCapability(code, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddQuestion appends a question with its initial options.
func (s *Service) AddQuestion(ctx context.Context, surveyID id.SurveyID, spec models.QuestionSpec, options ...string) (id.QuestionID, error) {
	var questionID id.QuestionID
	_, err := s.mutate(ctx, "AddQuestion", surveyID, func(survey *models.Survey, now time.Time) error {
		q, err := survey.AddQuestion(spec, now)
		if err != nil {
			return err
		}
		for i, text := range options {
			if _, err := survey.AddQuestionOption(q.ID(), text, i, now); err != nil {
				return err
			}
		}
		questionID = q.ID()
		return nil
	})
	if err != nil {
		return id.QuestionID{}, err
	}
	return questionID, nil
}

func (s *Service) UpdateQuestion(ctx context.Context, surveyID id.SurveyID, questionID id.QuestionID, upd QuestionUpdate) (*models.Survey, error) {
	return s.mutate(ctx, "UpdateQuestion", surveyID, func(survey *models.Survey, _ time.Time) error {
		q, err := survey.Question(questionID)
		if err != nil {
			return err
		}
		if upd.Text != nil {
			if err := q.UpdateText(*upd.Text); err != nil {
				return err
			}
		}
		if upd.Order != nil {
			if err := q.UpdateOrder(*upd.Order); err != nil {
				return err
			}
		}
		if upd.Required != nil {
			if err := q.SetRequired(*upd.Required); err != nil {
				return err
			}
		}
		if upd.RepeatPolicy != nil {
			return q.SetRepeatPolicy(*upd.RepeatPolicy)
		}
		return nil
	})
}

func (s *Service) RemoveQuestion(ctx context.Context, surveyID id.SurveyID, questionID id.QuestionID) error {
	_, err := s.mutate(ctx, "RemoveQuestion", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.RemoveQuestion(questionID, now)
	})
	return err
}

func (s *Service) AddQuestionOption(ctx context.Context, surveyID id.SurveyID, questionID id.QuestionID, text string, order int) (id.OptionID, error) {
	var optionID id.OptionID
	_, err := s.mutate(ctx, "AddQuestionOption", surveyID, func(survey *models.Survey, now time.Time) error {
		opt, err := survey.AddQuestionOption(questionID, text, order, now)
		if err != nil {
			return err
		}
		optionID = opt.ID()
		return nil
	})
	if err != nil {
		return id.OptionID{}, err
	}
	return optionID, nil
}

// SetOptionActive activates or deactivates an option. Inactive options stay
// on recorded answers but cannot be selected again.
func (s *Service) SetOptionActive(ctx context.Context, surveyID id.SurveyID, questionID id.QuestionID, optionID id.OptionID, active bool) error {
	_, err := s.mutate(ctx, "SetOptionActive", surveyID, func(survey *models.Survey, _ time.Time) error {
		q, err := survey.Question(questionID)
		if err != nil {
			return err
		}
		if active {
			return q.ActivateOption(optionID)
		}
		return q.DeactivateOption(optionID)
	})
	return err
}

func (s *Service) Publish(ctx context.Context, surveyID id.SurveyID) error {
	if _, err := s.mutate(ctx, "Publish", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.Publish(now)
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "survey_published", "survey_id", surveyID)
	return nil
}

func (s *Service) Complete(ctx context.Context, surveyID id.SurveyID) error {
	if _, err := s.mutate(ctx, "Complete", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.Complete(now)
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "survey_completed", "survey_id", surveyID)
	return nil
}

func (s *Service) Archive(ctx context.Context, surveyID id.SurveyID) error {
	if _, err := s.mutate(ctx, "Archive", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.Archive(now)
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "survey_archived", "survey_id", surveyID)
	return nil
}

// FreezeStructure locks questions and options and returns the new structure version.
func (s *Service) FreezeStructure(ctx context.Context, surveyID id.SurveyID) (int, error) {
	survey, err := s.mutate(ctx, "FreezeStructure", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.FreezeStructure(now)
	})
	if err != nil {
		return 0, err
	}
	s.logAudit(ctx, "survey_structure_frozen", "survey_id", surveyID, "structure_version", survey.StructureVersion())
	return survey.StructureVersion(), nil
}

func (s *Service) UnfreezeStructure(ctx context.Context, surveyID id.SurveyID) (int, error) {
	survey, err := s.mutate(ctx, "UnfreezeStructure", surveyID, func(survey *models.Survey, now time.Time) error {
		return survey.UnfreezeStructure(now)
	})
	if err != nil {
		return 0, err
	}
	s.logAudit(ctx, "survey_structure_unfrozen", "survey_id", surveyID, "structure_version", survey.StructureVersion())
	return survey.StructureVersion(), nil
}

// OptionTexts resolves option ids of one question to their current text.
func (s *Service) OptionTexts(ctx context.Context, surveyID id.SurveyID, questionID id.QuestionID, optionIDs []id.OptionID) (map[id.OptionID]string, error) {
	survey, err := s.load(ctx, "OptionTexts", surveyID)
	if err != nil {
		return nil, err
	}
	if len(optionIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one option id is required")
	}
	return survey.GetQuestionOptionTexts(questionID, optionIDs)
}
