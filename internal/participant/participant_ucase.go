package participant

import (
	"context"
	"strings"
	"time"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/infrastructure/uuid"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// kind used in not found errors
const kindParticipant domain.Kind = "participant"

// maxCodeAttempts codes are short, collisions are retried
const maxCodeAttempts = 3

// ParticipantUseCaseImpl ...
type ParticipantUseCaseImpl struct {
	ParticipantRepository ParticipantRepository
	CodeGenerator         uuid.Generator
	Validator             validate.Validator
	Logger                *zap.Logger
	Now                   func() time.Time
}

var _ ParticipantUseCase = &ParticipantUseCaseImpl{}

// NewParticipantUseCase ...
func NewParticipantUseCase(
	ParticipantRepository ParticipantRepository,
	CodeGenerator uuid.Generator,
	Validator validate.Validator,
	Logger *zap.Logger,
) *ParticipantUseCaseImpl {
	return &ParticipantUseCaseImpl{
		ParticipantRepository: ParticipantRepository,
		CodeGenerator:         CodeGenerator,
		Validator:             Validator,
		Logger:                Logger,
		Now:                   time.Now,
	}
}

// Enter look the code up and mark the participant active. The code is the
// only credential, nothing is verified beyond its existence.
func (pu *ParticipantUseCaseImpl) Enter(ctx context.Context, code string) (*Participant, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ParticipantUseCaseImpl.Enter", "service")
	defer apmSpan.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if errs := pu.Validator.Empty("code", code); len(errs) > 0 {
		return nil, &validate.ValidationError{Fields: errs}
	}
	p, err := pu.ParticipantRepository.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &domain.NotFoundError{Kind: kindParticipant, ID: code}
	}

	now := pu.Now()
	if err := pu.ParticipantRepository.TouchLastActive(ctx, code, now); err != nil {
		pu.Logger.Warn("failed to update last activity", zap.String("participant.id", code), zap.Error(err))
	} else {
		p.LastActiveAt = now
	}
	return p, nil
}

// Register create a participant under a fresh code
func (pu *ParticipantUseCaseImpl) Register(ctx context.Context, in *RegisterInput) (*Participant, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ParticipantUseCaseImpl.Register", "service")
	defer apmSpan.End()

	if err := validate.Check(pu.Validator, in); err != nil {
		return nil, err
	}
	now := pu.Now()
	p := &Participant{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Nickname:     strings.TrimSpace(in.Nickname),
		Age:          in.Age,
		Gender:       in.Gender,
		School:       in.School,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	for attempt := 1; ; attempt++ {
		code, err := pu.CodeGenerator.Generate()
		if err != nil {
			return nil, err
		}
		p.ID = code
		err = pu.ParticipantRepository.Save(ctx, p)
		if err == nil {
			return p, nil
		}
		if err != ErrDuplicatedParticipant || attempt == maxCodeAttempts {
			return nil, err
		}
	}
}
