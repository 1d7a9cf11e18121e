package participant

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParticipant_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		p    Participant
		want string
	}{
		{"nickname wins", Participant{ID: "ABC123", Nickname: "Ace", FirstName: "Ada", LastName: "Lovelace"}, "Ace"},
		{"full name", Participant{ID: "ABC123", FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", Participant{ID: "ABC123", FirstName: "Ada"}, "Ada"},
		{"last only", Participant{ID: "ABC123", LastName: "Lovelace"}, "Lovelace"},
		{"blank nickname", Participant{ID: "ABC123", Nickname: "  ", LastName: "Lovelace"}, "Lovelace"},
		{"code", Participant{ID: "ABC123"}, "ABC123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.DisplayName())
		})
	}
}

type memoryRepo struct {
	byCode   map[string]*Participant
	touched  []string
	touchErr error
}

func (r *memoryRepo) FindByCode(ctx context.Context, code string) (*Participant, error) {
	p, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepo) Save(ctx context.Context, p *Participant) error {
	if _, ok := r.byCode[p.ID]; ok {
		return ErrDuplicatedParticipant
	}
	cp := *p
	r.byCode[p.ID] = &cp
	return nil
}

func (r *memoryRepo) TouchLastActive(ctx context.Context, code string, at time.Time) error {
	r.touched = append(r.touched, code)
	return r.touchErr
}

type listGenerator struct {
	codes []string
}

func (g *listGenerator) Generate() (string, error) {
	if len(g.codes) == 0 {
		return "", errors.New("exhausted")
	}
	code := g.codes[0]
	g.codes = g.codes[1:]
	return code, nil
}

var entered = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newUseCase(repo *memoryRepo, codes ...string) *ParticipantUseCaseImpl {
	uc := NewParticipantUseCase(repo, &listGenerator{codes: codes}, validate.NewValidator(), zap.NewNop())
	uc.Now = func() time.Time { return entered }
	return uc
}

func TestParticipantUseCase_Enter(t *testing.T) {
	repo := &memoryRepo{byCode: map[string]*Participant{"ABC123": {ID: "ABC123", FirstName: "Ada"}}}
	uc := newUseCase(repo)
	ctx := context.Background()

	p, err := uc.Enter(ctx, " abc123 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", p.ID)
	assert.Equal(t, entered, p.LastActiveAt)
	assert.Equal(t, []string{"ABC123"}, repo.touched)

	_, err = uc.Enter(ctx, "ZZZ999")
	assert.True(t, domain.IsNotFound(err))

	_, err = uc.Enter(ctx, "   ")
	var ve *validate.ValidationError
	assert.True(t, errors.As(err, &ve))

	repo.touchErr = errors.New("read only replica")
	p, err = uc.Enter(ctx, "ABC123")
	require.NoError(t, err, "activity tracking is best effort")
	assert.True(t, p.LastActiveAt.IsZero())
}

func TestParticipantUseCase_Register(t *testing.T) {
	repo := &memoryRepo{byCode: map[string]*Participant{"TAKEN1": {ID: "TAKEN1"}}}
	uc := newUseCase(repo, "TAKEN1", "FRESH2")

	p, err := uc.Register(context.Background(), &RegisterInput{FirstName: " Ada ", Age: 12})
	require.NoError(t, err)
	assert.Equal(t, "FRESH2", p.ID)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, entered, p.CreatedAt)
	assert.Contains(t, repo.byCode, "FRESH2")

	_, err = uc.Register(context.Background(), &RegisterInput{Age: 400})
	var ve *validate.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestParticipantUseCase_RegisterGivesUp(t *testing.T) {
	repo := &memoryRepo{byCode: map[string]*Participant{"A": {ID: "A"}}}
	uc := newUseCase(repo, "A", "A", "A", "B")

	_, err := uc.Register(context.Background(), &RegisterInput{Nickname: "x"})
	assert.Equal(t, ErrDuplicatedParticipant, err)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1045}))
	assert.True(t, isDuplicateKey(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isDuplicateKey(errors.New("boom")))
	assert.False(t, isDuplicateKey(nil))
}
