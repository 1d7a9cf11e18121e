package participant

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/pot-code/course-catalog/internal/infrastructure/driver"
)

// ParticipantSQL ParticipantRepository over the participant table
type ParticipantSQL struct {
	Conn driver.ITransactionalDB
}

var _ ParticipantRepository = &ParticipantSQL{}

// NewParticipantRepository ...
func NewParticipantRepository(Conn driver.ITransactionalDB) *ParticipantSQL {
	return &ParticipantSQL{Conn}
}

// FindByCode query participant by access code
func (repo *ParticipantSQL) FindByCode(ctx context.Context, code string) (*Participant, error) {
	conn := repo.Conn
	row, err := conn.QueryContext(ctx, `SELECT id, first_name, last_name, nickname, age, gender, school, created_at, last_active_at
	FROM participant WHERE id=$1`, code)
	if err != nil {
		return nil, err
	}
	defer row.Close()

	if row.Next() {
		p := new(Participant)
		if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Nickname, &p.Age, &p.Gender, &p.School,
			&p.CreatedAt, &p.LastActiveAt); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, row.Err()
}

func (repo *ParticipantSQL) Save(ctx context.Context, p *Participant) error {
	_, err := repo.Conn.ExecContext(ctx, `INSERT INTO participant(id, first_name, last_name, nickname, age, gender, school,
	created_at, last_active_at)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.FirstName, p.LastName, p.Nickname, p.Age, p.Gender, p.School, p.CreatedAt, p.LastActiveAt)
	if isDuplicateKey(err) {
		return ErrDuplicatedParticipant
	}
	return err
}

func (repo *ParticipantSQL) TouchLastActive(ctx context.Context, code string, at time.Time) error {
	_, err := repo.Conn.ExecContext(ctx, `UPDATE participant
	SET last_active_at=$1
	WHERE id=$2`, at, code)
	return err
}

// isDuplicateKey unique violation on either driver
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
