package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, from, to, subject, body string) error {
	m.sent = append(m.sent, from+"->"+to+":"+subject)
	return m.err
}

func TestCreateStoresAndMails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("u-1", TypeAssessmentApproved, "Approved", "Your review was approved").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT email FROM users").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("emp@example.com"))

	mailer := &recordingMailer{}
	svc := New(NewStore(mock), mailer, "hr@example.com")
	err = svc.Create(context.Background(), "u-1", TypeAssessmentApproved, "Approved", "Your review was approved")

	require.NoError(t, err)
	assert.Equal(t, []string{"hr@example.com->emp@example.com:Approved"}, mailer.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIgnoresMailFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("u-1", TypeMilestoneOverdue, "Overdue", "Self Evaluation is overdue").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT email FROM users").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("emp@example.com"))

	svc := New(NewStore(mock), &recordingMailer{err: errors.New("smtp down")}, "")
	err = svc.Create(context.Background(), "u-1", TypeMilestoneOverdue, "Overdue", "Self Evaluation is overdue")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifyRoleDeduplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id::text FROM users WHERE role").
		WithArgs("hr").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("hr-1").AddRow("hr-1").AddRow("hr-2"))
	for _, id := range []string{"hr-1", "hr-2"} {
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(id, TypeFormPendingApproval, "Form awaiting approval", "Annual Review").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	svc := New(NewStore(mock), nil, "")
	sent, err := svc.NotifyRole(context.Background(), "hr", TypeFormPendingApproval, "Form awaiting approval", "Annual Review")

	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
