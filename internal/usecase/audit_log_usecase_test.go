package usecase

import (
	"context"
	"testing"
	"time"

	"clinic-appointment-system/internal/delivery/dto"
	"clinic-appointment-system/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeAuditLogRepo struct {
	logs []entity.AuditLog
}

func (f *fakeAuditLogRepo) Create(db *gorm.DB, log *entity.AuditLog) error {
	log.ID = int64(len(f.logs) + 1)
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeAuditLogRepo) FindAll(db *gorm.DB, filter *entity.AuditLogFilter) ([]entity.AuditLog, int64, error) {
	var out []entity.AuditLog
	for _, l := range f.logs {
		if filter.UserID != nil && (l.UserID == nil || *l.UserID != *filter.UserID) {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		out = append(out, l)
	}
	return out, int64(len(out)), nil
}

func TestListAuditLogs(t *testing.T) {
	repo := &fakeAuditLogRepo{}
	adminID := uuid.New()
	otherID := uuid.New()
	for _, l := range []entity.AuditLog{
		{UserID: &adminID, Action: entity.AuditActionAppointmentBook, CreatedAt: time.Now()},
		{UserID: &adminID, Action: entity.AuditActionAppointmentCancel, CreatedAt: time.Now()},
		{UserID: &otherID, Action: entity.AuditActionAppointmentBook, CreatedAt: time.Now()},
	} {
		stored := l
		require.NoError(t, repo.Create(nil, &stored))
	}

	usecase := NewAuditLogUsecase(newTestDB(t), testLogger(), repo)

	list, total, err := usecase.List(context.Background(), &dto.ListAuditLogsRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 3)

	list, total, err = usecase.List(context.Background(), &dto.ListAuditLogsRequest{
		UserID: adminID.String(),
		Action: entity.AuditActionAppointmentBook,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, entity.AuditActionAppointmentBook, list[0].Action)
}

func TestListAuditLogs_BadUserIDFilter(t *testing.T) {
	usecase := NewAuditLogUsecase(newTestDB(t), testLogger(), &fakeAuditLogRepo{})

	_, _, err := usecase.List(context.Background(), &dto.ListAuditLogsRequest{UserID: "not-a-uuid"})

	assert.ErrorIs(t, err, ErrInvalidFilter)
}
