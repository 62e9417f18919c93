package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestRandString(t *testing.T) {
	a := assert.New(t)
	a.Len(RandString(12), 12)
	a.Len(RandString(1), 1)
	a.Equal("", RandString(0))
	for _, ch := range RandString(64) {
		a.Contains(letterBytes, string(ch))
	}
}

func TestIsErrDuplicate(t *testing.T) {
	a := assert.New(t)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "tickets_raffle_id_number_key"}
	ok, key := IsErrDuplicate(fmt.Errorf("insert: %w", dup))
	a.True(ok)
	a.Equal("tickets_raffle_id_number_key", key)

	ok, key = IsErrDuplicate(errors.New("connection reset"))
	a.False(ok)
	a.Equal("", key)

	fk := &pgconn.PgError{Code: "23503", ConstraintName: "tickets_purchase_id_fkey"}
	ok, _ = IsErrDuplicate(fk)
	a.False(ok, "foreign key violations are not duplicates")
	ok, key = IsForeignKeyErr(fk)
	a.True(ok)
	a.Equal("tickets_purchase_id_fkey", key)
}

func TestLogMessageMirrorsToStore(t *testing.T) {
	a := assert.New(t)
	client, mock := redismock.NewClientMock()
	LogStore = client
	defer func() { LogStore = nil }()

	mock.Regexp().ExpectLPush(logListKey, `.*\[error\] \[test-service\] \[trace-1\] something broke`).SetVal(1)
	mock.ExpectLTrim(logListKey, 0, logListMax-1).SetVal("OK")

	traceId := LogMessage(ERROR, "something broke", "test-service", "trace-1")
	a.Equal("trace-1", traceId)
	a.NoError(mock.ExpectationsWereMet())
}

func TestRecentLogsWithoutStore(t *testing.T) {
	LogStore = nil
	_, err := RecentLogs(10)
	assert.Error(t, err)
}
