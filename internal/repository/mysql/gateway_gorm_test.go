package mysql

import (
	"errors"
	"fmt"
	"testing"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/repository"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "app:app@tcp(127.0.0.1:3306)/restaurant?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "translated", err: gorm.ErrDuplicatedKey, want: true},
		{name: "driver 1062", err: fmt.Errorf("create: %w", &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"}), want: true},
		{name: "other driver error", err: &mysqldriver.MySQLError{Number: 1146}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDuplicateKey(tt.err))
		})
	}
}

func TestApplyFilters_BuildsQuotedClauses(t *testing.T) {
	db := dryRunDB(t)
	var rows []domain.Order

	stmt := applyFilters(db.Model(&domain.Order{}), []repository.Filter{
		repository.Eq("status", domain.StatusReceived),
		repository.In("payment_reference", []string{"a", "b"}),
		{Column: "seen", Op: repository.OpNeq, Value: true},
	}).Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).Find(&rows).Statement

	sql := stmt.SQL.String()
	assert.Contains(t, sql, "FROM `orders`")
	assert.Contains(t, sql, "`status` = ?")
	assert.Contains(t, sql, "`payment_reference` IN (?,?)")
	assert.Contains(t, sql, "`seen` <> ?")
	assert.Contains(t, sql, "ORDER BY `created_at` DESC")
}
