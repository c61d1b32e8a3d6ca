// Package testutil 为仓储与服务测试提供内存数据库和固定数据
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/pkg/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 每个测试独立的内存 SQLite，单连接保证所有语句落在同一个库上
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func UintPtr(v uint) *uint { return &v }

// Fixture 一套最小的参考数据：一个测试、两道 Likert 题、一个候选人
type Fixture struct {
	Test       model.TestDefinition
	Candidate  model.Candidate
	Supervisor model.User
	Questions  []model.Question
	Domain     model.Domain
	Subdomains []model.Subdomain
}

var agreeScale = []model.QuestionOption{
	{ID: "sd", Label: "Strongly Disagree"},
	{ID: "d", Label: "Disagree"},
	{ID: "n", Label: "Neutral"},
	{ID: "a", Label: "Agree"},
	{ID: "sa", Label: "Strongly Agree"},
}

func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()

	f := &Fixture{
		Test:       model.TestDefinition{Name: "Leadership Inventory", DurationMinutes: 30},
		Domain:     model.Domain{Name: "Leadership"},
		Supervisor: model.User{Name: "Sam Supervisor", Email: "sam@example.com", Password: "x", Role: model.RoleSupervisor},
	}
	require.NoError(t, db.Create(&f.Test).Error)
	require.NoError(t, db.Create(&f.Domain).Error)
	require.NoError(t, db.Create(&f.Supervisor).Error)

	candidateUser := model.User{Name: "Casey Candidate", Email: "casey@example.com", Password: "x", Role: model.RoleCandidate}
	require.NoError(t, db.Create(&candidateUser).Error)
	f.Candidate = model.Candidate{UserID: &candidateUser.ID, Name: "Casey Candidate", Email: "casey@example.com", Organization: "Acme"}
	require.NoError(t, db.Create(&f.Candidate).Error)

	f.Subdomains = []model.Subdomain{
		{DomainID: f.Domain.ID, Name: "Decisiveness"},
		{DomainID: f.Domain.ID, Name: "Empathy"},
	}
	require.NoError(t, db.Create(&f.Subdomains).Error)

	f.Questions = []model.Question{
		{
			Text: "I make decisions quickly", QuestionType: model.QuestionLikert, IsLikert: true,
			LikertPoints: 5, Options: agreeScale,
			DomainID: &f.Domain.ID, SubdomainID: &f.Subdomains[0].ID,
		},
		{
			Text: "I ignore how others feel", QuestionType: model.QuestionLikert, IsLikert: true,
			IsReversed: true, LikertPoints: 5, Options: agreeScale,
			DomainID: &f.Domain.ID, SubdomainID: &f.Subdomains[1].ID,
		},
	}
	require.NoError(t, db.Create(&f.Questions).Error)

	for i, q := range f.Questions {
		require.NoError(t, db.Create(&model.TestQuestion{TestID: f.Test.ID, QuestionID: q.ID, Order: i}).Error)
	}
	return f
}

// Window 以 now 为中心的有效时间窗
func Window(now time.Time) (time.Time, time.Time) {
	return now.Add(-time.Hour), now.Add(time.Hour)
}
