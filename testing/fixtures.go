// Package testing provides test utilities and database setup for testing the automation engine
package testing

import (
	"fmt"
	"math/rand"

	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAdmin creates an active operator account with the given password
func (tf *TestFixtures) CreateTestAdmin(username, password string) (*models.Admin, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.Admin{
		Username:     username,
		Email:        fmt.Sprintf("%s@example.com", username),
		PasswordHash: string(hashed),
		IsActive:     true,
	}
	if err := tf.DB.DB.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create test admin: %w", err)
	}

	return admin, nil
}

// CreateTestAccount creates an active ad account for the tenant
func (tf *TestFixtures) CreateTestAccount(tenantID uint) (*models.AdAccount, error) {
	account := &models.AdAccount{
		TenantID:   tenantID,
		ExternalID: fmt.Sprintf("act_%09d", rand.Intn(900000000)+100000000),
		Name:       "Test Account",
		Status:     models.EntityStatusActive,
		Currency:   "USD",
		Timezone:   "UTC",
	}
	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create test account: %w", err)
	}

	return account, nil
}

// CreateTestCampaign creates an active campaign under the account
func (tf *TestFixtures) CreateTestCampaign(account *models.AdAccount, dailyBudget *float64) (*models.AdCampaign, error) {
	campaign := &models.AdCampaign{
		TenantID:    account.TenantID,
		AccountID:   account.ID,
		ExternalID:  fmt.Sprintf("cmp_%09d", rand.Intn(900000000)+100000000),
		Name:        "Test Campaign",
		Status:      models.EntityStatusActive,
		Objective:   "conversions",
		DailyBudget: dailyBudget,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}

	return campaign, nil
}

// CreateTestAdSet creates an active ad set under the campaign
func (tf *TestFixtures) CreateTestAdSet(campaign *models.AdCampaign, dailyBudget *float64) (*models.AdSet, error) {
	adSet := &models.AdSet{
		TenantID:         campaign.TenantID,
		AccountID:        campaign.AccountID,
		CampaignID:       campaign.ID,
		ExternalID:       fmt.Sprintf("as_%09d", rand.Intn(900000000)+100000000),
		Name:             "Test Ad Set",
		Status:           models.EntityStatusActive,
		OptimizationGoal: "conversions",
		DailyBudget:      dailyBudget,
	}
	if err := tf.DB.DB.Create(adSet).Error; err != nil {
		return nil, fmt.Errorf("failed to create test ad set: %w", err)
	}

	return adSet, nil
}

// CreateTestAd creates an active ad under the ad set
func (tf *TestFixtures) CreateTestAd(adSet *models.AdSet) (*models.Ad, error) {
	ad := &models.Ad{
		TenantID:   adSet.TenantID,
		AccountID:  adSet.AccountID,
		CampaignID: adSet.CampaignID,
		AdSetID:    adSet.ID,
		ExternalID: fmt.Sprintf("ad_%09d", rand.Intn(900000000)+100000000),
		Name:       "Test Ad",
		Status:     models.EntityStatusActive,
		CreativeID: fmt.Sprintf("cr_%06d", rand.Intn(900000)+100000),
	}
	if err := tf.DB.DB.Create(ad).Error; err != nil {
		return nil, fmt.Errorf("failed to create test ad: %w", err)
	}

	return ad, nil
}

// CreateTestRule creates an active automation rule for the tenant
func (tf *TestFixtures) CreateTestRule(tenantID uint, scope models.ScopeKind, condition models.RuleCondition, action models.ActionSpec) (*models.AutomationRule, error) {
	rule := &models.AutomationRule{
		TenantID:  tenantID,
		Name:      "Test Rule",
		ScopeKind: scope,
		Condition: condition,
		Action:    action,
		IsActive:  true,
	}
	if err := tf.DB.DB.Create(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to create test rule: %w", err)
	}

	return rule, nil
}

// CreateSnapshots writes one metric snapshot per day for the entity, walking
// backwards from yesterday. Values apply to every day.
func (tf *TestFixtures) CreateSnapshots(entityType models.ScopeKind, entityID uint, days int, mutate func(day int, s *models.MetricSnapshot)) error {
	today := utils.UTCDate(utils.UTCNow())
	for day := 1; day <= days; day++ {
		snapshot := &models.MetricSnapshot{
			EntityType: entityType,
			EntityID:   entityID,
			Date:       today.AddDate(0, 0, -day),
		}
		if mutate != nil {
			mutate(day, snapshot)
		}
		if err := tf.DB.DB.Create(snapshot).Error; err != nil {
			return fmt.Errorf("failed to create test snapshot: %w", err)
		}
	}
	return nil
}
