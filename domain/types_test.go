package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goa-design/kernel/domain"
)

func TestRiskTierValid(t *testing.T) {
	assert.True(t, domain.RiskLow.Valid())
	assert.True(t, domain.RiskCritical.Valid())
	assert.False(t, domain.RiskTier(99).Valid())
}

func TestDataZoneCovers(t *testing.T) {
	assert.True(t, domain.ZoneRestricted.Covers(domain.ZoneConfidential))
	assert.False(t, domain.ZoneInternal.Covers(domain.ZoneRestricted))
	assert.True(t, domain.ZoneInternal.Covers(domain.ZoneUnspecified))
	assert.False(t, domain.ZoneUnspecified.Covers(domain.ZoneInternal))
}

func TestPermissionCovers(t *testing.T) {
	held := domain.Permission{Verb: "write", Resource: "data", Intent: "write", Zone: domain.ZoneConfidential}

	assert.True(t, held.Covers(domain.Permission{Verb: "write", Resource: "data"}))
	assert.True(t, held.Covers(domain.Permission{Verb: "write", Resource: "data", Intent: "write", Zone: domain.ZoneInternal}))
	assert.False(t, held.Covers(domain.Permission{Verb: "write", Resource: "data", Intent: "delete"}))
	assert.False(t, held.Covers(domain.Permission{Verb: "read", Resource: "data"}))
	assert.False(t, held.Covers(domain.Permission{Verb: "write", Resource: "data", Zone: domain.ZoneRestricted}))
}
