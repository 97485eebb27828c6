package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibleTiers(t *testing.T) {
	assert.Equal(t, []string{VisibilityEmployee}, VisibleTiers("employee"))
	assert.Equal(t, []string{VisibilityEmployee, VisibilityManager}, VisibleTiers("manager"))
	assert.Equal(t, []string{VisibilityEmployee, VisibilityManager, VisibilityAdmin}, VisibleTiers("admin"))
}

func TestVisibleTiersUnknownRole(t *testing.T) {
	// Unknown roles see the least privileged tier only.
	assert.Equal(t, []string{VisibilityEmployee}, VisibleTiers("intern"))
	assert.Equal(t, []string{VisibilityEmployee}, VisibleTiers(""))
}
