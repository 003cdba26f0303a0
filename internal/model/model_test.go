package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrderStatus(t *testing.T) {
	for _, valid := range []string{"pending", "shipped", "cancelled"} {
		status, ok := ParseOrderStatus(valid)
		assert.True(t, ok, valid)
		assert.Equal(t, OrderStatus(valid), status)
	}

	for _, invalid := range []string{"", "delivered", "Pending", "canceled"} {
		_, ok := ParseOrderStatus(invalid)
		assert.False(t, ok, invalid)
	}
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleCustomer, ParseRole("customer"))
	assert.Equal(t, RoleCustomer, ParseRole(""))
	assert.Equal(t, RoleCustomer, ParseRole("superuser"))
}
