package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(f float64) *float64 { return &f }

func TestValidatePricing(t *testing.T) {
	t.Run("free course needs no price", func(t *testing.T) {
		c := &Course{IsPaid: false}
		assert.NoError(t, c.ValidatePricing())
	})

	t.Run("paid course requires positive price", func(t *testing.T) {
		c := &Course{IsPaid: true, Price: 0}
		assert.ErrorIs(t, c.ValidatePricing(), ErrPaidCourseNeedsPrice)
	})

	t.Run("sale price must undercut regular price", func(t *testing.T) {
		c := &Course{IsPaid: true, Price: 100, SalePrice: floatPtr(100)}
		assert.ErrorIs(t, c.ValidatePricing(), ErrSalePriceTooHigh)
	})

	t.Run("valid paid course", func(t *testing.T) {
		c := &Course{IsPaid: true, Price: 100, SalePrice: floatPtr(80)}
		assert.NoError(t, c.ValidatePricing())
	})
}

func TestEffectivePrice(t *testing.T) {
	assert.Equal(t, 0.0, (&Course{IsPaid: false, Price: 50}).EffectivePrice())
	assert.Equal(t, 100.0, (&Course{IsPaid: true, Price: 100}).EffectivePrice())
	assert.Equal(t, 80.0, (&Course{IsPaid: true, Price: 100, SalePrice: floatPtr(80)}).EffectivePrice())
}
