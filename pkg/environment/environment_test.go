package environment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/accessgate/pkg/environment"
)

func TestParse(t *testing.T) {
	t.Parallel()

	assert.Equal(t, environment.Production, environment.Parse("prod"))
	assert.Equal(t, environment.Production, environment.Parse(" Production "))
	assert.Equal(t, environment.Staging, environment.Parse("stage"))
	assert.Equal(t, environment.Development, environment.Parse(""))
	assert.Equal(t, environment.Development, environment.Parse("qa"))
	assert.True(t, environment.Parse("prod").IsProduction())
	assert.False(t, environment.Staging.IsProduction())
}

func TestEndpoints_For(t *testing.T) {
	t.Parallel()

	e := environment.Endpoints{
		Development: "http://dev",
		Staging:     "http://staging",
		Production:  "http://prod",
	}

	assert.Equal(t, "http://prod", e.For(environment.Production))
	assert.Equal(t, "http://staging", e.For(environment.Staging))
	assert.Equal(t, "http://dev", e.For(environment.Development))

	e.Override = "http://override"
	assert.Equal(t, "http://override", e.For(environment.Production))
}
