package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIPIsDeterministic(t *testing.T) {
	first := AnonymizeIP("203.0.113.42", true)
	second := AnonymizeIP("203.0.113.42", true)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotEqual(t, "203.0.113.42", first)
}

func TestAnonymizeIPDistinctInputsDistinctDigests(t *testing.T) {
	assert.NotEqual(t, AnonymizeIP("203.0.113.42", true), AnonymizeIP("203.0.113.43", true))
}

func TestAnonymizeIPDisabledReturnsInput(t *testing.T) {
	assert.Equal(t, "203.0.113.42", AnonymizeIP("203.0.113.42", false))
}
