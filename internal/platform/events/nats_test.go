package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "addris.extraction.completed", Subject("addris", "extraction.completed"))
	assert.Equal(t, "addris.route_computed", Subject("addris.", "route computed"))
	assert.Equal(t, "route.computed", Subject("", "route.computed"))
	assert.Equal(t, "a.b_c", Subject("a", "b*c"))
}

func TestNoopPublish(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), "x", map[string]int{"n": 1}))
}
