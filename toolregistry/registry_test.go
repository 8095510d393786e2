package toolregistry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/toolregistry"
)

const paramSchema = `{
	"type": "object",
	"properties": {"amount": {"type": "number"}},
	"required": ["amount"]
}`

func TestRegisterAndGet(t *testing.T) {
	r := toolregistry.New()
	require.NoError(t, r.Register(toolregistry.ToolSpec{
		ID:          "refund",
		Name:        "refund",
		RiskTier:    domain.RiskLow,
		ParamSchema: []byte(paramSchema),
	}))

	spec, err := r.Get(context.Background(), "refund")
	require.NoError(t, err)
	assert.Equal(t, "refund", spec.ID)
	assert.Contains(t, r.List(), "refund")
}

func TestGetUnknownReturnsErrNotFound(t *testing.T) {
	r := toolregistry.New()
	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, toolregistry.ErrNotFound)
}

func TestRegisterRejectsEmptyID(t *testing.T) {
	r := toolregistry.New()
	err := r.Register(toolregistry.ToolSpec{Name: "x"})
	assert.Error(t, err)
}

func TestValidateAgainstCompiledSchema(t *testing.T) {
	r := toolregistry.New()
	require.NoError(t, r.Register(toolregistry.ToolSpec{
		ID:          "refund",
		ParamSchema: []byte(paramSchema),
	}))
	spec, err := r.Get(context.Background(), "refund")
	require.NoError(t, err)

	assert.NoError(t, spec.Validate([]byte(`{"amount": 10}`)))
	assert.Error(t, spec.Validate([]byte(`{"amount": "ten"}`)))
}

func TestValidateJSONStandalone(t *testing.T) {
	assert.NoError(t, toolregistry.ValidateJSON([]byte(paramSchema), []byte(`{"amount": 5}`)))
	assert.Error(t, toolregistry.ValidateJSON([]byte(paramSchema), []byte(`{}`)))
	assert.NoError(t, toolregistry.ValidateJSON(nil, []byte(`{"anything": true}`)), "no schema means anything passes")
}
