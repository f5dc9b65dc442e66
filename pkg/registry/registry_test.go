package registry_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donorflow/donorflow/pkg/actions/noop"
	"github.com/donorflow/donorflow/pkg/actions/tag"
	"github.com/donorflow/donorflow/pkg/mocks"
	"github.com/donorflow/donorflow/pkg/models"
	"github.com/donorflow/donorflow/pkg/registry"
)

func newTestRegistry() *registry.Registry {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	reg := registry.NewRegistry(logger)
	reg.RegisterAction(tag.NewAddFactory(&mocks.MockTagStore{}))
	reg.RegisterAction(noop.NewWaitFactory())

	return reg
}

func TestCreateActionUnknownKind(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()

	_, err := reg.CreateAction(models.ActionSendEmail, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestCreateActionValidatesSchema(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()

	_, err := reg.CreateAction(models.ActionAddTag, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config for ADD_TAG")

	action, err := reg.CreateAction(models.ActionAddTag, map[string]any{"tag_id": "vip"})
	require.NoError(t, err)
	assert.NotNil(t, action)
}

func TestValidateStepConfig(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()

	require.NoError(t, reg.ValidateStepConfig(models.ActionAddTag, map[string]any{"tag_id": "vip"}))
	require.NoError(t, reg.ValidateStepConfig(models.ActionWait, nil))

	err := reg.ValidateStepConfig(models.ActionAddTag, map[string]any{"tag_id": ""})
	require.Error(t, err)

	err = reg.ValidateStepConfig(models.ActionRemoveTag, map[string]any{"tag_id": "vip"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}
