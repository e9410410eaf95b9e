package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conveyor/pkg/models"
)

func TestInterpolatePassThrough(t *testing.T) {
	out, err := Interpolate("plain text, no markers", NewContext())
	require.NoError(t, err)
	assert.Equal(t, "plain text, no markers", out)
}

func TestInterpolateSubstitutesRegions(t *testing.T) {
	ctx := NewContext().
		WithEnv(map[string]string{"BRANCH": "main"}).
		WithMatrix(map[string]any{"node": 20})

	out, err := Interpolate("deploy-${{ env.BRANCH }}-node${{ matrix.node }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "deploy-main-node20", out)
}

func TestInterpolateRevealsSecretsForRunner(t *testing.T) {
	ctx := NewContext().WithSecrets(map[string]models.Secret{
		"token": models.NewSecret("hunter2"),
	})

	out, err := Interpolate("Authorization: Bearer ${{ secrets.token }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Authorization: Bearer hunter2", out)
}

func TestInterpolateUnknownReferenceFails(t *testing.T) {
	_, err := Interpolate("v${{ needs.build.outputs.version }}", NewContext())
	require.Error(t, err)
	assert.True(t, IsUnknownReference(err))
}

func TestInterpolateUnterminatedRegion(t *testing.T) {
	_, err := Interpolate("broken ${{ env.CI", NewContext())
	require.Error(t, err)
}

func TestHasExpression(t *testing.T) {
	assert.True(t, HasExpression("${{ env.CI }}"))
	assert.False(t, HasExpression("echo hello"))
}
