package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukex/conveyor/pkg/models"
)

func TestSecretNames(t *testing.T) {
	wf := &models.Workflow{
		ID:   "ci",
		Name: "CI",
		Env:  map[string]string{"TOKEN": "${{ secrets.gh_token }}"},
		Jobs: []*models.Job{
			{
				ID: "deploy",
				If: "${{ vars.deploy == 'true' }}",
				Steps: []*models.Step{
					{
						Run: "deploy --key ${{ secrets.deploy_key }}",
						Env: map[string]string{"EXTRA": "${{ secrets.gh_token }}"},
					},
					{
						Uses: "http/request",
						With: map[string]any{"url": "https://x", "auth": "${{ secrets.api_token }}"},
					},
				},
			},
		},
	}

	assert.Equal(t, []string{"api_token", "deploy_key", "gh_token"}, SecretNames(wf))
}

func TestSecretNamesEmpty(t *testing.T) {
	wf := &models.Workflow{
		ID:   "ci",
		Name: "CI",
		Jobs: []*models.Job{
			{ID: "build", Steps: []*models.Step{{Run: "make"}}},
		},
	}

	assert.Empty(t, SecretNames(wf))
}
