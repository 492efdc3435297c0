package display

import (
	"testing"

	"eslive/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSelect_PriorityOrder(t *testing.T) {
	tests := []struct {
		name     string
		settings models.Settings
		want     State
	}{
		{
			name: "ad pre-empts a live stream with a custom link",
			settings: models.Settings{
				IsAdActive:     true,
				AdLink:         "https://ads.example/clip",
				IsStreamActive: true,
				StreamLink:     "https://stream.example/live",
			},
			want: AdActive,
		},
		{
			name: "ad flag without a link does not pre-empt",
			settings: models.Settings{
				IsAdActive:     true,
				AdLink:         "",
				IsStreamActive: true,
			},
			want: DefaultEmbed,
		},
		{
			name: "offline beats custom link",
			settings: models.Settings{
				IsStreamActive: false,
				StreamLink:     "https://stream.example/live",
			},
			want: StreamOffline,
		},
		{
			name: "custom link when live",
			settings: models.Settings{
				IsStreamActive: true,
				StreamLink:     "https://stream.example/live",
			},
			want: CustomLink,
		},
		{
			name: "default embed when live with no link",
			settings: models.Settings{
				IsStreamActive: true,
				StreamLink:     "",
			},
			want: DefaultEmbed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.settings))
		})
	}
}

func TestSelect_PureFunction(t *testing.T) {
	s := models.Settings{IsAdActive: true, AdLink: "x", IsStreamActive: false}
	first := Select(s)
	second := Select(s)
	assert.Equal(t, first, second)
	assert.Equal(t, AdActive, first)
}
