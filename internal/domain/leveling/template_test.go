package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderLevelUpMessage(t *testing.T) {
	data := LevelUpMessageData{
		EarnedRewards: []Reward{{RoleID: "111"}, {RoleID: "222"}},
		GuildName:     "ChatSift",
		Level:         4,
		Username:      "<@42>",
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "all keys",
			template: "{{ username }} hit {{ level }} in {{ guildName }}: {{ earnedRewards }}",
			want:     "<@42> hit 4 in ChatSift: <@&111>, <@&222>",
		},
		{
			name:     "unknown key",
			template: "hi {{ nickname }}",
			want:     "hi [unknown template nickname]",
		},
		{
			name:     "spacing must match exactly",
			template: "{{level}} {{ level }}",
			want:     "{{level}} 4",
		},
		{
			name:     "no placeholders",
			template: "gg",
			want:     "gg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderLevelUpMessage(tt.template, data))
		})
	}
}

func TestRenderLevelUpMessage_NoRewards(t *testing.T) {
	got := RenderLevelUpMessage("{{ earnedRewards }}", LevelUpMessageData{})
	assert.Equal(t, "None", got)
}

