package leveling

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultLevelUpMessage is used when a guild has no custom message.
const DefaultLevelUpMessage = "Congratulations {{ username }}, you reached level {{ level }} in {{ guildName }}! Rewards: {{ earnedRewards }}"

var templateKey = regexp.MustCompile(`\{\{ (\w+?) \}\}`)

// LevelUpMessageData fills the placeholders of a level-up message.
type LevelUpMessageData struct {
	EarnedRewards []Reward
	GuildName     string
	Level         int64
	Username      string
}

func (d LevelUpMessageData) lookup(key string) (string, bool) {
	switch key {
	case "earnedRewards":
		if len(d.EarnedRewards) == 0 {
			return "None", true
		}
		mentions := make([]string, len(d.EarnedRewards))
		for i, r := range d.EarnedRewards {
			mentions[i] = "<@&" + r.RoleID + ">"
		}
		return strings.Join(mentions, ", "), true
	case "guildName":
		return d.GuildName, true
	case "level":
		return strconv.FormatInt(d.Level, 10), true
	case "username":
		return d.Username, true
	default:
		return "", false
	}
}

// RenderLevelUpMessage replaces "{{ key }}" placeholders. Unknown keys are
// rendered as "[unknown template key]" so operators can spot typos.
func RenderLevelUpMessage(content string, data LevelUpMessageData) string {
	return templateKey.ReplaceAllStringFunc(content, func(match string) string {
		key := templateKey.FindStringSubmatch(match)[1]
		if v, ok := data.lookup(key); ok {
			return v
		}
		return "[unknown template " + key + "]"
	})
}
