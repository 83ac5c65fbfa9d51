// Package simulate runs the fake livestream audience: persona-driven chat
// messages, gifts, and greetings published as simulation events.
package simulate

import "time"

// EventType discriminates simulation events.
type EventType string

const (
	EventDanmaku  EventType = "danmaku"
	EventGift     EventType = "gift"
	EventGreeting EventType = "greeting"
)

// Event is one simulated viewer interaction, published on the
// simulation_event topic and fanned into conversation messages by the
// window facade.
type Event struct {
	Type        EventType `json:"type"`
	PersonaID   string    `json:"personaId"`
	Nickname    string    `json:"nickname"`
	Message     string    `json:"message,omitempty"`
	Personality string    `json:"personality,omitempty"`
	GiftName    string    `json:"giftName,omitempty"`
	GiftCount   int       `json:"giftCount,omitempty"`
	Timestamp   int64     `json:"timestamp"`
}

// frequencyToInterval maps a persona's interaction frequency to the random
// wait band between its events.
func frequencyToInterval(frequency string) (min, max time.Duration) {
	switch frequency {
	case "high":
		return 4 * time.Second, 8 * time.Second
	case "low":
		return 25 * time.Second, 60 * time.Second
	default: // medium
		return 10 * time.Second, 20 * time.Second
	}
}

// giftParams maps the gift frequency to per-send count and combo bands.
func giftParams(frequency string) (minCount, maxCount, minCombo, maxCombo int) {
	switch frequency {
	case "high":
		return 10, 20, 3, 5
	case "low":
		return 1, 1, 1, 1
	default: // medium
		return 2, 5, 1, 3
	}
}

var giftNames = []string{"🚀火箭", "🌹鲜花", "666"}

// danmakuTemplates returns the canned chat lines for a personality.
func danmakuTemplates(personality string) []string {
	switch personality {
	case "sunnyou_male":
		return []string{
			"这波操作可以啊!",
			"兄弟稳住,我看好你!",
			"哈哈哈笑死我了",
			"主播别怂,就是干!",
			"这游戏有点东西啊",
		}
	case "funny_female":
		return []string{
			"哈哈哈主播好搞笑~",
			"这是什么神仙操作!",
			"加油加油!你可以的!",
			"笑不活了哈哈哈",
			"主播太可爱了吧!",
		}
	case "kobe":
		return []string{
			"Mamba Mentality! Keep going!",
			"You got this! Focus!",
			"Great move! Championship level!",
			"Never give up!",
			"That's what I'm talking about!",
		}
	case "sweet_girl":
		return []string{
			"主播好厉害呀~",
			"加油加油💕",
			"好帅气的操作!",
			"主播最棒了!",
			"我会一直支持你的~",
		}
	case "trump":
		return []string{
			"This is TREMENDOUS!",
			"Nobody plays better than you!",
			"HUGE victory coming!",
			"You're doing a fantastic job!",
			"Make gaming great again!",
		}
	default:
		return []string{
			"666",
			"主播加油!",
			"这波可以",
			"nice!",
			"支持主播!",
		}
	}
}

// greeting returns the stream-open line for a personality.
func greeting(personality, nickname string) string {
	switch personality {
	case "sunnyou_male":
		return nickname + "来啦!兄弟们冲鸭!"
	case "funny_female":
		return nickname + "报到~今天也要开心鸭!"
	case "kobe":
		return "Mamba is here! Let's go!"
	case "sweet_girl":
		return nickname + "来咯~主播加油哦💕"
	case "trump":
		return "I'm here, and this stream will be HUGE!"
	default:
		return nickname + "来了~"
	}
}
