// Package fixtures builds upstream GraphQL envelopes for tests.
package fixtures

import (
	"encoding/json"
)

// Stats describes a stats envelope.
type Stats struct {
	EasySolved, MediumSolved, HardSolved int
	EasyTotal, MediumTotal, HardTotal    int
	Ranking                              int
}

// StatsEnvelope renders a stats response with the catalog at the root of data.
func StatsEnvelope(s Stats) []byte {
	return mustJSON(map[string]any{
		"data": map[string]any{
			"allQuestionsCount": []map[string]any{
				{"difficulty": "All", "count": s.EasyTotal + s.MediumTotal + s.HardTotal},
				{"difficulty": "Easy", "count": s.EasyTotal},
				{"difficulty": "Medium", "count": s.MediumTotal},
				{"difficulty": "Hard", "count": s.HardTotal},
			},
			"matchedUser": map[string]any{
				"profile": map[string]any{"ranking": s.Ranking},
				"submitStats": map[string]any{
					"acSubmissionNum": []map[string]any{
						{"difficulty": "All", "count": s.EasySolved + s.MediumSolved + s.HardSolved, "submissions": 0},
						{"difficulty": "Easy", "count": s.EasySolved, "submissions": 0},
						{"difficulty": "Medium", "count": s.MediumSolved, "submissions": 0},
						{"difficulty": "Hard", "count": s.HardSolved, "submissions": 0},
					},
					"totalSubmissionNum": []map[string]any{},
				},
			},
		},
	})
}

// Calendar describes a calendar envelope.
type Calendar struct {
	ActiveYears        []int
	Streak             int
	TotalActiveDays    int
	SubmissionCalendar string
	Badges             []Badge
}

// Badge is one dccBadges entry.
type Badge struct {
	Name, Icon string
	Timestamp  int64
}

// CalendarEnvelope renders a calendar response.
func CalendarEnvelope(c Calendar) []byte {
	badges := make([]map[string]any, 0, len(c.Badges))
	for _, b := range c.Badges {
		badges = append(badges, map[string]any{
			"timestamp": b.Timestamp,
			"badge":     map[string]any{"name": b.Name, "icon": b.Icon},
		})
	}
	years := c.ActiveYears
	if years == nil {
		years = []int{}
	}
	cal := c.SubmissionCalendar
	if cal == "" {
		cal = "{}"
	}
	return mustJSON(map[string]any{
		"data": map[string]any{
			"matchedUser": map[string]any{
				"userCalendar": map[string]any{
					"activeYears":        years,
					"streak":             c.Streak,
					"totalActiveDays":    c.TotalActiveDays,
					"submissionCalendar": cal,
					"dccBadges":          badges,
				},
			},
		},
	})
}

// ProfileEnvelope renders a minimal profile response.
func ProfileEnvelope(username, realName string, ranking int) []byte {
	return mustJSON(map[string]any{
		"data": map[string]any{
			"matchedUser": map[string]any{
				"username":    username,
				"githubUrl":   "https://github.com/" + username,
				"twitterUrl":  nil,
				"linkedinUrl": nil,
				"profile": map[string]any{
					"ranking":     ranking,
					"userAvatar":  "https://assets.leetcode.com/users/" + username + "/avatar.png",
					"realName":    realName,
					"aboutMe":     "",
					"school":      nil,
					"websites":    []string{},
					"countryName": "Canada",
					"company":     nil,
					"jobTitle":    nil,
					"skillTags":   []string{"go"},
				},
			},
		},
	})
}

// UserNotFound renders the upstream answer for an unknown username.
func UserNotFound() []byte {
	return []byte(`{"errors":[{"message":"That user does not exist.","locations":[{"line":3,"column":3}],"path":["matchedUser"]}],"data":{"matchedUser":null}}`)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
