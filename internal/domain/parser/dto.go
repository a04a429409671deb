package parser

import "encoding/json"

// The DTOs below describe the upstream envelopes. Required objects are typed
// pointers; optional values stay raw and are converted field by field, so a
// missing or mistyped value falls back to its default alone.

type envelope[T any] struct {
	Data   *T             `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type difficultyCount struct {
	Difficulty json.RawMessage `json:"difficulty"`
	Count      json.RawMessage `json:"count"`
}

type rankingDTO struct {
	Ranking json.RawMessage `json:"ranking"`
}

// statsData mirrors the stats query. allQuestionsCount sits next to
// matchedUser at the root of data.
type statsData struct {
	AllQuestionsCount json.RawMessage `json:"allQuestionsCount"`
	MatchedUser       *struct {
		Profile     json.RawMessage `json:"profile"`
		SubmitStats *struct {
			AcSubmissionNum    json.RawMessage `json:"acSubmissionNum"`
			TotalSubmissionNum json.RawMessage `json:"totalSubmissionNum"`
		} `json:"submitStats"`
	} `json:"matchedUser"`
}

type badgeDTO struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Badge     *struct {
		Name json.RawMessage `json:"name"`
		Icon json.RawMessage `json:"icon"`
	} `json:"badge"`
}

type calendarData struct {
	MatchedUser *struct {
		UserCalendar *struct {
			ActiveYears        json.RawMessage `json:"activeYears"`
			Streak             json.RawMessage `json:"streak"`
			TotalActiveDays    json.RawMessage `json:"totalActiveDays"`
			SubmissionCalendar json.RawMessage `json:"submissionCalendar"`
			DCCBadges          json.RawMessage `json:"dccBadges"`
		} `json:"userCalendar"`
	} `json:"matchedUser"`
}

type contestBadgeDTO struct {
	Name      json.RawMessage `json:"name"`
	Expired   json.RawMessage `json:"expired"`
	HoverText json.RawMessage `json:"hoverText"`
	Icon      json.RawMessage `json:"icon"`
}

type profileDTO struct {
	Ranking     json.RawMessage `json:"ranking"`
	UserAvatar  json.RawMessage `json:"userAvatar"`
	RealName    json.RawMessage `json:"realName"`
	AboutMe     json.RawMessage `json:"aboutMe"`
	School      json.RawMessage `json:"school"`
	Websites    json.RawMessage `json:"websites"`
	CountryName json.RawMessage `json:"countryName"`
	Company     json.RawMessage `json:"company"`
	JobTitle    json.RawMessage `json:"jobTitle"`
	SkillTags   json.RawMessage `json:"skillTags"`
}

type profileData struct {
	MatchedUser *struct {
		Username     json.RawMessage `json:"username"`
		GithubURL    json.RawMessage `json:"githubUrl"`
		TwitterURL   json.RawMessage `json:"twitterUrl"`
		LinkedinURL  json.RawMessage `json:"linkedinUrl"`
		ContestBadge json.RawMessage `json:"contestBadge"`
		Profile      json.RawMessage `json:"profile"`
	} `json:"matchedUser"`
}
