// Package parser decodes raw GraphQL envelopes into domain records.
//
// Every function is pure: no I/O, no shared state, and no panics escape.
// A structural failure (undecodable JSON or a missing required object) is
// reported as ok == false rather than an error.
package parser

import (
	"encoding/json"

	"github.com/okian/leetstat/internal/domain/model"
)

// Upstream difficulty labels.
const (
	difficultyEasy   = "Easy"
	difficultyMedium = "Medium"
	difficultyHard   = "Hard"
)

// ParseStats decodes a stats envelope. It requires
// data.matchedUser.submitStats; the catalog sizes come from the root-level
// data.allQuestionsCount.
func ParseStats(raw []byte) (*model.UserStats, bool) {
	var env envelope[statsData]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if env.Data == nil || env.Data.MatchedUser == nil || env.Data.MatchedUser.SubmitStats == nil {
		return nil, false
	}
	user := env.Data.MatchedUser

	solved := bucketize(user.SubmitStats.AcSubmissionNum)
	catalog := bucketize(env.Data.AllQuestionsCount)

	ranking := 0
	if prof := object[rankingDTO](user.Profile); prof != nil {
		ranking = intOr(prof.Ranking, 0)
	}

	return &model.UserStats{
		EasySolved:   solved[difficultyEasy],
		MediumSolved: solved[difficultyMedium],
		HardSolved:   solved[difficultyHard],
		EasyTotal:    catalog[difficultyEasy],
		MediumTotal:  catalog[difficultyMedium],
		HardTotal:    catalog[difficultyHard],
		Ranking:      &ranking,
	}, true
}

// bucketize maps Easy/Medium/Hard to their counts. Unknown difficulties are
// ignored and the last duplicate wins; unset buckets read as zero.
func bucketize(raw json.RawMessage) map[string]int {
	out := make(map[string]int, 3)
	for _, item := range objects[difficultyCount](raw) {
		label := optString(item.Difficulty)
		if label == nil {
			continue
		}
		switch *label {
		case difficultyEasy, difficultyMedium, difficultyHard:
			out[*label] = intOr(item.Count, 0)
		}
	}
	return out
}

// ParseCalendar decodes a calendar envelope. It requires
// data.matchedUser.userCalendar; badges missing a timestamp, name or icon
// are dropped individually, as are badges whose timestamp is not a number.
func ParseCalendar(raw []byte) (*model.UserCalendar, bool) {
	var env envelope[calendarData]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if env.Data == nil || env.Data.MatchedUser == nil || env.Data.MatchedUser.UserCalendar == nil {
		return nil, false
	}
	cal := env.Data.MatchedUser.UserCalendar

	dtos := objects[badgeDTO](cal.DCCBadges)
	badges := make([]model.Badge, 0, len(dtos))
	for _, b := range dtos {
		if b.Badge == nil {
			continue
		}
		name, icon := optString(b.Badge.Name), optString(b.Badge.Icon)
		ts, ok := intValue(b.Timestamp)
		if !ok || name == nil || icon == nil {
			continue
		}
		badges = append(badges, model.Badge{
			Name:      *name,
			Icon:      *icon,
			Timestamp: ts,
		})
	}

	return &model.UserCalendar{
		ActiveYears:        intList(cal.ActiveYears),
		Streak:             intOr(cal.Streak, 0),
		TotalActiveDays:    intOr(cal.TotalActiveDays, 0),
		SubmissionCalendar: stringOr(cal.SubmissionCalendar, model.EmptySubmissionCalendar),
		DCCBadges:          badges,
	}, true
}

// ParseProfile decodes a profile envelope. Only data.matchedUser is
// required; everything else falls back to empty values.
func ParseProfile(raw []byte) (*model.UserProfile, bool) {
	var env envelope[profileData]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if env.Data == nil || env.Data.MatchedUser == nil {
		return nil, false
	}
	user := env.Data.MatchedUser

	p := &model.UserProfile{
		Username:    stringOr(user.Username, ""),
		GithubURL:   optString(user.GithubURL),
		TwitterURL:  optString(user.TwitterURL),
		LinkedinURL: optString(user.LinkedinURL),
		Websites:    []string{},
		SkillTags:   []string{},
	}

	if prof := object[profileDTO](user.Profile); prof != nil {
		p.Avatar = optString(prof.UserAvatar)
		p.RealName = optString(prof.RealName)
		p.AboutMe = optString(prof.AboutMe)
		p.School = optString(prof.School)
		p.CountryName = optString(prof.CountryName)
		p.Company = optString(prof.Company)
		p.JobTitle = optString(prof.JobTitle)
		p.Ranking = intOr(prof.Ranking, 0)
		p.Websites = stringList(prof.Websites)
		p.SkillTags = stringList(prof.SkillTags)
	}

	if cb := object[contestBadgeDTO](user.ContestBadge); cb != nil {
		p.ContestBadge = &model.ContestBadge{
			Name:      stringOr(cb.Name, ""),
			Expired:   boolOr(cb.Expired, false),
			HoverText: stringOr(cb.HoverText, ""),
			Icon:      stringOr(cb.Icon, ""),
		}
	}

	return p, true
}

// ErrorMessages returns the messages of a GraphQL errors array, if any.
func ErrorMessages(raw []byte) []string {
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	out := make([]string, 0, len(env.Errors))
	for _, e := range env.Errors {
		if e.Message != "" {
			out = append(out, e.Message)
		}
	}
	return out
}
