// Package model contains the domain records shared by the coordinator, the
// widget read path and the HTTP layer.
package model

import (
	"fmt"
	"time"
)

// Kind identifies one of the three upstream response shapes.
type Kind string

// Response kinds. The string values double as persisted namespace prefixes.
const (
	KindStats    Kind = "stats"
	KindCalendar Kind = "calendar"
	KindProfile  Kind = "profile"
)

// Kinds lists every kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindStats, KindCalendar, KindProfile}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindStats, KindCalendar, KindProfile:
		return true
	}
	return false
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}

// UserStats is an immutable snapshot of problem-solving counts.
// Totals are derived from the per-difficulty buckets and never stored.
type UserStats struct {
	EasySolved   int  `json:"easySolved"`
	MediumSolved int  `json:"mediumSolved"`
	HardSolved   int  `json:"hardSolved"`
	EasyTotal    int  `json:"easyTotal"`
	MediumTotal  int  `json:"mediumTotal"`
	HardTotal    int  `json:"hardTotal"`
	Ranking      *int `json:"ranking,omitempty"`
}

// TotalSolved is the sum of the solved buckets.
func (s UserStats) TotalSolved() int {
	return s.EasySolved + s.MediumSolved + s.HardSolved
}

// TotalProblems is the sum of the catalog buckets.
func (s UserStats) TotalProblems() int {
	return s.EasyTotal + s.MediumTotal + s.HardTotal
}

// Badge is a daily-coding-challenge award.
type Badge struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Timestamp int64  `json:"timestamp"`
}

// AwardedAt returns the award time.
func (b Badge) AwardedAt() time.Time {
	return time.Unix(b.Timestamp, 0).UTC()
}

// UserCalendar is a per-user activity summary. SubmissionCalendar keeps the
// upstream JSON object text mapping epoch-second strings to counts; use
// Contributions to decode it.
type UserCalendar struct {
	ActiveYears        []int   `json:"activeYears"`
	Streak             int     `json:"streak"`
	TotalActiveDays    int     `json:"totalActiveDays"`
	SubmissionCalendar string  `json:"submissionCalendar"`
	DCCBadges          []Badge `json:"dccBadges"`
}

// DailyContribution is one calendar day of activity.
type DailyContribution struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// ContestBadge is the optional contest badge shown on a profile.
type ContestBadge struct {
	Name      string `json:"name"`
	Expired   bool   `json:"expired"`
	HoverText string `json:"hoverText"`
	Icon      string `json:"icon"`
}

// UserProfile is the public profile of a user.
type UserProfile struct {
	Username     string        `json:"username"`
	GithubURL    *string       `json:"githubUrl,omitempty"`
	TwitterURL   *string       `json:"twitterUrl,omitempty"`
	LinkedinURL  *string       `json:"linkedinUrl,omitempty"`
	Avatar       *string       `json:"userAvatar,omitempty"`
	RealName     *string       `json:"realName,omitempty"`
	AboutMe      *string       `json:"aboutMe,omitempty"`
	School       *string       `json:"school,omitempty"`
	CountryName  *string       `json:"countryName,omitempty"`
	Company      *string       `json:"company,omitempty"`
	JobTitle     *string       `json:"jobTitle,omitempty"`
	Websites     []string      `json:"websites"`
	SkillTags    []string      `json:"skillTags"`
	Ranking      int           `json:"ranking"`
	ContestBadge *ContestBadge `json:"contestBadge,omitempty"`
}
