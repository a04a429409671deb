// Package graphql talks to the upstream LeetCode GraphQL endpoint using
// three fixed query documents.
package graphql

import (
	"fmt"

	"github.com/okian/leetstat/internal/domain/model"
)

// StatsQuery fetches solved counts per difficulty, the question catalog
// size and the global ranking.
const StatsQuery = `query userProblemsSolved($username: String!) {
  allQuestionsCount {
    difficulty
    count
  }
  matchedUser(username: $username) {
    profile {
      ranking
    }
    submitStats {
      acSubmissionNum {
        difficulty
        count
        submissions
      }
      totalSubmissionNum {
        difficulty
        count
        submissions
      }
    }
  }
}`

// CalendarQuery fetches the submission heatmap and daily-challenge badges.
// $year is declared but callers leave it unset, which yields the
// trailing-year calendar.
const CalendarQuery = `query userProfileCalendar($username: String!, $year: Int) {
  matchedUser(username: $username) {
    userCalendar(year: $year) {
      activeYears
      streak
      totalActiveDays
      dccBadges {
        timestamp
        badge {
          name
          icon
        }
      }
      submissionCalendar
    }
  }
}`

// ProfileQuery fetches the public profile card.
const ProfileQuery = `query userPublicProfile($username: String!) {
  matchedUser(username: $username) {
    contestBadge {
      name
      expired
      hoverText
      icon
    }
    username
    githubUrl
    twitterUrl
    linkedinUrl
    profile {
      ranking
      userAvatar
      realName
      aboutMe
      school
      websites
      countryName
      company
      jobTitle
      skillTags
    }
  }
}`

// Query is a document plus the operation it names.
type Query struct {
	Document      string
	OperationName string
}

var registry = map[model.Kind]Query{
	model.KindStats:    {Document: StatsQuery, OperationName: "userProblemsSolved"},
	model.KindCalendar: {Document: CalendarQuery, OperationName: "userProfileCalendar"},
	model.KindProfile:  {Document: ProfileQuery, OperationName: "userPublicProfile"},
}

// QueryFor returns the query registered for kind.
func QueryFor(kind model.Kind) (Query, error) {
	q, ok := registry[kind]
	if !ok {
		return Query{}, fmt.Errorf("no query for kind %q", kind)
	}
	return q, nil
}
