package parser_test

import (
	"testing"

	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/internal/domain/parser"
	"github.com/okian/leetstat/internal/domain/parser/fixtures"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseStats(t *testing.T) {
	Convey("Given a stats envelope", t, func() {
		Convey("When it is well formed", func() {
			raw := fixtures.StatsEnvelope(fixtures.Stats{
				EasySolved: 5, MediumSolved: 3, HardSolved: 1,
				EasyTotal: 10, MediumTotal: 10, HardTotal: 10,
				Ranking: 1234,
			})
			stats, ok := parser.ParseStats(raw)

			Convey("Then buckets, totals and ranking are read", func() {
				So(ok, ShouldBeTrue)
				So(stats.EasySolved, ShouldEqual, 5)
				So(stats.MediumSolved, ShouldEqual, 3)
				So(stats.HardSolved, ShouldEqual, 1)
				So(stats.TotalSolved(), ShouldEqual, 9)
				So(stats.TotalProblems(), ShouldEqual, 30)
				So(*stats.Ranking, ShouldEqual, 1234)
			})
		})

		Convey("When buckets are shuffled, duplicated and mixed with unknown labels", func() {
			raw := []byte(`{"data":{
				"allQuestionsCount":[{"difficulty":"Hard","count":7},{"difficulty":"Easy","count":1},{"difficulty":"Easy","count":4},{"difficulty":"Legendary","count":99}],
				"matchedUser":{"submitStats":{"acSubmissionNum":[
					{"difficulty":"Medium","count":2},{"difficulty":"All","count":100},{"difficulty":"Medium","count":6},{"difficulty":"Easy","count":3},{"count":50}
				]}}}}`)
			stats, ok := parser.ParseStats(raw)

			Convey("Then last duplicate wins, unknown labels are ignored and totals are sums", func() {
				So(ok, ShouldBeTrue)
				So(stats.EasySolved, ShouldEqual, 3)
				So(stats.MediumSolved, ShouldEqual, 6)
				So(stats.HardSolved, ShouldEqual, 0)
				So(stats.TotalSolved(), ShouldEqual, stats.EasySolved+stats.MediumSolved+stats.HardSolved)
				So(stats.EasyTotal, ShouldEqual, 4)
				So(stats.MediumTotal, ShouldEqual, 0)
				So(stats.HardTotal, ShouldEqual, 7)
				So(stats.TotalProblems(), ShouldEqual, 11)
			})

			Convey("And a missing ranking defaults to zero", func() {
				So(stats.Ranking, ShouldNotBeNil)
				So(*stats.Ranking, ShouldEqual, 0)
			})
		})

		Convey("When allQuestionsCount is only present under matchedUser", func() {
			raw := []byte(`{"data":{"matchedUser":{
				"allQuestionsCount":[{"difficulty":"Easy","count":10}],
				"submitStats":{"acSubmissionNum":[{"difficulty":"Easy","count":2}]}}}}`)
			stats, ok := parser.ParseStats(raw)

			Convey("Then the nested copy is not read", func() {
				So(ok, ShouldBeTrue)
				So(stats.EasyTotal, ShouldEqual, 0)
				So(stats.EasySolved, ShouldEqual, 2)
			})
		})

		Convey("When optional values carry unexpected types", func() {
			raw := []byte(`{"data":{
				"allQuestionsCount":"n/a",
				"matchedUser":{"profile":{"ranking":"12"},"submitStats":{"acSubmissionNum":[
					{"difficulty":"Easy","count":"3"},{"difficulty":"Medium","count":"lots"},{"difficulty":7,"count":1},"junk",
					{"difficulty":"Hard","count":2}
				]}}}}`)
			stats, ok := parser.ParseStats(raw)

			Convey("Then the parse succeeds and only the bad values default", func() {
				So(ok, ShouldBeTrue)
				So(stats.EasySolved, ShouldEqual, 3)
				So(stats.MediumSolved, ShouldEqual, 0)
				So(stats.HardSolved, ShouldEqual, 2)
				So(stats.TotalProblems(), ShouldEqual, 0)
				So(*stats.Ranking, ShouldEqual, 12)
			})
		})

		Convey("When the ranking is not a number", func() {
			raw := []byte(`{"data":{"matchedUser":{"profile":{"ranking":"top"},"submitStats":{}}}}`)
			stats, ok := parser.ParseStats(raw)

			Convey("Then it defaults to zero", func() {
				So(ok, ShouldBeTrue)
				So(*stats.Ranking, ShouldEqual, 0)
			})
		})

		Convey("When required objects are missing", func() {
			for _, raw := range []string{
				`{}`,
				`{"data":null}`,
				`{"data":{"matchedUser":null}}`,
				`{"data":{"matchedUser":{"profile":{"ranking":1}}}}`,
				`not json`,
			} {
				_, ok := parser.ParseStats([]byte(raw))
				So(ok, ShouldBeFalse)
			}
		})
	})
}

func TestParseCalendar(t *testing.T) {
	Convey("Given a calendar envelope", t, func() {
		Convey("When it is well formed", func() {
			raw := fixtures.CalendarEnvelope(fixtures.Calendar{
				ActiveYears:        []int{2022, 2023},
				Streak:             4,
				TotalActiveDays:    20,
				SubmissionCalendar: `{"1700000000":2}`,
				Badges:             []fixtures.Badge{{Name: "Nov LeetCoding Challenge", Icon: "/static/nov.png", Timestamp: 1700000000}},
			})
			cal, ok := parser.ParseCalendar(raw)

			Convey("Then every field is read", func() {
				So(ok, ShouldBeTrue)
				So(cal.ActiveYears, ShouldResemble, []int{2022, 2023})
				So(cal.Streak, ShouldEqual, 4)
				So(cal.TotalActiveDays, ShouldEqual, 20)
				So(cal.SubmissionCalendar, ShouldEqual, `{"1700000000":2}`)
				So(cal.DCCBadges, ShouldHaveLength, 1)
				So(cal.DCCBadges[0].Timestamp, ShouldEqual, int64(1700000000))
				So(cal.Contributions(), ShouldHaveLength, 1)
			})
		})

		Convey("When one badge lacks its icon", func() {
			raw := []byte(`{"data":{"matchedUser":{"userCalendar":{"dccBadges":[
				{"timestamp":1700000000,"badge":{"name":"Good","icon":"/good.png"}},
				{"timestamp":1700000001,"badge":{"name":"Broken"}}
			]}}}}`)
			cal, ok := parser.ParseCalendar(raw)

			Convey("Then exactly one badge survives", func() {
				So(ok, ShouldBeTrue)
				So(cal.DCCBadges, ShouldHaveLength, 1)
				So(cal.DCCBadges[0].Name, ShouldEqual, "Good")
			})
		})

		Convey("When badges lack a timestamp or the badge object, or use a string timestamp", func() {
			raw := []byte(`{"data":{"matchedUser":{"userCalendar":{"dccBadges":[
				{"badge":{"name":"NoTS","icon":"/a.png"}},
				{"timestamp":1700000000},
				{"timestamp":"1700000002","badge":{"name":"Quoted","icon":"/q.png"}}
			]}}}}`)
			cal, ok := parser.ParseCalendar(raw)

			Convey("Then only complete entries are kept", func() {
				So(ok, ShouldBeTrue)
				So(cal.DCCBadges, ShouldHaveLength, 1)
				So(cal.DCCBadges[0].Name, ShouldEqual, "Quoted")
				So(cal.DCCBadges[0].Timestamp, ShouldEqual, int64(1700000002))
			})
		})

		Convey("When a badge carries a timestamp that is not a number", func() {
			raw := []byte(`{"data":{"matchedUser":{"userCalendar":{"streak":3,"dccBadges":[
				{"timestamp":1700000000,"badge":{"name":"Good","icon":"/good.png"}},
				{"timestamp":"soon","badge":{"name":"Later","icon":"/later.png"}},
				{"timestamp":{"at":1},"badge":{"name":"Nested","icon":"/n.png"}},
				"not a badge"
			]}}}}`)
			cal, ok := parser.ParseCalendar(raw)

			Convey("Then only that badge is dropped and the calendar survives", func() {
				So(ok, ShouldBeTrue)
				So(cal.Streak, ShouldEqual, 3)
				So(cal.DCCBadges, ShouldHaveLength, 1)
				So(cal.DCCBadges[0].Name, ShouldEqual, "Good")
			})
		})

		Convey("When optional fields carry unexpected types", func() {
			raw := []byte(`{"data":{"matchedUser":{"userCalendar":{
				"activeYears":[2022,"2023","last year",null],
				"streak":"4",
				"totalActiveDays":"many",
				"submissionCalendar":{"1700000000":2},
				"dccBadges":"none"
			}}}}`)
			cal, ok := parser.ParseCalendar(raw)

			Convey("Then each field falls back on its own", func() {
				So(ok, ShouldBeTrue)
				So(cal.ActiveYears, ShouldResemble, []int{2022, 2023})
				So(cal.Streak, ShouldEqual, 4)
				So(cal.TotalActiveDays, ShouldEqual, 0)
				So(cal.SubmissionCalendar, ShouldEqual, model.EmptySubmissionCalendar)
				So(cal.DCCBadges, ShouldBeEmpty)
			})
		})

		Convey("When optional fields are missing", func() {
			cal, ok := parser.ParseCalendar([]byte(`{"data":{"matchedUser":{"userCalendar":{}}}}`))

			Convey("Then defaults apply", func() {
				So(ok, ShouldBeTrue)
				So(cal.ActiveYears, ShouldBeEmpty)
				So(cal.ActiveYears, ShouldNotBeNil)
				So(cal.Streak, ShouldEqual, 0)
				So(cal.TotalActiveDays, ShouldEqual, 0)
				So(cal.SubmissionCalendar, ShouldEqual, model.EmptySubmissionCalendar)
				So(cal.DCCBadges, ShouldBeEmpty)
			})
		})

		Convey("When userCalendar is missing", func() {
			_, ok := parser.ParseCalendar([]byte(`{"data":{"matchedUser":{}}}`))
			So(ok, ShouldBeFalse)
			_, ok = parser.ParseCalendar(fixtures.UserNotFound())
			So(ok, ShouldBeFalse)
		})
	})
}

func TestParseProfile(t *testing.T) {
	Convey("Given a profile envelope", t, func() {
		Convey("When it is well formed", func() {
			p, ok := parser.ParseProfile(fixtures.ProfileEnvelope("alice", "Alice A.", 42))

			Convey("Then top-level and nested fields are read", func() {
				So(ok, ShouldBeTrue)
				So(p.Username, ShouldEqual, "alice")
				So(*p.GithubURL, ShouldEqual, "https://github.com/alice")
				So(p.TwitterURL, ShouldBeNil)
				So(*p.RealName, ShouldEqual, "Alice A.")
				So(p.School, ShouldBeNil)
				So(*p.CountryName, ShouldEqual, "Canada")
				So(p.Ranking, ShouldEqual, 42)
				So(p.SkillTags, ShouldResemble, []string{"go"})
				So(p.Websites, ShouldBeEmpty)
				So(p.ContestBadge, ShouldBeNil)
			})
		})

		Convey("When most fields are missing", func() {
			p, ok := parser.ParseProfile([]byte(`{"data":{"matchedUser":{}}}`))

			Convey("Then the parse still succeeds with defaults", func() {
				So(ok, ShouldBeTrue)
				So(p.Username, ShouldEqual, "")
				So(p.Ranking, ShouldEqual, 0)
				So(p.Websites, ShouldNotBeNil)
				So(p.SkillTags, ShouldNotBeNil)
			})
		})

		Convey("When a contest badge is partially filled", func() {
			p, ok := parser.ParseProfile([]byte(`{"data":{"matchedUser":{"username":"bob","contestBadge":{"name":"Knight"}}}}`))

			Convey("Then the badge is kept with empty defaults", func() {
				So(ok, ShouldBeTrue)
				So(p.ContestBadge, ShouldNotBeNil)
				So(p.ContestBadge.Name, ShouldEqual, "Knight")
				So(p.ContestBadge.Expired, ShouldBeFalse)
				So(p.ContestBadge.HoverText, ShouldEqual, "")
				So(p.ContestBadge.Icon, ShouldEqual, "")
			})
		})

		Convey("When optional fields carry unexpected types", func() {
			raw := []byte(`{"data":{"matchedUser":{
				"username":"carol",
				"githubUrl":42,
				"contestBadge":"Guardian",
				"profile":{"ranking":"7","realName":["Carol"],"skillTags":["go",3,"sql"],"websites":"https://carol.dev"}
			}}}`)
			p, ok := parser.ParseProfile(raw)

			Convey("Then each field falls back on its own", func() {
				So(ok, ShouldBeTrue)
				So(p.Username, ShouldEqual, "carol")
				So(p.GithubURL, ShouldBeNil)
				So(p.ContestBadge, ShouldBeNil)
				So(p.Ranking, ShouldEqual, 7)
				So(p.RealName, ShouldBeNil)
				So(p.SkillTags, ShouldResemble, []string{"go", "sql"})
				So(p.Websites, ShouldBeEmpty)
				So(p.Websites, ShouldNotBeNil)
			})
		})

		Convey("When the contest badge has a mistyped flag", func() {
			p, ok := parser.ParseProfile([]byte(`{"data":{"matchedUser":{"contestBadge":{"name":"Knight","expired":"yes"}}}}`))

			Convey("Then the flag defaults to false", func() {
				So(ok, ShouldBeTrue)
				So(p.ContestBadge.Name, ShouldEqual, "Knight")
				So(p.ContestBadge.Expired, ShouldBeFalse)
			})
		})

		Convey("When matchedUser is null", func() {
			_, ok := parser.ParseProfile(fixtures.UserNotFound())
			So(ok, ShouldBeFalse)
		})
	})
}

func TestErrorMessages(t *testing.T) {
	Convey("Given envelopes with and without GraphQL errors", t, func() {
		So(parser.ErrorMessages(fixtures.UserNotFound()), ShouldResemble, []string{"That user does not exist."})
		So(parser.ErrorMessages(fixtures.ProfileEnvelope("a", "b", 1)), ShouldBeEmpty)
		So(parser.ErrorMessages([]byte("<html>")), ShouldBeEmpty)
	})
}
