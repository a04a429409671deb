package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/okian/leetstat/internal/domain/model"
)

func writeReports(out io.Writer, reports []Report, asJSON bool) error {
	if asJSON {
		return writeJSON(out, reports)
	}
	for i, r := range reports {
		if i > 0 {
			if _, err := fmt.Fprintln(out); err != nil {
				return err
			}
		}
		if err := writeReport(out, r); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(out io.Writer, r Report) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, r.Username)
	if r.Snapshot == nil {
		fmt.Fprintf(tw, "  error\t%s\n", r.Error)
		return tw.Flush()
	}
	snap := r.Snapshot

	if p := snap.Profile; p != nil {
		if p.RealName != nil && *p.RealName != "" {
			fmt.Fprintf(tw, "  name\t%s\n", *p.RealName)
		}
		if p.CountryName != nil && *p.CountryName != "" {
			fmt.Fprintf(tw, "  country\t%s\n", *p.CountryName)
		}
		fmt.Fprintf(tw, "  ranking\t%d\n", p.Ranking)
	}
	if st := snap.Stats; st != nil {
		fmt.Fprintf(tw, "  solved\t%d / %d\t(easy %d/%d, medium %d/%d, hard %d/%d)\n",
			st.TotalSolved(), st.TotalProblems(),
			st.EasySolved, st.EasyTotal,
			st.MediumSolved, st.MediumTotal,
			st.HardSolved, st.HardTotal)
	}
	if cal := snap.Calendar; cal != nil {
		fmt.Fprintf(tw, "  streak\t%d days\t(%d active days)\n", cal.Streak, cal.TotalActiveDays)
		if len(cal.DCCBadges) > 0 {
			fmt.Fprintf(tw, "  badges\t%d\n", len(cal.DCCBadges))
		}
	}
	if len(r.Recent) > 0 {
		counts := make([]string, len(r.Recent))
		for i, d := range r.Recent {
			counts[i] = fmt.Sprint(d.Count)
		}
		fmt.Fprintf(tw, "  last %d days\t%d\t[%s]\n", len(r.Recent), r.RecentTotal, strings.Join(counts, " "))
	}
	if snap.LastFetched != nil {
		fmt.Fprintf(tw, "  fetched\t%s\n", snap.LastFetched.UTC().Format(time.RFC3339))
	}
	if r.Error != "" {
		fmt.Fprintf(tw, "  warning\t%s\n", r.Error)
	}
	return tw.Flush()
}

func writePeers(out io.Writer, peers []model.PeerStats, asJSON bool) error {
	if asJSON {
		return writeJSON(out, peers)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tusername\tsolved\teasy\tmedium\thard")
	for i, p := range peers {
		if !p.Available {
			fmt.Fprintf(tw, "-\t%s\tn/a\t\t\t\n", p.Username)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\n", i+1, p.Username,
			p.Stats.TotalSolved(), p.Stats.EasySolved, p.Stats.MediumSolved, p.Stats.HardSolved)
	}
	return tw.Flush()
}
