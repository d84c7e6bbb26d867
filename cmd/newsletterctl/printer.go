package main

import (
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"bawabamail/internal/domain"
)

const timeLayout = "2006-01-02 15:04"

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func printCampaigns(w io.Writer, campaigns []*domain.Campaign, total int) {
	table := newTable(w, []string{"ID", "Subject", "Status", "Sent", "Failed", "Sent At", "Created"})
	for _, c := range campaigns {
		table.Append([]string{
			c.ID,
			truncate(c.Subject.Resolve(domain.DefaultLocale), 40),
			string(c.Status),
			strconv.Itoa(c.SentCount),
			strconv.Itoa(c.FailedCount),
			formatTime(c.SentAt),
			c.CreatedAt.UTC().Format(timeLayout),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "Total", strconv.Itoa(total)})
	table.Render()
}

func printSubscribers(w io.Writer, subs []*domain.Subscriber, total int) {
	table := newTable(w, []string{"Email", "Name", "Status", "Source", "Subscribed"})
	for _, s := range subs {
		table.Append([]string{
			s.Email,
			joinName(s.FirstName, s.LastName),
			string(s.Status),
			s.Source,
			s.SubscribedAt.UTC().Format(timeLayout),
		})
	}
	table.SetFooter([]string{"", "", "", "Total", strconv.Itoa(total)})
	table.Render()
}

func printOutcome(w io.Writer, c *domain.Campaign) {
	table := newTable(w, []string{"Campaign", "Status", "Sent", "Failed", "Sent At"})
	table.Append([]string{c.ID, string(c.Status), strconv.Itoa(c.SentCount), strconv.Itoa(c.FailedCount), formatTime(c.SentAt)})
	table.Render()
	if c.ErrorLog != nil && *c.ErrorLog != "" {
		_, _ = io.WriteString(w, *c.ErrorLog+"\n")
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
