package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"kol-campaign-api-server/internal/service"
)

func printSurveyLinks(w io.Writer, links []service.SurveyLink) error {
	if len(links) == 0 {
		fmt.Fprintln(w, "No survey links found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMPAIGN\tHCP\tEMAIL\tSTATUS\tLINK")
	current := ""
	for _, l := range links {
		campaign := ""
		if l.CampaignCode != current {
			campaign = l.CampaignCode
			current = l.CampaignCode
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", campaign, l.HcpName, l.Email, l.Status, l.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d links\n", len(links))
	return nil
}

func printBulkSpecialty(w io.Writer, res *service.BulkSpecialtyResult) {
	if res.DryRun {
		fmt.Fprintf(w, "Dry run: %d HCPs have specialty %q and would be changed to %q.\n", res.Matched, res.From, res.To)
		return
	}
	fmt.Fprintf(w, "Updated %d of %d HCPs from %q to %q.\n", res.Updated, res.Matched, res.From, res.To)
}

func printReminders(w io.Writer, results map[string]*service.ReminderResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No active campaigns.")
		return
	}
	total := 0
	for _, id := range sortedKeys(results) {
		r := results[id]
		fmt.Fprintf(w, "%s: %d reminders queued (%d eligible)\n", id, r.Queued, r.Eligible)
		total += r.Queued
	}
	fmt.Fprintf(w, "Total: %d\n", total)
}

func printImport(w io.Writer, res *service.ImportResult) {
	fmt.Fprintf(w, "Created %d, skipped %d existing, %d errors.\n", res.Created, res.Skipped, len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  line %d: %s\n", e.Line, e.Message)
	}
}
