package main

import (
	"fmt"
	"os"
	"sort"

	"kol-campaign-api-server/internal/service"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var surveyLinksCmd = &cobra.Command{
	Use:   "survey-links [campaignID]",
	Short: "Print the survey link of every assigned HCP",
	Long: `Print each HCP's survey link for one campaign, or for every active
campaign when no ID is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := optionalID(args)
		if err != nil {
			return err
		}
		links, err := application.Services.Campaigns.SurveyLinks(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printSurveyLinks(cmd.OutOrStdout(), links)
	},
}

var (
	specialtyFrom string
	specialtyTo   string
	dryRun        bool
)

var bulkSpecialtyCmd = &cobra.Command{
	Use:   "bulk-specialty --from X --to Y",
	Short: "Rename a specialty on every HCP that has it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := application.Services.Hcps.BulkSpecialty(cmd.Context(), specialtyFrom, specialtyTo, dryRun)
		if err != nil {
			return err
		}
		printBulkSpecialty(cmd.OutOrStdout(), res)
		return nil
	},
}

var sendRemindersCmd = &cobra.Command{
	Use:   "send-reminders [campaignID]",
	Short: "Send reminders to HCPs who have not finished their survey",
	Long: `Send reminders for one campaign, or for every active campaign when no
ID is given. Reminder interval and limit come from the email settings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := optionalID(args)
		if err != nil {
			return err
		}
		results := map[string]*service.ReminderResult{}
		if id != nil {
			res, err := application.Services.Campaigns.SendReminders(cmd.Context(), *id)
			if err != nil {
				return err
			}
			results[id.Hex()] = res
		} else if results, err = application.Services.Campaigns.RemindActive(cmd.Context()); err != nil {
			return err
		}
		printReminders(cmd.OutOrStdout(), results)
		return nil
	},
}

var importHcpsCmd = &cobra.Command{
	Use:   "import-hcps <file.csv>",
	Short: "Create HCPs from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		res, err := application.Services.Hcps.Import(cmd.Context(), f)
		if err != nil {
			return err
		}
		printImport(cmd.OutOrStdout(), res)
		if len(res.Errors) > 0 {
			return fmt.Errorf("%d rows could not be imported", len(res.Errors))
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the superadmin and the default disease areas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := application.Seed(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Seed complete.")
		return nil
	},
}

func init() {
	bulkSpecialtyCmd.Flags().StringVar(&specialtyFrom, "from", "", "specialty to replace")
	bulkSpecialtyCmd.Flags().StringVar(&specialtyTo, "to", "", "new specialty")
	bulkSpecialtyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only count the matching HCPs")
	_ = bulkSpecialtyCmd.MarkFlagRequired("from")
	_ = bulkSpecialtyCmd.MarkFlagRequired("to")
}

func optionalID(args []string) (*primitive.ObjectID, error) {
	if len(args) == 0 {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid campaign id %q", args[0])
	}
	return &id, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
