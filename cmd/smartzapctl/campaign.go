package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/services"
	"github.com/smartzap/backend/internal/whatsapp"
	"github.com/spf13/cobra"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Inspect and control campaigns",
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	RunE:  runCampaignList,
}

var campaignStatusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show counters and the latest dispatch run of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignStatus,
}

var campaignPauseCmd = &cobra.Command{
	Use:   "pause [id]",
	Short: "Pause a sending campaign",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignPause,
}

var campaignResumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume a paused campaign with its pending contacts",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignResume,
}

var campaignStartDueCmd = &cobra.Command{
	Use:   "start-due",
	Short: "Start scheduled campaigns whose time has come",
	RunE:  runCampaignStartDue,
}

var campaignDuplicateCmd = &cobra.Command{
	Use:   "duplicate [id]",
	Short: "Copy a campaign into a new draft with its recipients pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignDuplicate,
}

var (
	listStatus     string
	listLimit      int
	duplicateFails bool
)

func init() {
	campaignListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (DRAFT, SCHEDULED, SENDING, PAUSED, COMPLETED, FAILED)")
	campaignListCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of campaigns")
	campaignDuplicateCmd.Flags().BoolVar(&duplicateFails, "failed", false, "Copy only the failed recipients")

	campaignCmd.AddCommand(campaignListCmd)
	campaignCmd.AddCommand(campaignStatusCmd)
	campaignCmd.AddCommand(campaignPauseCmd)
	campaignCmd.AddCommand(campaignResumeCmd)
	campaignCmd.AddCommand(campaignStartDueCmd)
	campaignCmd.AddCommand(campaignDuplicateCmd)
	rootCmd.AddCommand(campaignCmd)
}

func (e *env) campaignService() *services.CampaignService {
	return services.NewCampaignService(
		repositories.NewCampaignRepo(e.pool),
		repositories.NewCampaignContactRepo(e.pool),
		repositories.NewDispatchRepo(e.pool),
		repositories.NewAuditRepo(e.pool),
		e.log,
	)
}

func parseCampaignID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid campaign id %q", arg)
	}
	return id, nil
}

func runCampaignList(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	f := repositories.CampaignFilter{Limit: listLimit}
	if listStatus != "" {
		status := strings.ToUpper(listStatus)
		f.Status = &status
	}
	campaigns, err := e.campaignService().List(cmd.Context(), f)
	if err != nil {
		return err
	}
	if len(campaigns) == 0 {
		fmt.Println("No campaigns found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tRECIPIENTS\tSENT\tDELIVERED\tREAD\tFAILED")
	for _, c := range campaigns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			c.ID, c.Name, c.Status, c.TotalRecipients, c.Sent, c.Delivered, c.Read, c.Failed)
	}
	return w.Flush()
}

func runCampaignStatus(cmd *cobra.Command, args []string) error {
	id, err := parseCampaignID(args[0])
	if err != nil {
		return err
	}
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	o, err := e.campaignService().Overview(cmd.Context(), id)
	if err != nil {
		return err
	}
	c := o.Campaign

	fmt.Printf("Campaign:   %s (%s)\n", c.Name, c.ID)
	fmt.Printf("Status:     %s\n", c.Status)
	fmt.Printf("Template:   %s\n", c.TemplateName)
	fmt.Printf("Recipients: %d\n", c.TotalRecipients)
	fmt.Printf("Sent:       %d\n", c.Sent)
	fmt.Printf("Delivered:  %d\n", c.Delivered)
	fmt.Printf("Read:       %d\n", c.Read)
	fmt.Printf("Failed:     %d\n", c.Failed)
	if c.ScheduledAt != nil {
		fmt.Printf("Scheduled:  %s\n", c.ScheduledAt.Format(time.RFC3339))
	}

	if run := o.LatestRun; run != nil {
		fmt.Println()
		fmt.Printf("Latest run: %s\n", run.ID)
		fmt.Printf("  status:   %s\n", run.Status)
		fmt.Printf("  contacts: %d in %d batches\n", run.TotalContacts, run.TotalBatches)
		if run.LastError != nil {
			fmt.Printf("  error:    %s\n", *run.LastError)
		}
	}

	history, err := repositories.NewAuditRepo(e.pool).GetByEntity(cmd.Context(), "campaign", id, 10)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		fmt.Println()
		fmt.Println("History:")
		for _, entry := range history {
			fmt.Printf("  %s  %-8s %s\n", entry.CreatedAt.Format(time.RFC3339), entry.ActorType, entry.Action)
		}
	}
	return nil
}

func runCampaignPause(cmd *cobra.Command, args []string) error {
	id, err := parseCampaignID(args[0])
	if err != nil {
		return err
	}
	e, err := openEnv(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.dispatchService().Pause(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Campaign %s paused\n", id)
	return nil
}

func runCampaignResume(cmd *cobra.Command, args []string) error {
	id, err := parseCampaignID(args[0])
	if err != nil {
		return err
	}
	e, err := openEnv(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.Close()

	run, err := e.dispatchService().Resume(cmd.Context(), id, whatsapp.Credentials{})
	if err != nil {
		return err
	}
	fmt.Printf("Campaign %s resumed: %d contacts in %d batches (run %s)\n", id, run.TotalContacts, run.TotalBatches, run.ID)
	return nil
}

func runCampaignDuplicate(cmd *cobra.Command, args []string) error {
	id, err := parseCampaignID(args[0])
	if err != nil {
		return err
	}
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	copied, err := e.campaignService().Duplicate(cmd.Context(), id, duplicateFails)
	if err != nil {
		return err
	}
	fmt.Printf("Campaign %s created as DRAFT with %d recipients\n", copied.ID, copied.TotalRecipients)
	return nil
}

func runCampaignStartDue(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.Close()

	started, err := e.dispatchService().StartDue(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("%d scheduled campaigns started\n", started)
	return nil
}
