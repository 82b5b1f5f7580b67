package main

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chriscantu/advisord/internal/api"
	"github.com/chriscantu/advisord/internal/memory"
)

var (
	// stakeholder command flags
	shType    string
	shContext string
	shOutcome string
	shJSON    bool
)

func init() {
	rootCmd.AddCommand(stakeholderCmd)
	stakeholderCmd.AddCommand(stakeholderShowCmd)
	stakeholderCmd.AddCommand(stakeholderInteractCmd)

	stakeholderCmd.PersistentFlags().BoolVar(&shJSON, "json", false, "Output results as JSON")

	stakeholderInteractCmd.Flags().StringVar(&shType, "type", "", "Interaction label such as one_on_one or escalation")
	stakeholderInteractCmd.Flags().StringVar(&shContext, "context", "", "What the exchange was about")
	stakeholderInteractCmd.Flags().StringVar(&shOutcome, "outcome", "neutral", "Interaction outcome: positive, neutral, or negative")
}

var stakeholderCmd = &cobra.Command{
	Use:   "stakeholder",
	Short: "Inspect and update stakeholder relationships",
	Long: `Inspect and update the stakeholder relationship layer.

Relationship quality and trust move only through recorded interactions,
so "interact" is the one way to shift them from the command line.

Examples:
  # Show a profile
  advisorctl stakeholder show 7c9e6679-7425-40de-944b-e07fc1f90ae7

  # Record a positive one-on-one
  advisorctl stakeholder interact 7c9e6679-7425-40de-944b-e07fc1f90ae7 \
    --type one_on_one --context "platform roadmap review" --outcome positive`,
}

var stakeholderShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stakeholder profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runStakeholderShow,
}

var stakeholderInteractCmd = &cobra.Command{
	Use:   "interact <id>",
	Short: "Record an interaction with a stakeholder",
	Args:  cobra.ExactArgs(1),
	RunE:  runStakeholderInteract,
}

// runStakeholderShow handles the stakeholder show command
func runStakeholderShow(cmd *cobra.Command, args []string) error {
	var profile memory.StakeholderProfile
	if err := getJSON("/v1/stakeholders/"+url.PathEscape(args[0]), &profile); err != nil {
		return err
	}

	if shJSON {
		return printJSON(profile)
	}
	return printProfile(&profile)
}

// runStakeholderInteract handles the stakeholder interact command
func runStakeholderInteract(cmd *cobra.Command, args []string) error {
	id := args[0]
	req := api.InteractionRequest{
		Type:    shType,
		Context: shContext,
		Outcome: memory.InteractionOutcome(shOutcome),
	}

	var interaction memory.Interaction
	if err := postJSON("/v1/stakeholders/"+url.PathEscape(id)+"/interactions", req, &interaction); err != nil {
		return err
	}

	// Re-read the profile so the caller sees where the relationship
	// landed after the step.
	var profile memory.StakeholderProfile
	if err := getJSON("/v1/stakeholders/"+url.PathEscape(id), &profile); err != nil {
		return err
	}

	if shJSON {
		return printJSON(profile)
	}
	fmt.Printf("Recorded %s interaction with %s\n\n", interaction.Outcome, profile.Name)
	return printProfile(&profile)
}

func printProfile(p *memory.StakeholderProfile) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name\t%s\n", p.Name)
	fmt.Fprintf(w, "Role\t%s\n", p.Role)
	if p.Organization != "" {
		fmt.Fprintf(w, "Organization\t%s\n", p.Organization)
	}
	fmt.Fprintf(w, "Influence\t%s\n", p.Influence)
	if p.CommunicationStyle != "" {
		fmt.Fprintf(w, "Communication\t%s\n", p.CommunicationStyle)
	}
	fmt.Fprintf(w, "Relationship quality\t%.2f\n", p.RelationshipQuality)
	fmt.Fprintf(w, "Trust level\t%.2f\n", p.TrustLevel)
	fmt.Fprintf(w, "Interaction frequency\t%.2f\n", p.InteractionFrequency)
	if !p.LastInteraction.IsZero() {
		fmt.Fprintf(w, "Last interaction\t%s\n", p.LastInteraction.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
