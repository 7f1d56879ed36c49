package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/axiomesh/governor/api"
	"github.com/axiomesh/governor/core"
	"github.com/axiomesh/governor/repo"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

var apiFlag = &cli.StringFlag{
	Name:  "api",
	Usage: "Governor API address, defaults to the listen address of the repo config",
}

var proposalCMD = &cli.Command{
	Name:  "proposal",
	Usage: "Query proposals of a running governor",
	Flags: []cli.Flag{apiFlag},
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "List the newest proposals",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: core.DefaultPageSize},
				&cli.Uint64Flag{Name: "before", Usage: "Only list proposals with a smaller id"},
			},
			Action: listProposals,
		},
		{
			Name:      "show",
			Usage:     "Show one proposal",
			ArgsUsage: "<id>",
			Action:    showProposal,
		},
		{
			Name:      "votes",
			Usage:     "List the ballots of a proposal",
			ArgsUsage: "<id>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: core.DefaultPageSize},
			},
			Action: listVotes,
		},
	},
}

func apiClient(ctx *cli.Context) (*api.Client, error) {
	addr := ctx.String("api")
	if addr == "" {
		p, err := getRootPath(ctx)
		if err != nil {
			return nil, err
		}
		r, err := repo.Load(p)
		if err != nil {
			return nil, err
		}
		addr = r.Config.API.Listen
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return api.NewClient(addr, 10*time.Second), nil
}

func proposalArg(ctx *cli.Context) (uint64, error) {
	var id uint64
	if _, err := fmt.Sscan(ctx.Args().First(), &id); err != nil {
		return 0, fmt.Errorf("proposal id is required: %w", err)
	}
	return id, nil
}

var statusColors = map[core.ProposalStatus]*color.Color{
	core.Open:            color.New(color.FgCyan),
	core.Passed:          color.New(color.FgGreen),
	core.Executed:        color.New(color.FgGreen, color.Bold),
	core.Rejected:        color.New(color.FgRed),
	core.ExecutionFailed: color.New(color.FgRed, color.Bold),
	core.Vetoed:          color.New(color.FgRed),
	core.VetoTimelock:    color.New(color.FgYellow),
	core.Closed:          color.New(color.FgHiBlack),
}

func statusText(s core.ProposalStatus) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(s.String())
	}
	return s.String()
}

// tally renders the current votes of either flavor.
func tally(p *core.Proposal) string {
	if p.MultipleChoice != nil {
		return strings.Join(lo.Map(p.MultipleChoice.Options, func(o core.Option, i int) string {
			return fmt.Sprintf("%s: %s", o.Title, p.MultipleChoice.Votes.Weights[i])
		}), ", ")
	}
	v := p.SingleChoice.Votes
	return fmt.Sprintf("yes: %s, no: %s, abstain: %s", v.Yes, v.No, v.Abstain)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Format.Header = text.FormatUpper
	return t
}

func listProposals(ctx *cli.Context) error {
	client, err := apiClient(ctx)
	if err != nil {
		return err
	}
	var before *uint64
	if ctx.IsSet("before") {
		b := ctx.Uint64("before")
		before = &b
	}
	proposals, err := client.ReverseProposals(ctx.Context, before, ctx.Int("limit"))
	if err != nil {
		return err
	}
	if len(proposals) == 0 {
		fmt.Println("no proposals")
		return nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"ID", "Title", "Kind", "Status", "Expiration", "Votes"})
	for _, p := range proposals {
		t.AppendRow(table.Row{p.ID, p.Title, p.Flavor().Kind(), statusText(p.Status), p.Expiration.String(), tally(p)})
	}
	t.Render()
	return nil
}

func showProposal(ctx *cli.Context) error {
	id, err := proposalArg(ctx)
	if err != nil {
		return err
	}
	client, err := apiClient(ctx)
	if err != nil {
		return err
	}
	p, err := client.Proposal(ctx.Context, id)
	if err != nil {
		return err
	}

	t := newTable()
	t.AppendRows([]table.Row{
		{"ID", p.ID},
		{"Title", p.Title},
		{"Description", p.Description},
		{"Proposer", p.Proposer.Hex()},
		{"Kind", p.Flavor().Kind()},
		{"Status", statusText(p.Status)},
		{"Start height", p.StartHeight},
		{"Expiration", p.Expiration.String()},
		{"Total power", p.TotalPower.String()},
		{"Votes", tally(p)},
		{"Allow revoting", p.AllowRevoting},
	})
	if p.SingleChoice != nil {
		t.AppendRow(table.Row{"Threshold", p.SingleChoice.Threshold.String()})
	}
	if p.VetoExpiration != nil {
		t.AppendRow(table.Row{"Veto timelock until", p.VetoExpiration.String()})
	}
	t.Render()
	return nil
}

func listVotes(ctx *cli.Context) error {
	id, err := proposalArg(ctx)
	if err != nil {
		return err
	}
	client, err := apiClient(ctx)
	if err != nil {
		return err
	}
	p, err := client.Proposal(ctx.Context, id)
	if err != nil {
		return err
	}
	ballots, err := client.ListVotes(ctx.Context, id, nil, ctx.Int("limit"))
	if err != nil {
		return err
	}

	t := newTable()
	t.AppendHeader(table.Row{"Voter", "Choice", "Power", "Rationale"})
	for _, b := range ballots {
		t.AppendRow(table.Row{b.Voter.Hex(), choiceText(p, b), b.Power.String(), lo.FromPtr(b.Rationale)})
	}
	t.Render()
	return nil
}

func choiceText(p *core.Proposal, b *core.Ballot) string {
	if p.MultipleChoice != nil {
		if int(b.Choice) < len(p.MultipleChoice.Options) {
			return p.MultipleChoice.Options[b.Choice].Title
		}
		return fmt.Sprint(b.Choice)
	}
	return b.Vote().String()
}
