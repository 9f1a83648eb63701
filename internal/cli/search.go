package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
	"github.com/roach88/querydeck/internal/schema"
	"github.com/roach88/querydeck/internal/search"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Condition conditionFlags
	Sort      []string
	Offset    int
	Limit     int
	Total     bool
}

// SearchResult is the JSON payload of the search command. Total is only
// set with --total.
type SearchResult struct {
	Rows   []model.MemberTeamDto `json:"rows"`
	Total  *int64                `json:"total,omitempty"`
	Offset int                   `json:"offset,omitempty"`
	Limit  int                   `json:"limit,omitempty"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search members with optional filters",
		Long: `Search members joined to their team.

Every filter flag is optional; an omitted filter places no constraint.
Sort keys are field[:asc|desc][:nulls-first|nulls-last], where field is a
sortable member field or team.name. Without --limit the config
default_limit applies; with neither the search is unpaged.

Example:
  querydeck search --team-name teamB --age-goe 31
  querydeck search --sort age:desc --sort userName:asc:nulls-last --limit 10
  querydeck search --age-loe 30 --offset 10 --limit 10 --total`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd)
		},
	}

	opts.Condition.register(cmd)
	cmd.Flags().StringArrayVar(&opts.Sort, "sort", nil, "sort key (repeatable)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows to return")
	cmd.Flags().BoolVar(&opts.Total, "total", false, "also count every matching row (requires a page)")

	return cmd
}

func runSearch(opts *SearchOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	order, err := parseOrder(a.cat, opts.Sort)
	if err != nil {
		return f.Fail("invalid sort", err)
	}
	page := opts.page(cmd)
	cond := opts.Condition.condition(cmd)
	f.VerboseLog("search condition=%+v page=%v", cond, page)

	var result SearchResult
	if opts.Total {
		if page == nil {
			return f.Fail("search failed", &queryir.QueryError{
				Code:    queryir.ErrCodeInvalidPage,
				Message: "--total requires --limit or a configured default_limit",
			})
		}
		res, err := a.repo.SearchPage(cmd.Context(), cond, order, *page)
		if err != nil {
			return f.Fail("search failed", err)
		}
		result = SearchResult{Rows: res.Items, Total: &res.Total, Offset: res.Offset, Limit: res.Limit}
	} else {
		rows, err := a.repo.Search(cmd.Context(), cond, order, page)
		if err != nil {
			return f.Fail("search failed", err)
		}
		result.Rows = rows
		if page != nil {
			result.Offset, result.Limit = page.Offset, page.Limit
		}
	}

	return f.Success(result, func(w io.Writer) {
		writeRows(w, result.Rows)
		if result.Total != nil {
			fmt.Fprintf(w, "\n%d of %d row(s) from offset %d\n", len(result.Rows), *result.Total, result.Offset)
		}
	})
}

// page returns the requested window. An explicit --offset or --limit
// always produces a page, even an invalid one, so validation reports it.
func (o *SearchOptions) page(cmd *cobra.Command) *queryir.PageRequest {
	flags := cmd.Flags()
	limit := o.Limit
	if !flags.Changed("limit") {
		limit = o.DefaultLimit
	}
	if !flags.Changed("offset") && !flags.Changed("limit") && limit == 0 {
		return nil
	}
	return &queryir.PageRequest{Offset: o.Offset, Limit: limit}
}

func writeRows(w io.Writer, rows []model.MemberTeamDto) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MEMBER_ID\tUSER_NAME\tAGE\tTEAM_ID\tTEAM_NAME")
	for _, r := range rows {
		teamID := "-"
		if r.TeamID != nil {
			teamID = strconv.FormatInt(*r.TeamID, 10)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", r.MemberID, orDash(r.UserName), r.Age, teamID, orDash(r.TeamName))
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// conditionFlags are the optional member search inputs shared by search,
// update, and delete. Only flags given on the command line constrain.
type conditionFlags struct {
	userName string
	teamName string
	ageGoe   int
	ageLoe   int
}

func (c *conditionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.userName, "user-name", "", "member user name equals")
	cmd.Flags().StringVar(&c.teamName, "team-name", "", "team name equals")
	cmd.Flags().IntVar(&c.ageGoe, "age-goe", 0, "member age greater than or equal")
	cmd.Flags().IntVar(&c.ageLoe, "age-loe", 0, "member age less than or equal")
}

func (c *conditionFlags) condition(cmd *cobra.Command) search.Condition {
	flags := cmd.Flags()
	var cond search.Condition
	if flags.Changed("user-name") {
		cond.UserName = &c.userName
	}
	if flags.Changed("team-name") {
		cond.TeamName = &c.teamName
	}
	if flags.Changed("age-goe") {
		cond.AgeGoe = &c.ageGoe
	}
	if flags.Changed("age-loe") {
		cond.AgeLoe = &c.ageLoe
	}
	return cond
}

// parseOrder builds an order spec from field[:dir][:nulls] keys.
func parseOrder(cat *schema.Catalog, keys []string) (queryir.OrderSpec, error) {
	okeys := make([]queryir.OrderKey, 0, len(keys))
	for _, raw := range keys {
		parts := strings.Split(raw, ":")
		if len(parts) > 3 {
			return queryir.OrderSpec{}, sortKeyError(raw, "too many parts")
		}

		key := queryir.Asc(sortExpr(cat, parts[0]))
		for _, p := range parts[1:] {
			switch strings.ToLower(p) {
			case "asc":
				key.Direction = queryir.Ascending
			case "desc":
				key.Direction = queryir.Descending
			case "nulls-first":
				key = key.NullsFirst()
			case "nulls-last":
				key = key.NullsLast()
			default:
				return queryir.OrderSpec{}, sortKeyError(raw, fmt.Sprintf("unknown modifier %q", p))
			}
		}
		okeys = append(okeys, key)
	}
	return queryir.NewOrderSpec(cat, okeys...)
}

func sortKeyError(raw, msg string) error {
	return &queryir.QueryError{Code: queryir.ErrCodeInvalidSortField, Field: raw, Message: msg}
}

// sortExpr resolves a sort field. Unknown names resolve to a field
// without a kind, which the order spec rejects.
func sortExpr(cat *schema.Catalog, name string) queryir.Expr {
	if name == "team.name" {
		return model.QTeam.Name
	}
	return memberField(cat, name)
}

func memberField(cat *schema.Catalog, name string) queryir.Field {
	def, _ := cat.Field(model.EntityMember, name)
	return queryir.Field{Entity: model.EntityMember, Alias: model.QMember.Ref.Alias, Name: name, Kind: def.Kind}
}
