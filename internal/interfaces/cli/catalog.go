package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/domain/dataset"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/types/common"
)

// VersionList is the printed result of catalog list.
type VersionList struct {
	Family   string            `json:"family"`
	AsOf     string            `json:"as_of"`
	Versions []dataset.Version `json:"versions"`
}

func (l VersionList) String() string {
	if len(l.Versions) == 0 {
		return fmt.Sprintf("no versions of %s on or before %s", l.Family, l.AsOf)
	}
	var sb strings.Builder
	for i, v := range l.Versions {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s  %s", v.Date.Format(common.DateLayout), v.Path)
	}
	return sb.String()
}

func (l VersionList) TableHeaders() []string { return []string{"DATE", "PATH", "REGISTERED"} }

func (l VersionList) TableRows() [][]string {
	rows := make([][]string, 0, len(l.Versions))
	for _, v := range l.Versions {
		registered := ""
		if !v.RegisteredAt.IsZero() {
			registered = v.RegisteredAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{v.Date.Format(common.DateLayout), v.Path, registered})
	}
	return rows
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Register and list dated dataset versions",
	}
	cmd.AddCommand(newCatalogRegisterCmd(), newCatalogListCmd())
	return cmd
}

func newCatalogRegisterCmd() *cobra.Command {
	var family, date, path string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Record a materialized version of a dataset family",
		Example: "  sclstats catalog register --family projects/SCL/v1/Panthera_tigris/structural_habitat --date 2020-01-01\n" +
			"  sclstats catalog register --family countries --date 2019-06-30 --path countries/2019",
		RunE: func(cmd *cobra.Command, args []string) error {
			if family == "" {
				return errors.InvalidParam("--family is required")
			}
			if date == "" {
				return errors.InvalidParam("--date is required")
			}
			d, err := common.ParseTaskDate(date)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeValidation, "invalid --date")
			}
			if path == "" {
				path = dataset.VersionPath(family, d.Time())
			}
			return withCatalog(cmd, func(cliCtx *CLIContext, catalog dataset.Catalog) error {
				ctx, cancel := cliCtx.Context(cmd.Context())
				defer cancel()
				v := dataset.Version{Family: family, Date: d.Time(), Path: path, RegisteredAt: time.Now().UTC()}
				if err := catalog.Register(ctx, v); err != nil {
					return err
				}
				cliCtx.Logger.Info("dataset version registered",
					logging.String("family", family),
					logging.String("date", d.String()),
					logging.String("path", path))
				return PrintResult(cmd, v)
			})
		},
	}
	cmd.Flags().StringVar(&family, "family", "", "dataset family")
	cmd.Flags().StringVar(&date, "date", "", "version date YYYY-MM-DD")
	cmd.Flags().StringVar(&path, "path", "", "asset path (default <family>/<date>)")
	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var family, asOf string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the versions of a dataset family, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if family == "" {
				return errors.InvalidParam("--family is required")
			}
			ref, err := common.ParseTaskDate(asOf)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeValidation, "invalid --as-of")
			}
			return withCatalog(cmd, func(cliCtx *CLIContext, catalog dataset.Catalog) error {
				ctx, cancel := cliCtx.Context(cmd.Context())
				defer cancel()
				versions, err := catalog.ListVersions(ctx, family, ref.Time())
				if err != nil {
					return err
				}
				sort.SliceStable(versions, func(i, j int) bool {
					return versions[i].Date.After(versions[j].Date)
				})
				return PrintResult(cmd, VersionList{Family: family, AsOf: ref.String(), Versions: versions})
			})
		},
	}
	cmd.Flags().StringVar(&family, "family", "", "dataset family")
	cmd.Flags().StringVar(&asOf, "as-of", "", "latest version date to include (default today)")
	return cmd
}

// withCatalog builds a runtime, hands its catalog to fn and closes it.
func withCatalog(cmd *cobra.Command, fn func(*CLIContext, dataset.Catalog) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	rt, err := cliCtx.Runtime(cmd.Context(), cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	if rt.Catalog == nil {
		return errors.Precondition("the dataset catalog requires database.enabled")
	}
	return fn(cliCtx, rt.Catalog)
}

//Personal.AI order the ending
