package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/model"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage search profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			profiles, err := a.profiles.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), profiles)
		})
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print one profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			p, err := a.profiles.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		})
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create a profile or change its filters",
	Long: `Create the profile if needed, then apply the given filter flags on top of its
current filters. Flags that are not given keep their stored value.`,
	Example: `  collector profile set alice --keywords "go developer" --location Austin --radius 30
  collector profile set alice --employment-types FULLTIME,CONTRACTOR --max-jobs 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			filters := model.DefaultFilterConfig()
			current, err := a.profiles.Load(cmd.Context(), args[0])
			switch {
			case err == nil:
				filters = current.Filters
			case !apperr.IsKind(err, apperr.KindNotFound):
				return err
			}

			if err := applyFilterFlags(cmd, &filters); err != nil {
				return err
			}
			p, err := a.profiles.Save(cmd.Context(), args[0], model.ProfileUpdate{Filters: &filters})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		})
	},
}

var profileLocationCmd = &cobra.Command{
	Use:   "location <name> <place>",
	Short: "Geocode a place and store it as the profile location",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			p, err := a.profiles.SetLocation(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		})
	},
}

var profileResumeCmd = &cobra.Command{
	Use:   "resume <name> <file>",
	Short: "Store a resume file on the profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read resume: %w", err)
		}
		if len(data) == 0 {
			return errors.New("resume file is empty")
		}
		filename := filepath.Base(args[1])

		return withApp(cmd.Context(), func(a *app) error {
			p, err := a.profiles.Save(cmd.Context(), args[0], model.ProfileUpdate{
				ResumeFilename: &filename,
				Resume:         data,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		})
	},
}

var profileClearResumeCmd = &cobra.Command{
	Use:   "clear-resume <name>",
	Short: "Remove the stored resume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			if err := a.profiles.ClearResume(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resume removed from %s\n", args[0])
			return nil
		})
	},
}

func init() {
	f := profileSetCmd.Flags()
	f.String("keywords", "", "Search keywords")
	f.String("location", "", "Location appended to the query as \"in <location>\"")
	f.String("country", "", "ISO 3166-1 alpha-2 country code")
	f.String("language", "", "ISO 639-1 language code")
	f.String("date-posted", "", "all, today, 3days, week or month")
	f.Bool("remote", false, "Only remote jobs")
	f.StringSlice("employment-types", nil, "FULLTIME, PARTTIME, CONTRACTOR, INTERN")
	f.StringSlice("job-requirements", nil, "under_3_years_experience, more_than_3_years_experience, no_experience, no_degree")
	f.StringSlice("exclude-publishers", nil, "Job publishers to exclude")
	f.StringSlice("companies", nil, "Companies of interest")
	f.Float64("radius", 0, "Distance radius in miles, 0 disables the filter")
	f.Int("max-jobs", 0, "Jobs to keep per run (10-300)")
	f.Int("salary-min", 0, "Lower salary bound")
	f.Int("salary-max", 0, "Upper salary bound")

	profileCmd.AddCommand(
		profileListCmd,
		profileShowCmd,
		profileSetCmd,
		profileLocationCmd,
		profileResumeCmd,
		profileClearResumeCmd,
	)
	rootCmd.AddCommand(profileCmd)
}

// applyFilterFlags copies every filter flag the user set onto f.
func applyFilterFlags(cmd *cobra.Command, f *model.FilterConfig) error {
	flags := cmd.Flags()

	strs := map[string]*string{
		"keywords":    &f.Keywords,
		"location":    &f.Location,
		"country":     &f.Country,
		"language":    &f.Language,
		"date-posted": &f.DatePosted,
	}
	for name, dst := range strs {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	slices := map[string]*[]string{
		"employment-types":   &f.EmploymentTypes,
		"job-requirements":   &f.JobRequirements,
		"exclude-publishers": &f.ExcludeJobPublishers,
		"companies":          &f.Companies,
	}
	for name, dst := range slices {
		if flags.Changed(name) {
			v, err := flags.GetStringSlice(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	ints := map[string]*int{
		"max-jobs":   &f.MaxJobs,
		"salary-min": &f.SalaryRange[0],
		"salary-max": &f.SalaryRange[1],
	}
	for name, dst := range ints {
		if flags.Changed(name) {
			v, err := flags.GetInt(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	if flags.Changed("remote") {
		v, err := flags.GetBool("remote")
		if err != nil {
			return err
		}
		f.WorkFromHome = v
	}
	if flags.Changed("radius") {
		v, err := flags.GetFloat64("radius")
		if err != nil {
			return err
		}
		f.DistanceRadius = &v
	}
	return nil
}
