package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pavescan/internal/jobstore"
)

var (
	jobsStatus  string
	jobsLimit   int
	jobsTTLDays int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List analysis jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		jobs, err := st.ListJobs(ctx, jobstore.JobFilter{
			Status: jobstore.JobStatus(jobsStatus),
			Limit:  jobsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list jobs")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tSTATUS\tLAT\tLNG\tADDRESS\tUPDATED")
		for _, j := range jobs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.5f\t%.5f\t%s\t%s\n",
				truncateID(j.ID), j.Status, j.Point.Lat, j.Point.Lng, j.Address,
				j.UpdatedAt.Local().Format(time.DateTime),
			)
		}
		return w.Flush()
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job including its stored result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get job")
		}
		if job == nil {
			return eris.Errorf("job %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var jobsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete finished jobs older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := st.DeleteExpired(ctx, time.Duration(jobsTTLDays)*24*time.Hour)
		if err != nil {
			return eris.Wrap(err, "prune jobs")
		}

		fmt.Printf("deleted %d jobs\n", n)
		return nil
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (queued, running, completed, failed)")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 50, "maximum jobs to list")
	jobsPruneCmd.Flags().IntVar(&jobsTTLDays, "days", 30, "retention window in days")
	jobsCmd.AddCommand(jobsShowCmd, jobsPruneCmd)
	rootCmd.AddCommand(jobsCmd)
}
