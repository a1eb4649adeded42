package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/spf13/cobra"

	payrolllink "github.com/goliatone/go-payroll-link"
	"github.com/goliatone/go-payroll-link/connection"
	"github.com/goliatone/go-payroll-link/core"
)

type simulationReport struct {
	Transitions []string             `json:"transitions"`
	State       string               `json:"state"`
	ItemID      string               `json:"item_id"`
	Snapshot    core.PayrollSnapshot `json:"snapshot"`
}

func simulateCmd(logger func() glog.Logger) *cobra.Command {
	var employerID string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the simulated link pipeline and print the payroll snapshot",
		Long: `Run Start, Link and the snapshot fetch through the connection controller
with placeholder credentials. No provider calls are made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), logger(), employerID)
		},
	}
	cmd.Flags().StringVar(&employerID, "employer", "emp_demo", "employer id attached to the link session")
	return cmd
}

func runSimulation(ctx context.Context, out io.Writer, logger glog.Logger, employerID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	service, err := payrolllink.NewService(core.Config{}, serviceLoggerOptions(logger)...)
	if err != nil {
		return fmt.Errorf("new service: %w", err)
	}
	controller, err := connection.NewController(service, connection.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("new controller: %w", err)
	}

	report := simulationReport{}
	unsubscribe := controller.Subscribe(func(transition connection.Transition) {
		report.Transitions = append(report.Transitions, transition.To.String())
	})
	defer unsubscribe()

	if _, err := controller.Start(ctx, core.UserIdentity{UserID: "cli", EmployerID: employerID}); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	snapshot, err := controller.Link(ctx)
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}
	access, ok := controller.AccessCredential()
	if !ok {
		return fmt.Errorf("simulation ended in %s without an access credential", snapshot.State)
	}
	payroll, err := service.FetchPayrollSnapshot(ctx, access)
	if err != nil {
		return fmt.Errorf("fetch payroll snapshot: %w", err)
	}

	report.State = snapshot.State.String()
	report.ItemID = snapshot.ItemID
	report.Snapshot = payroll

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
