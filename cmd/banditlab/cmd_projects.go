// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AleutianAI/banditlab/services/bandit/store"
	"github.com/spf13/cobra"
)

// storeFlags is shared by commands that only read or edit the store.
type storeFlags struct {
	path    string
	jsonOut bool
}

func (f *storeFlags) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.path, "store", "", "store path (default from config or BANDITLAB_STORE_PATH)")
	cmd.PersistentFlags().BoolVar(&f.jsonOut, "json", false, "print results as JSON")
}

// withStore opens the store for the duration of fn.
func withStore(a *app, f *storeFlags, fn func(*store.Store) error) error {
	st, err := a.openStore(a.storePath(f.path))
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newProjectsCmd(a *app) *cobra.Command {
	flags := &storeFlags{}
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Manage stored bandit projects",
	}
	flags.bind(cmd)

	var (
		description string
		means       []float64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project with fixed arm means",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(means) == 0 {
				means = a.cfg.Simulation.Means
			}
			return withStore(a, flags, func(st *store.Store) error {
				p, err := st.CreateProject(cmd.Context(), description, means)
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return writeJSON(a, p)
				}
				a.out.Success("created project " + p.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "project description (required)")
	create.Flags().Float64SliceVar(&means, "means", nil, "true arm means (default from config)")
	_ = create.MarkFlagRequired("description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(a, flags, func(st *store.Store) error {
				projects, err := st.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return writeJSON(a, projects)
				}
				if len(projects) == 0 {
					a.out.Info("no projects")
					return nil
				}
				printProjects(a, projects)
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its arms and runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(a, flags, func(st *store.Store) error {
				ctx := cmd.Context()
				p, err := st.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				arms, err := st.Arms(ctx, p.ID)
				if err != nil {
					return err
				}
				runs, err := st.ListRuns(ctx, p.ID)
				if err != nil {
					return err
				}

				if flags.jsonOut {
					return writeJSON(a, struct {
						Project *store.Project `json:"project"`
						Arms    []*store.Arm   `json:"arms"`
						Runs    []*store.Run   `json:"runs"`
					}{p, arms, runs})
				}

				a.out.Title(p.Description)
				a.out.KeyValue(
					[2]string{"id", p.ID},
					[2]string{"arms", strconv.Itoa(p.NumberBandits)},
					[2]string{"means", fmt.Sprint(p.Means)},
					[2]string{"best arm", strconv.Itoa(p.BestArm())},
					[2]string{"most pulled", optInt(p.OptimalArm)},
					[2]string{"last run", optTime(p.LastAlgorithmRun)},
				)
				printArms(a, arms)
				if len(runs) > 0 {
					printStoredRuns(a, runs)
				}
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project with its arms and runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(a, flags, func(st *store.Store) error {
				if err := st.DeleteProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.out.Success("deleted project " + args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, show, del)
	return cmd
}
