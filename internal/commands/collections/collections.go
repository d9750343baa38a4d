// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package collections

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/collection"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
)

// NewCommand creates the collections command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"coll"},
		Short:   "Group artifacts into named collections",
		Long: `Group artifacts of the same model and variant into named
collections for aggregate statistics.

A collection only admits artifacts sharing its first member's model
and variant, so its mean and standard deviation describe one
configuration rather than a mix.

Commands:
  create    Create a collection from artifact IDs
  list      List collections
  show      Show a collection with aggregate stats
  add       Add an artifact to a collection
  remove    Remove an artifact from a collection
  delete    Delete a collection (artifacts are kept)

Examples:
  jacbench collections create gpt4o-baseline gpt-4o-full-20250817_143022
  jacbench collections show gpt4o-baseline
  jacbench collections add gpt4o-baseline gpt-4o-full-20250818_091512`,
	}

	cmd.AddCommand(newCreateCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newRemoveCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

func newCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <artifact-id>...",
		Short: "Create a collection from artifact IDs",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.FromEnvironment()
			if err != nil {
				return err
			}
			coll, err := c.CreateCollection(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			if shared.GetJSON() {
				return emitCollection("collections", coll)
			}
			fmt.Printf("%s\n", shared.RenderOK(fmt.Sprintf(
				"Created collection %q with %d artifact(s)", coll.Name, len(coll.ArtifactIDs))))
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.FromEnvironment()
			if err != nil {
				return err
			}
			colls, err := c.ListCollections(cmd.Context())
			if err != nil {
				return err
			}

			if shared.GetJSON() {
				type response struct {
					shared.JSONResponse
					Collections []*store.Collection `json:"collections"`
					Count       int                 `json:"count"`
				}
				return shared.EmitJSON(response{
					JSONResponse: shared.JSONResponse{Version: "1.0", Command: "collections", Success: true},
					Collections:  colls,
					Count:        len(colls),
				})
			}

			if len(colls) == 0 {
				fmt.Println("No collections")
				return nil
			}
			fmt.Printf("%-24s %-24s %-10s %-10s %s\n", "NAME", "MODEL", "VARIANT", "ARTIFACTS", "CREATED")
			for _, coll := range colls {
				fmt.Printf("%-24s %-24s %-10s %-10d %s\n",
					coll.Name, coll.Metadata.Model, coll.Metadata.Variant,
					len(coll.ArtifactIDs), coll.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a collection with aggregate stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.FromEnvironment()
			if err != nil {
				return err
			}
			detail, err := c.GetCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if shared.GetJSON() {
				type response struct {
					shared.JSONResponse
					Collection *store.Collection `json:"collection"`
					Stats      *collection.Stats `json:"stats"`
				}
				return shared.EmitJSON(response{
					JSONResponse: shared.JSONResponse{Version: "1.0", Command: "collections", Success: true},
					Collection:   detail.Collection,
					Stats:        detail.Stats,
				})
			}

			printDetail(detail)
			return nil
		},
	}
}

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <artifact-id>",
		Short: "Add an artifact to a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.FromEnvironment()
			if err != nil {
				return err
			}
			coll, err := c.AddToCollection(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if shared.GetJSON() {
				return emitCollection("collections", coll)
			}
			fmt.Printf("%s\n", shared.RenderOK(fmt.Sprintf(
				"Added %s to %q (%d artifacts)", args[1], coll.Name, len(coll.ArtifactIDs))))
			return nil
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name> <artifact-id>",
		Short: "Remove an artifact from a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.FromEnvironment()
			if err != nil {
				return err
			}
			coll, err := c.RemoveFromCollection(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if shared.GetJSON() {
				return emitCollection("collections", coll)
			}
			fmt.Printf("%s\n", shared.RenderOK(fmt.Sprintf(
				"Removed %s from %q (%d artifacts left)", args[1], coll.Name, len(coll.ArtifactIDs))))
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection (artifacts are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.FromEnvironment()
			if err != nil {
				return err
			}
			if err := c.DeleteCollection(cmd.Context(), args[0]); err != nil {
				return err
			}
			if shared.GetJSON() {
				type response struct {
					shared.JSONResponse
					Name string `json:"name"`
				}
				return shared.EmitJSON(response{
					JSONResponse: shared.JSONResponse{Version: "1.0", Command: "collections", Success: true},
					Name:         args[0],
				})
			}
			fmt.Printf("%s\n", shared.RenderOK("Deleted collection "+args[0]))
			return nil
		},
	}
}

func printDetail(detail *client.CollectionDetail) {
	coll := detail.Collection
	stats := detail.Stats

	fmt.Printf("%s %s\n", shared.RenderLabel("Collection:"), coll.Name)
	fmt.Printf("%s %s / %s\n", shared.RenderLabel("Config:"), stats.Model, stats.Variant)
	fmt.Printf("%s %d artifact(s), %d evaluated\n", shared.RenderLabel("Members:"),
		stats.Artifacts, stats.Evaluated)

	if stats.Evaluated > 0 {
		fmt.Printf("%s %.2f%% ± %.2f\n", shared.RenderLabel("Mean:"), stats.Mean, stats.StdDev)
		if len(stats.CategoryMeans) > 0 {
			fmt.Printf("\n%s\n", shared.Header.Render("Category means"))
			for _, name := range collection.SortedCategories(stats.CategoryMeans) {
				fmt.Printf("  %-22s %6.2f%%\n", name, stats.CategoryMeans[name])
			}
		}
	}

	fmt.Printf("\n%s\n", shared.Header.Render("Artifacts"))
	for _, id := range coll.ArtifactIDs {
		fmt.Printf("  %s\n", id)
	}
}

func emitCollection(command string, coll *store.Collection) error {
	type response struct {
		shared.JSONResponse
		Collection *store.Collection `json:"collection"`
	}
	return shared.EmitJSON(response{
		JSONResponse: shared.JSONResponse{Version: "1.0", Command: command, Success: true},
		Collection:   coll,
	})
}
