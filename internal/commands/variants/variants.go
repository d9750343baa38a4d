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

package variants

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
	"github.com/kevinjin420/jaseci-llmdocs/internal/variant"
)

// NewCommand creates the variants command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List documentation variants",
		Long: `List the documentation variants the daemon can benchmark.

Variants are discovered from the daemon's docs directory and
re-scanned automatically when files change.

Examples:
  jacbench variants
  jacbench variants --json`,
		Args: cobra.NoArgs,
		RunE: runVariants,
	}
}

func runVariants(cmd *cobra.Command, args []string) error {
	c, err := client.FromEnvironment()
	if err != nil {
		return err
	}

	variants, err := c.Variants(cmd.Context())
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			Variants []variant.Variant `json:"variants"`
			Count    int               `json:"count"`
		}
		return shared.EmitJSON(response{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "variants", Success: true},
			Variants:     variants,
			Count:        len(variants),
		})
	}

	if len(variants) == 0 {
		fmt.Println("No variants available")
		return nil
	}

	fmt.Printf("%-20s %s\n", "VARIANT", "SIZE")
	for _, v := range variants {
		fmt.Printf("%-20s %s\n", v.Name, formatSize(v.Size))
	}
	return nil
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
