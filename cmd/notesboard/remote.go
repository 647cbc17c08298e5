/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"notesboard/internal/backend"
	"notesboard/internal/board"
)

// EnvServerToken is the bearer token sent to a board server.
const EnvServerToken = "NB_SERVER_TOKEN"

func remoteCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Exchange boards with a running notesboard server",
	}
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv(EnvServerToken), "bearer token for the server")
	client := func(url string) *backend.Client { return backend.NewClient(url, token) }

	pull := &cobra.Command{
		Use:   "pull <dir> <server-url>",
		Short: "Replace the local board with the server's scene",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := client(args[1]).Scene(cmd.Context())
			if err != nil {
				return err
			}
			_, err = mutate(cmd.Context(), args[0], "pull", func(b *board.Board) error {
				return b.Replace(s)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pulled %d items\n", s.Len())
			return nil
		},
	}
	push := &cobra.Command{
		Use:   "push <dir> <server-url>",
		Short: "Replace the server's scene with the local board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := openBoard(args[0])
			if err != nil {
				return err
			}
			if err := client(args[1]).ReplaceScene(cmd.Context(), ws.Scene); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d items\n", ws.Scene.Len())
			return nil
		},
	}
	boards := &cobra.Command{
		Use:   "boards <server-url>",
		Short: "List the named boards stored by the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := client(args[0]).Boards(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVERSION\tITEMS\tUPDATED")
			for _, b := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", b.Name, b.Version, b.Items, b.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(pull, push, boards)
	return cmd
}
