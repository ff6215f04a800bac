package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List live rooms on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newClient().Rooms(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list.Rooms) == 0 {
				fmt.Fprintln(out, "no active rooms")
				return nil
			}

			table := newTable(out, "Room", "Sessions", "Messages")
			for _, r := range list.Rooms {
				table.Append([]string{r.RoomKey, strconv.Itoa(r.Sessions), strconv.FormatUint(r.TotalMessages, 10)})
			}
			table.Render()
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show a room's active users and message count",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoom(); err != nil {
				return err
			}
			info, err := newClient().Info(cmd.Context(), flagRoom)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Room:      %s\n", info.RoomKey)
			fmt.Fprintf(out, "Messages:  %d\n", info.TotalMessages)
			if info.RoomCreated != nil {
				fmt.Fprintf(out, "Created:   %s\n", info.RoomCreated.Local().Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "Online:    %d\n", info.ActiveUserCount)
			if len(info.ActiveUsers) == 0 {
				return nil
			}

			fmt.Fprintln(out)
			table := newTable(out, "Identity", "Display name", "Joined")
			for _, u := range info.ActiveUsers {
				table.Append([]string{u.Identity, u.DisplayName, u.JoinedAt.Local().Format("15:04:05")})
			}
			table.Render()
			return nil
		},
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
