package publish

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/dl-alexandre/drivemirror/internal/sync/diff"
	"github.com/dl-alexandre/drivemirror/internal/types"
)

// ForkReport is what one fork contributed to a run.
type ForkReport struct {
	Path      string
	DriveURL  string
	Changes   []diff.Action
	Untracked []types.UntrackedItem
	Failures  []types.ItemFailure
}

// RenderBody builds the pull request description. The output depends only on
// the reports' contents, never on their order.
func RenderBody(reports []ForkReport) string {
	sorted := append([]ForkReport(nil), reports...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var b strings.Builder
	b.WriteString("Automated mirror of Google Drive content.\n")
	for _, r := range sorted {
		fmt.Fprintf(&b, "\n### `%s`", r.Path)
		if r.DriveURL != "" {
			fmt.Fprintf(&b, " ([Drive folder](%s))", r.DriveURL)
		}
		b.WriteString("\n\n")

		if len(r.Changes) == 0 {
			b.WriteString("No changes.\n")
		} else {
			b.WriteString(markdownTable([]string{"Change", "Path", "Reason"}, changeRows(r)))
		}

		if len(r.Untracked) > 0 {
			b.WriteString("\n#### Untracked items\n\n")
			b.WriteString(markdownTable([]string{"Name", "Path", "Owner", "Resolution"}, untrackedRows(r.Untracked)))
		}
		if len(r.Failures) > 0 {
			b.WriteString("\n#### Failed items\n\n")
			b.WriteString(markdownTable([]string{"Path", "Operation", "Error"}, failureRows(r.Failures)))
		}
	}
	return b.String()
}

func changeRows(r ForkReport) [][]string {
	actions := append([]diff.Action(nil), r.Changes...)
	sort.Slice(actions, func(i, j int) bool {
		if actions[i].Path != actions[j].Path {
			return actions[i].Path < actions[j].Path
		}
		return actions[i].Type < actions[j].Type
	})
	rows := make([][]string, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, []string{string(a.Type), code(path.Join(r.Path, a.Path)), a.Reason})
	}
	return rows
}

func untrackedRows(items []types.UntrackedItem) [][]string {
	sorted := append([]types.UntrackedItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].ID < sorted[j].ID
	})
	rows := make([][]string, 0, len(sorted))
	for _, u := range sorted {
		name := u.Name
		if u.URL != "" {
			name = fmt.Sprintf("[%s](%s)", u.Name, u.URL)
		}
		resolution := u.Resolution
		if u.Error != "" {
			resolution += ": " + u.Error
		}
		rows = append(rows, []string{name, code(u.Path), u.OwnerEmail, resolution})
	}
	return rows
}

func failureRows(failures []types.ItemFailure) [][]string {
	sorted := append([]types.ItemFailure(nil), failures...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].Op < sorted[j].Op
	})
	rows := make([][]string, 0, len(sorted))
	for _, f := range sorted {
		rows = append(rows, []string{code(f.Path), f.Op, f.Error})
	}
	return rows
}

func code(s string) string {
	if s == "" {
		return ""
	}
	return "`" + s + "`"
}

func markdownTable(headers []string, rows [][]string) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, row := range rows {
		escaped := make([]string, len(row))
		for i, cell := range row {
			escaped[i] = strings.NewReplacer("|", `\|`, "\n", " ").Replace(cell)
		}
		table.Append(escaped)
	}
	table.Render()
	return buf.String()
}
