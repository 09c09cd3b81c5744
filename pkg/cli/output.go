// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// OutputFormat defines the output format type.
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatTable OutputFormat = "table"
)

// OperationResult holds the result of an operation.
type OperationResult struct {
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	Data    any    `json:"data,omitempty" yaml:"data,omitempty"`
}

// StatusInfo is the printable form of a common.FileStatus.
type StatusInfo struct {
	Path        string    `json:"path" yaml:"path"`
	Type        string    `json:"type" yaml:"type"`
	Length      int64     `json:"length" yaml:"length"`
	Permission  string    `json:"permission" yaml:"permission"`
	Owner       string    `json:"owner" yaml:"owner"`
	Group       string    `json:"group" yaml:"group"`
	Replication int16     `json:"replication" yaml:"replication"`
	BlockSize   int64     `json:"block_size" yaml:"block_size"`
	ModTime     time.Time `json:"mtime" yaml:"mtime"`
	AccessTime  time.Time `json:"atime" yaml:"atime"`
}

// NewStatusInfo converts a file status for output.
func NewStatusInfo(st common.FileStatus) StatusInfo {
	kind := "file"
	if st.IsDir {
		kind = "directory"
	}
	return StatusInfo{
		Path:        st.Path,
		Type:        kind,
		Length:      st.Length,
		Permission:  fmt.Sprintf("%04o", uint32(st.Mode.Perm())),
		Owner:       st.Owner,
		Group:       st.Group,
		Replication: st.Replication,
		BlockSize:   st.BlockSize,
		ModTime:     st.ModTime,
		AccessTime:  st.AccessTime,
	}
}

// FormatOperationResult formats an operation result in the specified format.
func FormatOperationResult(result *OperationResult, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(result)
	case FormatYAML:
		return formatYAML(result)
	case FormatTable:
		return formatResultTable(result)
	default:
		return formatResultText(result)
	}
}

// FormatError formats an error message in the specified format.
func FormatError(err error, format OutputFormat) string {
	return FormatOperationResult(&OperationResult{Success: false, Error: err.Error()}, format)
}

// FormatStatusList formats a directory listing.
func FormatStatusList(entries []common.FileStatus, format OutputFormat) string {
	infos := make([]StatusInfo, len(entries))
	for i, st := range entries {
		infos[i] = NewStatusInfo(st)
	}

	switch format {
	case FormatJSON:
		return formatJSON(map[string]any{"count": len(infos), "entries": infos})
	case FormatYAML:
		return formatYAML(map[string]any{"count": len(infos), "entries": infos})
	case FormatTable:
		return formatListTable(entries)
	default:
		return formatListText(entries)
	}
}

// FormatStatus formats the status of one path.
func FormatStatus(st common.FileStatus, format OutputFormat) string {
	info := NewStatusInfo(st)
	switch format {
	case FormatJSON:
		return formatJSON(info)
	case FormatYAML:
		return formatYAML(info)
	}

	fields := []field{
		{"Path", info.Path},
		{"Type", info.Type},
		{"Length", fmt.Sprintf("%d (%s)", info.Length, formatSize(info.Length))},
		{"Permission", info.Permission},
		{"Owner", info.Owner},
		{"Group", info.Group},
		{"Replication", fmt.Sprint(info.Replication)},
		{"Block Size", formatSize(info.BlockSize)},
		{"Modified", info.ModTime.Format(time.RFC3339)},
		{"Accessed", info.AccessTime.Format(time.RFC3339)},
	}
	if format == FormatTable {
		return formatFieldTable("Field", fields)
	}
	return formatFieldText(fields)
}

// FormatBlockLocations formats the blocks of a file.
func FormatBlockLocations(p string, blocks []common.BlockLocation, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(map[string]any{"path": p, "blocks": blocks})
	case FormatYAML:
		type blockYAML struct {
			Offset int64    `yaml:"offset"`
			Length int64    `yaml:"length"`
			Hosts  []string `yaml:"hosts"`
		}
		out := make([]blockYAML, len(blocks))
		for i, b := range blocks {
			out[i] = blockYAML{Offset: b.Offset, Length: b.Length, Hosts: b.Names()}
		}
		return formatYAML(map[string]any{"path": p, "blocks": out})
	}

	if len(blocks) == 0 {
		return fmt.Sprintf("No blocks in range for '%s'\n", p)
	}
	if format == FormatTable {
		var b strings.Builder
		b.WriteString("┌──────────────┬──────────────┬────────────────────────────────┐\n")
		b.WriteString("│ Offset       │ Length       │ Hosts                          │\n")
		b.WriteString("├──────────────┼──────────────┼────────────────────────────────┤\n")
		for _, blk := range blocks {
			hosts := truncate(strings.Join(blk.Names(), ","), 30)
			fmt.Fprintf(&b, "│ %-12d │ %-12d │ %-30s │\n", blk.Offset, blk.Length, hosts)
		}
		b.WriteString("└──────────────┴──────────────┴────────────────────────────────┘\n")
		return b.String()
	}

	var b strings.Builder
	for _, blk := range blocks {
		fmt.Fprintf(&b, "%d\t%d\t%s\n", blk.Offset, blk.Length, strings.Join(blk.Names(), ","))
	}
	return b.String()
}

func formatResultText(result *OperationResult) string {
	if result.Success {
		if result.Message != "" {
			return result.Message + "\n"
		}
		return "Operation completed successfully\n"
	}
	return fmt.Sprintf("Error: %s\n", result.Error)
}

func formatResultTable(result *OperationResult) string {
	status, text := "SUCCESS", result.Message
	if !result.Success {
		status, text = "FAILED", result.Error
	}

	output := "┌────────────────────────────────────────────────────────┐\n"
	output += "│ Operation Result                                       │\n"
	output += "├────────────────────────────────────────────────────────┤\n"
	output += fmt.Sprintf("│ Status: %-47s │\n", status)
	if text != "" {
		for _, line := range wrapText(text, 47) {
			output += fmt.Sprintf("│ %-54s │\n", line)
		}
	}
	output += "└────────────────────────────────────────────────────────┘\n"
	return output
}

func formatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": \"failed to marshal JSON: %s\"}\n", err)
	}
	return string(data) + "\n"
}

func formatYAML(v any) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %q\n", "failed to marshal YAML: "+err.Error())
	}
	return string(data)
}

// modeString renders a status in ls form, for example drwxr-xr-x.
func modeString(st common.FileStatus) string {
	kind := "-"
	if st.IsDir {
		kind = "d"
	}
	return kind + (st.Mode & fs.ModePerm).String()[1:]
}

func formatListText(entries []common.FileStatus) string {
	var b strings.Builder
	for _, st := range entries {
		fmt.Fprintf(&b, "%s %3d %-8s %-8s %10d %s %s\n",
			modeString(st), st.Replication, st.Owner, st.Group, st.Length,
			st.ModTime.Format("2006-01-02 15:04"), st.Path)
	}
	return b.String()
}

func formatListTable(entries []common.FileStatus) string {
	if len(entries) == 0 {
		return "No entries found\n"
	}

	var b strings.Builder
	b.WriteString("┌────────────┬──────────┬──────────┬──────────────┬──────────────────────────────────┐\n")
	b.WriteString("│ Mode       │ Owner    │ Group    │ Size         │ Path                             │\n")
	b.WriteString("├────────────┼──────────┼──────────┼──────────────┼──────────────────────────────────┤\n")
	for _, st := range entries {
		fmt.Fprintf(&b, "│ %-10s │ %-8s │ %-8s │ %-12s │ %-32s │\n",
			modeString(st), truncate(st.Owner, 8), truncate(st.Group, 8),
			formatSize(st.Length), truncate(st.Path, 32))
	}
	b.WriteString("└────────────┴──────────┴──────────┴──────────────┴──────────────────────────────────┘\n")
	fmt.Fprintf(&b, "Total: %d entr%s\n", len(entries), plural(len(entries), "y", "ies"))
	return b.String()
}

type field struct {
	label string
	value string
}

func fieldMap(fields []field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if f.value != "" {
			out[strings.ReplaceAll(strings.ToLower(f.label), " ", "_")] = f.value
		}
	}
	return out
}

func formatFieldText(fields []field) string {
	var b strings.Builder
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
		}
	}
	return b.String()
}

func formatFieldTable(heading string, fields []field) string {
	var b strings.Builder
	b.WriteString("┌──────────────────────┬────────────────────────────────────────┐\n")
	fmt.Fprintf(&b, "│ %-20s │ %-38s │\n", heading, "Value")
	b.WriteString("├──────────────────────┼────────────────────────────────────────┤\n")
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(&b, "│ %-20s │ %-38s │\n", truncate(f.label, 20), truncate(f.value, 38))
		}
	}
	b.WriteString("└──────────────────────┴────────────────────────────────────────┘\n")
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// formatSize formats a byte size into a human-readable string.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// truncate shortens s to maxLen characters with a trailing ellipsis.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// wrapText wraps text to fit within maxWidth characters.
func wrapText(text string, maxWidth int) []string {
	if len(text) <= maxWidth {
		return []string{text}
	}

	if !strings.Contains(text, " ") {
		var lines []string
		for len(text) > maxWidth {
			lines = append(lines, text[:maxWidth])
			text = text[maxWidth:]
		}
		if len(text) > 0 {
			lines = append(lines, text)
		}
		return lines
	}

	var lines []string
	var current string
	for _, word := range strings.Fields(text) {
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= maxWidth:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
