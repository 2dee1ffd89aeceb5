package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"
	"gopkg.in/yaml.v3"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	fieldStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func styled(style lipgloss.Style) table.Formatter {
	return func(format string, vals ...interface{}) string {
		return style.Render(fmt.Sprintf(format, vals...))
	}
}

// StatusOutput is what `simtray status` reports.
type StatusOutput struct {
	ConfigPath      string `json:"config_path" yaml:"config_path"`
	DataDir         string `json:"data_dir" yaml:"data_dir"`
	InstallDir      string `json:"install_dir" yaml:"install_dir"`
	Executable      string `json:"executable" yaml:"executable"`
	Installed       bool   `json:"installed" yaml:"installed"`
	LastInstalledID string `json:"last_installed_id,omitempty" yaml:"last_installed_id,omitempty"`
	PendingUpdate   bool   `json:"pending_update" yaml:"pending_update"`
	MenuLabel       string `json:"menu_label" yaml:"menu_label"`
	Running         bool   `json:"running" yaml:"running"`
	PID             int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	URL             string `json:"url" yaml:"url"`
}

// Status collects the on-disk state and the process state.
func (a *App) Status(configPath string, menuLabel func(available bool) string) *StatusOutput {
	snap := a.Store.Snapshot()
	exe := a.Supervisor.ExecutablePath()
	_, err := os.Stat(exe)
	pid, running := a.Supervisor.PID()

	return &StatusOutput{
		ConfigPath:      configPath,
		DataDir:         snap.Dir,
		InstallDir:      filepath.Dir(exe),
		Executable:      exe,
		Installed:       err == nil,
		LastInstalledID: snap.LastInstalledID,
		PendingUpdate:   snap.PendingUpdate,
		MenuLabel:       menuLabel(a.Coordinator.Available()),
		Running:         running,
		PID:             pid,
		URL:             a.Config.Process.URL,
	}
}

// PrintStatus prints status as a two-column table.
func PrintStatus(w io.Writer, s *StatusOutput) {
	tbl := table.New("Field", "Value").WithWriter(w)
	tbl.WithHeaderFormatter(styled(headerStyle)).WithFirstColumnFormatter(styled(fieldStyle))

	lastID := s.LastInstalledID
	if lastID == "" {
		lastID = "(none)"
	}
	process := "stopped"
	if s.Running {
		process = fmt.Sprintf("running (pid %d)", s.PID)
	}

	tbl.AddRow("Config", s.ConfigPath)
	tbl.AddRow("Data dir", s.DataDir)
	tbl.AddRow("Executable", s.Executable)
	tbl.AddRow("Installed", s.Installed)
	tbl.AddRow("Release", lastID)
	tbl.AddRow("Pending", s.PendingUpdate)
	tbl.AddRow("Process", process)
	tbl.AddRow("URL", s.URL)
	tbl.AddRow("Action", s.MenuLabel)
	tbl.Print()
}

// PrintStatusJSON prints status as indented JSON.
func PrintStatusJSON(w io.Writer, s *StatusOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// PrintStatusYAML prints status as YAML.
func PrintStatusYAML(w io.Writer, s *StatusOutput) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
