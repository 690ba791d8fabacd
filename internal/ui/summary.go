package ui

import (
	"fmt"
	"strings"
)

// CreateSummary holds data for the summary printed after create.
type CreateSummary struct {
	ServerDir  string
	BackupDir  string
	WorldName  string
	Session    string
	Jar        string
	Port       int
	Memory     string
	Downloaded bool
}

// PrintCreateSummary displays where everything ended up after create.
func (u *UI) PrintCreateSummary(s *CreateSummary) {
	if u.quiet {
		return
	}
	w := u.out
	divider := strings.Repeat("═", 54)

	fmt.Fprintln(w)
	fmt.Fprintln(w, u.colorize(colorGreen+colorBold, divider))
	fmt.Fprintln(w, u.colorize(colorGreen+colorBold, "  Server created: "+s.WorldName))
	fmt.Fprintln(w, u.colorize(colorGreen+colorBold, divider))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s  %s\n", u.Bold("Server Directory:"), s.ServerDir)
	fmt.Fprintf(w, "  %s  %s\n", u.Bold("Backup Directory:"), s.BackupDir)
	jar := s.Jar
	if s.Downloaded {
		jar += " (downloaded)"
	}
	fmt.Fprintf(w, "  %s               %s\n", u.Bold("Jar:"), jar)
	fmt.Fprintf(w, "  %s              %d\n", u.Bold("Port:"), s.Port)
	fmt.Fprintf(w, "  %s            %s\n", u.Bold("Memory:"), s.Memory)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Start it with:      spud start\n")
	fmt.Fprintf(w, "  Attach to console:  screen -r %s\n", s.Session)
	fmt.Fprintf(w, "  Detach:             Ctrl+A then D\n")
	fmt.Fprintln(w)
}
