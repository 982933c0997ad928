package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/tinoosan/modsync/internal/install"
	"github.com/tinoosan/modsync/internal/service"
)

// printSummary writes one block per game: counters, failed mods and where
// the loader tree ended up.
func printSummary(out io.Writer, rep service.Report) {
	for _, g := range rep.Games {
		st := g.Stats
		status := color.GreenString("OK")
		if g.Failed() {
			status = color.RedString("FAILED")
		}
		_, _ = fmt.Fprintf(out, "%s %s: %d mods, %d downloaded, %d extracted, %d installed\n",
			status, g.Game.Name, st.Total, st.Downloaded, st.Extracted, g.Install.Installed())

		for _, o := range g.Outcomes {
			if !o.OK() {
				_, _ = fmt.Fprintf(out, "  %s %s: %s\n", color.RedString(o.Status()), o.Mod.NameID, o.Message())
			}
		}
		for _, m := range g.Install.Mods {
			switch m.Status {
			case install.StatusInstalled:
			case install.StatusLoaderDisabled:
				_, _ = fmt.Fprintf(out, "  %s %s\n", color.YellowString(string(m.Status)), m.Mod.NameID)
			default:
				_, _ = fmt.Fprintf(out, "  %s %s: %v\n", color.RedString(string(m.Status)), m.Mod.NameID, m.Err)
			}
		}

		switch {
		case g.Install.PublishErr != nil:
			_, _ = fmt.Fprintf(out, "  %s %s: %v\n", color.RedString("publish failed"), g.Install.PublishDir, g.Install.PublishErr)
		case g.Install.Published:
			_, _ = fmt.Fprintf(out, "  published to %s\n", g.Install.PublishDir)
		}
	}
	_, _ = fmt.Fprintf(out, "operation %s\n", rep.OperationID)
}
