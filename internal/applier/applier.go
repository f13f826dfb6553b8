package applier

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/gaissmai/bart"
	"github.com/sirupsen/logrus"

	"github.com/hiro-hcu/srv6-orchestrator/internal/orcherr"
)

// Executor is the subset of Shell that table-apply logic depends on,
// letting tests substitute a fake remote router.
type Executor interface {
	Run(command string) (CommandResult, error)
}

// TableSpec is everything needed to replace one policy table's contents:
// name, destination prefix, egress interface, and SID list.
type TableSpec struct {
	TableName string
	Dest      string // e.g. "fd03:1::/64"
	Iface     string
	Segments  []string
}

// installedPrefixes runs `ip -6 route show table <T>` and parses the
// leading destination field of each line as a netip.Prefix, skipping
// anything that doesn't look like an IPv6 prefix. Shared by ListTable and
// ClearTable so the two never drift on what counts as a parseable route.
func installedPrefixes(e Executor, table string) ([]netip.Prefix, error) {
	res, err := e.Run(fmt.Sprintf("ip -6 route show table %s", table))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 || strings.TrimSpace(res.Stdout) == "" {
		return nil, nil
	}

	var prefixes []netip.Prefix
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		dest := fields[0]
		if !strings.Contains(dest, "::") || !strings.Contains(dest, "/") {
			continue
		}
		pfx, perr := netip.ParsePrefix(dest)
		if perr != nil {
			continue
		}
		prefixes = append(prefixes, pfx)
	}
	return prefixes, nil
}

// ListTable returns the set of destination prefixes currently installed in
// table as a bart.Lite — a longest-prefix-match set used in tests to assert
// table-isolation (spec.md section 8, invariant 8). ClearTable does not use
// it; it deletes from installedPrefixes directly.
func ListTable(e Executor, table string) (*bart.Lite, error) {
	prefixes, err := installedPrefixes(e, table)
	if err != nil {
		return nil, err
	}
	lite := &bart.Lite{}
	for _, pfx := range prefixes {
		lite.Insert(pfx)
	}
	return lite, nil
}

// ClearTable deletes every IPv6-prefix route currently installed in table.
// Per-entry delete failures are logged but non-fatal (spec.md section 4.5
// step 2): a table that fails to fully clear still gets the add attempt.
func ClearTable(e Executor, table string) error {
	prefixes, err := installedPrefixes(e, table)
	if err != nil {
		return err
	}

	for _, pfx := range prefixes {
		del, err := e.Run(fmt.Sprintf("ip -6 route del %s table %s", pfx, table))
		if err != nil {
			logrus.WithFields(logrus.Fields{"table": table, "prefix": pfx, "error": err}).Warn("route delete failed")
			continue
		}
		if del.ExitCode != 0 && !IsIdempotentFailure(del.Stderr) {
			logrus.WithFields(logrus.Fields{"table": table, "prefix": pfx, "stderr": del.Stderr}).Warn("route delete failed")
		}
	}
	return nil
}

// ApplyTable clears table then installs the single seg6-encap route
// described by spec, per spec.md section 4.5's clear-then-add contract.
// Re-adding an already-present route (detected via the idempotent stderr
// markers) is treated as success (spec.md's idempotence requirement).
func ApplyTable(e Executor, spec TableSpec) error {
	if err := ClearTable(e, spec.TableName); err != nil {
		logrus.WithFields(logrus.Fields{"table": spec.TableName, "error": err}).Warn("table clear failed")
	}

	sidList := strings.Join(spec.Segments, ",")
	cmd := fmt.Sprintf(
		"ip -6 route add %s encap seg6 mode encap segs %s dev %s table %s",
		spec.Dest, sidList, spec.Iface, spec.TableName,
	)

	res, err := e.Run(cmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && !IsIdempotentFailure(res.Stderr) {
		return &orcherr.CommandError{Command: cmd, Stderr: res.Stderr}
	}
	return nil
}

// ApplyDirection applies every table in specs over one shared connection,
// per spec.md section 4.5 ("reuse of a single connection across all three
// tables of one direction"). It never aborts early: every spec is
// attempted regardless of earlier failures, and the returned count is the
// number that succeeded. A direction counts as fully successful only when
// appliedCount == len(specs) (spec.md section 4.5).
func ApplyDirection(e Executor, specs []TableSpec) (appliedCount int, errs []error) {
	for _, spec := range specs {
		if err := ApplyTable(e, spec); err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", spec.TableName, err))
			continue
		}
		appliedCount++
	}
	return appliedCount, errs
}
