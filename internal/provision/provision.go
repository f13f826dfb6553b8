// Package provision installs the one-shot invariants an edge router must
// satisfy before the orchestration loop can run meaningfully: numbered
// routing tables, fwmark-to-table rules, and Flow-Label classification
// rules (spec.md section 4.7). Grounded on
// original_source/controller/srv6-path-orchestrator/r1_phase1_table_setup.py
// (tables and rules) and r16_phase2_nftables_setup.py (mangle table, chain,
// and Flow-Label rules).
package provision

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hiro-hcu/srv6-orchestrator/internal/applier"
	"github.com/hiro-hcu/srv6-orchestrator/internal/config"
)

// Config is the per-edge provisioning input: the table/mark/rule-priority
// triples and the Flow-Label-to-mark classification mapping.
type Config struct {
	Tables          []config.Table
	FlowLabelValues []string // exactly two; the rest of the traffic hits the catch-all
	DefaultMark     int

	MangleTable string // e.g. "ip6 mangle_r1"
	Chain       string // e.g. "prerouting_r1"
}

// Provisioner drives setup/verify/cleanup against one edge router over a
// shared Executor.
type Provisioner struct {
	Exec applier.Executor
	Cfg  Config
}

func New(exec applier.Executor, cfg Config) *Provisioner {
	return &Provisioner{Exec: exec, Cfg: cfg}
}

// Setup installs routing tables, fwmark rules, and Flow-Label
// classification rules, in that order. Tables and fwmark rules already
// present are skipped, and "already exists" on create is success. The
// Flow-Label and catch-all rules are appended on every run, so a repeated
// Setup adds another copy of them to the chain.
func (p *Provisioner) Setup() error {
	if err := p.setupTables(); err != nil {
		return err
	}
	if err := p.setupRules(); err != nil {
		return err
	}
	if err := p.setupClassifier(); err != nil {
		return err
	}
	return nil
}

// setupTables appends each table's "<id> <name>" line to the routing-table
// names file, skipping any already present.
func (p *Provisioner) setupTables() error {
	existing, err := p.Exec.Run("cat /etc/iproute2/rt_tables")
	if err != nil {
		return err
	}

	for _, tbl := range p.Cfg.Tables {
		if strings.Contains(existing.Stdout, tbl.Name) {
			logrus.WithField("table", tbl.Name).Info("routing table already present")
			continue
		}
		cmd := fmt.Sprintf("echo '%d %s' >> /etc/iproute2/rt_tables", tbl.ID, tbl.Name)
		res, err := p.Exec.Run(cmd)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 && !applier.IsIdempotentFailure(res.Stderr) {
			return fmt.Errorf("add table %s: %s", tbl.Name, res.Stderr)
		}
		logrus.WithField("table", tbl.Name).Info("routing table added")
	}
	return nil
}

// setupRules installs one `ip -6 rule add pref <P> fwmark <M> table <T>`
// per table, at the table's configured priority. Lower priority number
// matches first (spec.md section 4.7).
func (p *Provisioner) setupRules() error {
	existing, err := p.Exec.Run("ip -6 rule show")
	if err != nil {
		return err
	}

	for _, tbl := range p.Cfg.Tables {
		markToken := fmt.Sprintf("fwmark 0x%x", tbl.Mark)
		if strings.Contains(existing.Stdout, markToken) && strings.Contains(existing.Stdout, tbl.Name) {
			logrus.WithFields(logrus.Fields{"mark": tbl.Mark, "table": tbl.Name}).Info("rule already present")
			continue
		}
		cmd := fmt.Sprintf("ip -6 rule add pref %d fwmark %d table %s", tbl.Priority, tbl.Mark, tbl.Name)
		res, err := p.Exec.Run(cmd)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 && !applier.IsIdempotentFailure(res.Stderr) {
			return fmt.Errorf("add rule mark=%d table=%s: %s", tbl.Mark, tbl.Name, res.Stderr)
		}
		logrus.WithFields(logrus.Fields{"mark": tbl.Mark, "table": tbl.Name, "pref": tbl.Priority}).Info("rule added")
	}
	return nil
}

// setupClassifier creates the mangle table and prerouting chain, then
// appends Flow-Label match rules in priority order with the catch-all last
// and guarded by mark==0, so it never overwrites a mark a higher-priority
// rule already set (spec.md section 4.7).
func (p *Provisioner) setupClassifier() error {
	res, err := p.Exec.Run(fmt.Sprintf("nft add table %s", p.Cfg.MangleTable))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && !applier.IsIdempotentFailure(res.Stderr) {
		return fmt.Errorf("create mangle table: %s", res.Stderr)
	}

	chainCmd := fmt.Sprintf("nft 'add chain %s %s { type filter hook prerouting priority mangle; }'",
		p.Cfg.MangleTable, p.Cfg.Chain)
	res, err = p.Exec.Run(chainCmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && !applier.IsIdempotentFailure(res.Stderr) {
		return fmt.Errorf("create prerouting chain: %s", res.Stderr)
	}

	for i, tbl := range p.Cfg.Tables {
		if i >= len(p.Cfg.FlowLabelValues) {
			break
		}
		label := p.Cfg.FlowLabelValues[i]
		cmd := fmt.Sprintf("nft add rule %s %s ip6 flowlabel %s mark set %d",
			p.Cfg.MangleTable, p.Cfg.Chain, label, tbl.Mark)
		res, err := p.Exec.Run(cmd)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 && !applier.IsIdempotentFailure(res.Stderr) {
			return fmt.Errorf("add flow-label rule %s: %s", label, res.Stderr)
		}
	}

	// Catch-all: must be last, and guarded by mark==0 so traffic already
	// classified by a higher-priority rule is never reclassified.
	catchAllCmd := fmt.Sprintf("nft add rule %s %s mark 0 mark set %d",
		p.Cfg.MangleTable, p.Cfg.Chain, p.Cfg.DefaultMark)
	res, err = p.Exec.Run(catchAllCmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && !applier.IsIdempotentFailure(res.Stderr) {
		return fmt.Errorf("add catch-all rule: %s", res.Stderr)
	}
	return nil
}

// Verify checks the routing-table names and fwmark rules Setup installs and
// returns false on the first missing one, logging which check failed. The
// nftables classifier rules are not checked.
func (p *Provisioner) Verify() (bool, error) {
	tables, err := p.Exec.Run("cat /etc/iproute2/rt_tables")
	if err != nil {
		return false, err
	}
	for _, tbl := range p.Cfg.Tables {
		want := fmt.Sprintf("%d %s", tbl.ID, tbl.Name)
		if !strings.Contains(tables.Stdout, want) {
			logrus.WithField("table", tbl.Name).Error("table not present")
			return false, nil
		}
	}

	rules, err := p.Exec.Run("ip -6 rule show")
	if err != nil {
		return false, err
	}
	for _, tbl := range p.Cfg.Tables {
		markToken := "fwmark 0x" + strconv.FormatInt(int64(tbl.Mark), 16)
		if !strings.Contains(rules.Stdout, markToken) || !strings.Contains(rules.Stdout, tbl.Name) {
			logrus.WithFields(logrus.Fields{"mark": tbl.Mark, "table": tbl.Name}).Error("rule not present")
			return false, nil
		}
	}

	return true, nil
}

// Cleanup removes the fwmark rules installed by Setup. "Does not exist" on
// delete is treated as success (spec.md section 4.7).
func (p *Provisioner) Cleanup() error {
	for _, tbl := range p.Cfg.Tables {
		cmd := fmt.Sprintf("ip -6 rule del fwmark %d table %s", tbl.Mark, tbl.Name)
		res, err := p.Exec.Run(cmd)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 && !applier.IsIdempotentFailure(res.Stderr) {
			logrus.WithFields(logrus.Fields{"mark": tbl.Mark, "stderr": res.Stderr}).Warn("rule delete failed")
			continue
		}
		logrus.WithField("mark", tbl.Mark).Info("rule removed")
	}
	return nil
}
