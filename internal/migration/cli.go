package migration

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// CLI 把 Migrator 的操作包装成面向终端的子命令执行器
type CLI struct {
	m   *Migrator
	out io.Writer
}

// NewCLI 创建命令执行器，输出写入 out
func NewCLI(m *Migrator, out io.Writer) *CLI {
	return &CLI{m: m, out: out}
}

// Up 应用所有待执行迁移并打印到达的版本
func (c *CLI) Up() error {
	fmt.Fprintln(c.out, "Applying breed standards schema migrations...")
	if err := c.m.Up(); err != nil {
		return err
	}
	return c.printVersionLine("Schema up to date at version %d\n")
}

// Rollback 回滚最近一个迁移
func (c *CLI) Rollback() error {
	fmt.Fprintln(c.out, "Rolling back last migration...")
	if err := c.m.Rollback(); err != nil {
		return err
	}
	return c.printVersionLine("Rolled back to version %d\n")
}

// Reset 回滚全部迁移
func (c *CLI) Reset() error {
	fmt.Fprintln(c.out, "Rolling back all migrations...")
	if err := c.m.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Schema reset to empty.")
	return nil
}

// Goto 迁移到指定版本
func (c *CLI) Goto(version uint) error {
	fmt.Fprintf(c.out, "Migrating schema to version %d...\n", version)
	if err := c.m.Goto(version); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Schema at version %d\n", version)
	return nil
}

// Force 强制改写版本记录
func (c *CLI) Force(version int) error {
	if err := c.m.Force(version); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Version record forced to %d\n", version)
	return nil
}

// Version 打印当前版本
func (c *CLI) Version() error {
	version, dirty, err := c.m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Fprintln(c.out, "No migrations applied yet.")
		return nil
	}
	if dirty {
		fmt.Fprintf(c.out, "Current version: %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(c.out, "Current version: %d\n", version)
	return nil
}

// Status 打印每个迁移的应用状态与汇总
func (c *CLI) Status() error {
	statuses, err := c.m.Statuses()
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")

	applied := 0
	for _, s := range statuses {
		state := "pending"
		switch {
		case s.Dirty:
			state = "dirty"
		case s.Applied:
			state = "applied"
		}
		if s.Applied {
			applied++
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, state)
	}
	w.Flush()

	fmt.Fprintf(c.out, "\n%d of %d applied, %d pending\n",
		applied, len(statuses), len(statuses)-applied)
	return nil
}

func (c *CLI) printVersionLine(format string) error {
	version, _, err := c.m.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, format, version)
	return nil
}
