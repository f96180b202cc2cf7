// Package interactive provides the interactive command-line interface
// for foxsync.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/foxsync/foxsync-go/pkg/engine"
	"github.com/foxsync/foxsync-go/pkg/model"
	"github.com/foxsync/foxsync-go/pkg/service"
)

// commandTimeout bounds a single cloud round trip issued from the prompt.
const commandTimeout = 30 * time.Second

// Console handles interactive mode for foxsync.
type Console struct {
	svc *service.SyncService
	rl  *readline.Instance
}

// New creates a new interactive console around a started service.
func New(svc *service.SyncService) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "foxsync> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{svc: svc, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "status", "s":
			c.cmdStatus()

		case "settings":
			c.cmdSettings()

		case "get", "g":
			c.cmdGet(args)

		case "stage", "set":
			c.cmdStage(args)

		case "schedule", "sched":
			c.cmdSchedule(args)

		case "commit":
			c.cmdCommit(args)

		case "dirty", "d":
			c.cmdDirty()

		case "discard":
			c.cmdDiscard(args)

		case "budget", "b":
			c.cmdBudget()

		case "refresh":
			c.cmdRefresh()

		case "watch", "w":
			c.cmdWatch(args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
FoxSync Commands:
  Settings:
    settings                 - List remote settings with staged values
    get <key>                - Show a single setting
    stage <key> <value>      - Stage a setting value for commit
    commit [unit]            - Commit a unit (or everything dirty)

  Schedule:
    schedule                 - Show the remote and staged schedule
    schedule add <HH:MM> <HH:MM> <mode> [fd-power-w]
                             - Append a slot to the staged schedule
    schedule clear           - Stage an empty schedule (disables all slots)

  Staging:
    dirty                    - List dirty units and their last errors
    discard <unit>           - Drop a staged value

  Telemetry:
    status                   - Show device and service status
    refresh                  - Force a telemetry poll now
    watch [seconds]          - Print telemetry until Enter is pressed
    budget                   - Show the API call budget

  General:
    help                     - Show this help
    quit                     - Exit

  Units:
    scheduler                - The inverter schedule
    <setting key>            - e.g. work_mode, min_soc, export_limit`)
}

// cmdStatus shows the device and service status.
func (c *Console) cmdStatus() {
	dev := c.svc.Device()
	caps := c.svc.Capabilities()

	fmt.Fprintln(c.rl.Stdout(), "\nDevice Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  Serial:         %s\n", dev.DeviceSN)
	fmt.Fprintf(c.rl.Stdout(), "  Station:        %s\n", dev.StationName)
	fmt.Fprintf(c.rl.Stdout(), "  Product:        %s (profile %s)\n", dev.ProductType, caps.Profile.ID)
	fmt.Fprintf(c.rl.Stdout(), "  Scheduler:      %v\n", caps.SchedulerSupported)
	fmt.Fprintf(c.rl.Stdout(), "  Service State:  %s\n", c.svc.State())

	health := "healthy"
	if c.svc.Degraded() {
		health = "DEGRADED"
	}
	fmt.Fprintf(c.rl.Stdout(), "  Telemetry:      %s\n", health)

	if snap, ok := c.svc.Snapshot(); ok {
		fmt.Fprintf(c.rl.Stdout(), "  Last Fetch:     %s\n", snap.FetchedAt.Format("15:04:05"))
		if soc, ok := snap.Realtime["SoC"]; ok {
			fmt.Fprintf(c.rl.Stdout(), "  Battery SoC:    %.0f %%\n", soc.Value)
		}
	} else {
		fmt.Fprintf(c.rl.Stdout(), "  Last Fetch:     never\n")
	}

	if dirty := c.svc.Dirty(); len(dirty) > 0 {
		names := make([]string, 0, len(dirty))
		for _, id := range dirty {
			names = append(names, string(id))
		}
		fmt.Fprintf(c.rl.Stdout(), "  Dirty Units:    %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdSettings lists all tracked settings with staged values alongside.
func (c *Console) cmdSettings() {
	snap, ok := c.svc.Snapshot()
	if !ok {
		fmt.Fprintln(c.rl.Stdout(), "No telemetry yet, try 'refresh'")
		return
	}

	keys := make([]string, 0, len(snap.Settings))
	for k := range snap.Settings {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	fmt.Fprintln(c.rl.Stdout(), "\nSettings")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	for _, k := range keys {
		s := snap.Settings[model.SettingKey(k)]
		line := fmt.Sprintf("  %-16s %s", k, s.Value.Raw)
		if s.Unit != "" {
			line += " " + s.Unit
		}
		if v, ok := c.svc.Staged(model.SettingUnit(model.SettingKey(k))); ok {
			if sv, ok := v.Setting(); ok {
				line += fmt.Sprintf("   (staged: %s)", sv.Raw)
			}
		}
		fmt.Fprintln(c.rl.Stdout(), line)
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdGet shows a single setting.
func (c *Console) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: get <key>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: get work_mode")
		return
	}

	key, err := model.CanonicalSettingKey(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}

	snap, ok := c.svc.Snapshot()
	if !ok {
		fmt.Fprintln(c.rl.Stdout(), "No telemetry yet, try 'refresh'")
		return
	}
	s, ok := snap.Settings[key]
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "Setting %s not tracked for this device\n", key)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "%s = %s", key, s.Value.Raw)
	if s.Unit != "" {
		fmt.Fprintf(c.rl.Stdout(), " %s", s.Unit)
	}
	fmt.Fprintln(c.rl.Stdout())
	if len(s.EnumValues) > 0 {
		fmt.Fprintf(c.rl.Stdout(), "  Allowed: %s\n", strings.Join(s.EnumValues, ", "))
	}
}

// cmdStage stages a setting value.
func (c *Console) cmdStage(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: stage <key> <value>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: stage work_mode Backup")
		return
	}

	value := strings.Join(args[1:], " ")
	id, err := c.svc.StageSetting(args[0], model.StringValue(value))
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Stage failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Staged %s, use 'commit %s' to apply\n", id, id)
}

// cmdSchedule handles the schedule subcommands.
func (c *Console) cmdSchedule(args []string) {
	if len(args) == 0 || args[0] == "show" {
		c.showSchedule()
		return
	}

	switch args[0] {
	case "add":
		c.scheduleAdd(args[1:])
	case "clear":
		if _, err := c.svc.StageSchedule(model.ScheduleSet{}); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Stage failed: %v\n", err)
			return
		}
		fmt.Fprintln(c.rl.Stdout(), "Staged empty schedule, use 'commit scheduler' to apply")
	default:
		fmt.Fprintf(c.rl.Stdout(), "Unknown schedule command: %s\n", args[0])
	}
}

func (c *Console) showSchedule() {
	snap, ok := c.svc.Snapshot()
	if !ok {
		fmt.Fprintln(c.rl.Stdout(), "No telemetry yet, try 'refresh'")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\nRemote Schedule (enabled: %v)\n", snap.Scheduler.Enabled)
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	printGroups(c.rl.Stdout(), snap.Scheduler.Groups)

	if v, ok := c.svc.Staged(model.UnitScheduler); ok {
		if set, ok := v.Schedule(); ok {
			fmt.Fprintln(c.rl.Stdout(), "\nStaged Schedule")
			fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
			printGroups(c.rl.Stdout(), set)
		}
	}
	fmt.Fprintln(c.rl.Stdout())
}

func printGroups(w io.Writer, groups model.ScheduleSet) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "  (no slots)")
		return
	}
	for i, g := range groups {
		state := "off"
		if g.Enable == 1 {
			state = "on"
		}
		fmt.Fprintf(w, "  %d. [%s] %s-%s %s minSocOnGrid=%d%% fdSoc=%d%% fdPwr=%.0fW maxSoc=%d%%\n",
			i+1, state, g.Start, g.End, g.WorkMode, g.MinSocOnGrid, g.FdSoc, g.FdPwr, g.MaxSoc)
	}
}

// scheduleAdd appends a slot to the staged schedule. The staged set
// starts from the remote one when nothing is staged yet.
func (c *Console) scheduleAdd(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: schedule add <HH:MM> <HH:MM> <mode> [fd-power-w]")
		fmt.Fprintln(c.rl.Stdout(), "  Example: schedule add 01:00 05:00 ForceCharge 8000")
		return
	}

	start, err := parseTime(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid start time: %v\n", err)
		return
	}
	end, err := parseTime(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid end time: %v\n", err)
		return
	}
	mode, err := model.ParseWorkMode(args[2])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}

	group := model.DefaultGroup()
	group.Enable = 1
	group.Start = start
	group.End = end
	group.WorkMode = mode
	if len(args) >= 4 {
		pwr, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid power: %v\n", err)
			return
		}
		group.FdPwr = pwr
	}

	set := c.baseSchedule()
	set = append(set, group)
	if _, err := c.svc.StageSchedule(set); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Stage failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Staged %d slot(s), use 'commit scheduler' to apply\n", len(set))
}

// baseSchedule returns the set a new slot is appended to: the staged
// one if present, otherwise the remote one.
func (c *Console) baseSchedule() model.ScheduleSet {
	if v, ok := c.svc.Staged(model.UnitScheduler); ok {
		if set, ok := v.Schedule(); ok {
			return set.Clone()
		}
	}
	if snap, ok := c.svc.Snapshot(); ok {
		return snap.Scheduler.Groups.Clone()
	}
	return nil
}

// cmdCommit commits one unit or everything dirty.
func (c *Console) cmdCommit(args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if len(args) == 0 {
		dirty := c.svc.Dirty()
		if len(dirty) == 0 {
			fmt.Fprintln(c.rl.Stdout(), "Nothing to commit")
			return
		}
		if err := c.svc.CommitAll(ctx); err != nil {
			c.printCommitError(err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "Committed %d unit(s)\n", len(dirty))
		return
	}

	id, err := parseUnit(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}

	outcome, err := c.svc.Commit(ctx, id)
	if err != nil {
		c.printCommitError(err)
		return
	}
	switch outcome {
	case engine.OutcomeNoOp:
		fmt.Fprintf(c.rl.Stdout(), "%s already matches the remote value\n", id)
	default:
		fmt.Fprintf(c.rl.Stdout(), "Committed %s\n", id)
	}
}

// printCommitError surfaces the guidance attached to classified errors.
func (c *Console) printCommitError(err error) {
	var ce *engine.CommitError
	if errors.As(err, &ce) {
		fmt.Fprintf(c.rl.Stdout(), "Commit failed (%s): %v\n", ce.Kind, err)
		if ce.Guidance != "" {
			fmt.Fprintf(c.rl.Stdout(), "  Hint: %s\n", ce.Guidance)
		}
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Commit failed: %v\n", err)
}

// cmdDirty lists dirty units with staged values and last errors.
func (c *Console) cmdDirty() {
	dirty := c.svc.Dirty()
	if len(dirty) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Nothing staged")
		return
	}

	fmt.Fprintln(c.rl.Stdout(), "\nDirty Units")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	for _, id := range dirty {
		v, _ := c.svc.Staged(id)
		fmt.Fprintf(c.rl.Stdout(), "  %-24s %s\n", id, v)
		if err := c.svc.LastError(id); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "  %-24s last error: %v\n", "", err)
		}
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdDiscard drops a staged value.
func (c *Console) cmdDiscard(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: discard <unit>")
		fmt.Fprintln(c.rl.Stdout(), "  Use 'dirty' to list units")
		return
	}

	id, err := parseUnit(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	c.svc.Discard(id)
	fmt.Fprintf(c.rl.Stdout(), "Discarded %s\n", id)
}

// cmdBudget shows the API call budget.
func (c *Console) cmdBudget() {
	stats := c.svc.Budget()

	fmt.Fprintln(c.rl.Stdout(), "\nCall Budget")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	if stats.DailyQuota <= 0 {
		fmt.Fprintf(c.rl.Stdout(), "  Used Today:     %d (no quota)\n", stats.CallsUsedToday)
	} else {
		fmt.Fprintf(c.rl.Stdout(), "  Used Today:     %d / %d\n", stats.CallsUsedToday, stats.DailyQuota)
		fmt.Fprintf(c.rl.Stdout(), "  Remaining:      %d\n", stats.Remaining())
	}
	fmt.Fprintf(c.rl.Stdout(), "  Last 24h:       %d\n", stats.CallsLast24h)
	fmt.Fprintf(c.rl.Stdout(), "  Window Start:   %s\n", stats.WindowStart.Format("2006-01-02 15:04"))
	if stats.Waiting > 0 {
		fmt.Fprintf(c.rl.Stdout(), "  Waiting Calls:  %d\n", stats.Waiting)
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdRefresh forces a telemetry poll outside the regular interval.
func (c *Console) cmdRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	snap, err := c.svc.RefreshNow(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Refresh failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Refreshed at %s\n", snap.FetchedAt.Format("15:04:05"))
}

// cmdWatch prints a telemetry line periodically until Enter is pressed.
func (c *Console) cmdWatch(args []string) {
	interval := 5 * time.Second
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintln(c.rl.Stdout(), "Usage: watch [seconds]")
			return
		}
		interval = time.Duration(n) * time.Second
	}

	fmt.Fprintln(c.rl.Stdout(), "Watching, press Enter to stop")
	stop := make(chan struct{})
	go func() {
		_, _ = c.rl.Readline()
		close(stop)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.printTelemetryLine()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.printTelemetryLine()
		}
	}
}

func (c *Console) printTelemetryLine() {
	snap, ok := c.svc.Snapshot()
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "[%s] no telemetry\n", time.Now().Format("15:04:05"))
		return
	}

	var parts []string
	for _, v := range []string{"SoC", "pvPower", "loadsPower", "batChargePower", "batDischargePower"} {
		if rv, ok := snap.Realtime[v]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.1f%s", v, rv.Value, rv.Unit))
		}
	}
	status := ""
	if c.svc.Degraded() {
		status = " DEGRADED"
	}
	fmt.Fprintf(c.rl.Stdout(), "[%s]%s %s\n",
		snap.FetchedAt.Format("15:04:05"), status, strings.Join(parts, " "))
}

// parseUnit maps a command argument to a unit ID.
func parseUnit(s string) (model.UnitID, error) {
	if strings.EqualFold(s, string(model.UnitScheduler)) {
		return model.UnitScheduler, nil
	}
	key, err := model.CanonicalSettingKey(s)
	if err != nil {
		return "", err
	}
	return model.SettingUnit(key), nil
}

// parseTime parses an HH:MM argument.
func parseTime(s string) (model.TimeOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return model.TimeOfDay{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return model.TimeOfDay{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return model.TimeOfDay{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	t := model.TimeOfDay{Hour: hour, Minute: minute}
	if err := t.Validate(); err != nil {
		return model.TimeOfDay{}, err
	}
	return t, nil
}
