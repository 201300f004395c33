// Entry point to our RomWBW emulator.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/skx/romulator/hbios"
	"github.com/skx/romulator/monitor"
	"github.com/skx/romulator/romapp"
	"github.com/skx/romulator/sound"
	"github.com/skx/romulator/version"
)

// diskSpec is one "-disk N=PATH" argument.
type diskSpec struct {
	unit   int
	path   string
	create bool
}

// appSpec is one "-romapp K=Name:PATH" argument.
type appSpec struct {
	key  byte
	name string
	path string
}

// parseDiskFlag parses "N=PATH", with an optional trailing "+" on the
// unit meaning "create the image if missing".
func parseDiskFlag(value string) (diskSpec, error) {
	var spec diskSpec

	idx := strings.IndexByte(value, '=')
	if idx <= 0 || idx == len(value)-1 {
		return spec, fmt.Errorf("use -disk N=PATH, got %q", value)
	}

	numPart := value[:idx]
	if strings.HasSuffix(numPart, "+") {
		spec.create = true
		numPart = numPart[:len(numPart)-1]
	}

	unit, err := strconv.Atoi(numPart)
	if err != nil || unit < 0 || unit > 15 {
		return spec, fmt.Errorf("bad disk unit in %q", value)
	}

	spec.unit = unit
	spec.path = value[idx+1:]
	return spec, nil
}

// parseAppFlag parses "K=Name:PATH", or the shorthand "K:PATH" which
// picks a conventional name for the key.
func parseAppFlag(value string) (appSpec, error) {
	var spec appSpec

	if len(value) < 3 {
		return spec, fmt.Errorf("use -romapp K=Name:PATH, got %q", value)
	}

	spec.key = value[0]
	switch value[1] {
	case '=':
		rest := value[2:]
		idx := strings.IndexByte(rest, ':')
		if idx <= 0 || idx == len(rest)-1 {
			return spec, fmt.Errorf("use -romapp K=Name:PATH, got %q", value)
		}
		spec.name = rest[:idx]
		spec.path = rest[idx+1:]
	case ':':
		spec.name = romapp.DefaultName(spec.key)
		spec.path = value[2:]
	default:
		return spec, fmt.Errorf("use -romapp K=Name:PATH, got %q", value)
	}
	return spec, nil
}

// parseEscape parses the monitor escape character: "^E" style, a
// literal character, or "none".
func parseEscape(value string) (byte, error) {
	switch {
	case value == "none":
		return 0, nil
	case len(value) == 2 && value[0] == '^':
		return value[1] & 0x1F, nil
	case len(value) == 1:
		return value[0], nil
	}
	return 0, fmt.Errorf("bad escape character %q", value)
}

func main() {

	var disks []diskSpec
	var apps []appSpec

	showVersion := flag.Bool("version", false, "show our version and exit")
	inputDriver := flag.String("input", "uart", "console input driver (uart, null)")
	outputDriver := flag.String("output", "ansi", "console output driver (ansi, null)")
	displayDriver := flag.String("display", "ansi", "VDA display driver (ansi, null)")
	soundDriver := flag.String("sound", "console", "sound driver (console, null, wav)")
	soundPath := flag.String("sound-wav", "beep.wav", "output file for the wav sound driver")
	bootString := flag.String("boot", "", "auto-type this command at the boot prompt")
	bootPrompt := flag.String("boot-prompt", "Boot [", "wait for this text before auto-typing; empty types immediately")
	escapeChar := flag.String("escape", "^E", "monitor escape character, or 'none'")
	strictIO := flag.Bool("strict-io", false, "halt on unexpected I/O ports")

	flag.Func("disk", "attach a disk image: N=PATH ('N+=PATH' creates it)", func(v string) error {
		spec, err := parseDiskFlag(v)
		if err != nil {
			return err
		}
		disks = append(disks, spec)
		return nil
	})
	flag.Func("romapp", "register a ROM application: K=Name:PATH or K:PATH", func(v string) error {
		spec, err := parseAppFlag(v)
		if err != nil {
			return err
		}
		apps = append(apps, spec)
		return nil
	})

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s", version.GetVersionBanner())
		return
	}

	if flag.NArg() < 1 {
		fmt.Printf("Usage: romulator [options] path/to/rom.rom [guest args]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Setup our logging level - default to warnings or higher,
	// but show "everything" if $DEBUG is non-empty.
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	if os.Getenv("DEBUG") != "" {
		lvl.Set(slog.LevelDebug)
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))

	options := []hbios.Option{
		hbios.WithLogger(log),
		hbios.WithConsoleInputDriver(*inputDriver),
		hbios.WithConsoleOutputDriver(*outputDriver),
		hbios.WithDisplayDriver(*displayDriver),
		hbios.WithHostCommandLine(strings.Join(flag.Args()[1:], " ")),
	}
	if *strictIO {
		options = append(options, hbios.WithStrictIO())
	}

	// The wav sound driver needs its output path; anything else
	// resolves by name.
	if *soundDriver == "wav" {
		wp := &sound.WavPlayer{}
		wp.SetPath(*soundPath)
		options = append(options, hbios.WithSoundPlayer(wp))
	} else {
		options = append(options, hbios.WithSoundDriver(*soundDriver))
	}

	emu, err := hbios.New(options...)
	if err != nil {
		fmt.Printf("Error creating emulator: %s\n", err)
		os.Exit(1)
	}
	defer emu.Close()

	// Load the ROM image.
	if err = emu.LoadROM(flag.Arg(0)); err != nil {
		fmt.Printf("Error loading ROM: %s\n", err)
		os.Exit(1)
	}

	// Attach the disk images; a bad image is fatal before we start.
	for _, spec := range disks {
		if err = emu.Disks.Attach(spec.unit, spec.path, spec.create); err != nil {
			fmt.Printf("Error attaching disk: %s\n", err)
			os.Exit(1)
		}
	}
	emu.RefreshDiskTables()

	// Register the ROM applications; missing files are fatal too.
	for _, spec := range apps {
		if err = emu.Apps.Register(spec.key, spec.name, spec.path); err != nil {
			fmt.Printf("Error registering ROM application: %s\n", err)
			os.Exit(1)
		}
	}

	// Wire up the monitor escape character.
	esc, err := parseEscape(*escapeChar)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	emu.Input().SetEscape(esc)

	mon := monitor.New(&emu.CPU, emu.Memory, emu.Input(), os.Stdout)
	mon.AddBreak = emu.AddBreakpoint
	mon.DelBreak = emu.RemoveBreakpoint
	mon.Breaks = emu.Breakpoints
	emu.SetMonitor(mon.Interact)

	// Queue the auto-boot command.  Typed too early it would be
	// swallowed by the firmware's start-up banner, so by default we
	// wait until the loader has printed its prompt.
	if *bootString != "" {
		s := *bootString
		if !strings.HasSuffix(s, "\r") && !strings.HasSuffix(s, "\n") {
			s += "\r"
		}
		if *bootPrompt == "" {
			emu.Input().StuffInput(s)
		} else {
			emu.Output().WatchFor(*bootPrompt, func() {
				emu.Input().StuffInput(s)
			})
		}
	}

	// Put the terminal into shape, and restore it on the way out.
	if err = emu.Input().Setup(); err != nil {
		fmt.Printf("Error preparing the terminal: %s\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := emu.Input().TearDown(); err != nil {
			log.Error("failed to restore the terminal",
				slog.String("error", err.Error()))
		}
	}()

	// Run the ROM.
	err = emu.Run(context.Background())
	switch {
	case errors.Is(err, hbios.ErrHalt):
		fmt.Printf("\r\nThe guest halted.\r\n")
	case errors.Is(err, hbios.ErrExit):
		// Monitor-requested exit; nothing to add.
	case err != nil:
		fmt.Printf("\r\nError running %s: %s\r\n", flag.Arg(0), err)
	}

	if os.Getenv("DEBUG") != "" {
		reportPortStats(emu)
	}
}

// reportPortStats prints the per-port access counters gathered during
// the run.
func reportPortStats(emu *hbios.HBIOS) {
	in, out := emu.PortStats()

	show := func(label string, m map[uint8]int) {
		var ports []int
		for p := range m {
			ports = append(ports, int(p))
		}
		sort.Ints(ports)

		fmt.Fprintf(os.Stderr, "%s ports accessed:\n", label)
		for _, p := range ports {
			fmt.Fprintf(os.Stderr, "  0x%02X: %d\n", p, m[uint8(p)])
		}
	}

	show("IN", in)
	show("OUT", out)
}
