// Command accelctl is an interactive console over internal/hostrt.Runtime:
// type mnemonic lines to push them onto the pending program, `:sync` to run
// it, `:wait_irq` to drive one of the fixed async kernels, and a handful of
// other `:`-prefixed commands for memory and diagnostics. Given a file argument
// ending in .lua it runs that script instead of opening the console.
//
// Grounded on terminal_host.go's raw-mode stdin reader (here driving a line
// editor instead of routing bytes to an MMIO device) and features.go's
// version/feature banner.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"golang.design/x/clipboard"
	"golang.org/x/term"

	"github.com/accelsim/tensoraccel/internal/hostrt"
	"github.com/accelsim/tensoraccel/internal/hostrt/script"
	"github.com/accelsim/tensoraccel/internal/kernel"
)

var compiledFeatures = []string{"hostrt", "script/lua", "clipboard-dump"}

func printBanner() {
	fmt.Printf("accelctl %s\n", hostrt.Version)
	fmt.Println("tensor accelerator simulator console -- type :help for commands")
	fmt.Println()
	fmt.Println("compiled features:")
	sort.Strings(compiledFeatures)
	for _, f := range compiledFeatures {
		fmt.Printf("  %s\n", f)
	}
}

func main() {
	printBanner()

	rt := hostrt.New()
	defer rt.Close()

	if len(os.Args) == 2 && strings.HasSuffix(os.Args[1], ".lua") {
		runScriptFile(rt, os.Args[1])
		return
	}

	runConsole(rt)
}

func runScriptFile(rt *hostrt.Runtime, path string) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelctl: %v\n", err)
		os.Exit(1)
	}
	eng := script.New(rt)
	defer eng.Close()
	if err := eng.Run(string(src)); err != nil {
		fmt.Fprintf(os.Stderr, "accelctl: script error: %v\n", err)
		os.Exit(1)
	}
}

// runConsole drives a raw-mode stdin reader that assembles whole lines
// itself (echoing as it goes, handling backspace) and dispatches each
// completed line to dispatch. Raw mode is used so accelctl controls
// character translation the same way terminal_host.go does for its MMIO
// device, rather than handing line discipline to the OS.
func runConsole(rt *hostrt.Runtime) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		runBatch(rt, os.Stdin)
		return
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelctl: failed to set raw mode: %v\n", err)
		os.Exit(1)
	}
	defer term.Restore(fd, oldState)

	if err := syscall.SetNonblock(fd, false); err != nil {
		fmt.Fprintf(os.Stderr, "accelctl: failed to set blocking stdin: %v\n", err)
	}

	fmt.Print("accel> ")
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := syscall.Read(fd, buf)
		if err != nil || n == 0 {
			return
		}
		b := buf[0]
		switch {
		case b == '\r' || b == '\n':
			fmt.Print("\r\n")
			cmd := string(line)
			line = line[:0]
			if shouldQuit(rt, cmd) {
				return
			}
			fmt.Print("accel> ")
		case b == 0x7F || b == 0x08:
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Print("\b \b")
			}
		case b == 0x03: // Ctrl-C
			fmt.Print("\r\n")
			return
		default:
			line = append(line, b)
			os.Stdout.Write([]byte{b})
		}
	}
}

// runBatch is the non-terminal fallback (piped stdin, e.g. tests driving
// accelctl over a pipe): read whole lines with bufio instead of raw bytes.
func runBatch(rt *hostrt.Runtime, in *os.File) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if shouldQuit(rt, scanner.Text()) {
			return
		}
	}
}

func shouldQuit(rt *hostrt.Runtime, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if line == ":quit" || line == ":q" {
		return true
	}
	dispatch(rt, line)
	return false
}

func dispatch(rt *hostrt.Runtime, line string) {
	if strings.HasPrefix(line, ":") {
		dispatchColon(rt, line)
		return
	}
	if err := rt.PushKernel(line); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func dispatchColon(rt *hostrt.Runtime, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":help":
		fmt.Println("push a mnemonic line directly; : commands: :sync :wait_irq N a,b,c " +
			":alloc N :free OFF :load OFF hexbytes :dump OFF N :kernels :status :quit")
	case ":sync":
		if err := rt.Synchronize(); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println("ok")
	case ":status":
		fmt.Printf("session=%d status=%s err=%v\n", rt.Session(), rt.Status(), rt.Err())
	case ":kernels":
		names := kernel.Names()
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(" ", n)
		}
	case ":alloc":
		if len(fields) != 2 {
			fmt.Println("usage: :alloc N")
			return
		}
		n, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		off, err := rt.AllocBuffer(n)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("offset=%d (0x%x)\n", off, off)
	case ":free":
		if len(fields) != 2 {
			fmt.Println("usage: :free OFF")
			return
		}
		off, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		rt.FreeBuffer(off)
	case ":load":
		if len(fields) != 3 {
			fmt.Println("usage: :load OFF hexbytes")
			return
		}
		off, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		data, err := hex.DecodeString(fields[2])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		if err := rt.CopyToDevice(off, data); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case ":dump":
		dumpToClipboard(rt, fields)
	case ":wait_irq":
		waitIRQ(rt, fields)
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
}

// clipboardOK is resolved once per process, mirroring video_backend_ebiten.go's
// clipboardOnce/clipboardOK pair for a feature that degrades to printing
// the hex on stdout when the host has no clipboard (headless CI, no
// X/Wayland session).
var clipboardOK = clipboard.Init() == nil

// dumpToClipboard hex-encodes N bytes of device DRAM starting at OFF and
// writes them to the system clipboard as text, for pasting device state
// into a bug report or another tool.
func dumpToClipboard(rt *hostrt.Runtime, fields []string) {
	if len(fields) != 3 {
		fmt.Println("usage: :dump OFF N")
		return
	}
	off, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	n, err := strconv.ParseUint(fields[2], 0, 64)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	data := make([]byte, n)
	if err := rt.CopyToHost(data, off); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	encoded := hex.EncodeToString(data)
	if !clipboardOK {
		fmt.Println(encoded)
		return
	}
	clipboard.Write(clipboard.FmtText, []byte(encoded))
	fmt.Println("copied to clipboard")
}

func waitIRQ(rt *hostrt.Runtime, fields []string) {
	if len(fields) != 3 {
		fmt.Println("usage: :wait_irq N a,b,c,...")
		return
	}
	irq, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	var args []uint64
	for _, tok := range strings.Split(fields[2], ",") {
		v, err := strconv.ParseUint(tok, 0, 64)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		args = append(args, v)
	}
	if err := rt.WaitIRQ(irq, args); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("ok")
}
