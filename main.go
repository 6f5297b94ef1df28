// ABOUTME: Entry point for the real-time echo loopback
// ABOUTME: Starts capture and playback, then waits for Enter to stop
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/echo-loopback/internal/ui"
	"github.com/Resonate-Protocol/echo-loopback/internal/version"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/device"
	"github.com/Resonate-Protocol/echo-loopback/pkg/loopback"
	tea "github.com/charmbracelet/bubbletea"
)

// Operator knobs; the loopback itself takes no flags or config file
const (
	envBackend = "ECHO_LOOPBACK_BACKEND"
	envLogFile = "ECHO_LOOPBACK_LOG_FILE"
	envTUI     = "ECHO_LOOPBACK_TUI"

	defaultTUILogFile = "echo-loopback.log"
)

func main() {
	os.Exit(run())
}

func run() int {
	backend := os.Getenv(envBackend)
	if backend == "" {
		backend = device.BackendMalgo
	}
	useTUI := os.Getenv(envTUI) == "1"

	// Set up logging
	logFile := os.Getenv(envLogFile)
	if useTUI && logFile == "" {
		logFile = defaultTUILogFile
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Printf("error opening log file: %v", err)
			return 1
		}
		defer func() { _ = f.Close() }()

		if useTUI {
			// TUI mode: log only to file
			log.SetOutput(f)
		} else {
			log.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	}

	capture, render, err := device.New(backend)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	// TUI setup
	var tuiProg *tea.Program
	var control *ui.Control
	if useTUI {
		control = ui.NewControl()
		tuiProg, err = ui.Run(control)
		if err != nil {
			log.Printf("Failed to start TUI: %v", err)
			return 1
		}
	}

	// Helper to update TUI
	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	config := loopback.DefaultConfig()
	config.OnStats = func(stats loopback.Stats) {
		updateTUI(ui.StatsMsg{
			Blocks:    stats.Blocks,
			Skipped:   stats.Skipped,
			Dropped:   stats.Dropped,
			Underruns: stats.Underruns,
			Buffered:  stats.Buffered,
			Capacity:  stats.Capacity,
		})
	}

	config.OnError = func(err error) {
		stopped := false
		updateTUI(ui.StatusMsg{Running: &stopped, Error: err.Error()})
	}

	session, err := loopback.New(config, capture, render)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}

	log.Printf("Starting %s (session %s, backend %s)", version.String(), session.ID(), backend)

	if err := session.Start(context.Background()); err != nil {
		fmt.Printf("Error: %v\n", err)
		if stopErr := session.Stop(); stopErr != nil {
			log.Printf("Warning: stop after failed start: %v", stopErr)
		}
		return 1
	}

	format := session.Format()
	running := true
	updateTUI(ui.StatusMsg{
		SessionID:  session.ID(),
		Backend:    backend,
		Running:    &running,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Decay:      config.Decay,
		EchoLen:    session.EchoLen(),
	})

	// Wait for Enter, TUI quit, OS signal or a device failure
	stop := make(chan struct{}, 1)
	if tuiProg != nil {
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			stop <- struct{}{}
		}()
	} else {
		fmt.Printf("Real-time echo loopback started: %s (press Enter to stop)\n", format)
		go func() {
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
			stop <- struct{}{}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-stop:
		log.Printf("Stop requested")
	case <-controlQuit(control):
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case err := <-session.Errors():
		fmt.Printf("Device error: %v\n", err)
		updateTUI(ui.StatusMsg{Error: err.Error()})
		exitCode = 1
	}

	if err := session.Stop(); err != nil {
		fmt.Printf("Error: %v\n", err)
		exitCode = 1
	}

	if tuiProg != nil {
		stopped := false
		updateTUI(ui.StatusMsg{Running: &stopped})
		tuiProg.Quit()
		tuiProg.Wait()
	}

	log.Printf("Loopback stopped")
	return exitCode
}

// controlQuit returns the TUI quit channel, or nil (never ready) without a TUI
func controlQuit(control *ui.Control) <-chan ui.QuitMsg {
	if control == nil {
		return nil
	}
	return control.Quit
}
