package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"

	"beatpad/config"
	"beatpad/debug"
	"beatpad/midi"
	"beatpad/recorder"
	"beatpad/sound"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	if os.Getenv("BEATPAD_DEBUG") == "1" {
		if err := debug.Enable(); err == nil {
			defer debug.Disable()
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error (using defaults): %v\n", err)
		cfg = config.DefaultConfig()
	}
	cfg.ApplyEnv()

	switch os.Args[1] {
	case "ports":
		listPorts()
	case "inputs":
		listInputs()
	case "tone":
		playTone(cfg)
	case "record":
		recordClip(cfg)
	case "leds":
		testLEDs()
	case "poll":
		pollDevices(cfg)
	case "kit":
		writeKit(cfg)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("beatpad device checks")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ports   - List MIDI ports")
	fmt.Println("  inputs  - List audio input devices")
	fmt.Println("  tone    - Play a test tone through the speaker")
	fmt.Println("  record  - Record a short clip and play it back")
	fmt.Println("  leds    - Light a diagonal on the first Launchpad")
	fmt.Println("  poll    - Watch controllers connect and disconnect")
	fmt.Println("  kit     - Write the built-in kit as YAML (kit [path])")
}

func listPorts() {
	fmt.Println("(waiting up to 3 seconds...)")
	ins, outs, err := midi.ListPorts(3 * time.Second)
	if err != nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}

	fmt.Println("=== MIDI Input Ports ===")
	for i, p := range ins {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
}

func listInputs() {
	devices, err := recorder.InputDevices()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(devices) == 0 {
		fmt.Println("No audio input devices found")
		return
	}
	fmt.Println("=== Audio Input Devices ===")
	for _, d := range devices {
		fmt.Printf("  %s\n", d)
	}
}

func openRegistry(cfg *config.Config) (*sound.Registry, bool) {
	reg := sound.NewRegistry(sound.NewSpeakerOutput(cfg.Audio.Volume),
		sound.WithSampleRate(cfg.Audio.SampleRate),
		sound.WithBufferMs(cfg.Audio.BufferMs))
	if err := reg.Open(); err != nil {
		fmt.Printf("Error opening audio output: %v\n", err)
		return nil, false
	}
	return reg, true
}

func playTone(cfg *config.Config) {
	reg, ok := openRegistry(cfg)
	if !ok {
		return
	}
	defer reg.Close()

	// An empty source always falls back to a tone
	s, err := reg.Load(context.Background(), "", "Test tone")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Playing %.0fHz tone at %d Hz...\n", s.ToneHz, reg.SampleRate())
	reg.Play(s.ID)
	time.Sleep(s.Duration() + 100*time.Millisecond)
	fmt.Println("Done!")
}

func recordClip(cfg *config.Config) {
	reg, ok := openRegistry(cfg)
	if !ok {
		return
	}
	defer reg.Close()

	dir, err := cfg.RecordingsDir()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	rec := recorder.New(reg, recorder.PortAudioMicrophone{}, recorder.WithDir(dir))

	limit := time.Duration(cfg.Recorder.MaxDurationMs) * time.Millisecond
	fmt.Printf("Recording up to %v, press Enter to stop early...\n", limit)
	go func() {
		fmt.Scanln()
		rec.Stop()
	}()

	s, err := rec.Record(context.Background(), limit)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Captured %s: %v, saved to %s\n", s.Name, s.Duration(), s.Source)
	fmt.Println("Playing it back...")
	reg.Play(s.ID)
	time.Sleep(s.Duration() + 100*time.Millisecond)
}

func testLEDs() {
	ins, outs, err := midi.ListPorts(3 * time.Second)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	var inPort drivers.In
	var outPort drivers.Out
	for _, p := range ins {
		if isLaunchpadPort(p.String()) {
			inPort = p
			break
		}
	}
	for _, p := range outs {
		if isLaunchpadPort(p.String()) {
			outPort = p
			break
		}
	}
	if outPort == nil {
		fmt.Println("No Launchpad found")
		return
	}

	id := outPort.String()
	fmt.Printf("Using %s\n", id)
	lp, err := midi.NewLaunchpadController(id, midi.ModelFromName(id), inPort, outPort)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer lp.Close()

	fmt.Println("Lighting up diagonal (green)...")
	for i := 0; i < 8; i++ {
		lp.SetLEDRGB(i, i, [3]uint8{0, 255, 0}, midi.ChannelStatic)
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("Press Enter to clear...")
	fmt.Scanln()
	fmt.Println("Done!")
}

func pollDevices(cfg *config.Config) {
	fmt.Println("Watching for controllers. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dm := midi.NewDeviceManager()
	dm.Keyboards = true
	dm.Allow = cfg.AllowPort
	go dm.Run(ctx)

	for ev := range dm.Events() {
		stamp := time.Now().Format("15:04:05")
		switch ev.Type {
		case midi.DeviceConnected:
			fmt.Printf("[%s] + %s (%s)\n", stamp, ev.ID, ev.Controller.Type())
		case midi.DeviceDisconnected:
			fmt.Printf("[%s] - %s\n", stamp, ev.ID)
		}
	}
}

func isLaunchpadPort(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}

func writeKit(cfg *config.Config) {
	samples, err := cfg.SamplesDir()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	path := "kit.yaml"
	if len(os.Args) > 2 {
		path = os.Args[2]
	}
	kit := sound.DefaultKit(samples)
	if err := kit.Save(path); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Wrote %d sounds to %s\n", len(kit.Sounds), path)
	fmt.Println("Point library.kitPath (or BEATPAD_KIT) at it to use it")
}
