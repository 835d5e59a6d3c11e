package recorder

import (
	"fmt"

	pa "github.com/gordonklaus/portaudio"
)

// InputStream is an open capture stream
type InputStream interface {
	// Read blocks until the next block of mono samples is available
	Read() ([]float32, error)
	// Close stops capture and releases the device
	Close() error
}

// Microphone opens capture streams
type Microphone interface {
	Open(sampleRate, framesPerBuffer int) (InputStream, error)
}

// PortAudioMicrophone captures from the default PortAudio input device
type PortAudioMicrophone struct{}

func (PortAudioMicrophone) Open(sampleRate, framesPerBuffer int) (InputStream, error) {
	if err := pa.Initialize(); err != nil {
		return nil, err
	}
	buf := make([]float32, framesPerBuffer)
	stream, err := pa.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		pa.Terminate()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return nil, err
	}
	return &paStream{stream: stream, buf: buf}, nil
}

type paStream struct {
	stream *pa.Stream
	buf    []float32
}

func (s *paStream) Read() ([]float32, error) {
	if err := s.stream.Read(); err != nil {
		return nil, err
	}
	out := make([]float32, len(s.buf))
	copy(out, s.buf)
	return out, nil
}

func (s *paStream) Close() error {
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	termErr := pa.Terminate()
	for _, err := range []error{stopErr, closeErr, termErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// InputDevice describes a capture-capable device
type InputDevice struct {
	Name       string
	HostAPI    string
	Channels   int
	SampleRate float64
	Default    bool
}

func (d InputDevice) String() string {
	def := ""
	if d.Default {
		def = " (default)"
	}
	return fmt.Sprintf("%s [%s] %dch %.0fHz%s", d.Name, d.HostAPI, d.Channels, d.SampleRate, def)
}

// InputDevices lists PortAudio devices that can record
func InputDevices() ([]InputDevice, error) {
	if err := pa.Initialize(); err != nil {
		return nil, err
	}
	defer pa.Terminate()

	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := pa.DefaultInputDevice()

	var out []InputDevice
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		host := ""
		if d.HostApi != nil {
			host = d.HostApi.Name
		}
		out = append(out, InputDevice{
			Name:       d.Name,
			HostAPI:    host,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
			Default:    def != nil && d.Name == def.Name,
		})
	}
	return out, nil
}
