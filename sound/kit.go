package sound

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// kitNamespace seeds the ids of kit sounds that do not carry one
var kitNamespace = uuid.MustParse("6b1f0b3e-55d4-4c1b-9a57-3f0c2f1f7a10")

// Kit is a named set of sound descriptors, stored as YAML:
//
//	name: Basic
//	sounds:
//	  - name: Kick
//	    src: ~/samples/kick.wav
type Kit struct {
	Name   string       `yaml:"name"`
	Sounds []Descriptor `yaml:"sounds"`
}

// Default slots, top row first
var defaultSlots = []string{
	"Kick",
	"Snare",
	"Hi-Hat",
	"Clap",
	"Tom",
}

// DefaultKit lists the built-in slots as <samplesDir>/<slot>.wav. Missing
// files load as fallback tones.
func DefaultKit(samplesDir string) *Kit {
	k := &Kit{Name: "Default"}
	for _, name := range defaultSlots {
		file := strings.ToLower(strings.ReplaceAll(name, "-", "")) + ".wav"
		k.Sounds = append(k.Sounds, Descriptor{
			Name:      name,
			SourceURL: filepath.Join(samplesDir, file),
		})
	}
	k.assignIDs()
	return k
}

// LoadKit reads a YAML kit file
func LoadKit(path string) (*Kit, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("expand kit path"))
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("read kit "+expanded, "The sound kit file could not be read"),
			ftag.With(ftag.NotFound))
	}

	var k Kit
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("parse kit "+expanded, "The sound kit file is not valid YAML"),
			ftag.With(ftag.InvalidArgument))
	}
	if len(k.Sounds) == 0 {
		return nil, fault.New("kit "+expanded+" has no sounds", ftag.With(ftag.InvalidArgument))
	}

	// Relative sources are relative to the kit file
	base := filepath.Dir(expanded)
	for i := range k.Sounds {
		src := k.Sounds[i].SourceURL
		if src != "" && !strings.Contains(src, "://") && !strings.HasPrefix(src, "data:") &&
			!strings.HasPrefix(src, "~") && !filepath.IsAbs(src) {
			k.Sounds[i].SourceURL = filepath.Join(base, src)
		}
		if k.Sounds[i].Name == "" {
			k.Sounds[i].Name = filepath.Base(src)
		}
	}
	k.assignIDs()
	return &k, nil
}

// Save writes the kit as YAML
func (k *Kit) Save(path string) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fault.Wrap(err, fmsg.With("expand kit path"))
	}
	data, err := yaml.Marshal(k)
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode kit"))
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create kit dir"))
	}
	if err := os.WriteFile(expanded, data, 0644); err != nil {
		return fault.Wrap(err, fmsg.With("write kit"))
	}
	return nil
}

// assignIDs gives sounds without an id one derived from their source, so
// the same kit yields the same ids every run
func (k *Kit) assignIDs() {
	for i := range k.Sounds {
		if k.Sounds[i].ID == "" {
			k.Sounds[i].ID = uuid.NewSHA1(kitNamespace, []byte(k.Sounds[i].Name+"|"+k.Sounds[i].SourceURL)).String()
		}
	}
}
