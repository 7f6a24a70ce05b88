package cmd

import (
	"os"

	"github.com/goquill/goquill/internal/bytecode"
	"github.com/goquill/goquill/internal/runtime"
	"github.com/goquill/goquill/internal/script"
)

// newRealm builds a Runtime/Realm pair honoring --config, if given.
func newRealm() (*runtime.Runtime, *runtime.Realm, error) {
	var opts []runtime.Option
	if configPath != "" {
		cfg, err := runtime.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		opts = cfg.Options()
	}
	rt := runtime.New(opts...)
	return rt, rt.NewRealm(), nil
}

// loadScript reads and deserializes a compiled script image, hydrating any
// constant-pool strings/bigints against realm's interpreter heap.
func loadScript(realm *runtime.Realm, path string) (*script.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytecode.NewSerializer().Deserialize(realm.IP, data)
}
